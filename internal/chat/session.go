package chat

import (
	"alcyxob/workout-chat/internal/domain"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// API is the remote workout API a session talks to.
type API interface {
	PlanAPI
	StreamChat(ctx context.Context, req domain.ChatTurnRequest) (io.ReadCloser, error)
}

// SessionConfig scopes a session to one unit.
type SessionConfig struct {
	UnitID       string
	Profile      *domain.TrainingProfile
	HistoryLimit int
	CallTimeout  time.Duration
}

// Session is one chat conversation: it runs streaming turns into its Store and
// reconciles approved plans. Only one turn or approval runs at a time.
type Session struct {
	api    API
	logger *zap.Logger
	rec    *Reconciler
	cfg    SessionConfig

	mu         sync.Mutex
	processing bool
	store      *Store
	persisted  []domain.ExistingWorkout
	remaining  *int
}

// NewSession creates a session. Call Reload to fetch the persisted workouts
// before setting references.
func NewSession(api API, cfg SessionConfig, logger *zap.Logger, opts ...StoreOption) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("unitId", cfg.UnitID))
	return &Session{
		api:    api,
		logger: logger,
		rec:    NewReconciler(api, logger, WithCallTimeout(cfg.CallTimeout)),
		cfg:    cfg,
		store:  NewStore(logger, opts...),
	}
}

// Reload replaces the persisted workout list with the API's.
func (s *Session) Reload(ctx context.Context) error {
	if s.cfg.UnitID == "" {
		return ErrNoUnit
	}
	workouts, err := s.api.ListWorkouts(ctx, s.cfg.UnitID)
	if err != nil {
		return fmt.Errorf("reload workouts: %w", err)
	}
	s.mu.Lock()
	s.persisted = workouts
	s.mu.Unlock()
	return nil
}

// Send runs one turn: the message is annotated with the active reference,
// streamed to the generator and every event is applied to the store in order.
// A failure is also appended to the transcript as an assistant message.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if err := s.checkSendLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.processing = true
	history := s.store.History(s.cfg.HistoryLimit)
	preview := s.store.Drafts()
	outgoing, ref := s.store.BeginTurn(text)
	req := domain.ChatTurnRequest{
		Message:             outgoing,
		ConversationHistory: history,
		UnitID:              s.cfg.UnitID,
		ExistingWorkouts:    append([]domain.ExistingWorkout(nil), s.persisted...),
		Profile:             s.cfg.Profile,
		Reference:           ref,
		PreviewWorkouts:     preview,
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.processing = false
		s.mu.Unlock()
	}()

	s.logger.Info("Sending chat turn", zap.Bool("reference", ref != nil), zap.Int("drafts", len(preview)))
	body, err := s.api.StreamChat(ctx, req)
	if err != nil {
		return s.fail(err)
	}
	defer body.Close()

	if err := ReadEvents(ctx, body, s.applyEvent); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.store.FinishStream()
	s.mu.Unlock()
	return nil
}

func (s *Session) checkSendLocked() error {
	if s.processing {
		return ErrTurnInProgress
	}
	if s.cfg.UnitID == "" {
		return ErrNoUnit
	}
	if s.remaining != nil && *s.remaining <= 0 {
		return ErrQuotaExhausted
	}
	return nil
}

// applyEvent applies one decoded record. Records with malformed data are
// skipped; only a well-formed error event ends the turn.
func (s *Session) applyEvent(ev Event) error {
	switch ev.Type {
	case domain.EventStatus:
		var p domain.StatusPayload
		if err := json.Unmarshal([]byte(ev.Data), &p); err != nil {
			s.logger.Warn("Skipping malformed status event", zap.Error(err))
			return nil
		}
		s.mu.Lock()
		s.store.ApplyStatus(p.Message)
		s.mu.Unlock()

	case domain.EventWorkoutProgress:
		var p domain.WorkoutProgressPayload
		if err := json.Unmarshal([]byte(ev.Data), &p); err != nil {
			s.logger.Warn("Skipping malformed workout_progress event", zap.Error(err))
			return nil
		}
		s.mu.Lock()
		s.store.ApplyWorkoutProgress(p.Workout, p.Index)
		s.mu.Unlock()

	case domain.EventComplete:
		var plan domain.WorkoutPlan
		if err := json.Unmarshal([]byte(ev.Data), &plan); err != nil {
			s.logger.Warn("Skipping malformed complete event", zap.Error(err))
			return nil
		}
		s.mu.Lock()
		s.store.ApplyComplete(plan)
		if plan.RemainingMessages != nil {
			n := *plan.RemainingMessages
			s.remaining = &n
		}
		s.mu.Unlock()

	case domain.EventError:
		var p domain.ErrorPayload
		if err := json.Unmarshal([]byte(ev.Data), &p); err != nil {
			s.logger.Debug("Ignoring unparseable error event", zap.String("data", ev.Data))
			return nil
		}
		msg := p.Text()
		if msg == "" {
			msg = "The assistant could not finish this answer."
		}
		return &GeneratorError{Message: msg}

	default:
		s.logger.Debug("Ignoring unknown event", zap.String("type", ev.Type))
	}
	return nil
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if errors.Is(err, ErrQuotaExhausted) {
		zero := 0
		s.remaining = &zero
	}
	s.store.AppendAssistantMessage(UserMessage(err))
	s.logger.Warn("Chat turn failed", zap.Error(err))
	return err
}

// Approve reconciles the pending plan. On success the drafts are cleared and
// the persisted list is refreshed; on failure the drafts stay for a retry and
// the persisted list is reloaded when possible.
func (s *Session) Approve(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return Result{}, ErrTurnInProgress
	}
	s.processing = true
	a := Approval{
		UnitID:    s.cfg.UnitID,
		Plan:      s.store.Pending(),
		Drafts:    s.store.Drafts(),
		Reference: s.store.TurnReference(),
		Persisted: append([]domain.ExistingWorkout(nil), s.persisted...),
	}
	s.mu.Unlock()

	res, err := s.rec.Reconcile(ctx, a)
	if err != nil && a.Plan != nil && a.UnitID != "" {
		// Calls before the failure may have persisted workouts; a retry must see them.
		if fresh, listErr := s.rec.list(ctx, a.UnitID); listErr == nil {
			s.mu.Lock()
			s.persisted = fresh
			s.mu.Unlock()
		} else {
			s.logger.Warn("Refreshing workouts after failed approval", zap.Error(listErr))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = false
	if err != nil {
		s.store.AppendAssistantMessage(UserMessage(err))
		return res, err
	}
	s.persisted = res.Workouts
	s.store.Reset()
	s.store.AppendAssistantMessage(approvedMessage(res))
	return res, nil
}

func approvedMessage(res Result) string {
	switch {
	case len(res.Created) > 0 && res.Updated:
		return fmt.Sprintf("Saved %d new workout(s) and updated the selected one.", len(res.Created))
	case len(res.Created) > 0:
		return fmt.Sprintf("Saved %d new workout(s).", len(res.Created))
	case res.Updated:
		return "Workout updated."
	default:
		return "Everything was already saved."
	}
}

// Redo drops the drafts and the pending plan so the user can start over.
func (s *Session) Redo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing {
		return ErrTurnInProgress
	}
	s.store.Reset()
	return nil
}

// SetReference scopes the next message to a draft, or to one of its exercises.
func (s *Session) SetReference(kind domain.ReferenceKind, draftIndex, exerciseIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SetReference(kind, draftIndex, exerciseIndex, s.persisted)
}

func (s *Session) ClearReference() {
	s.mu.Lock()
	s.store.ClearReference()
	s.mu.Unlock()
}

func (s *Session) Reference() *domain.DraftReference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Reference()
}

func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Messages()
}

func (s *Session) Drafts() []domain.WorkoutDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Drafts()
}

func (s *Session) Pending() *domain.WorkoutPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Pending()
}

func (s *Session) CanApprove() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.processing && s.store.CanApprove()
}

// CanSend reports whether the input should be enabled.
func (s *Session) CanSend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkSendLocked() == nil
}

// Remaining returns the last known daily quota, if the server reported one.
func (s *Session) Remaining() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remaining == nil {
		return 0, false
	}
	return *s.remaining, true
}

func (s *Session) Persisted() []domain.ExistingWorkout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ExistingWorkout(nil), s.persisted...)
}
