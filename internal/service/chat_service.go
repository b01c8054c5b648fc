package service

import (
	"alcyxob/workout-chat/internal/domain"
	"alcyxob/workout-chat/internal/generator"
	"alcyxob/workout-chat/internal/repository"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var ErrQuotaExceeded = errors.New("daily message limit reached")

// EventSink receives the events of one streamed chat turn.
type EventSink interface {
	Send(event string, payload any) error
}

type ChatService interface {
	// StreamTurn validates the turn, counts it against the daily quota and streams
	// the generated plan to sink. Errors returned before the first event mean
	// nothing was streamed; generator failures are sent as error events instead.
	StreamTurn(ctx context.Context, userID primitive.ObjectID, req domain.ChatTurnRequest, sink EventSink) error
}

type chatService struct {
	workouts     WorkoutService
	quotaRepo    repository.QuotaRepository
	gen          generator.Generator
	dailyLimit   int // <= 0 disables the quota
	historyLimit int
	now          func() time.Time
	logger       *zap.Logger
}

func NewChatService(
	workouts WorkoutService,
	quotaRepo repository.QuotaRepository,
	gen generator.Generator,
	dailyLimit, historyLimit int,
	logger *zap.Logger,
) ChatService {
	return &chatService{
		workouts:     workouts,
		quotaRepo:    quotaRepo,
		gen:          gen,
		dailyLimit:   dailyLimit,
		historyLimit: historyLimit,
		now:          time.Now,
		logger:       logger,
	}
}

func (s *chatService) StreamTurn(ctx context.Context, userID primitive.ObjectID, req domain.ChatTurnRequest, sink EventSink) error {
	if req.Message == "" {
		return ErrInvalidInput
	}
	unitID, err := primitive.ObjectIDFromHex(req.UnitID)
	if err != nil {
		return ErrUnitNotFound
	}
	// The stored workouts are authoritative over the client's copy.
	workouts, err := s.workouts.GetWorkouts(ctx, userID, unitID)
	if err != nil {
		return err
	}
	req.ExistingWorkouts = make([]domain.ExistingWorkout, len(workouts))
	for i, w := range workouts {
		req.ExistingWorkouts[i] = domain.ExistingWorkout{ID: w.ID.Hex(), Title: w.Title}
	}
	if s.historyLimit > 0 && len(req.ConversationHistory) > s.historyLimit {
		req.ConversationHistory = req.ConversationHistory[len(req.ConversationHistory)-s.historyLimit:]
	}

	remaining, err := s.consumeQuota(ctx, userID)
	if err != nil {
		return err
	}

	log := s.logger.With(zap.String("userId", userID.Hex()), zap.String("unitId", req.UnitID))
	st := &turnStream{sink: sink, logger: log}

	status := "Working on your workouts..."
	if req.Reference != nil {
		status = fmt.Sprintf("Updating %q...", req.Reference.OriginalTitle)
	}
	st.send(domain.EventStatus, domain.StatusPayload{Message: status})

	index := 0
	plan, err := s.gen.Generate(ctx, req, func(w domain.WorkoutDraft) {
		i := index
		index++
		st.send(domain.EventWorkoutProgress, domain.WorkoutProgressPayload{Workout: w, Index: &i})
	})
	if err != nil {
		log.Error("Plan generation failed", zap.Error(err))
		st.send(domain.EventError, domain.ErrorPayload{Error: "The assistant could not build a plan. Please try again."})
		return nil
	}

	plan.RemainingMessages = remaining
	st.send(domain.EventComplete, plan)
	log.Info("Chat turn streamed",
		zap.String("action", string(plan.Action)),
		zap.Int("workouts", len(plan.Workouts)),
		zap.Bool("clientGone", st.err != nil))
	return nil
}

// consumeQuota counts one message. It returns the messages left today, or nil
// when no limit is configured.
func (s *chatService) consumeQuota(ctx context.Context, userID primitive.ObjectID) (*int, error) {
	if s.dailyLimit <= 0 {
		return nil, nil
	}
	day := domain.QuotaDay(s.now())
	used, err := s.quotaRepo.Get(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	if used >= s.dailyLimit {
		return nil, ErrQuotaExceeded
	}
	used, err = s.quotaRepo.Increment(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	if used > s.dailyLimit {
		return nil, ErrQuotaExceeded
	}
	remaining := s.dailyLimit - used
	return &remaining, nil
}

// turnStream drops events once the client has gone away.
type turnStream struct {
	sink   EventSink
	logger *zap.Logger
	err    error
}

func (t *turnStream) send(event string, payload any) {
	if t.err != nil {
		return
	}
	if err := t.sink.Send(event, payload); err != nil {
		t.err = err
		t.logger.Warn("Client stopped receiving events", zap.String("event", event), zap.Error(err))
	}
}
