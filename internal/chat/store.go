package chat

import (
	"alcyxob/workout-chat/internal/domain"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Role of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. Workout and Reference are snapshots, never
// aliases of live state.
type Message struct {
	ID         string
	Role       Role
	Content    string
	CreatedAt  time.Time
	Workout    *domain.WorkoutDraft
	DraftIndex *int
	Reference  *domain.DraftReference
	Status     bool // streaming placeholder
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithClock sets the time source used for message timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator sets the message ID generator.
func WithIDGenerator(newID func() string) StoreOption {
	return func(s *Store) { s.newID = newID }
}

// Store is the state of one chat session: transcript, drafts, the active
// reference and the pending plan. It is owned by a single session and is not
// safe for concurrent use.
type Store struct {
	now    func() time.Time
	newID  func() string
	logger *zap.Logger

	messages    []Message
	drafts      []domain.WorkoutDraft
	pending     *domain.WorkoutPlan
	allReceived bool

	reference *domain.DraftReference // applies to the next message

	// per turn
	turnRef   *domain.DraftReference
	preTurn   []domain.WorkoutDraft
	streamed  []domain.WorkoutDraft
	statusIdx int
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    logger,
		statusIdx: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Messages returns a copy of the transcript.
func (s *Store) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Drafts returns a deep copy of the current draft list.
func (s *Store) Drafts() []domain.WorkoutDraft {
	return domain.CloneDrafts(s.drafts)
}

// Pending returns a copy of the pending plan, or nil.
func (s *Store) Pending() *domain.WorkoutPlan {
	if s.pending == nil {
		return nil
	}
	p := *s.pending
	p.Workouts = domain.CloneDrafts(s.pending.Workouts)
	return &p
}

// Reference returns the reference that will scope the next message.
func (s *Store) Reference() *domain.DraftReference {
	return cloneReference(s.reference)
}

// TurnReference returns the reference that scoped the latest turn.
func (s *Store) TurnReference() *domain.DraftReference {
	return cloneReference(s.turnRef)
}

// AllReceived reports whether the latest turn ended with a complete event.
func (s *Store) AllReceived() bool {
	return s.allReceived
}

// CanApprove reports whether there is a plan with at least one usable draft.
func (s *Store) CanApprove() bool {
	if s.pending == nil {
		return false
	}
	if s.pending.Intent == domain.IntentDelete || s.pending.Action == domain.ActionDeleteWorkout {
		return true
	}
	for _, d := range s.drafts {
		if d.Recognized() {
			return true
		}
	}
	return false
}

// History returns the last limit conversational entries (placeholders and draft
// snapshots excluded) for the generator.
func (s *Store) History(limit int) []domain.ChatHistoryEntry {
	var out []domain.ChatHistoryEntry
	for _, m := range s.messages {
		if m.Status || m.Workout != nil || m.Content == "" {
			continue
		}
		out = append(out, domain.ChatHistoryEntry{Role: string(m.Role), Content: m.Content})
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// SetReference scopes the next message to a draft (exercise index ignored) or
// to one exercise of it.
func (s *Store) SetReference(kind domain.ReferenceKind, draftIndex, exerciseIndex int, persisted []domain.ExistingWorkout) error {
	ref, err := NewReference(kind, s.drafts, draftIndex, exerciseIndex, persisted)
	if err != nil {
		return err
	}
	s.reference = ref
	return nil
}

// ClearReference drops the active reference.
func (s *Store) ClearReference() {
	s.reference = nil
}

// ConsumeForOutgoingMessage annotates text with the active reference and clears it.
func (s *Store) ConsumeForOutgoingMessage(text string) string {
	out := Annotate(s.reference, text)
	s.reference = nil
	return out
}

// AppendUserMessage appends a user message carrying a snapshot of the active
// reference, then clears it.
func (s *Store) AppendUserMessage(text string) {
	s.appendUserMessage(text, s.reference)
	s.reference = nil
}

func (s *Store) appendUserMessage(text string, ref *domain.DraftReference) {
	s.messages = append(s.messages, Message{
		ID:        s.newID(),
		Role:      RoleUser,
		Content:   text,
		CreatedAt: s.now(),
		Reference: cloneReference(ref),
	})
}

// AppendAssistantMessage appends a plain assistant line.
func (s *Store) AppendAssistantMessage(text string) {
	s.messages = append(s.messages, Message{
		ID:        s.newID(),
		Role:      RoleAssistant,
		Content:   text,
		CreatedAt: s.now(),
	})
}

// BeginTurn records the user's message and starts a turn. It returns the text to
// send to the generator and the reference that scopes the turn.
func (s *Store) BeginTurn(text string) (string, *domain.DraftReference) {
	ref := cloneReference(s.reference)
	outgoing := s.ConsumeForOutgoingMessage(text)
	s.appendUserMessage(text, ref)

	s.turnRef = ref
	s.preTurn = domain.CloneDrafts(s.drafts)
	s.streamed = nil
	s.statusIdx = -1
	s.allReceived = false
	return outgoing, cloneReference(ref)
}

// ApplyStatus updates the in-flight status placeholder, or appends a new one.
func (s *Store) ApplyStatus(text string) {
	if s.statusIdx >= 0 && s.statusIdx < len(s.messages) && s.messages[s.statusIdx].Workout == nil {
		s.messages[s.statusIdx].Content = text
		return
	}
	s.messages = append(s.messages, Message{
		ID:        s.newID(),
		Role:      RoleAssistant,
		Content:   text,
		CreatedAt: s.now(),
		Status:    true,
	})
	s.statusIdx = len(s.messages) - 1
}

// maxStreamedDrafts bounds the index a workout_progress event may address.
const maxStreamedDrafts = 64

// ApplyWorkoutProgress places a streamed draft at index (next position when nil)
// and appends a transcript entry with a snapshot of it.
func (s *Store) ApplyWorkoutProgress(draft domain.WorkoutDraft, index *int) {
	pos := len(s.streamed)
	if index != nil {
		switch {
		case *index >= 0 && *index < maxStreamedDrafts:
			pos = *index
		default:
			s.logger.Warn("Workout progress index out of range, appending",
				zap.Int("index", *index), zap.Int("streamed", len(s.streamed)))
		}
	}
	// Gaps left by out of order indices stay zero until filled.
	for len(s.streamed) <= pos {
		s.streamed = append(s.streamed, domain.WorkoutDraft{})
	}
	s.streamed[pos] = draft.Clone()
	// A referenced edit keeps the other drafts on screen until the merge.
	if s.turnRef == nil {
		s.drafts = domain.CloneDrafts(s.streamed)
	}

	snapshot := draft.Clone()
	at := pos
	s.messages = append(s.messages, Message{
		ID:         s.newID(),
		Role:       RoleAssistant,
		Content:    draft.Title,
		CreatedAt:  s.now(),
		Workout:    &snapshot,
		DraftIndex: &at,
	})
	s.statusIdx = -1
}

// ApplyComplete stores plan as the pending plan and replaces the drafts, merging
// referenced edits so that the other drafts survive.
func (s *Store) ApplyComplete(plan domain.WorkoutPlan) {
	s.applyPlan(plan)
	s.allReceived = true
}

// FinishStream handles end of input. When no complete event arrived, the
// streamed drafts become the pending plan so they can still be approved.
func (s *Store) FinishStream() {
	if s.allReceived {
		return
	}
	usable := recognized(s.streamed)
	if len(usable) == 0 {
		return
	}
	plan := domain.WorkoutPlan{
		Intent:   domain.IntentCreate,
		Action:   domain.ActionCreateWorkouts,
		Workouts: usable,
	}
	if s.turnRef != nil {
		plan.Intent = domain.IntentEdit
		plan.Action = domain.ActionUpdateWorkout
	}
	s.logger.Info("Stream ended without complete event", zap.Int("drafts", len(usable)))
	s.applyPlan(plan)
}

// recognized copies the drafts that have a usable shape, skipping gaps.
func recognized(drafts []domain.WorkoutDraft) []domain.WorkoutDraft {
	var out []domain.WorkoutDraft
	for _, d := range drafts {
		if d.Recognized() {
			out = append(out, d.Clone())
		}
	}
	return out
}

func (s *Store) applyPlan(plan domain.WorkoutPlan) {
	returned := domain.CloneDrafts(plan.Workouts)
	if len(returned) == 0 && len(s.streamed) > 0 && plan.Intent != domain.IntentDelete {
		returned = recognized(s.streamed)
	}
	merged := s.merge(plan.Action, returned)

	s.drafts = merged
	plan.Workouts = domain.CloneDrafts(merged)
	s.pending = &plan

	if plan.Message != "" {
		if s.statusIdx >= 0 && s.statusIdx < len(s.messages) && s.messages[s.statusIdx].Workout == nil {
			s.messages[s.statusIdx].Content = plan.Message
			s.messages[s.statusIdx].Status = false
		} else {
			s.AppendAssistantMessage(plan.Message)
		}
	}
	s.statusIdx = -1
}

// merge applies the referenced-edit rule: the generator may echo back only the
// edited workout, and editing one workout must never drop the others.
func (s *Store) merge(action domain.PlanAction, returned []domain.WorkoutDraft) []domain.WorkoutDraft {
	if s.turnRef == nil || (action != domain.ActionUpdateWorkout && action != domain.ActionReplaceExercise) {
		return returned
	}
	k := len(s.preTurn)
	switch {
	case len(returned) == k:
		return returned
	case len(returned) == 1 && k > 0:
		i := s.turnRef.WorkoutIndex
		if i < 0 || i >= k {
			s.logger.Warn("Reference index outside pre-turn drafts, keeping response",
				zap.Int("index", i), zap.Int("drafts", k))
			return returned
		}
		out := domain.CloneDrafts(s.preTurn)
		out[i] = returned[0]
		return out
	default:
		s.logger.Warn("Referenced edit returned an unexpected number of workouts, keeping response",
			zap.Int("returned", len(returned)), zap.Int("drafts", k), zap.String("action", string(action)))
		return returned
	}
}

// Reset clears drafts, the pending plan and per-turn state.
func (s *Store) Reset() {
	s.drafts = nil
	s.pending = nil
	s.allReceived = false
	s.reference = nil
	s.turnRef = nil
	s.preTurn = nil
	s.streamed = nil
	s.statusIdx = -1
}
