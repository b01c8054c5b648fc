package chat

import (
	"alcyxob/workout-chat/internal/domain"
	"fmt"
	"strings"
)

// NewReference points at drafts[draftIndex] (and one of its exercises for the
// exercise kind). The current titles are captured as the originals, and the
// persisted ID is resolved by exact title when one exists.
func NewReference(kind domain.ReferenceKind, drafts []domain.WorkoutDraft, draftIndex, exerciseIndex int, persisted []domain.ExistingWorkout) (*domain.DraftReference, error) {
	if draftIndex < 0 || draftIndex >= len(drafts) {
		return nil, fmt.Errorf("%w: workout %d of %d", ErrInvalidReference, draftIndex, len(drafts))
	}
	draft := drafts[draftIndex]
	ref := &domain.DraftReference{
		Kind:          kind,
		OriginalTitle: draft.Title,
		WorkoutIndex:  draftIndex,
	}

	switch kind {
	case domain.ReferenceWorkout:
	case domain.ReferenceExercise:
		if exerciseIndex < 0 || exerciseIndex >= len(draft.Exercises) {
			return nil, fmt.Errorf("%w: exercise %d of %d", ErrInvalidReference, exerciseIndex, len(draft.Exercises))
		}
		ref.ExerciseName = draft.Exercises[exerciseIndex].Name
		ref.ExerciseIndex = exerciseIndex
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidReference, kind)
	}

	if w, ok := findByTitle(persisted, draft.Title); ok {
		ref.PersistedID = w.ID
	}
	return ref, nil
}

// Annotate prefixes text with the reference so the generator knows exactly which
// workout (by original title) the message is about.
func Annotate(ref *domain.DraftReference, text string) string {
	if ref == nil {
		return text
	}
	workout := fmt.Sprintf("workout: %q", ref.OriginalTitle)
	if ref.PersistedID != "" {
		workout += " (id: " + ref.PersistedID + ")"
	}
	if ref.Kind == domain.ReferenceExercise {
		return fmt.Sprintf("[Referencing exercise: %q in %s] %s", ref.ExerciseName, workout, text)
	}
	return fmt.Sprintf("[Referencing %s] %s", workout, text)
}

// ResolveTarget resolves a plan target. IDs pass through. A title is matched
// against the drafts and then the persisted workouts; a persisted match wins
// and yields its ID, a draft-only match stays a title to be created.
func ResolveTarget(target domain.WorkoutIdentifier, drafts []domain.WorkoutDraft, persisted []domain.ExistingWorkout) domain.WorkoutIdentifier {
	if target.IsZero() || target.IsID() {
		return target
	}
	if w, ok := findByTitle(persisted, target.Value); ok {
		return domain.IdentifierByID(w.ID)
	}
	for _, d := range drafts {
		if d.Title == target.Value {
			return domain.IdentifierByTitle(d.Title)
		}
	}
	return domain.IdentifierByTitle(target.Value)
}

// resolveReference finds the persisted workout a reference was taken on, keyed
// by the original title.
func resolveReference(ref *domain.DraftReference, persisted []domain.ExistingWorkout) domain.WorkoutIdentifier {
	if w, ok := findByTitle(persisted, ref.OriginalTitle); ok {
		return domain.IdentifierByID(w.ID)
	}
	if ref.PersistedID != "" {
		return domain.IdentifierByID(ref.PersistedID)
	}
	return domain.IdentifierByTitle(ref.OriginalTitle)
}

func findByTitle(persisted []domain.ExistingWorkout, title string) (domain.ExistingWorkout, bool) {
	if strings.TrimSpace(title) == "" {
		return domain.ExistingWorkout{}, false
	}
	for _, w := range persisted {
		if w.Title == title {
			return w, true
		}
	}
	return domain.ExistingWorkout{}, false
}

func cloneReference(ref *domain.DraftReference) *domain.DraftReference {
	if ref == nil {
		return nil
	}
	out := *ref
	return &out
}
