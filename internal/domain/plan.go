package domain

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanIntent is the coarse intent the generator assigned to a turn.
type PlanIntent string

const (
	IntentCreate PlanIntent = "create"
	IntentEdit   PlanIntent = "edit"
	IntentDelete PlanIntent = "delete"
)

// PlanAction is the free-form action tag returned with a plan.
type PlanAction string

const (
	ActionCreateWorkouts  PlanAction = "create_workouts"
	ActionUpdateWorkout   PlanAction = "update_workout"
	ActionReplaceExercise PlanAction = "replace_exercise"
	ActionRemoveExercise  PlanAction = "remove_exercise"
	ActionDeleteWorkout   PlanAction = "delete_workout"
)

// Workout categories accepted on drafts.
const (
	CategoryStrength    = "strength"
	CategoryCardio      = "cardio"
	CategoryFlexibility = "flexibility"
)

// WorkoutDraft is a proposed, not yet persisted, workout.
type WorkoutDraft struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	MuscleGroup string          `json:"muscleGroup,omitempty"`
	Difficulty  string          `json:"difficulty,omitempty"`
	Exercises   []ExerciseDraft `json:"exercises"`
}

// ExerciseDraft is one exercise within a WorkoutDraft.
type ExerciseDraft struct {
	Name         string   `json:"name"`
	Sets         int      `json:"sets"`
	Reps         string   `json:"reps"`
	RestSeconds  int      `json:"restSeconds"`
	Notes        string   `json:"notes,omitempty"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// Recognized reports whether the draft has the minimum shape to be persisted.
func (d WorkoutDraft) Recognized() bool {
	return strings.TrimSpace(d.Title) != ""
}

// Clone returns a deep copy so transcript snapshots never alias the live list.
func (d WorkoutDraft) Clone() WorkoutDraft {
	out := d
	if d.Exercises != nil {
		out.Exercises = make([]ExerciseDraft, len(d.Exercises))
		for i, e := range d.Exercises {
			e.Alternatives = append([]string(nil), e.Alternatives...)
			out.Exercises[i] = e
		}
	}
	return out
}

// CloneDrafts deep-copies a draft list.
func CloneDrafts(drafts []WorkoutDraft) []WorkoutDraft {
	if drafts == nil {
		return nil
	}
	out := make([]WorkoutDraft, len(drafts))
	for i, d := range drafts {
		out[i] = d.Clone()
	}
	return out
}

// ExerciseChange names an exercise to remove or replace inside the target workout.
type ExerciseChange struct {
	Name  string `json:"name"`
	Index *int   `json:"index,omitempty"`
}

// WorkoutPlan is a fully parsed generator response. The client holds it as the
// pending plan until the user approves it; the server applies it on processing.
type WorkoutPlan struct {
	Intent              PlanIntent      `json:"intent"`
	Action              PlanAction      `json:"action"`
	Workouts            []WorkoutDraft  `json:"workouts"`
	TargetWorkout       string          `json:"targetWorkoutId,omitempty"`
	TargetKind          IdentifierKind  `json:"targetKind,omitempty"`
	ExerciseToRemove    *ExerciseChange `json:"exerciseToRemove,omitempty"`
	ExerciseToReplace   *ExerciseChange `json:"exerciseToReplace,omitempty"`
	ReplacementExercise *ExerciseDraft  `json:"replacementExercise,omitempty"`
	Message             string          `json:"message,omitempty"`
	RemainingMessages   *int            `json:"remainingMessages,omitempty"`
}

// Target returns the plan's target as a tagged identifier. A kind sent on the wire
// wins; otherwise the raw value is classified once.
func (p *WorkoutPlan) Target() WorkoutIdentifier {
	if p.TargetWorkout == "" {
		return WorkoutIdentifier{}
	}
	if p.TargetKind == IdentifierID || p.TargetKind == IdentifierTitle {
		return WorkoutIdentifier{Kind: p.TargetKind, Value: p.TargetWorkout}
	}
	return ParseWorkoutIdentifier(p.TargetWorkout)
}

// SetTarget stores id on the plan, keeping the kind explicit.
func (p *WorkoutPlan) SetTarget(id WorkoutIdentifier) {
	p.TargetWorkout = id.Value
	p.TargetKind = id.Kind
	if id.IsZero() {
		p.TargetKind = ""
	}
}

// IdentifierKind tags a WorkoutIdentifier.
type IdentifierKind string

const (
	IdentifierID    IdentifierKind = "id"
	IdentifierTitle IdentifierKind = "title"
)

// WorkoutIdentifier points at a workout either by persisted ID or by title.
type WorkoutIdentifier struct {
	Kind  IdentifierKind `json:"kind"`
	Value string         `json:"value"`
}

func IdentifierByID(id string) WorkoutIdentifier {
	return WorkoutIdentifier{Kind: IdentifierID, Value: id}
}

func IdentifierByTitle(title string) WorkoutIdentifier {
	return WorkoutIdentifier{Kind: IdentifierTitle, Value: title}
}

// ParseWorkoutIdentifier classifies a raw identifier coming from the generator.
// Only a well-formed ObjectID counts as an ID; everything else is a title.
func ParseWorkoutIdentifier(raw string) WorkoutIdentifier {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return WorkoutIdentifier{}
	}
	if primitive.IsValidObjectID(raw) {
		return IdentifierByID(raw)
	}
	return IdentifierByTitle(raw)
}

func (w WorkoutIdentifier) IsZero() bool { return w.Value == "" }

func (w WorkoutIdentifier) IsID() bool { return w.Kind == IdentifierID && w.Value != "" }

func (w WorkoutIdentifier) String() string {
	if w.IsZero() {
		return ""
	}
	return string(w.Kind) + ":" + w.Value
}
