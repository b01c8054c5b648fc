package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Workout is a persisted workout inside a Unit.
// Title is unique per unit; it is the key drafts are matched against.
type Workout struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UnitID      primitive.ObjectID `bson:"unitId" json:"unitId"`
	OwnerID     primitive.ObjectID `bson:"ownerId" json:"ownerId"` // denormalized for auth
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Category    string             `bson:"category,omitempty" json:"category,omitempty"`
	MuscleGroup string             `bson:"muscleGroup,omitempty" json:"muscleGroup,omitempty"`
	Difficulty  string             `bson:"difficulty,omitempty" json:"difficulty,omitempty"`
	Exercises   []WorkoutExercise  `bson:"exercises" json:"exercises"`
	Sequence    int                `bson:"sequence" json:"sequence"` // order within the unit
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// WorkoutExercise is one exercise line of a persisted workout.
type WorkoutExercise struct {
	Name         string   `bson:"name" json:"name"`
	Sets         int      `bson:"sets" json:"sets"`
	Reps         string   `bson:"reps" json:"reps"`
	RestSeconds  int      `bson:"restSeconds" json:"restSeconds"`
	Notes        string   `bson:"notes,omitempty" json:"notes,omitempty"`
	Alternatives []string `bson:"alternatives,omitempty" json:"alternatives,omitempty"`
}

// ApplyDraft overwrites the workout's descriptive fields with the draft's.
func (w *Workout) ApplyDraft(d WorkoutDraft) {
	w.Title = d.Title
	w.Description = d.Description
	w.Category = d.Category
	w.MuscleGroup = d.MuscleGroup
	w.Difficulty = d.Difficulty
	w.Exercises = make([]WorkoutExercise, len(d.Exercises))
	for i, e := range d.Exercises {
		w.Exercises[i] = WorkoutExercise{
			Name:         e.Name,
			Sets:         e.Sets,
			Reps:         e.Reps,
			RestSeconds:  e.RestSeconds,
			Notes:        e.Notes,
			Alternatives: append([]string(nil), e.Alternatives...),
		}
	}
}

// Draft converts the persisted workout back into the draft shape the generator works with.
func (w *Workout) Draft() WorkoutDraft {
	d := WorkoutDraft{
		Title:       w.Title,
		Description: w.Description,
		Category:    w.Category,
		MuscleGroup: w.MuscleGroup,
		Difficulty:  w.Difficulty,
		Exercises:   make([]ExerciseDraft, len(w.Exercises)),
	}
	for i, e := range w.Exercises {
		d.Exercises[i] = ExerciseDraft{
			Name:         e.Name,
			Sets:         e.Sets,
			Reps:         e.Reps,
			RestSeconds:  e.RestSeconds,
			Notes:        e.Notes,
			Alternatives: append([]string(nil), e.Alternatives...),
		}
	}
	return d
}
