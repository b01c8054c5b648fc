package domain

// Event names used on the workout chat text/event-stream.
const (
	EventStatus          = "status"
	EventWorkoutProgress = "workout_progress"
	EventComplete        = "complete"
	EventError           = "error"
)

// ReferenceKind tells whether a reference points at a whole workout or one exercise.
type ReferenceKind string

const (
	ReferenceWorkout  ReferenceKind = "workout"
	ReferenceExercise ReferenceKind = "exercise"
)

// DraftReference scopes the next chat message to one draft or one exercise of a draft.
// OriginalTitle is captured when the reference is set and never refreshed.
type DraftReference struct {
	Kind          ReferenceKind `json:"type"`
	OriginalTitle string        `json:"originalTitle"`
	WorkoutIndex  int           `json:"workoutIndex"`
	PersistedID   string        `json:"workoutId,omitempty"`
	ExerciseName  string        `json:"exerciseName,omitempty"`
	ExerciseIndex int           `json:"exerciseIndex,omitempty"`
}

// ExistingWorkout is the ID/title pair of a persisted workout.
type ExistingWorkout struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ChatHistoryEntry is one prior transcript line forwarded to the generator.
type ChatHistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TrainingProfile is what the generator knows about the student.
type TrainingProfile struct {
	Goal        string   `json:"goal,omitempty"`
	Level       string   `json:"level,omitempty"`
	DaysPerWeek int      `json:"daysPerWeek,omitempty"`
	Equipment   []string `json:"equipment,omitempty"`
	Limitations string   `json:"limitations,omitempty"`
}

// ChatTurnRequest is the body of the streaming generation endpoint.
type ChatTurnRequest struct {
	Message             string             `json:"message"`
	ConversationHistory []ChatHistoryEntry `json:"conversationHistory"`
	UnitID              string             `json:"unitId"`
	ExistingWorkouts    []ExistingWorkout  `json:"existingWorkouts"`
	Profile             *TrainingProfile   `json:"profile,omitempty"`
	Reference           *DraftReference    `json:"reference,omitempty"`
	PreviewWorkouts     []WorkoutDraft     `json:"previewWorkouts,omitempty"`
}

// StatusPayload is the data of a status event.
type StatusPayload struct {
	Message string `json:"message"`
}

// WorkoutProgressPayload is the data of a workout_progress event.
type WorkoutProgressPayload struct {
	Workout WorkoutDraft `json:"workout"`
	Index   *int         `json:"index,omitempty"`
}

// ErrorPayload is the data of an error event; generators fill either field.
type ErrorPayload struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Text returns whichever field carries the message.
func (p ErrorPayload) Text() string {
	if p.Error != "" {
		return p.Error
	}
	return p.Message
}

// ProcessPlanRequest is the body of the plan-processing endpoint.
type ProcessPlanRequest struct {
	ParsedPlan WorkoutPlan `json:"parsedPlan"`
	UnitID     string      `json:"unitId"`
}
