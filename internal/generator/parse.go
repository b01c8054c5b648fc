package generator

import (
	"alcyxob/workout-chat/internal/domain"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// The model answers with one JSON object per line:
//
//	{"type":"workout","workout":{...}}
//	{"type":"plan","intent":"create","action":"create_workouts",...}
//
// Workout lines can be surfaced while the answer is still streaming.
type outputLine struct {
	Type    string               `json:"type"`
	Workout *domain.WorkoutDraft `json:"workout,omitempty"`
	domain.WorkoutPlan
}

// lineParser accumulates streamed text and yields complete lines.
type lineParser struct {
	logger   *zap.Logger
	skipped  int
	buf      strings.Builder
	workouts []domain.WorkoutDraft
	plan     *domain.WorkoutPlan
	raw      strings.Builder
}

func newLineParser(logger *zap.Logger) *lineParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &lineParser{logger: logger}
}

// write appends a streamed delta and returns the workouts completed by it.
func (p *lineParser) write(delta string, onWorkout func(domain.WorkoutDraft)) {
	p.raw.WriteString(delta)
	p.buf.WriteString(delta)
	text := p.buf.String()
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			break
		}
		p.line(text[:i], onWorkout)
		text = text[i+1:]
	}
	p.buf.Reset()
	p.buf.WriteString(text)
}

func (p *lineParser) flush(onWorkout func(domain.WorkoutDraft)) {
	rest := p.buf.String()
	p.buf.Reset()
	p.line(rest, onWorkout)
}

func (p *lineParser) line(line string, onWorkout func(domain.WorkoutDraft)) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "```") || !strings.HasPrefix(line, "{") {
		return
	}
	var out outputLine
	if err := json.Unmarshal([]byte(line), &out); err != nil {
		p.skipped++
		p.logger.Warn("Skipping malformed completion line",
			zap.Error(err), zap.String("line", truncate(line, 200)))
		return
	}
	switch out.Type {
	case "workout":
		if out.Workout == nil || !out.Workout.Recognized() {
			return
		}
		p.workouts = append(p.workouts, *out.Workout)
		if onWorkout != nil {
			onWorkout(out.Workout.Clone())
		}
	case "plan":
		plan := out.WorkoutPlan
		p.plan = &plan
	}
}

// result assembles the final plan. When the model ignored the line format the
// whole answer is parsed as a single plan object.
func (p *lineParser) result(onWorkout func(domain.WorkoutDraft)) (*domain.WorkoutPlan, error) {
	if p.plan == nil && len(p.workouts) == 0 {
		plan, err := ParsePlan(p.raw.String())
		if err != nil {
			return nil, err
		}
		for _, w := range plan.Workouts {
			if onWorkout != nil {
				onWorkout(w.Clone())
			}
		}
		return plan, nil
	}

	plan := p.plan
	if plan == nil {
		plan = &domain.WorkoutPlan{Intent: domain.IntentCreate, Action: domain.ActionCreateWorkouts}
	}
	if len(plan.Workouts) == 0 {
		plan.Workouts = p.workouts
	}
	return normalize(plan)
}

// ParsePlan parses a complete plan object, tolerating markdown code fences and
// prose around the JSON.
func ParsePlan(text string) (*domain.WorkoutPlan, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrInvalidPlan)
	}
	var plan domain.WorkoutPlan
	if err := json.Unmarshal([]byte(text[start:end+1]), &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	return normalize(&plan)
}

func normalize(plan *domain.WorkoutPlan) (*domain.WorkoutPlan, error) {
	if plan.Action == "" {
		switch plan.Intent {
		case domain.IntentEdit:
			plan.Action = domain.ActionUpdateWorkout
		case domain.IntentDelete:
			plan.Action = domain.ActionDeleteWorkout
		default:
			plan.Action = domain.ActionCreateWorkouts
		}
	}
	if plan.Intent == "" {
		switch plan.Action {
		case domain.ActionCreateWorkouts:
			plan.Intent = domain.IntentCreate
		case domain.ActionDeleteWorkout:
			plan.Intent = domain.IntentDelete
		default:
			plan.Intent = domain.IntentEdit
		}
	}
	kept := plan.Workouts[:0]
	for _, w := range plan.Workouts {
		if w.Recognized() {
			kept = append(kept, w)
		}
	}
	plan.Workouts = kept
	if plan.Intent != domain.IntentDelete && len(plan.Workouts) == 0 && plan.ExerciseToRemove == nil && plan.ReplacementExercise == nil {
		return nil, fmt.Errorf("%w: no workouts", ErrInvalidPlan)
	}
	return plan, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
