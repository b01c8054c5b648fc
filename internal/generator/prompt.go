package generator

import (
	"alcyxob/workout-chat/internal/domain"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const systemPrompt = `You are a strength and conditioning coach who writes workout plans.
Answer ONLY with JSON objects, one per line, no prose and no code fences.

For every workout you propose or change, first write one line:
{"type":"workout","workout":{"title":"...","description":"...","category":"strength|cardio|flexibility","muscleGroup":"...","difficulty":"beginner|intermediate|advanced","exercises":[{"name":"...","sets":3,"reps":"8-10","restSeconds":90,"notes":"...","alternatives":["..."]}]}}

Then finish with exactly one line describing the whole answer:
{"type":"plan","intent":"create|edit|delete","action":"create_workouts|update_workout|replace_exercise|remove_exercise|delete_workout","targetWorkoutId":"<id or title of the workout being changed>","exerciseToRemove":{"name":"..."},"exerciseToReplace":{"name":"..."},"replacementExercise":{...},"message":"<one friendly sentence for the user>"}

Rules:
- Workout titles must be unique within the unit.
- When a message starts with [Referencing ...], change only that workout or exercise and return only that workout, keeping its other exercises.
- Use the id given in the reference or in the existing workouts as targetWorkoutId when there is one.
- Omit fields that do not apply.`

// buildMessages assembles the chat completion messages for one turn.
func buildMessages(req domain.ChatTurnRequest) []openai.ChatCompletionMessage {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if ctx := contextBlock(req); ctx != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: ctx})
	}
	for _, h := range req.ConversationHistory {
		role := openai.ChatMessageRoleUser
		if h.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: h.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Message})
	return msgs
}

func contextBlock(req domain.ChatTurnRequest) string {
	var b strings.Builder
	if p := req.Profile; p != nil {
		b.WriteString("Student profile:\n")
		if p.Goal != "" {
			fmt.Fprintf(&b, "- goal: %s\n", p.Goal)
		}
		if p.Level != "" {
			fmt.Fprintf(&b, "- level: %s\n", p.Level)
		}
		if p.DaysPerWeek > 0 {
			fmt.Fprintf(&b, "- days per week: %d\n", p.DaysPerWeek)
		}
		if len(p.Equipment) > 0 {
			fmt.Fprintf(&b, "- equipment: %s\n", strings.Join(p.Equipment, ", "))
		}
		if p.Limitations != "" {
			fmt.Fprintf(&b, "- limitations: %s\n", p.Limitations)
		}
	}
	if len(req.ExistingWorkouts) > 0 {
		b.WriteString("Saved workouts (id: title):\n")
		for _, w := range req.ExistingWorkouts {
			fmt.Fprintf(&b, "- %s: %s\n", w.ID, w.Title)
		}
	}
	if len(req.PreviewWorkouts) > 0 {
		if raw, err := json.Marshal(req.PreviewWorkouts); err == nil {
			b.WriteString("Unsaved workouts currently shown to the user, in order:\n")
			b.Write(raw)
			b.WriteByte('\n')
		}
	}
	return strings.TrimSpace(b.String())
}
