package cli

import (
	"alcyxob/workout-chat/internal/chat"
	"alcyxob/workout-chat/internal/domain"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	draftTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	exerciseStyle = lipgloss.NewStyle().
			PaddingLeft(4)

	referenceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

func renderMessage(m chat.Message) string {
	switch {
	case m.Status:
		return statusStyle.Render("… " + m.Content)
	case m.Role == chat.RoleUser:
		return userStyle.Render("You") + "  " + m.Content
	case m.Workout != nil:
		n := 0
		if m.DraftIndex != nil {
			n = *m.DraftIndex + 1
		}
		return assistantStyle.Render("Assistant") + "  " + statusStyle.Render(fmt.Sprintf("drafted #%d %s", n, m.Workout.Title))
	default:
		return assistantStyle.Render("Assistant") + "  " + m.Content
	}
}

func renderDrafts(drafts []domain.WorkoutDraft, ref *domain.DraftReference) string {
	if len(drafts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("Drafts"))
	b.WriteString("\n")
	for i, d := range drafts {
		if !d.Recognized() {
			b.WriteString(hintStyle.Render(fmt.Sprintf("%d. (still generating)", i+1)))
			b.WriteString("\n")
			continue
		}
		line := fmt.Sprintf("%d. %s", i+1, d.Title)
		if d.Category != "" {
			line += "  " + hintStyle.Render(d.Category)
		}
		b.WriteString(draftTitleStyle.Render(line))
		if ref != nil && ref.WorkoutIndex == i {
			b.WriteString("  " + referenceStyle.Render("◀ referenced"))
		}
		b.WriteString("\n")
		for j, e := range d.Exercises {
			b.WriteString(exerciseStyle.Render(fmt.Sprintf("%d. %s", j+1, renderExercise(e))))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderExercise(e domain.ExerciseDraft) string {
	s := e.Name
	if e.Sets > 0 && e.Reps != "" {
		s += fmt.Sprintf(" %dx%s", e.Sets, e.Reps)
	}
	if e.RestSeconds > 0 {
		s += fmt.Sprintf(", rest %ds", e.RestSeconds)
	}
	return s
}

func renderReference(ref *domain.DraftReference) string {
	if ref == nil {
		return ""
	}
	if ref.Kind == domain.ReferenceExercise {
		return referenceStyle.Render(fmt.Sprintf("Next message refers to %q in %q", ref.ExerciseName, ref.OriginalTitle))
	}
	return referenceStyle.Render(fmt.Sprintf("Next message refers to %q", ref.OriginalTitle))
}
