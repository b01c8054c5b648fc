// Package generator produces workout plans from a chat turn with an LLM.
package generator

import (
	"alcyxob/workout-chat/internal/domain"
	"context"
	"errors"
)

var (
	ErrEmptyResponse = errors.New("generator returned no plan")
	ErrInvalidPlan   = errors.New("generator returned an invalid plan")
)

// Generator turns one chat turn into a plan. onWorkout is called for every
// workout as soon as it is complete, in order, before the plan is returned.
type Generator interface {
	Generate(ctx context.Context, req domain.ChatTurnRequest, onWorkout func(domain.WorkoutDraft)) (*domain.WorkoutPlan, error)
}
