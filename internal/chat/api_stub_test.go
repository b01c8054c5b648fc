package chat

import (
	"alcyxob/workout-chat/internal/domain"
	"context"
	"io"
	"strings"
)

// stubAPI records every call and serves canned responses.
type stubAPI struct {
	calls     []string
	processed []domain.ProcessPlanRequest
	lists     [][]domain.ExistingWorkout // successive ListWorkouts results
	listCalls int

	processErrAt int // 1-based call index that fails, 0 for never
	processErr   error
	listErr      error

	stream    string
	streamErr error
	lastTurn  domain.ChatTurnRequest
}

func (s *stubAPI) ProcessPlan(_ context.Context, req domain.ProcessPlanRequest) error {
	s.calls = append(s.calls, "process")
	s.processed = append(s.processed, req)
	if s.processErrAt > 0 && len(s.processed) == s.processErrAt {
		return s.processErr
	}
	return nil
}

func (s *stubAPI) ListWorkouts(_ context.Context, unitID string) ([]domain.ExistingWorkout, error) {
	s.calls = append(s.calls, "list")
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.ExistingWorkout
	if len(s.lists) > 0 {
		i := s.listCalls
		if i >= len(s.lists) {
			i = len(s.lists) - 1
		}
		out = s.lists[i]
	}
	s.listCalls++
	return out, nil
}

func (s *stubAPI) StreamChat(_ context.Context, req domain.ChatTurnRequest) (io.ReadCloser, error) {
	s.calls = append(s.calls, "stream")
	s.lastTurn = req
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	return io.NopCloser(strings.NewReader(s.stream)), nil
}

func (s *stubAPI) processedTitles() []string {
	var out []string
	for _, p := range s.processed {
		for _, w := range p.ParsedPlan.Workouts {
			out = append(out, w.Title)
		}
	}
	return out
}
