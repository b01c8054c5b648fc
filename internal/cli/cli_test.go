package cli

import (
	"alcyxob/workout-chat/internal/chat"
	"alcyxob/workout-chat/internal/domain"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

type fakeAPI struct {
	stream    string
	processed []domain.ProcessPlanRequest
	workouts  []domain.ExistingWorkout
}

func (f *fakeAPI) ProcessPlan(_ context.Context, req domain.ProcessPlanRequest) error {
	f.processed = append(f.processed, req)
	for _, w := range req.ParsedPlan.Workouts {
		f.workouts = append(f.workouts, domain.ExistingWorkout{ID: "id-" + w.Title, Title: w.Title})
	}
	return nil
}

func (f *fakeAPI) ListWorkouts(context.Context, string) ([]domain.ExistingWorkout, error) {
	return f.workouts, nil
}

func (f *fakeAPI) StreamChat(context.Context, domain.ChatTurnRequest) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.stream)), nil
}

func event(name, data string) string {
	return "event: " + name + "\ndata: " + data + "\n\n"
}

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
		wantOut string
	}{
		{name: "version flag", args: []string{"--version"}, wantOut: "dev"},
		{name: "help flag", args: []string{"--help"}, wantOut: "workoutchat"},
		{name: "units without token", args: []string{"units"}, wantErr: "not logged in"},
		{name: "chat without unit", args: []string{"chat", "--token", "t"}, wantErr: "no unit selected"},
		{name: "unknown command", args: []string{"dance"}, wantErr: "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CLIENT_TOKEN", "")
			t.Setenv("CLIENT_UNIT_ID", "")
			root := NewRootCmd()
			root.SetArgs(tt.args)
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetErr(&out)

			err := root.Execute()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Fatalf("output %q does not contain %q", out.String(), tt.wantOut)
			}
		})
	}
}

func TestREPLTurnReferenceAndApprove(t *testing.T) {
	api := &fakeAPI{
		stream: event("status", `{"message":"Working"}`) +
			event("workout_progress", `{"workout":{"title":"Push Day","exercises":[{"name":"Bench Press","sets":3,"reps":"8"}]},"index":0}`) +
			event("complete", `{"intent":"create","action":"create_workouts","workouts":[{"title":"Push Day","exercises":[{"name":"Bench Press","sets":3,"reps":"8"}]}],"message":"Here is your push day","remainingMessages":2}`),
	}
	session := chat.NewSession(api, chat.SessionConfig{UnitID: "unit-1"}, nil)
	var out bytes.Buffer
	r := newREPL(session, &out, nil)
	ctx := context.Background()

	if quit, err := r.handle(ctx, "one push day"); quit || err != nil {
		t.Fatalf("handle message: quit=%v err=%v", quit, err)
	}
	for _, want := range []string{"Here is your push day", "1. Push Day", "Bench Press 3x8", "/approve", "2 message(s) left"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}

	if _, err := r.handle(ctx, "/ref workout 3"); err == nil {
		t.Fatal("expected an out of range reference to fail")
	}
	if _, err := r.handle(ctx, "/ref exercise 1 1"); err != nil {
		t.Fatalf("/ref exercise: %v", err)
	}
	if ref := session.Reference(); ref == nil || ref.ExerciseName != "Bench Press" {
		t.Fatalf("unexpected reference: %+v", ref)
	}
	if _, err := r.handle(ctx, "/unref"); err != nil || session.Reference() != nil {
		t.Fatalf("/unref did not clear the reference: %v", err)
	}

	out.Reset()
	if _, err := r.handle(ctx, "/approve"); err != nil {
		t.Fatalf("/approve: %v", err)
	}
	if len(api.processed) != 1 || api.processed[0].UnitID != "unit-1" {
		t.Fatalf("unexpected process calls: %+v", api.processed)
	}
	if !strings.Contains(out.String(), "Saved 1 new workout") {
		t.Fatalf("approval not reported:\n%s", out.String())
	}
	if _, err := r.handle(ctx, "/approve"); err == nil {
		t.Fatal("approving twice must fail")
	}

	if quit, _ := r.handle(ctx, "/quit"); !quit {
		t.Fatal("expected /quit to end the loop")
	}
}

func TestREPLRejectsUnknownCommand(t *testing.T) {
	session := chat.NewSession(&fakeAPI{}, chat.SessionConfig{UnitID: "u"}, nil)
	r := newREPL(session, io.Discard, nil)
	if _, err := r.handle(context.Background(), "/dance"); err == nil {
		t.Fatal("expected an error for an unknown command")
	}
	if _, err := r.handle(context.Background(), "/ref workout x"); err == nil {
		t.Fatal("expected a usage error")
	}
}
