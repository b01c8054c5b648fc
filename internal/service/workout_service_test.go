package service

import (
	"alcyxob/workout-chat/internal/domain"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type workoutFixture struct {
	svc      WorkoutService
	workouts *stubWorkoutRepo
	archives *stubArchiveRepo
	plans    *stubPlanStorage
	owner    primitive.ObjectID
	unit     domain.Unit
}

func newWorkoutFixture(t *testing.T) *workoutFixture {
	t.Helper()
	owner := primitive.NewObjectID()
	units := &stubUnitRepo{}
	id, _ := units.Create(context.Background(), &domain.Unit{OwnerID: owner, Name: "Block A"})
	unit, _ := units.GetByID(context.Background(), id)

	f := &workoutFixture{
		workouts: newStubWorkoutRepo(),
		archives: &stubArchiveRepo{},
		plans:    &stubPlanStorage{},
		owner:    owner,
		unit:     *unit,
	}
	f.svc = NewWorkoutService(units, f.workouts, f.archives, f.plans, zap.NewNop())
	return f
}

func drafts(titles ...string) []domain.WorkoutDraft {
	out := make([]domain.WorkoutDraft, len(titles))
	for i, t := range titles {
		out[i] = domain.WorkoutDraft{Title: t, Exercises: []domain.ExerciseDraft{{Name: "Squat", Sets: 3, Reps: "5"}}}
	}
	return out
}

func TestProcessPlanCreatesIdempotently(t *testing.T) {
	f := newWorkoutFixture(t)
	f.workouts.add(f.unit.ID, "Push Day")
	ctx := context.Background()

	plan := domain.WorkoutPlan{Intent: domain.IntentCreate, Action: domain.ActionCreateWorkouts, Workouts: drafts("Push Day", "Pull Day", "Pull Day")}
	res, err := f.svc.ProcessPlan(ctx, f.owner, f.unit.ID, plan)
	if err != nil {
		t.Fatalf("ProcessPlan: %v", err)
	}
	if len(res.Created) != 1 || res.Created[0].Title != "Pull Day" || res.Created[0].Sequence != 1 {
		t.Fatalf("unexpected created: %+v", res.Created)
	}
	if strings.Join(res.Skipped, ",") != "Push Day,Pull Day" {
		t.Fatalf("unexpected skipped: %v", res.Skipped)
	}

	// Retrying the same approval creates nothing new.
	res, err = f.svc.ProcessPlan(ctx, f.owner, f.unit.ID, plan)
	if err != nil {
		t.Fatalf("ProcessPlan retry: %v", err)
	}
	if len(res.Created) != 0 || f.workouts.creates != 1 {
		t.Fatalf("retry must not create: %+v (creates=%d)", res, f.workouts.creates)
	}
}

func TestProcessPlanUpdatesByIDAndTitle(t *testing.T) {
	f := newWorkoutFixture(t)
	legs := f.workouts.add(f.unit.ID, "Leg Day", "Squat")
	ctx := context.Background()

	plan := domain.WorkoutPlan{Intent: domain.IntentEdit, Action: domain.ActionUpdateWorkout, Workouts: drafts("Leg Day v2")}
	plan.SetTarget(domain.IdentifierByID(legs.ID.Hex()))
	res, err := f.svc.ProcessPlan(ctx, f.owner, f.unit.ID, plan)
	if err != nil {
		t.Fatalf("ProcessPlan: %v", err)
	}
	if res.Updated == nil || res.Updated.ID != legs.ID || f.workouts.workouts[legs.ID].Title != "Leg Day v2" {
		t.Fatalf("unexpected update: %+v", res)
	}

	plan = domain.WorkoutPlan{Action: domain.ActionUpdateWorkout, Workouts: drafts("Leg Day v3")}
	plan.SetTarget(domain.IdentifierByTitle("Leg Day v2"))
	if _, err := f.svc.ProcessPlan(ctx, f.owner, f.unit.ID, plan); err != nil {
		t.Fatalf("ProcessPlan by title: %v", err)
	}
	if f.workouts.workouts[legs.ID].Title != "Leg Day v3" {
		t.Fatalf("title target not updated: %+v", f.workouts.workouts[legs.ID])
	}
}

func TestProcessPlanUpdateUnknownTitleCreates(t *testing.T) {
	f := newWorkoutFixture(t)
	plan := domain.WorkoutPlan{Action: domain.ActionUpdateWorkout, TargetWorkout: "Never Saved", Workouts: drafts("Never Saved")}
	res, err := f.svc.ProcessPlan(context.Background(), f.owner, f.unit.ID, plan)
	if err != nil {
		t.Fatalf("ProcessPlan: %v", err)
	}
	if len(res.Created) != 1 || res.Updated != nil {
		t.Fatalf("expected a create fallback, got %+v", res)
	}
}

func TestProcessPlanUpdateUnknownIDFails(t *testing.T) {
	f := newWorkoutFixture(t)
	plan := domain.WorkoutPlan{Action: domain.ActionUpdateWorkout, Workouts: drafts("X")}
	plan.SetTarget(domain.IdentifierByID(primitive.NewObjectID().Hex()))
	if _, err := f.svc.ProcessPlan(context.Background(), f.owner, f.unit.ID, plan); !errors.Is(err, ErrWorkoutNotFound) {
		t.Fatalf("expected ErrWorkoutNotFound, got %v", err)
	}
}

func TestProcessPlanExerciseEdits(t *testing.T) {
	f := newWorkoutFixture(t)
	push := f.workouts.add(f.unit.ID, "Push Day", "Bench Press", "Dips", "Push Up")
	ctx := context.Background()

	replace := domain.WorkoutPlan{
		Action:              domain.ActionReplaceExercise,
		ExerciseToReplace:   &domain.ExerciseChange{Name: "dips"},
		ReplacementExercise: &domain.ExerciseDraft{Name: "Close Grip Bench", Sets: 3, Reps: "8"},
	}
	replace.SetTarget(domain.IdentifierByID(push.ID.Hex()))
	if _, err := f.svc.ProcessPlan(ctx, f.owner, f.unit.ID, replace); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := f.workouts.workouts[push.ID].Exercises[1].Name; got != "Close Grip Bench" {
		t.Fatalf("unexpected replacement: %q", got)
	}

	idx := 2
	remove := domain.WorkoutPlan{Action: domain.ActionRemoveExercise, TargetWorkout: "Push Day", ExerciseToRemove: &domain.ExerciseChange{Name: "Push Up", Index: &idx}}
	if _, err := f.svc.ProcessPlan(ctx, f.owner, f.unit.ID, remove); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if n := len(f.workouts.workouts[push.ID].Exercises); n != 2 {
		t.Fatalf("expected 2 exercises, got %d", n)
	}

	missing := domain.WorkoutPlan{Action: domain.ActionRemoveExercise, TargetWorkout: "Push Day", ExerciseToRemove: &domain.ExerciseChange{Name: "Curl"}}
	if _, err := f.svc.ProcessPlan(ctx, f.owner, f.unit.ID, missing); !errors.Is(err, ErrExerciseNotFound) {
		t.Fatalf("expected ErrExerciseNotFound, got %v", err)
	}
}

func TestProcessPlanDelete(t *testing.T) {
	f := newWorkoutFixture(t)
	w := f.workouts.add(f.unit.ID, "Cardio")
	plan := domain.WorkoutPlan{Intent: domain.IntentDelete, TargetWorkout: "Cardio"}
	res, err := f.svc.ProcessPlan(context.Background(), f.owner, f.unit.ID, plan)
	if err != nil {
		t.Fatalf("ProcessPlan: %v", err)
	}
	if res.Deleted != w.ID.Hex() || f.workouts.lastDelID != w.ID {
		t.Fatalf("unexpected delete: %+v", res)
	}
}

func TestProcessPlanAccessControl(t *testing.T) {
	f := newWorkoutFixture(t)
	plan := domain.WorkoutPlan{Action: domain.ActionCreateWorkouts, Workouts: drafts("A")}

	if _, err := f.svc.ProcessPlan(context.Background(), primitive.NewObjectID(), f.unit.ID, plan); !errors.Is(err, ErrUnitAccessDenied) {
		t.Fatalf("expected ErrUnitAccessDenied, got %v", err)
	}
	if _, err := f.svc.ProcessPlan(context.Background(), f.owner, primitive.NewObjectID(), plan); !errors.Is(err, ErrUnitNotFound) {
		t.Fatalf("expected ErrUnitNotFound, got %v", err)
	}
	if _, err := f.svc.ProcessPlan(context.Background(), f.owner, f.unit.ID, domain.WorkoutPlan{Action: "dance"}); !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
}

func TestProcessPlanArchives(t *testing.T) {
	f := newWorkoutFixture(t)
	ctx := context.Background()
	remaining := 3
	plan := domain.WorkoutPlan{Action: domain.ActionCreateWorkouts, Workouts: drafts("A"), RemainingMessages: &remaining}
	res, err := f.svc.ProcessPlan(ctx, f.owner, f.unit.ID, plan)
	if err != nil {
		t.Fatalf("ProcessPlan: %v", err)
	}
	if len(f.archives.archives) != 1 || len(f.plans.objects) != 1 {
		t.Fatalf("expected one archive, got %d records and %d objects", len(f.archives.archives), len(f.plans.objects))
	}
	rec := f.archives.archives[0]
	if res.ArchiveID != rec.ID.Hex() {
		t.Fatalf("archive id not reported: %q", res.ArchiveID)
	}
	if strings.Contains(string(f.plans.objects[rec.S3ObjectKey]), "remainingMessages") {
		t.Fatal("quota counter must not be archived")
	}

	list, err := f.svc.ListArchives(ctx, f.owner, f.unit.ID, time.Time{})
	if err != nil || len(list) != 1 {
		t.Fatalf("ListArchives: %v %+v", err, list)
	}
	url, err := f.svc.GetArchiveURL(ctx, f.owner, f.unit.ID, rec.ID)
	if err != nil || !strings.Contains(url, rec.S3ObjectKey) {
		t.Fatalf("GetArchiveURL: %q %v", url, err)
	}
	if _, err := f.svc.GetArchiveURL(ctx, f.owner, f.unit.ID, primitive.NewObjectID()); !errors.Is(err, ErrArchiveNotFound) {
		t.Fatalf("expected ErrArchiveNotFound, got %v", err)
	}
}

func TestProcessPlanArchiveFailureDoesNotFail(t *testing.T) {
	f := newWorkoutFixture(t)
	f.archives.err = errors.New("db down")
	res, err := f.svc.ProcessPlan(context.Background(), f.owner, f.unit.ID, domain.WorkoutPlan{Action: domain.ActionCreateWorkouts, Workouts: drafts("A")})
	if err != nil {
		t.Fatalf("archive failure must not fail the plan: %v", err)
	}
	if res.ArchiveID != "" {
		t.Fatalf("unexpected archive id %q", res.ArchiveID)
	}
	if len(f.plans.deleted) != 1 || len(f.plans.objects) != 0 {
		t.Fatalf("orphaned object not removed: %+v", f.plans)
	}
}

func TestArchivesUnavailableWithoutStorage(t *testing.T) {
	owner := primitive.NewObjectID()
	units := &stubUnitRepo{}
	id, _ := units.Create(context.Background(), &domain.Unit{OwnerID: owner, Name: "B"})
	svc := NewWorkoutService(units, newStubWorkoutRepo(), nil, nil, zap.NewNop())

	if _, err := svc.GetArchiveURL(context.Background(), owner, id, primitive.NewObjectID()); !errors.Is(err, ErrArchiveUnavailable) {
		t.Fatalf("expected ErrArchiveUnavailable, got %v", err)
	}
	if _, err := svc.ProcessPlan(context.Background(), owner, id, domain.WorkoutPlan{Action: domain.ActionCreateWorkouts, Workouts: drafts("A")}); err != nil {
		t.Fatalf("ProcessPlan without storage: %v", err)
	}
}

func TestUnitsForCoach(t *testing.T) {
	f := newWorkoutFixture(t)
	coach := primitive.NewObjectID()
	unit, err := f.svc.CreateUnit(context.Background(), f.owner, "Coached", "", &coach)
	if err != nil {
		t.Fatalf("CreateUnit: %v", err)
	}
	units, err := f.svc.GetUnits(context.Background(), coach)
	if err != nil || len(units) != 1 || units[0].ID != unit.ID {
		t.Fatalf("coach should see the unit: %+v %v", units, err)
	}
	if _, err := f.svc.CreateUnit(context.Background(), f.owner, "  ", "", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestProcessPlanExerciseEditOnUnsavedDraftCreates(t *testing.T) {
	f := newWorkoutFixture(t)
	plan := domain.WorkoutPlan{
		Action:           domain.ActionRemoveExercise,
		TargetWorkout:    "Core",
		ExerciseToRemove: &domain.ExerciseChange{Name: "Plank"},
		Workouts:         drafts("Core"),
	}
	res, err := f.svc.ProcessPlan(context.Background(), f.owner, f.unit.ID, plan)
	if err != nil {
		t.Fatalf("ProcessPlan: %v", err)
	}
	if len(res.Created) != 1 || res.Created[0].Title != "Core" {
		t.Fatalf("expected the draft to be created, got %+v", res)
	}
}
