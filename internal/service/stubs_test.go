package service

import (
	"alcyxob/workout-chat/internal/domain"
	"alcyxob/workout-chat/internal/repository"
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubUserRepo struct {
	byEmail   map[string]*domain.User
	createErr error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{byEmail: map[string]*domain.User{}}
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	if r.createErr != nil {
		return primitive.NilObjectID, r.createErr
	}
	u := *user
	u.ID = primitive.NewObjectID()
	r.byEmail[u.Email] = &u
	return u.ID, nil
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (r *stubUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	for _, u := range r.byEmail {
		if u.ID == id {
			out := *u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

type stubUnitRepo struct {
	units map[primitive.ObjectID]domain.Unit
}

func (r *stubUnitRepo) Create(_ context.Context, unit *domain.Unit) (primitive.ObjectID, error) {
	if r.units == nil {
		r.units = map[primitive.ObjectID]domain.Unit{}
	}
	u := *unit
	u.ID = primitive.NewObjectID()
	r.units[u.ID] = u
	return u.ID, nil
}

func (r *stubUnitRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Unit, error) {
	u, ok := r.units[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *stubUnitRepo) GetByMemberID(_ context.Context, userID primitive.ObjectID) ([]domain.Unit, error) {
	var out []domain.Unit
	for _, u := range r.units {
		if u.CanAccess(userID) {
			out = append(out, u)
		}
	}
	return out, nil
}

// stubWorkoutRepo keeps workouts in memory and enforces unique titles per unit.
type stubWorkoutRepo struct {
	workouts  map[primitive.ObjectID]domain.Workout
	creates   int
	updates   int
	lastDelID primitive.ObjectID
}

func newStubWorkoutRepo() *stubWorkoutRepo {
	return &stubWorkoutRepo{workouts: map[primitive.ObjectID]domain.Workout{}}
}

func (r *stubWorkoutRepo) add(unitID primitive.ObjectID, title string, exercises ...string) domain.Workout {
	w := domain.Workout{ID: primitive.NewObjectID(), UnitID: unitID, Title: title, Sequence: len(r.workouts)}
	for _, e := range exercises {
		w.Exercises = append(w.Exercises, domain.WorkoutExercise{Name: e, Sets: 3, Reps: "10"})
	}
	r.workouts[w.ID] = w
	return w
}

func (r *stubWorkoutRepo) Create(_ context.Context, workout *domain.Workout) (primitive.ObjectID, error) {
	for _, w := range r.workouts {
		if w.UnitID == workout.UnitID && w.Title == workout.Title {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
	}
	w := *workout
	w.ID = primitive.NewObjectID()
	r.workouts[w.ID] = w
	r.creates++
	return w.ID, nil
}

func (r *stubWorkoutRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Workout, error) {
	w, ok := r.workouts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &w, nil
}

func (r *stubWorkoutRepo) GetByUnitID(_ context.Context, unitID primitive.ObjectID) ([]domain.Workout, error) {
	var out []domain.Workout
	for _, w := range r.workouts {
		if w.UnitID == unitID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *stubWorkoutRepo) GetByTitle(_ context.Context, unitID primitive.ObjectID, title string) (*domain.Workout, error) {
	for _, w := range r.workouts {
		if w.UnitID == unitID && w.Title == title {
			return &w, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubWorkoutRepo) Update(_ context.Context, workout *domain.Workout) error {
	if _, ok := r.workouts[workout.ID]; !ok {
		return repository.ErrNotFound
	}
	r.workouts[workout.ID] = *workout
	r.updates++
	return nil
}

func (r *stubWorkoutRepo) Delete(_ context.Context, id, unitID primitive.ObjectID) error {
	w, ok := r.workouts[id]
	if !ok || w.UnitID != unitID {
		return repository.ErrNotFound
	}
	delete(r.workouts, id)
	r.lastDelID = id
	return nil
}

type stubQuotaRepo struct {
	counts map[string]int
}

func (r *stubQuotaRepo) key(userID primitive.ObjectID, day string) string {
	return userID.Hex() + "/" + day
}

func (r *stubQuotaRepo) Increment(_ context.Context, userID primitive.ObjectID, day string) (int, error) {
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[r.key(userID, day)]++
	return r.counts[r.key(userID, day)], nil
}

func (r *stubQuotaRepo) Get(_ context.Context, userID primitive.ObjectID, day string) (int, error) {
	return r.counts[r.key(userID, day)], nil
}

type stubArchiveRepo struct {
	archives []domain.PlanArchive
	err      error
}

func (r *stubArchiveRepo) Create(_ context.Context, archive *domain.PlanArchive) (primitive.ObjectID, error) {
	if r.err != nil {
		return primitive.NilObjectID, r.err
	}
	a := *archive
	a.ID = primitive.NewObjectID()
	r.archives = append(r.archives, a)
	return a.ID, nil
}

func (r *stubArchiveRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.PlanArchive, error) {
	for _, a := range r.archives {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubArchiveRepo) ListByUnitID(_ context.Context, unitID primitive.ObjectID, since time.Time) ([]domain.PlanArchive, error) {
	var out []domain.PlanArchive
	for _, a := range r.archives {
		if a.UnitID == unitID && !a.ArchivedAt.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

type stubPlanStorage struct {
	objects map[string][]byte
	deleted []string
	putErr  error
}

func (s *stubPlanStorage) PutObject(_ context.Context, key, _ string, body []byte) error {
	if s.putErr != nil {
		return s.putErr
	}
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = body
	return nil
}

func (s *stubPlanStorage) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://storage.test/" + key + "?sig=1", nil
}

func (s *stubPlanStorage) DeleteObject(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	delete(s.objects, key)
	return nil
}

type stubGenerator struct {
	workouts []domain.WorkoutDraft
	plan     *domain.WorkoutPlan
	err      error
	lastReq  domain.ChatTurnRequest
}

func (g *stubGenerator) Generate(_ context.Context, req domain.ChatTurnRequest, onWorkout func(domain.WorkoutDraft)) (*domain.WorkoutPlan, error) {
	g.lastReq = req
	for _, w := range g.workouts {
		onWorkout(w)
	}
	if g.err != nil {
		return nil, g.err
	}
	p := *g.plan
	return &p, nil
}

type recordedEvent struct {
	name    string
	payload any
}

type recordingSink struct {
	events []recordedEvent
	failAt int // 1-based, 0 never
}

func (s *recordingSink) Send(event string, payload any) error {
	s.events = append(s.events, recordedEvent{event, payload})
	if s.failAt > 0 && len(s.events) >= s.failAt {
		return context.Canceled
	}
	return nil
}

func (s *recordingSink) names() []string {
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.name
	}
	return out
}
