package api

import (
	"alcyxob/workout-chat/internal/chat"
	"alcyxob/workout-chat/internal/domain"
	"alcyxob/workout-chat/internal/service"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type stubAuthService struct{}

func (stubAuthService) Register(_ context.Context, name, email, _ string, role domain.Role) (*domain.User, error) {
	return &domain.User{ID: primitive.NewObjectID(), Name: name, Email: email, Role: role}, nil
}

func (stubAuthService) Login(context.Context, string, string) (string, *domain.User, error) {
	return "", nil, service.ErrAuthenticationFailed
}

type stubWorkoutService struct {
	workouts    []domain.Workout
	updated     *domain.Workout
	archiveID   string
	err         error
	lastPlan    domain.WorkoutPlan
	lastUser    primitive.ObjectID
	lastOwner   primitive.ObjectID
	lastCoachID *primitive.ObjectID
}

func (s *stubWorkoutService) CreateUnit(_ context.Context, userID primitive.ObjectID, name, _ string, coachID *primitive.ObjectID) (*domain.Unit, error) {
	s.lastOwner = userID
	s.lastCoachID = coachID
	return &domain.Unit{ID: primitive.NewObjectID(), OwnerID: userID, CoachID: coachID, Name: name}, s.err
}

func (s *stubWorkoutService) GetUnits(context.Context, primitive.ObjectID) ([]domain.Unit, error) {
	return nil, s.err
}

func (s *stubWorkoutService) GetUnit(context.Context, primitive.ObjectID, primitive.ObjectID) (*domain.Unit, error) {
	return nil, s.err
}

func (s *stubWorkoutService) GetWorkouts(_ context.Context, userID, _ primitive.ObjectID) ([]domain.Workout, error) {
	s.lastUser = userID
	return s.workouts, s.err
}

func (s *stubWorkoutService) ProcessPlan(_ context.Context, userID, _ primitive.ObjectID, plan domain.WorkoutPlan) (*service.PlanResult, error) {
	s.lastUser = userID
	s.lastPlan = plan
	if s.err != nil {
		return nil, s.err
	}
	return &service.PlanResult{Created: s.workouts, Updated: s.updated, ArchiveID: s.archiveID}, nil
}

func (s *stubWorkoutService) ListArchives(context.Context, primitive.ObjectID, primitive.ObjectID, time.Time) ([]domain.PlanArchive, error) {
	return nil, s.err
}

func (s *stubWorkoutService) GetArchiveURL(context.Context, primitive.ObjectID, primitive.ObjectID, primitive.ObjectID) (string, error) {
	return "https://storage.test/plan.json", s.err
}

type stubChatService struct {
	events  []recorded
	err     error
	lastReq domain.ChatTurnRequest
}

type recorded struct {
	name    string
	payload any
}

func (s *stubChatService) StreamTurn(_ context.Context, _ primitive.ObjectID, req domain.ChatTurnRequest, sink service.EventSink) error {
	s.lastReq = req
	if s.err != nil {
		return s.err
	}
	for _, e := range s.events {
		if err := sink.Send(e.name, e.payload); err != nil {
			return err
		}
	}
	return nil
}

func newTestRouter(workouts *stubWorkoutService, chatSvc *stubChatService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, testSecret, stubAuthService{}, workouts, chatSvc, zap.NewNop())
	return router
}

func signToken(t *testing.T, userID primitive.ObjectID, role domain.Role) string {
	t.Helper()
	claims := &service.Claims{
		UserID: userID.Hex(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func do(router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestAuthMiddleware(t *testing.T) {
	router := newTestRouter(&stubWorkoutService{}, &stubChatService{})
	userID := primitive.NewObjectID()

	if rec := do(router, http.MethodGet, "/api/v1/me", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: got %d", rec.Code)
	}
	if rec := do(router, http.MethodGet, "/api/v1/me", "not-a-jwt", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: got %d", rec.Code)
	}

	rec := do(router, http.MethodGet, "/api/v1/me", signToken(t, userID, domain.RoleStudent), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var me struct {
		UserID string `json:"userId"`
		Role   string `json:"role"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &me)
	if me.UserID != userID.Hex() || me.Role != "student" {
		t.Fatalf("unexpected /me: %+v", me)
	}
}

func TestRegisterValidatesRole(t *testing.T) {
	router := newTestRouter(&stubWorkoutService{}, &stubChatService{})
	body := map[string]string{"name": "A", "email": "a@example.com", "password": "password1", "role": "trainer"}
	if rec := do(router, http.MethodPost, "/api/v1/auth/register", "", body); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body["role"] = "coach"
	if rec := do(router, http.MethodPost, "/api/v1/auth/register", "", body); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateUnitRoles(t *testing.T) {
	workouts := &stubWorkoutService{}
	router := newTestRouter(workouts, &stubChatService{})
	coach := primitive.NewObjectID()
	student := primitive.NewObjectID()

	rec := do(router, http.MethodPost, "/api/v1/units", signToken(t, coach, domain.RoleCoach), map[string]string{"name": "Block", "studentId": student.Hex()})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if workouts.lastOwner != student || workouts.lastCoachID == nil || *workouts.lastCoachID != coach {
		t.Fatalf("coach unit not owned by the student: owner=%s coach=%v", workouts.lastOwner.Hex(), workouts.lastCoachID)
	}

	rec = do(router, http.MethodPost, "/api/v1/units", signToken(t, coach, domain.RoleCoach), map[string]string{"name": "Block"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("coach without studentId: expected 400, got %d", rec.Code)
	}

	rec = do(router, http.MethodPost, "/api/v1/units", signToken(t, coach, domain.Role("admin")), map[string]string{"name": "Block"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unknown role: expected 403, got %d", rec.Code)
	}
}

func TestGetWorkouts(t *testing.T) {
	unitID := primitive.NewObjectID()
	w := domain.Workout{ID: primitive.NewObjectID(), UnitID: unitID, Title: "Push Day"}
	workouts := &stubWorkoutService{workouts: []domain.Workout{w}}
	router := newTestRouter(workouts, &stubChatService{})
	token := signToken(t, primitive.NewObjectID(), domain.RoleStudent)

	rec := do(router, http.MethodGet, "/api/v1/units/"+unitID.Hex()+"/workouts", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var listed []domain.ExistingWorkout
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != w.ID.Hex() || listed[0].Title != "Push Day" {
		t.Fatalf("unexpected workouts: %+v", listed)
	}

	if rec := do(router, http.MethodGet, "/api/v1/units/xyz/workouts", token, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad unit id: expected 400, got %d", rec.Code)
	}

	workouts.err = service.ErrUnitAccessDenied
	if rec := do(router, http.MethodGet, "/api/v1/units/"+unitID.Hex()+"/workouts", token, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestProcessPlan(t *testing.T) {
	workouts := &stubWorkoutService{
		workouts:  []domain.Workout{{ID: primitive.NewObjectID(), Title: "Push Day"}},
		updated:   &domain.Workout{ID: primitive.NewObjectID(), Title: "Leg Day"},
		archiveID: "arch-1",
	}
	router := newTestRouter(workouts, &stubChatService{})
	userID := primitive.NewObjectID()
	token := signToken(t, userID, domain.RoleStudent)

	req := domain.ProcessPlanRequest{
		UnitID: primitive.NewObjectID().Hex(),
		ParsedPlan: domain.WorkoutPlan{
			Intent:        domain.IntentEdit,
			Action:        domain.ActionUpdateWorkout,
			TargetWorkout: "Leg Day",
			TargetKind:    domain.IdentifierTitle,
			Workouts:      []domain.WorkoutDraft{{Title: "Leg Day"}},
		},
	}
	rec := do(router, http.MethodPost, "/api/v1/workout-plans/process", token, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if workouts.lastUser != userID || workouts.lastPlan.Target() != domain.IdentifierByTitle("Leg Day") {
		t.Fatalf("plan not forwarded: %+v", workouts.lastPlan)
	}
	var body ProcessPlanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Success || len(body.Workouts) != 2 || body.Workouts[1].Title != "Leg Day" || body.ArchiveID != "arch-1" {
		t.Fatalf("unexpected process response: %s", rec.Body.String())
	}

	workouts.err = service.ErrInvalidPlan
	rec = do(router, http.MethodPost, "/api/v1/workout-plans/process", token, req)
	if rec.Code != http.StatusBadRequest || errorBody(t, rec) == "" {
		t.Fatalf("expected 400 with error body, got %d: %s", rec.Code, rec.Body.String())
	}

	req.UnitID = "bad"
	workouts.err = nil
	if rec := do(router, http.MethodPost, "/api/v1/workout-plans/process", token, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad unit id: expected 400, got %d", rec.Code)
	}
}

func TestChatStreamEvents(t *testing.T) {
	index := 0
	remaining := 4
	chatSvc := &stubChatService{events: []recorded{
		{domain.EventStatus, domain.StatusPayload{Message: "Working..."}},
		{domain.EventWorkoutProgress, domain.WorkoutProgressPayload{Workout: domain.WorkoutDraft{Title: "Push Day"}, Index: &index}},
		{domain.EventComplete, &domain.WorkoutPlan{Intent: domain.IntentCreate, Action: domain.ActionCreateWorkouts, Workouts: []domain.WorkoutDraft{{Title: "Push Day"}}, RemainingMessages: &remaining}},
	}}
	router := newTestRouter(&stubWorkoutService{}, chatSvc)
	token := signToken(t, primitive.NewObjectID(), domain.RoleStudent)

	rec := do(router, http.MethodPost, "/api/v1/workout-chat/stream", token, domain.ChatTurnRequest{Message: "  push day  ", UnitID: primitive.NewObjectID().Hex()})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if chatSvc.lastReq.Message != "push day" {
		t.Fatalf("message not trimmed: %q", chatSvc.lastReq.Message)
	}

	var events []chat.Event
	err := chat.ReadEvents(context.Background(), strings.NewReader(rec.Body.String()), func(ev chat.Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(events) != 3 || events[0].Type != domain.EventStatus || events[2].Type != domain.EventComplete {
		t.Fatalf("unexpected events: %+v", events)
	}
	var plan domain.WorkoutPlan
	if err := json.Unmarshal([]byte(events[2].Data), &plan); err != nil {
		t.Fatalf("decode complete: %v", err)
	}
	if plan.RemainingMessages == nil || *plan.RemainingMessages != 4 || len(plan.Workouts) != 1 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
}

func TestChatStreamQuotaExceeded(t *testing.T) {
	chatSvc := &stubChatService{err: service.ErrQuotaExceeded}
	router := newTestRouter(&stubWorkoutService{}, chatSvc)
	token := signToken(t, primitive.NewObjectID(), domain.RoleStudent)

	rec := do(router, http.MethodPost, "/api/v1/workout-chat/stream", token, domain.ChatTurnRequest{Message: "hi", UnitID: primitive.NewObjectID().Hex()})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if msg := errorBody(t, rec); !strings.Contains(msg, "daily message limit") {
		t.Fatalf("unexpected error %q", msg)
	}
}
