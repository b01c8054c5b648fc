package api

import (
	"alcyxob/workout-chat/internal/domain"
	"alcyxob/workout-chat/internal/service"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type WorkoutHandler struct {
	workoutService service.WorkoutService
	logger         *zap.Logger
}

func NewWorkoutHandler(workoutService service.WorkoutService, logger *zap.Logger) *WorkoutHandler {
	return &WorkoutHandler{workoutService: workoutService, logger: logger}
}

// --- DTOs ---

type CreateUnitRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	// StudentID is required when a coach creates a unit on a student's behalf.
	StudentID string `json:"studentId"`
}

type UnitResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	CoachID     *string   `json:"coachId,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func MapUnitToResponse(u *domain.Unit) UnitResponse {
	if u == nil {
		return UnitResponse{}
	}
	resp := UnitResponse{
		ID:          u.ID.Hex(),
		OwnerID:     u.OwnerID.Hex(),
		Name:        u.Name,
		Description: u.Description,
		CreatedAt:   u.CreatedAt,
	}
	if u.CoachID != nil && *u.CoachID != primitive.NilObjectID {
		hex := u.CoachID.Hex()
		resp.CoachID = &hex
	}
	return resp
}

type WorkoutResponse struct {
	ID          string                   `json:"id"`
	UnitID      string                   `json:"unitId"`
	Title       string                   `json:"title"`
	Description string                   `json:"description,omitempty"`
	Category    string                   `json:"category,omitempty"`
	MuscleGroup string                   `json:"muscleGroup,omitempty"`
	Difficulty  string                   `json:"difficulty,omitempty"`
	Exercises   []domain.WorkoutExercise `json:"exercises"`
	Sequence    int                      `json:"sequence"`
	UpdatedAt   time.Time                `json:"updatedAt"`
}

func MapWorkoutToResponse(w *domain.Workout) WorkoutResponse {
	if w == nil {
		return WorkoutResponse{}
	}
	exercises := w.Exercises
	if exercises == nil {
		exercises = []domain.WorkoutExercise{}
	}
	return WorkoutResponse{
		ID:          w.ID.Hex(),
		UnitID:      w.UnitID.Hex(),
		Title:       w.Title,
		Description: w.Description,
		Category:    w.Category,
		MuscleGroup: w.MuscleGroup,
		Difficulty:  w.Difficulty,
		Exercises:   exercises,
		Sequence:    w.Sequence,
		UpdatedAt:   w.UpdatedAt,
	}
}

func MapWorkoutsToResponse(workouts []domain.Workout) []WorkoutResponse {
	responses := make([]WorkoutResponse, len(workouts))
	for i := range workouts {
		responses[i] = MapWorkoutToResponse(&workouts[i])
	}
	return responses
}

// ProcessPlanResponse reports the outcome of applying a plan.
type ProcessPlanResponse struct {
	Success   bool              `json:"success"`
	Workouts  []WorkoutResponse `json:"workouts"` // created, then the updated one
	Skipped   []string          `json:"skipped,omitempty"`
	Deleted   string            `json:"deleted,omitempty"`
	ArchiveID string            `json:"archiveId,omitempty"`
}

type PlanArchiveResponse struct {
	ID         string            `json:"id"`
	Action     domain.PlanAction `json:"action"`
	Size       int64             `json:"size"`
	ArchivedAt time.Time         `json:"archivedAt"`
}

// --- Units ---

// CreateUnit godoc
// @Summary Create a training unit
// @Description Students create their own units; coaches create units for a student.
// @Tags Units
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param unit body CreateUnitRequest true "Unit details"
// @Success 201 {object} UnitResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Router /units [post]
func (h *WorkoutHandler) CreateUnit(c *gin.Context) {
	var req CreateUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	userID, ok := userObjectID(c)
	if !ok {
		return
	}
	role, _ := getUserRoleFromContext(c)

	ownerID := userID
	var coachID *primitive.ObjectID
	if role == domain.RoleCoach {
		studentID, err := primitive.ObjectIDFromHex(req.StudentID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "A valid studentId is required when a coach creates a unit.")
			return
		}
		ownerID = studentID
		coachID = &userID
	}

	unit, err := h.workoutService.CreateUnit(c.Request.Context(), ownerID, req.Name, req.Description, coachID)
	if err != nil {
		h.serviceError(c, err, "Failed to create unit.")
		return
	}
	c.JSON(http.StatusCreated, MapUnitToResponse(unit))
}

// GetUnits godoc
// @Summary List the caller's units
// @Tags Units
// @Produce json
// @Security BearerAuth
// @Success 200 {array} UnitResponse
// @Router /units [get]
func (h *WorkoutHandler) GetUnits(c *gin.Context) {
	userID, ok := userObjectID(c)
	if !ok {
		return
	}
	units, err := h.workoutService.GetUnits(c.Request.Context(), userID)
	if err != nil {
		h.serviceError(c, err, "Failed to retrieve units.")
		return
	}
	responses := make([]UnitResponse, len(units))
	for i := range units {
		responses[i] = MapUnitToResponse(&units[i])
	}
	c.JSON(http.StatusOK, responses)
}

// --- Workouts ---

// GetWorkouts godoc
// @Summary List the persisted workouts of a unit
// @Tags Workouts
// @Produce json
// @Security BearerAuth
// @Param unitId path string true "Unit ObjectID Hex"
// @Success 200 {array} WorkoutResponse
// @Failure 403 {object} gin.H "No access to the unit"
// @Failure 404 {object} gin.H "Unit not found"
// @Router /units/{unitId}/workouts [get]
func (h *WorkoutHandler) GetWorkouts(c *gin.Context) {
	unitID, ok := pathObjectID(c, "unitId")
	if !ok {
		return
	}
	userID, ok := userObjectID(c)
	if !ok {
		return
	}
	workouts, err := h.workoutService.GetWorkouts(c.Request.Context(), userID, unitID)
	if err != nil {
		h.serviceError(c, err, "Failed to retrieve workouts.")
		return
	}
	c.JSON(http.StatusOK, MapWorkoutsToResponse(workouts))
}

// ProcessPlan godoc
// @Summary Apply an approved workout plan
// @Description Creates, updates, edits or deletes workouts as described by the plan.
// Creating a workout whose title already exists in the unit is a no-op.
// @Tags Workouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param plan body domain.ProcessPlanRequest true "Parsed plan and unit"
// @Success 200 {object} ProcessPlanResponse
// @Failure 400 {object} gin.H "Plan cannot be processed"
// @Failure 404 {object} gin.H "Unit or workout not found"
// @Router /workout-plans/process [post]
func (h *WorkoutHandler) ProcessPlan(c *gin.Context) {
	var req domain.ProcessPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	unitID, err := primitive.ObjectIDFromHex(req.UnitID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid unitId.")
		return
	}
	userID, ok := userObjectID(c)
	if !ok {
		return
	}

	result, err := h.workoutService.ProcessPlan(c.Request.Context(), userID, unitID, req.ParsedPlan)
	if err != nil {
		h.serviceError(c, err, "Failed to process plan.")
		return
	}

	resp := ProcessPlanResponse{
		Success:   true,
		Workouts:  MapWorkoutsToResponse(result.Created),
		Skipped:   result.Skipped,
		Deleted:   result.Deleted,
		ArchiveID: result.ArchiveID,
	}
	if result.Updated != nil {
		resp.Workouts = append(resp.Workouts, MapWorkoutToResponse(result.Updated))
	}
	c.JSON(http.StatusOK, resp)
}

// --- Plan archives ---

// ListArchives godoc
// @Summary List archived plans of a unit
// @Tags Archives
// @Produce json
// @Security BearerAuth
// @Param unitId path string true "Unit ObjectID Hex"
// @Param since query string false "RFC3339 lower bound"
// @Success 200 {array} PlanArchiveResponse
// @Router /units/{unitId}/plan-archives [get]
func (h *WorkoutHandler) ListArchives(c *gin.Context) {
	unitID, ok := pathObjectID(c, "unitId")
	if !ok {
		return
	}
	userID, ok := userObjectID(c)
	if !ok {
		return
	}
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "since must be an RFC3339 timestamp.")
			return
		}
		since = t
	}

	archives, err := h.workoutService.ListArchives(c.Request.Context(), userID, unitID, since)
	if err != nil {
		h.serviceError(c, err, "Failed to list plan archives.")
		return
	}
	responses := make([]PlanArchiveResponse, len(archives))
	for i, a := range archives {
		responses[i] = PlanArchiveResponse{ID: a.ID.Hex(), Action: a.Action, Size: a.Size, ArchivedAt: a.ArchivedAt}
	}
	c.JSON(http.StatusOK, responses)
}

// GetArchiveURL godoc
// @Summary Get a download URL for an archived plan
// @Tags Archives
// @Produce json
// @Security BearerAuth
// @Param unitId path string true "Unit ObjectID Hex"
// @Param archiveId path string true "Archive ObjectID Hex"
// @Success 200 {object} gin.H "url"
// @Failure 503 {object} gin.H "Archiving not configured"
// @Router /units/{unitId}/plan-archives/{archiveId} [get]
func (h *WorkoutHandler) GetArchiveURL(c *gin.Context) {
	unitID, ok := pathObjectID(c, "unitId")
	if !ok {
		return
	}
	archiveID, ok := pathObjectID(c, "archiveId")
	if !ok {
		return
	}
	userID, ok := userObjectID(c)
	if !ok {
		return
	}
	url, err := h.workoutService.GetArchiveURL(c.Request.Context(), userID, unitID, archiveID)
	if err != nil {
		h.serviceError(c, err, "Failed to generate download URL.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func pathObjectID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid "+name+" format in URL path.")
		return primitive.NilObjectID, false
	}
	return id, true
}

// serviceError maps service errors to HTTP status codes.
func (h *WorkoutHandler) serviceError(c *gin.Context, err error, fallback string) {
	writeServiceError(c, h.logger, err, fallback)
}

func writeServiceError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrUnitNotFound),
		errors.Is(err, service.ErrWorkoutNotFound),
		errors.Is(err, service.ErrExerciseNotFound),
		errors.Is(err, service.ErrArchiveNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUnitAccessDenied):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidPlan), errors.Is(err, service.ErrInvalidInput):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrQuotaExceeded):
		abortWithError(c, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, service.ErrArchiveUnavailable):
		abortWithError(c, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, fallback)
	}
}
