package service

import (
	"alcyxob/workout-chat/internal/domain"
	"alcyxob/workout-chat/internal/repository"
	"alcyxob/workout-chat/internal/storage"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	ErrUnitNotFound       = errors.New("unit not found")
	ErrUnitAccessDenied   = errors.New("access denied to this unit")
	ErrWorkoutNotFound    = errors.New("workout not found")
	ErrExerciseNotFound   = errors.New("exercise not found in workout")
	ErrInvalidPlan        = errors.New("plan cannot be processed")
	ErrArchiveNotFound    = errors.New("plan archive not found")
	ErrArchiveUnavailable = errors.New("plan archiving is not configured")
)

// PlanResult reports what processing a plan changed.
type PlanResult struct {
	Created []domain.Workout `json:"created,omitempty"`
	Skipped []string         `json:"skipped,omitempty"` // titles already persisted
	Updated *domain.Workout  `json:"updated,omitempty"`
	Deleted string           `json:"deleted,omitempty"`
	// ArchiveID is set when the processed plan was archived.
	ArchiveID string `json:"archiveId,omitempty"`
}

type WorkoutService interface {
	CreateUnit(ctx context.Context, userID primitive.ObjectID, name, description string, coachID *primitive.ObjectID) (*domain.Unit, error)
	GetUnits(ctx context.Context, userID primitive.ObjectID) ([]domain.Unit, error)
	// GetUnit returns the unit if userID may access it.
	GetUnit(ctx context.Context, userID, unitID primitive.ObjectID) (*domain.Unit, error)
	GetWorkouts(ctx context.Context, userID, unitID primitive.ObjectID) ([]domain.Workout, error)
	ProcessPlan(ctx context.Context, userID, unitID primitive.ObjectID, plan domain.WorkoutPlan) (*PlanResult, error)
	ListArchives(ctx context.Context, userID, unitID primitive.ObjectID, since time.Time) ([]domain.PlanArchive, error)
	GetArchiveURL(ctx context.Context, userID, unitID, archiveID primitive.ObjectID) (string, error)
}

// workoutService implements the WorkoutService interface.
type workoutService struct {
	unitRepo    repository.UnitRepository
	workoutRepo repository.WorkoutRepository
	archiveRepo repository.PlanArchiveRepository
	plans       storage.PlanStorage // nil when archiving is off
	logger      *zap.Logger
}

// NewWorkoutService creates a new instance of workoutService. plans may be nil.
func NewWorkoutService(
	unitRepo repository.UnitRepository,
	workoutRepo repository.WorkoutRepository,
	archiveRepo repository.PlanArchiveRepository,
	plans storage.PlanStorage,
	logger *zap.Logger,
) WorkoutService {
	return &workoutService{
		unitRepo:    unitRepo,
		workoutRepo: workoutRepo,
		archiveRepo: archiveRepo,
		plans:       plans,
		logger:      logger,
	}
}

// === Units ===

func (s *workoutService) CreateUnit(ctx context.Context, userID primitive.ObjectID, name, description string, coachID *primitive.ObjectID) (*domain.Unit, error) {
	name = strings.TrimSpace(name)
	if userID == primitive.NilObjectID || name == "" {
		return nil, ErrInvalidInput
	}
	unit := &domain.Unit{
		OwnerID:     userID,
		CoachID:     coachID,
		Name:        name,
		Description: description,
	}
	id, err := s.unitRepo.Create(ctx, unit)
	if err != nil {
		return nil, err
	}
	unit.ID = id
	return unit, nil
}

func (s *workoutService) GetUnits(ctx context.Context, userID primitive.ObjectID) ([]domain.Unit, error) {
	return s.unitRepo.GetByMemberID(ctx, userID)
}

func (s *workoutService) GetUnit(ctx context.Context, userID, unitID primitive.ObjectID) (*domain.Unit, error) {
	unit, err := s.unitRepo.GetByID(ctx, unitID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnitNotFound
		}
		return nil, err
	}
	if !unit.CanAccess(userID) {
		return nil, ErrUnitAccessDenied
	}
	return unit, nil
}

// === Workouts ===

func (s *workoutService) GetWorkouts(ctx context.Context, userID, unitID primitive.ObjectID) ([]domain.Workout, error) {
	if _, err := s.GetUnit(ctx, userID, unitID); err != nil {
		return nil, err
	}
	return s.workoutRepo.GetByUnitID(ctx, unitID)
}

// ProcessPlan applies one approved plan to the unit's workouts. Creation is
// idempotent by title so a retried approval never duplicates workouts.
func (s *workoutService) ProcessPlan(ctx context.Context, userID, unitID primitive.ObjectID, plan domain.WorkoutPlan) (*PlanResult, error) {
	unit, err := s.GetUnit(ctx, userID, unitID)
	if err != nil {
		return nil, err
	}

	var result *PlanResult
	switch planAction(plan) {
	case domain.ActionCreateWorkouts:
		result, err = s.createWorkouts(ctx, unit, plan.Workouts)
	case domain.ActionUpdateWorkout:
		result, err = s.updateWorkout(ctx, unit, plan)
	case domain.ActionReplaceExercise:
		result, err = s.editExercise(ctx, unit, plan, replaceExercise)
	case domain.ActionRemoveExercise:
		result, err = s.editExercise(ctx, unit, plan, removeExercise)
	case domain.ActionDeleteWorkout:
		result, err = s.deleteWorkout(ctx, unit, plan)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidPlan, plan.Action)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Plan processed",
		zap.String("unitId", unitID.Hex()),
		zap.String("action", string(plan.Action)),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Bool("updated", result.Updated != nil),
		zap.String("deleted", result.Deleted))

	result.ArchiveID = s.archive(ctx, unit, userID, plan)
	return result, nil
}

func planAction(plan domain.WorkoutPlan) domain.PlanAction {
	if plan.Action != "" {
		return plan.Action
	}
	switch plan.Intent {
	case domain.IntentCreate:
		return domain.ActionCreateWorkouts
	case domain.IntentEdit:
		return domain.ActionUpdateWorkout
	case domain.IntentDelete:
		return domain.ActionDeleteWorkout
	}
	return ""
}

func (s *workoutService) createWorkouts(ctx context.Context, unit *domain.Unit, drafts []domain.WorkoutDraft) (*PlanResult, error) {
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: no workouts to create", ErrInvalidPlan)
	}
	existing, err := s.workoutRepo.GetByUnitID(ctx, unit.ID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, w := range existing {
		seen[w.Title] = struct{}{}
	}

	result := &PlanResult{}
	sequence := len(existing)
	for _, d := range drafts {
		if !d.Recognized() {
			continue
		}
		if _, ok := seen[d.Title]; ok {
			result.Skipped = append(result.Skipped, d.Title)
			continue
		}
		w, err := s.create(ctx, unit, d, sequence)
		if errors.Is(err, repository.ErrDuplicateKey) {
			// Created concurrently under the same title.
			result.Skipped = append(result.Skipped, d.Title)
			continue
		}
		if err != nil {
			return nil, err
		}
		seen[d.Title] = struct{}{}
		sequence++
		result.Created = append(result.Created, *w)
	}
	return result, nil
}

func (s *workoutService) create(ctx context.Context, unit *domain.Unit, d domain.WorkoutDraft, sequence int) (*domain.Workout, error) {
	w := &domain.Workout{
		UnitID:   unit.ID,
		OwnerID:  unit.OwnerID,
		Sequence: sequence,
	}
	w.ApplyDraft(d)
	id, err := s.workoutRepo.Create(ctx, w)
	if err != nil {
		return nil, err
	}
	w.ID = id
	return w, nil
}

// findTarget resolves the plan's target within the unit.
func (s *workoutService) findTarget(ctx context.Context, unit *domain.Unit, target domain.WorkoutIdentifier) (*domain.Workout, error) {
	if target.IsZero() {
		return nil, ErrWorkoutNotFound
	}
	var (
		w   *domain.Workout
		err error
	)
	if target.IsID() {
		id, perr := primitive.ObjectIDFromHex(target.Value)
		if perr != nil {
			return nil, fmt.Errorf("%w: invalid workout id", ErrInvalidPlan)
		}
		w, err = s.workoutRepo.GetByID(ctx, id)
		if err == nil && w.UnitID != unit.ID {
			return nil, ErrWorkoutNotFound
		}
	} else {
		w, err = s.workoutRepo.GetByTitle(ctx, unit.ID, target.Value)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrWorkoutNotFound
	}
	return w, err
}

func (s *workoutService) updateWorkout(ctx context.Context, unit *domain.Unit, plan domain.WorkoutPlan) (*PlanResult, error) {
	if len(plan.Workouts) == 0 || !plan.Workouts[0].Recognized() {
		return nil, fmt.Errorf("%w: no workout to update", ErrInvalidPlan)
	}
	draft := plan.Workouts[0]
	target := plan.Target()
	if target.IsZero() {
		target = domain.IdentifierByTitle(draft.Title)
	}

	w, err := s.findTarget(ctx, unit, target)
	if errors.Is(err, ErrWorkoutNotFound) && !target.IsID() {
		// A draft that was never approved is created instead.
		result, err := s.createWorkouts(ctx, unit, []domain.WorkoutDraft{draft})
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	w.ApplyDraft(draft)
	if err := s.workoutRepo.Update(ctx, w); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: title %q already used in this unit", ErrInvalidPlan, draft.Title)
		}
		return nil, err
	}
	return &PlanResult{Updated: w}, nil
}

type exerciseEdit func(w *domain.Workout, plan domain.WorkoutPlan) error

func (s *workoutService) editExercise(ctx context.Context, unit *domain.Unit, plan domain.WorkoutPlan, edit exerciseEdit) (*PlanResult, error) {
	target := plan.Target()
	if target.IsZero() && len(plan.Workouts) > 0 {
		target = domain.IdentifierByTitle(plan.Workouts[0].Title)
	}
	fullDraft := len(plan.Workouts) == 1 && plan.Workouts[0].Recognized()
	w, err := s.findTarget(ctx, unit, target)
	if errors.Is(err, ErrWorkoutNotFound) && !target.IsID() && fullDraft {
		return s.createWorkouts(ctx, unit, plan.Workouts)
	}
	if err != nil {
		return nil, err
	}

	// A full draft of the edited workout wins over the exercise descriptors.
	if fullDraft {
		w.ApplyDraft(plan.Workouts[0])
	} else if err := edit(w, plan); err != nil {
		return nil, err
	}

	if err := s.workoutRepo.Update(ctx, w); err != nil {
		return nil, err
	}
	return &PlanResult{Updated: w}, nil
}

func exerciseIndex(w *domain.Workout, change *domain.ExerciseChange) (int, error) {
	if change == nil {
		return -1, fmt.Errorf("%w: no exercise named", ErrInvalidPlan)
	}
	if change.Index != nil && *change.Index >= 0 && *change.Index < len(w.Exercises) {
		if change.Name == "" || strings.EqualFold(w.Exercises[*change.Index].Name, change.Name) {
			return *change.Index, nil
		}
	}
	for i, e := range w.Exercises {
		if strings.EqualFold(e.Name, change.Name) {
			return i, nil
		}
	}
	return -1, ErrExerciseNotFound
}

func replaceExercise(w *domain.Workout, plan domain.WorkoutPlan) error {
	if plan.ReplacementExercise == nil || plan.ReplacementExercise.Name == "" {
		return fmt.Errorf("%w: no replacement exercise", ErrInvalidPlan)
	}
	i, err := exerciseIndex(w, plan.ExerciseToReplace)
	if err != nil {
		return err
	}
	r := plan.ReplacementExercise
	w.Exercises[i] = domain.WorkoutExercise{
		Name:         r.Name,
		Sets:         r.Sets,
		Reps:         r.Reps,
		RestSeconds:  r.RestSeconds,
		Notes:        r.Notes,
		Alternatives: append([]string(nil), r.Alternatives...),
	}
	return nil
}

func removeExercise(w *domain.Workout, plan domain.WorkoutPlan) error {
	i, err := exerciseIndex(w, plan.ExerciseToRemove)
	if err != nil {
		return err
	}
	w.Exercises = append(w.Exercises[:i], w.Exercises[i+1:]...)
	return nil
}

func (s *workoutService) deleteWorkout(ctx context.Context, unit *domain.Unit, plan domain.WorkoutPlan) (*PlanResult, error) {
	w, err := s.findTarget(ctx, unit, plan.Target())
	if err != nil {
		return nil, err
	}
	if err := s.workoutRepo.Delete(ctx, w.ID, unit.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	return &PlanResult{Deleted: w.ID.Hex()}, nil
}

// === Archives ===

// archive writes the processed plan to object storage. Failures are logged and
// never fail the request.
func (s *workoutService) archive(ctx context.Context, unit *domain.Unit, userID primitive.ObjectID, plan domain.WorkoutPlan) string {
	if s.plans == nil || s.archiveRepo == nil {
		return ""
	}
	plan.RemainingMessages = nil
	body, err := json.Marshal(plan)
	if err != nil {
		s.logger.Warn("Failed to encode plan for archive", zap.Error(err))
		return ""
	}
	now := time.Now()
	key := storage.PlanObjectKey(unit.ID.Hex(), now)
	if err := s.plans.PutObject(ctx, key, "application/json", body); err != nil {
		s.logger.Warn("Failed to archive plan", zap.String("key", key), zap.Error(err))
		return ""
	}
	rec := &domain.PlanArchive{
		UnitID:      unit.ID,
		OwnerID:     userID,
		S3ObjectKey: key,
		Action:      planAction(plan),
		Size:        int64(len(body)),
		ArchivedAt:  now,
	}
	id, err := s.archiveRepo.Create(ctx, rec)
	if err != nil {
		s.logger.Warn("Failed to record plan archive", zap.String("key", key), zap.Error(err))
		if derr := s.plans.DeleteObject(ctx, key); derr != nil {
			s.logger.Warn("Failed to remove orphaned archive", zap.String("key", key), zap.Error(derr))
		}
		return ""
	}
	return id.Hex()
}

func (s *workoutService) ListArchives(ctx context.Context, userID, unitID primitive.ObjectID, since time.Time) ([]domain.PlanArchive, error) {
	if _, err := s.GetUnit(ctx, userID, unitID); err != nil {
		return nil, err
	}
	if s.archiveRepo == nil {
		return nil, ErrArchiveUnavailable
	}
	return s.archiveRepo.ListByUnitID(ctx, unitID, since)
}

func (s *workoutService) GetArchiveURL(ctx context.Context, userID, unitID, archiveID primitive.ObjectID) (string, error) {
	if _, err := s.GetUnit(ctx, userID, unitID); err != nil {
		return "", err
	}
	if s.plans == nil || s.archiveRepo == nil {
		return "", ErrArchiveUnavailable
	}
	rec, err := s.archiveRepo.GetByID(ctx, archiveID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrArchiveNotFound
		}
		return "", err
	}
	if rec.UnitID != unitID {
		return "", ErrArchiveNotFound
	}
	return s.plans.GeneratePresignedDownloadURL(ctx, rec.S3ObjectKey, storage.DefaultPresignedURLExpiry)
}
