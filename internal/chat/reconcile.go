package chat

import (
	"alcyxob/workout-chat/internal/domain"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultCallTimeout bounds each persistence call made during an approval.
const DefaultCallTimeout = 2 * time.Minute

// PlanAPI is the part of the workout API that persists plans and lists what is stored.
type PlanAPI interface {
	ProcessPlan(ctx context.Context, req domain.ProcessPlanRequest) error
	ListWorkouts(ctx context.Context, unitID string) ([]domain.ExistingWorkout, error)
}

// Phase is a step of one approval.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseResolvingTarget
	PhaseCreatingMissing
	PhaseUpdatingTarget
	PhaseReloading
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseResolvingTarget:
		return "resolving-target"
	case PhaseCreatingMissing:
		return "creating-missing"
	case PhaseUpdatingTarget:
		return "updating-target"
	case PhaseReloading:
		return "reloading"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Approval is everything the reconciler needs from the session.
type Approval struct {
	UnitID    string
	Plan      *domain.WorkoutPlan
	Drafts    []domain.WorkoutDraft
	Reference *domain.DraftReference // reference that scoped the plan's turn
	Persisted []domain.ExistingWorkout
}

// Result reports what an approval persisted.
type Result struct {
	Created  []string
	Target   domain.WorkoutIdentifier
	Updated  bool
	Workouts []domain.ExistingWorkout // reloaded canonical list
}

// Reconciler turns an approved plan into sequential create calls, at most one
// update call and a final reload.
type Reconciler struct {
	api     PlanAPI
	logger  *zap.Logger
	timeout time.Duration
	onPhase func(Phase)
}

// ReconcilerOption customises a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithCallTimeout overrides DefaultCallTimeout.
func WithCallTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithPhaseObserver registers a callback invoked on every phase change.
func WithPhaseObserver(fn func(Phase)) ReconcilerOption {
	return func(r *Reconciler) { r.onPhase = fn }
}

// NewReconciler creates a Reconciler.
func NewReconciler(api PlanAPI, logger *zap.Logger, opts ...ReconcilerOption) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reconciler{api: api, logger: logger, timeout: DefaultCallTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconciler) enter(p Phase) {
	if r.onPhase != nil {
		r.onPhase(p)
	}
}

// Reconcile persists a. On the first failing call it stops and returns the
// error; workouts created before the failure stay created.
func (r *Reconciler) Reconcile(ctx context.Context, a Approval) (Result, error) {
	if a.Plan == nil {
		return Result{}, ErrNoPendingPlan
	}
	if a.UnitID == "" {
		return Result{}, ErrNoUnit
	}

	res, err := r.reconcile(ctx, a)
	if err != nil {
		r.enter(PhaseFailed)
		r.logger.Warn("Plan approval failed",
			zap.String("unitId", a.UnitID),
			zap.String("action", string(a.Plan.Action)),
			zap.Strings("created", res.Created),
			zap.Error(err))
		return res, err
	}
	r.enter(PhaseIdle)
	return res, nil
}

func (r *Reconciler) reconcile(ctx context.Context, a Approval) (Result, error) {
	var res Result
	plan := a.Plan
	ref := a.Reference

	r.enter(PhaseResolvingTarget)
	target := ResolveTarget(plan.Target(), a.Drafts, a.Persisted)

	if plan.Intent == domain.IntentDelete || plan.Action == domain.ActionDeleteWorkout {
		if (target.IsZero() || !target.IsID()) && ref != nil {
			target = resolveReference(ref, a.Persisted)
		}
		if err := r.update(ctx, a.UnitID, plan, nil, target); err != nil {
			return res, err
		}
		res.Target, res.Updated = target, true
		return r.reload(ctx, a.UnitID, res)
	}

	var (
		candidates   []domain.WorkoutDraft
		updateDraft  *domain.WorkoutDraft
		reResolve    bool
		exerciseEdit bool
	)
	switch {
	case ref != nil && plan.Action == domain.ActionUpdateWorkout:
		i := ref.WorkoutIndex
		switch {
		case i >= 0 && i < len(a.Drafts):
			d := a.Drafts[i]
			updateDraft = &d
			candidates = append(candidates, a.Drafts[:i]...)
			candidates = append(candidates, a.Drafts[i+1:]...)
		case len(a.Drafts) == 1:
			d := a.Drafts[0]
			updateDraft = &d
		default:
			r.logger.Warn("Reference index outside drafts, creating all",
				zap.Int("index", i), zap.Int("drafts", len(a.Drafts)))
			candidates = a.Drafts
		}
		reResolve = updateDraft != nil

	case ref != nil && (plan.Action == domain.ActionReplaceExercise || plan.Action == domain.ActionRemoveExercise):
		i := ref.WorkoutIndex
		switch {
		case i >= 0 && i < len(a.Drafts):
			d := a.Drafts[i]
			updateDraft = &d
		case len(a.Drafts) == 1:
			d := a.Drafts[0]
			updateDraft = &d
		}
		if !target.IsID() {
			target = resolveReference(ref, a.Persisted)
		}
		exerciseEdit = true

	default:
		candidates = a.Drafts
		if plan.Action != domain.ActionCreateWorkouts && !target.IsZero() && len(a.Drafts) == 1 {
			d := a.Drafts[0]
			updateDraft = &d
			candidates = nil
		}
	}

	if len(candidates) > 0 {
		r.enter(PhaseCreatingMissing)
		created, err := r.createMissing(ctx, a.UnitID, candidates, a.Persisted)
		res.Created = created
		if err != nil {
			return res, err
		}
	}

	if updateDraft != nil || exerciseEdit {
		if reResolve {
			fresh, err := r.list(ctx, a.UnitID)
			if err != nil {
				return res, err
			}
			target = resolveReference(ref, fresh)
		}
		if target.IsZero() && updateDraft != nil {
			target = domain.IdentifierByTitle(updateDraft.Title)
		}
		var drafts []domain.WorkoutDraft
		if updateDraft != nil {
			drafts = []domain.WorkoutDraft{*updateDraft}
		}
		if err := r.update(ctx, a.UnitID, plan, drafts, target); err != nil {
			return res, err
		}
		res.Target, res.Updated = target, true
	}

	return r.reload(ctx, a.UnitID, res)
}

// createMissing issues one create call per draft whose title is not yet
// persisted, in order.
func (r *Reconciler) createMissing(ctx context.Context, unitID string, candidates []domain.WorkoutDraft, persisted []domain.ExistingWorkout) ([]string, error) {
	seen := make(map[string]struct{}, len(persisted)+len(candidates))
	for _, w := range persisted {
		seen[w.Title] = struct{}{}
	}

	var created []string
	for _, d := range candidates {
		if !d.Recognized() {
			r.logger.Debug("Skipping draft without title")
			continue
		}
		if _, ok := seen[d.Title]; ok {
			r.logger.Debug("Workout already persisted, skipping create", zap.String("title", d.Title))
			continue
		}
		req := domain.ProcessPlanRequest{
			UnitID: unitID,
			ParsedPlan: domain.WorkoutPlan{
				Intent:   domain.IntentCreate,
				Action:   domain.ActionCreateWorkouts,
				Workouts: []domain.WorkoutDraft{d},
			},
		}
		if err := r.call(ctx, func(ctx context.Context) error { return r.api.ProcessPlan(ctx, req) }); err != nil {
			return created, fmt.Errorf("create workout %q: %w", d.Title, err)
		}
		seen[d.Title] = struct{}{}
		created = append(created, d.Title)
	}
	return created, nil
}

func (r *Reconciler) update(ctx context.Context, unitID string, plan *domain.WorkoutPlan, drafts []domain.WorkoutDraft, target domain.WorkoutIdentifier) error {
	r.enter(PhaseUpdatingTarget)
	out := *plan
	out.Workouts = drafts
	out.RemainingMessages = nil
	if out.Intent != domain.IntentDelete {
		out.Intent = domain.IntentEdit
	}
	out.SetTarget(target)

	req := domain.ProcessPlanRequest{UnitID: unitID, ParsedPlan: out}
	if err := r.call(ctx, func(ctx context.Context) error { return r.api.ProcessPlan(ctx, req) }); err != nil {
		return fmt.Errorf("%s %s: %w", out.Action, target, err)
	}
	return nil
}

func (r *Reconciler) reload(ctx context.Context, unitID string, res Result) (Result, error) {
	r.enter(PhaseReloading)
	fresh, err := r.list(ctx, unitID)
	if err != nil {
		return res, err
	}
	res.Workouts = fresh
	return res, nil
}

func (r *Reconciler) list(ctx context.Context, unitID string) ([]domain.ExistingWorkout, error) {
	var out []domain.ExistingWorkout
	err := r.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.api.ListWorkouts(ctx, unitID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reload workouts: %w", err)
	}
	return out, nil
}

func (r *Reconciler) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return fn(ctx)
}
