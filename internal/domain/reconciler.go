package domain

import (
	"context"
	"fmt"
	"log/slog"
)

// ScheduleStore captures the persistence operations the Reconciler relies on.
type ScheduleStore interface {
	ListProgramIDs(ctx context.Context) ([]int64, error)
	// LoadTemplate returns the program's day plans (without activities) and its activities with rules.
	LoadTemplate(ctx context.Context, programID int64) ([]DayPlan, []Activity, error)
	// ApplySchedule loads the persisted rows, diffs them against desired and applies the diff,
	// all inside one transaction. It returns the diff that was applied.
	ApplySchedule(ctx context.Context, programID int64, desired []DesiredEntry) (ScheduleDiff, error)
}

// ReconcilerOption configures optional Reconciler behaviour.
type ReconcilerOption func(*Reconciler)

// WithReconcilerLogger overrides the logger used to report regeneration results.
func WithReconcilerLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// Reconciler recomputes scheduled activities from the current recurrence rules.
// Callers must not run Regenerate concurrently for the same program.
type Reconciler struct {
	store  ScheduleStore
	logger *slog.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(store ScheduleStore, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Regenerate reconciles one program's schedule. It fails before any mutation when the program
// has no day plans or an activity rule is malformed.
func (r *Reconciler) Regenerate(ctx context.Context, programID int64) (ScheduleDiff, error) {
	dayPlans, activities, err := r.store.LoadTemplate(ctx, programID)
	if err != nil {
		return ScheduleDiff{}, fmt.Errorf("load program %d: %w", programID, err)
	}
	if len(dayPlans) == 0 {
		return ScheduleDiff{}, fmt.Errorf("program %d: %w", programID, ErrNoDayPlans)
	}
	for _, activity := range activities {
		if activity.Rule == nil {
			continue
		}
		if err := activity.Rule.Validate(); err != nil {
			return ScheduleDiff{}, fmt.Errorf("program %d activity %d: %w", programID, activity.ID, err)
		}
	}

	desired := BuildDesiredSchedule(dayPlans, activities)
	diff, err := r.store.ApplySchedule(ctx, programID, desired)
	if err != nil {
		return ScheduleDiff{}, fmt.Errorf("apply schedule for program %d: %w", programID, err)
	}

	r.logger.Info("regenerated schedule",
		"program_id", programID,
		"desired", len(desired),
		"created", len(diff.Create),
		"updated", len(diff.Update),
		"retired", len(diff.Retire),
		"deleted", len(diff.Delete),
	)
	return diff, nil
}

// RegenerateAll reconciles every program in ascending id order, stopping at the first failure.
func (r *Reconciler) RegenerateAll(ctx context.Context) error {
	ids, err := r.store.ListProgramIDs(ctx)
	if err != nil {
		return fmt.Errorf("list programs: %w", err)
	}
	for _, id := range ids {
		if _, err := r.Regenerate(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
