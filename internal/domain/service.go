// Package domain defines the scheduling and progress logic for program participants.
package domain

import (
	"cmp"
	"context"
	"slices"
	"time"
)

// EnrollmentRepository answers enrollment lookups.
type EnrollmentRepository interface {
	IsEnrolled(ctx context.Context, userID, programID int64) (bool, error)
}

// DayPlanRepository reads materialised day plans with their active scheduled activities.
type DayPlanRepository interface {
	// GetDayPlan returns nil when the program has no plan for the day.
	GetDayPlan(ctx context.Context, programID int64, day int) (*DayPlan, error)
	ListDayPlans(ctx context.Context, programID int64, startDay, endDay int) ([]DayPlan, error)
	// ProgramTotalDays returns 0 when the program is unknown.
	ProgramTotalDays(ctx context.Context, programID int64) (int, error)
}

// ProgressRepository reads and records occurrence completions.
type ProgressRepository interface {
	// GetScheduledActivity returns nil when no active scheduled activity has the id.
	GetScheduledActivity(ctx context.Context, scheduledActivityID int64) (*ScheduledActivityRef, error)
	CountCompletions(ctx context.Context, userID int64, scheduledActivityIDs []int64) (map[int64]int, error)
	// CompleteNextOccurrence records the next occurrence under a row lock. It returns nil when
	// every planned occurrence is already recorded.
	CompleteNextOccurrence(ctx context.Context, userID, scheduledActivityID int64, plannedOccurrences int) (*Completion, error)
}

// Service orchestrates the read and write use cases behind the enrollment gate.
type Service struct {
	enrollments EnrollmentRepository
	dayPlans    DayPlanRepository
	progress    ProgressRepository
}

// NewService constructs a Service.
func NewService(enrollments EnrollmentRepository, dayPlans DayPlanRepository, progress ProgressRepository) *Service {
	return &Service{enrollments: enrollments, dayPlans: dayPlans, progress: progress}
}

// GetDayPlanInput identifies the day to read.
type GetDayPlanInput struct {
	ProgramID int64
	Day       int
	UserID    int64
}

// DayPlanView is a day plan joined with the user's progress.
type DayPlanView struct {
	ProgramID  int64
	Day        int
	Title      string
	Activities []ActivityProgress
	Summary    DaySummary
}

// WeeklyOverviewInput identifies the week to read.
type WeeklyOverviewInput struct {
	ProgramID  int64
	WeekNumber int
	UserID     int64
}

// WeeklyOverview is the per-day rollup of one program week.
type WeeklyOverview struct {
	ProgramID  int64
	WeekNumber int
	Days       []DaySummary
}

// CompleteActivityInput identifies the scheduled activity to complete.
type CompleteActivityInput struct {
	ScheduledActivityID int64
	UserID              int64
}

// CompletionResult reports the counts after one occurrence was recorded.
type CompletionResult struct {
	ScheduledActivityID  int64
	UserID               int64
	CompletedOccurrence  int
	CompletedOccurrences int
	PlannedOccurrences   int
	Completed            bool
	CompletedAt          time.Time
}

// EnsureEnrolled is the enrollment gate: it fails with ErrNotEnrolled unless the user holds an
// ACTIVE enrollment in the program.
func (s *Service) EnsureEnrolled(ctx context.Context, userID, programID int64) error {
	enrolled, err := s.enrollments.IsEnrolled(ctx, userID, programID)
	if err != nil {
		return err
	}
	if !enrolled {
		return ErrNotEnrolled
	}
	return nil
}

// GetDayPlan returns the day's schedule with per-activity progress and the completion percentage.
func (s *Service) GetDayPlan(ctx context.Context, input GetDayPlanInput) (*DayPlanView, error) {
	if err := s.EnsureEnrolled(ctx, input.UserID, input.ProgramID); err != nil {
		return nil, err
	}

	totalDays, err := s.dayPlans.ProgramTotalDays(ctx, input.ProgramID)
	if err != nil {
		return nil, err
	}
	if totalDays > 0 && input.Day > totalDays {
		return nil, Validationf("day must be between 1 and %d", totalDays)
	}

	dayPlan, err := s.dayPlans.GetDayPlan(ctx, input.ProgramID, input.Day)
	if err != nil {
		return nil, err
	}
	if dayPlan == nil {
		return nil, ErrDayPlanNotFound
	}

	completed, err := s.progress.CountCompletions(ctx, input.UserID, scheduledIDs(dayPlan.Activities))
	if err != nil {
		return nil, err
	}

	activities := JoinProgress(dayPlan.Activities, completed)
	return &DayPlanView{
		ProgramID:  dayPlan.ProgramID,
		Day:        dayPlan.DayNumber,
		Title:      dayPlan.Title,
		Activities: activities,
		Summary:    SummarizeDay(dayPlan.DayNumber, activities),
	}, nil
}

// GetWeeklyOverview rolls up the 7-day window of the requested week, ascending by day.
func (s *Service) GetWeeklyOverview(ctx context.Context, input WeeklyOverviewInput) (*WeeklyOverview, error) {
	if err := s.EnsureEnrolled(ctx, input.UserID, input.ProgramID); err != nil {
		return nil, err
	}

	startDay, endDay := WeekDayRange(input.WeekNumber)
	dayPlans, err := s.dayPlans.ListDayPlans(ctx, input.ProgramID, startDay, endDay)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, dp := range dayPlans {
		ids = append(ids, scheduledIDs(dp.Activities)...)
	}
	completed, err := s.progress.CountCompletions(ctx, input.UserID, ids)
	if err != nil {
		return nil, err
	}

	days := make([]DaySummary, 0, len(dayPlans))
	for _, dp := range dayPlans {
		days = append(days, SummarizeDay(dp.DayNumber, JoinProgress(dp.Activities, completed)))
	}
	slices.SortFunc(days, func(a, b DaySummary) int { return cmp.Compare(a.DayNumber, b.DayNumber) })

	return &WeeklyOverview{
		ProgramID:  input.ProgramID,
		WeekNumber: input.WeekNumber,
		Days:       days,
	}, nil
}

// CompleteActivity records one occurrence of a scheduled activity for the user.
func (s *Service) CompleteActivity(ctx context.Context, input CompleteActivityInput) (*CompletionResult, error) {
	ref, err := s.progress.GetScheduledActivity(ctx, input.ScheduledActivityID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, ErrScheduledActivityNotFound
	}

	if err := s.EnsureEnrolled(ctx, input.UserID, ref.ProgramID); err != nil {
		return nil, err
	}

	completion, err := s.progress.CompleteNextOccurrence(ctx, input.UserID, ref.ID, ref.PlannedOccurrences)
	if err != nil {
		return nil, err
	}
	if completion == nil {
		return nil, ErrAllOccurrencesCompleted
	}

	planned := completion.PlannedOccurrences
	if planned == 0 {
		planned = ref.PlannedOccurrences
	}
	return &CompletionResult{
		ScheduledActivityID:  completion.Progress.ScheduledActivityID,
		UserID:               completion.Progress.UserID,
		CompletedOccurrence:  completion.Progress.OccurrenceNumber,
		CompletedOccurrences: completion.CompletedOccurrences,
		PlannedOccurrences:   planned,
		Completed:            completion.CompletedOccurrences >= planned,
		CompletedAt:          completion.Progress.CompletedAt,
	}, nil
}

func scheduledIDs(activities []ScheduledActivity) []int64 {
	ids := make([]int64, 0, len(activities))
	for _, a := range activities {
		ids = append(ids, a.ID)
	}
	return ids
}
