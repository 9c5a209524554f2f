package domain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnrollments struct {
	mu     sync.Mutex
	active map[[2]int64]bool
	calls  int
}

func (f *fakeEnrollments) IsEnrolled(_ context.Context, userID, programID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.active[[2]int64{userID, programID}], nil
}

type fakeDayPlans struct {
	plans     map[int]DayPlan
	totalDays int
	calls     int
}

func (f *fakeDayPlans) ProgramTotalDays(context.Context, int64) (int, error) {
	return f.totalDays, nil
}

func (f *fakeDayPlans) GetDayPlan(_ context.Context, _ int64, day int) (*DayPlan, error) {
	f.calls++
	dp, ok := f.plans[day]
	if !ok {
		return nil, nil
	}
	return &dp, nil
}

func (f *fakeDayPlans) ListDayPlans(_ context.Context, _ int64, startDay, endDay int) ([]DayPlan, error) {
	f.calls++
	var out []DayPlan
	// map iteration order is random; the service must sort the result itself
	for day, dp := range f.plans {
		if day >= startDay && day <= endDay {
			out = append(out, dp)
		}
	}
	return out, nil
}

// fakeProgress mimics the locked count-then-insert of the Postgres engine with a mutex.
type fakeProgress struct {
	mu        sync.Mutex
	scheduled map[int64]ScheduledActivityRef
	rows      map[[2]int64][]Progress
	writes    int
	calls     int
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{
		scheduled: make(map[int64]ScheduledActivityRef),
		rows:      make(map[[2]int64][]Progress),
	}
}

func (f *fakeProgress) GetScheduledActivity(_ context.Context, id int64) (*ScheduledActivityRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	ref, ok := f.scheduled[id]
	if !ok {
		return nil, nil
	}
	return &ref, nil
}

func (f *fakeProgress) CountCompletions(_ context.Context, userID int64, ids []int64) (map[int64]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make(map[int64]int)
	for _, id := range ids {
		if n := len(f.rows[[2]int64{userID, id}]); n > 0 {
			out[id] = n
		}
	}
	return out, nil
}

func (f *fakeProgress) CompleteNextOccurrence(_ context.Context, userID, id int64, planned int) (*Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	key := [2]int64{userID, id}
	count := len(f.rows[key])
	if count >= planned {
		return nil, nil
	}
	p := Progress{UserID: userID, ScheduledActivityID: id, OccurrenceNumber: count + 1, CompletedAt: time.Now().UTC()}
	f.rows[key] = append(f.rows[key], p)
	f.writes++
	return &Completion{Progress: p, CompletedOccurrences: count + 1, PlannedOccurrences: planned}, nil
}

func newTestService() (*Service, *fakeEnrollments, *fakeDayPlans, *fakeProgress) {
	enrollments := &fakeEnrollments{active: map[[2]int64]bool{{1, 1}: true}}
	plans := &fakeDayPlans{plans: map[int]DayPlan{
		1: {ID: 11, ProgramID: 1, DayNumber: 1, Title: "Day 1 Plan", Activities: []ScheduledActivity{
			{ID: 501, ActivityID: 1, PlannedOccurrences: 3, SortOrder: 1, IsActive: true},
			{ID: 502, ActivityID: 2, PlannedOccurrences: 1, SortOrder: 2, IsActive: true},
		}},
		2: {ID: 12, ProgramID: 1, DayNumber: 2, Title: "Day 2 Plan"},
		7: {ID: 17, ProgramID: 1, DayNumber: 7, Title: "Day 7 Plan", Activities: []ScheduledActivity{
			{ID: 701, ActivityID: 7, PlannedOccurrences: 1, SortOrder: 7, IsActive: true},
		}},
	}}
	progress := newFakeProgress()
	progress.scheduled[501] = ScheduledActivityRef{ID: 501, ProgramID: 1, PlannedOccurrences: 3}
	progress.scheduled[502] = ScheduledActivityRef{ID: 502, ProgramID: 1, PlannedOccurrences: 1}
	progress.scheduled[701] = ScheduledActivityRef{ID: 701, ProgramID: 1, PlannedOccurrences: 1}
	return NewService(enrollments, plans, progress), enrollments, plans, progress
}

func TestGetDayPlanJoinsProgress(t *testing.T) {
	svc, _, _, progress := newTestService()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := svc.CompleteActivity(ctx, CompleteActivityInput{ScheduledActivityID: 501, UserID: 1})
		require.NoError(t, err)
	}
	_, err := svc.CompleteActivity(ctx, CompleteActivityInput{ScheduledActivityID: 502, UserID: 1})
	require.NoError(t, err)
	require.Equal(t, 3, progress.writes)

	view, err := svc.GetDayPlan(ctx, GetDayPlanInput{ProgramID: 1, Day: 1, UserID: 1})
	require.NoError(t, err)
	require.Equal(t, "Day 1 Plan", view.Title)
	require.Equal(t, 75, view.Summary.CompletionPercentage)
	require.Len(t, view.Activities, 2)
	require.Equal(t, 2, view.Activities[0].CompletedOccurrences)
	require.False(t, view.Activities[0].Completed())
	require.True(t, view.Activities[1].Completed())
}

func TestGetDayPlanEmptyDay(t *testing.T) {
	svc, _, _, _ := newTestService()

	view, err := svc.GetDayPlan(context.Background(), GetDayPlanInput{ProgramID: 1, Day: 2, UserID: 1})
	require.NoError(t, err)
	require.Empty(t, view.Activities)
	require.Zero(t, view.Summary.CompletionPercentage)
}

func TestGetDayPlanMissingDay(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.GetDayPlan(context.Background(), GetDayPlanInput{ProgramID: 1, Day: 3, UserID: 1})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetDayPlanRejectsDayBeyondProgramLength(t *testing.T) {
	svc, _, plans, _ := newTestService()
	plans.totalDays = 7

	_, err := svc.GetDayPlan(context.Background(), GetDayPlanInput{ProgramID: 1, Day: 8, UserID: 1})
	require.ErrorIs(t, err, ErrValidation)
	require.EqualError(t, err, "day must be between 1 and 7")
	require.Zero(t, plans.calls, "no day plan read past the bound")

	view, err := svc.GetDayPlan(context.Background(), GetDayPlanInput{ProgramID: 1, Day: 7, UserID: 1})
	require.NoError(t, err)
	require.Equal(t, 7, view.Day)
}

func TestGetWeeklyOverviewSortsDaysAscending(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	_, err := svc.CompleteActivity(ctx, CompleteActivityInput{ScheduledActivityID: 701, UserID: 1})
	require.NoError(t, err)

	overview, err := svc.GetWeeklyOverview(ctx, WeeklyOverviewInput{ProgramID: 1, WeekNumber: 1, UserID: 1})
	require.NoError(t, err)
	require.Len(t, overview.Days, 3)
	require.Equal(t, []int{1, 2, 7}, []int{overview.Days[0].DayNumber, overview.Days[1].DayNumber, overview.Days[2].DayNumber})
	require.Equal(t, DaySummary{DayNumber: 2}, overview.Days[1])
	require.Equal(t, 100, overview.Days[2].CompletionPercentage)
	require.Equal(t, 2, overview.Days[0].ActivitiesPlanned)
}

func TestCompleteActivityScenarioDaySeven(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	result, err := svc.CompleteActivity(ctx, CompleteActivityInput{ScheduledActivityID: 701, UserID: 1})
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.Equal(t, 1, result.CompletedOccurrences)
	require.Equal(t, 1, result.PlannedOccurrences)
	require.Equal(t, 1, result.CompletedOccurrence)

	_, err = svc.CompleteActivity(ctx, CompleteActivityInput{ScheduledActivityID: 701, UserID: 1})
	require.ErrorIs(t, err, ErrAllOccurrencesCompleted)
	require.ErrorIs(t, err, ErrValidation)
}

func TestCompleteActivityUnknownScheduledActivity(t *testing.T) {
	svc, enrollments, _, _ := newTestService()

	_, err := svc.CompleteActivity(context.Background(), CompleteActivityInput{ScheduledActivityID: 999, UserID: 1})
	require.ErrorIs(t, err, ErrNotFound)
	require.Zero(t, enrollments.calls)
}

func TestEnrollmentGateRejectsEveryEntryPoint(t *testing.T) {
	svc, _, plans, progress := newTestService()
	ctx := context.Background()
	const outsider = 2

	_, err := svc.GetDayPlan(ctx, GetDayPlanInput{ProgramID: 1, Day: 1, UserID: outsider})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.GetWeeklyOverview(ctx, WeeklyOverviewInput{ProgramID: 1, WeekNumber: 1, UserID: outsider})
	require.ErrorIs(t, err, ErrForbidden)

	require.Zero(t, plans.calls, "reads must not run after a failed gate")
	require.Zero(t, progress.calls)

	_, err = svc.CompleteActivity(ctx, CompleteActivityInput{ScheduledActivityID: 501, UserID: outsider})
	require.ErrorIs(t, err, ErrForbidden)
	require.Zero(t, progress.writes)
	require.Equal(t, 1, progress.calls, "only the scheduled activity lookup precedes the gate")
}

func TestCompleteActivityConcurrentCallsNeverExceedPlanned(t *testing.T) {
	svc, _, _, progress := newTestService()
	ctx := context.Background()
	const callers = 10

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded []int
		rejected  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.CompleteActivity(ctx, CompleteActivityInput{ScheduledActivityID: 501, UserID: 1})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, ErrAllOccurrencesCompleted)
				rejected++
				return
			}
			succeeded = append(succeeded, result.CompletedOccurrence)
		}()
	}
	wg.Wait()

	require.ElementsMatch(t, []int{1, 2, 3}, succeeded)
	require.Equal(t, callers-3, rejected)
	require.Equal(t, 3, progress.writes)
}
