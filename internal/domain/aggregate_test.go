package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func scheduled(id int64, planned int) ScheduledActivity {
	return ScheduledActivity{ID: id, PlannedOccurrences: planned, IsActive: true}
}

func TestSummarizeDayRoundsPercentage(t *testing.T) {
	activities := JoinProgress(
		[]ScheduledActivity{scheduled(1, 3), scheduled(2, 1)},
		map[int64]int{1: 2, 2: 1},
	)

	summary := SummarizeDay(4, activities)
	require.Equal(t, 75, summary.CompletionPercentage)
	require.Equal(t, 4, summary.PlannedOccurrences)
	require.Equal(t, 3, summary.CompletedOccurrences)
	require.Equal(t, 2, summary.ActivitiesPlanned)
	require.False(t, activities[0].Completed())
	require.True(t, activities[1].Completed())
}

func TestSummarizeDayWithoutActivitiesIsZero(t *testing.T) {
	summary := SummarizeDay(12, nil)
	require.Equal(t, DaySummary{DayNumber: 12}, summary)
}

func TestSummarizeDayClampsOverCompletion(t *testing.T) {
	// planned was lowered from 3 to 1 after three occurrences were recorded
	activities := JoinProgress(
		[]ScheduledActivity{scheduled(1, 1), scheduled(2, 2)},
		map[int64]int{1: 3},
	)

	summary := SummarizeDay(1, activities)
	require.Equal(t, 1, summary.CompletedOccurrences)
	require.Equal(t, 33, summary.CompletionPercentage)
	require.Equal(t, 1, activities[0].ClampedCompleted())
	require.True(t, activities[0].Completed())
}

func TestCompletionPercentageRoundsHalfUp(t *testing.T) {
	require.Equal(t, 0, CompletionPercentage(0, 0))
	require.Equal(t, 50, CompletionPercentage(1, 2))
	require.Equal(t, 67, CompletionPercentage(2, 3))
	require.Equal(t, 13, CompletionPercentage(1, 8)) // 12.5
	require.Equal(t, 100, CompletionPercentage(5, 5))
}

func TestWeekDayRange(t *testing.T) {
	start, end := WeekDayRange(1)
	require.Equal(t, []int{1, 7}, []int{start, end})
	start, end = WeekDayRange(5)
	require.Equal(t, []int{29, 35}, []int{start, end})
}
