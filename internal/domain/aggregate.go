package domain

import "math"

// ActivityProgress pairs a scheduled activity with the user's completed occurrence count.
type ActivityProgress struct {
	ScheduledActivity    ScheduledActivity
	CompletedOccurrences int
}

// ClampedCompleted caps the completed count at the planned ceiling. Rule changes can lower
// plannedOccurrences after some occurrences were already recorded.
func (a ActivityProgress) ClampedCompleted() int {
	return min(a.CompletedOccurrences, a.ScheduledActivity.PlannedOccurrences)
}

// Completed reports whether every planned occurrence has been recorded.
func (a ActivityProgress) Completed() bool {
	return a.ClampedCompleted() >= a.ScheduledActivity.PlannedOccurrences
}

// DaySummary is the rollup of one day's planned and completed occurrences.
type DaySummary struct {
	DayNumber            int
	ActivitiesPlanned    int
	PlannedOccurrences   int
	CompletedOccurrences int
	CompletionPercentage int
}

// SummarizeDay folds per-activity progress into a DaySummary.
func SummarizeDay(dayNumber int, activities []ActivityProgress) DaySummary {
	summary := DaySummary{DayNumber: dayNumber, ActivitiesPlanned: len(activities)}
	for _, a := range activities {
		summary.PlannedOccurrences += a.ScheduledActivity.PlannedOccurrences
		summary.CompletedOccurrences += a.ClampedCompleted()
	}
	summary.CompletionPercentage = CompletionPercentage(summary.CompletedOccurrences, summary.PlannedOccurrences)
	return summary
}

// CompletionPercentage rounds completed/planned to a whole percent; an empty day is 0%.
func CompletionPercentage(completed, planned int) int {
	if planned <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(planned)))
}

// JoinProgress attaches completed counts (keyed by scheduled activity id) to a day's activities.
func JoinProgress(activities []ScheduledActivity, completed map[int64]int) []ActivityProgress {
	out := make([]ActivityProgress, 0, len(activities))
	for _, sa := range activities {
		out = append(out, ActivityProgress{
			ScheduledActivity:    sa,
			CompletedOccurrences: completed[sa.ID],
		})
	}
	return out
}

// WeekDayRange returns the inclusive day window covered by a 1-based week number.
func WeekDayRange(weekNumber int) (startDay, endDay int) {
	startDay = (weekNumber-1)*DaysPerWeek + 1
	return startDay, startDay + DaysPerWeek - 1
}
