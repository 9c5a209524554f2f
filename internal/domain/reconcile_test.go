package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func dailyActivity(id int64, perDay, sortOrder int) Activity {
	return Activity{ID: id, SortOrder: sortOrder, Rule: &SchedulingRule{RuleType: RuleTypeDaily, OccurrencesPerDay: perDay}}
}

func weeklyActivity(id int64, sortOrder int, days ...int) Activity {
	return Activity{ID: id, SortOrder: sortOrder, Rule: &SchedulingRule{RuleType: RuleTypeWeekly, OccurrencesPerDay: 1, WeeklyDays: days}}
}

func dayPlans(n int) []DayPlan {
	out := make([]DayPlan, 0, n)
	for day := 1; day <= n; day++ {
		out = append(out, DayPlan{ID: int64(100 + day), DayNumber: day})
	}
	return out
}

func TestBuildDesiredScheduleOmitsZeroDays(t *testing.T) {
	activities := []Activity{
		dailyActivity(1, 3, 1),
		weeklyActivity(2, 2, 3, 6, 7),
		{ID: 3, SortOrder: 3},
	}

	desired := BuildDesiredSchedule(dayPlans(7), activities)

	require.Len(t, desired, 7+3)
	for _, entry := range desired {
		require.NotEqual(t, int64(3), entry.ActivityID, "activity without rule must not be scheduled")
		require.Positive(t, entry.PlannedOccurrences)
	}
	require.Contains(t, desired, DesiredEntry{DayPlanID: 107, ActivityID: 2, PlannedOccurrences: 1, SortOrder: 2})
	require.NotContains(t, desired, DesiredEntry{DayPlanID: 101, ActivityID: 2, PlannedOccurrences: 1, SortOrder: 2})
}

func TestDiffScheduleCreatesEverythingOnEmptyStore(t *testing.T) {
	desired := BuildDesiredSchedule(dayPlans(3), []Activity{dailyActivity(1, 2, 1)})

	diff := DiffSchedule(desired, nil)
	require.Equal(t, desired, diff.Create)
	require.Empty(t, diff.Update)
	require.Empty(t, diff.Retire)
	require.Empty(t, diff.Delete)
	require.Equal(t, 3, diff.Mutations())
}

func TestDiffScheduleIsIdempotent(t *testing.T) {
	desired := BuildDesiredSchedule(dayPlans(14), []Activity{dailyActivity(1, 2, 1), weeklyActivity(2, 2, 1, 4)})
	existing := applyDiffInMemory(nil, DiffSchedule(desired, nil))

	second := DiffSchedule(desired, existing)
	require.True(t, second.Empty(), "unexpected mutations: %+v", second)
}

func TestDiffScheduleUpdatesChangedAndReactivatesRetired(t *testing.T) {
	desired := []DesiredEntry{
		{DayPlanID: 1, ActivityID: 1, PlannedOccurrences: 2, SortOrder: 1},
		{DayPlanID: 1, ActivityID: 2, PlannedOccurrences: 1, SortOrder: 2},
		{DayPlanID: 1, ActivityID: 3, PlannedOccurrences: 1, SortOrder: 3},
	}
	existing := []ExistingEntry{
		{ID: 10, DayPlanID: 1, ActivityID: 1, PlannedOccurrences: 3, SortOrder: 1, IsActive: true},
		{ID: 11, DayPlanID: 1, ActivityID: 2, PlannedOccurrences: 1, SortOrder: 2, IsActive: false, ProgressCount: 1},
		{ID: 12, DayPlanID: 1, ActivityID: 3, PlannedOccurrences: 1, SortOrder: 3, IsActive: true},
	}

	diff := DiffSchedule(desired, existing)
	require.Empty(t, diff.Create)
	require.Equal(t, []ScheduleUpdate{
		{ID: 10, PlannedOccurrences: 2, SortOrder: 1},
		{ID: 11, PlannedOccurrences: 1, SortOrder: 2},
	}, diff.Update)
	require.Empty(t, diff.Retire)
	require.Empty(t, diff.Delete)
}

func TestDiffScheduleRetiresRowsWithProgressAndDeletesTheRest(t *testing.T) {
	existing := []ExistingEntry{
		{ID: 21, DayPlanID: 1, ActivityID: 1, PlannedOccurrences: 1, IsActive: true, ProgressCount: 2},
		{ID: 20, DayPlanID: 2, ActivityID: 1, PlannedOccurrences: 1, IsActive: true},
		{ID: 22, DayPlanID: 3, ActivityID: 1, PlannedOccurrences: 1, IsActive: false, ProgressCount: 1},
		{ID: 23, DayPlanID: 4, ActivityID: 1, PlannedOccurrences: 1, IsActive: false},
	}

	diff := DiffSchedule(nil, existing)
	require.Equal(t, []int64{21}, diff.Retire, "already retired rows are left alone")
	require.Equal(t, []int64{20, 23}, diff.Delete)
	require.Empty(t, diff.Create)
	require.Empty(t, diff.Update)
}

// applyDiffInMemory mirrors what the Postgres apply does, assigning ids to created rows.
func applyDiffInMemory(existing []ExistingEntry, diff ScheduleDiff) []ExistingEntry {
	deleted := make(map[int64]bool)
	for _, id := range diff.Delete {
		deleted[id] = true
	}
	retired := make(map[int64]bool)
	for _, id := range diff.Retire {
		retired[id] = true
	}
	updates := make(map[int64]ScheduleUpdate)
	for _, u := range diff.Update {
		updates[u.ID] = u
	}

	var nextID int64 = 1
	out := make([]ExistingEntry, 0, len(existing)+len(diff.Create))
	for _, row := range existing {
		if row.ID >= nextID {
			nextID = row.ID + 1
		}
		if deleted[row.ID] {
			continue
		}
		if retired[row.ID] {
			row.IsActive = false
		}
		if u, ok := updates[row.ID]; ok {
			row.PlannedOccurrences = u.PlannedOccurrences
			row.SortOrder = u.SortOrder
			row.IsActive = true
		}
		out = append(out, row)
	}
	for _, c := range diff.Create {
		out = append(out, ExistingEntry{
			ID:                 nextID,
			DayPlanID:          c.DayPlanID,
			ActivityID:         c.ActivityID,
			PlannedOccurrences: c.PlannedOccurrences,
			SortOrder:          c.SortOrder,
			IsActive:           true,
		})
		nextID++
	}
	return out
}
