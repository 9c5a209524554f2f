package domain

import (
	"cmp"
	"slices"
)

// ScheduleKey identifies a scheduled activity by its natural key.
type ScheduleKey struct {
	DayPlanID  int64
	ActivityID int64
}

// DesiredEntry is one (day plan, activity) pair the current rules schedule.
type DesiredEntry struct {
	DayPlanID          int64
	ActivityID         int64
	PlannedOccurrences int
	SortOrder          int
}

// Key returns the natural key of the entry.
func (e DesiredEntry) Key() ScheduleKey {
	return ScheduleKey{DayPlanID: e.DayPlanID, ActivityID: e.ActivityID}
}

// ExistingEntry is a persisted scheduled activity annotated with its progress row count.
type ExistingEntry struct {
	ID                 int64
	DayPlanID          int64
	ActivityID         int64
	PlannedOccurrences int
	SortOrder          int
	IsActive           bool
	ProgressCount      int
}

// Key returns the natural key of the entry.
func (e ExistingEntry) Key() ScheduleKey {
	return ScheduleKey{DayPlanID: e.DayPlanID, ActivityID: e.ActivityID}
}

// ScheduleUpdate rewrites an existing row and marks it active.
type ScheduleUpdate struct {
	ID                 int64
	PlannedOccurrences int
	SortOrder          int
}

// ScheduleDiff is the set of mutations that moves the persisted schedule to the desired one.
type ScheduleDiff struct {
	Create []DesiredEntry
	Update []ScheduleUpdate
	// Retire lists ids of rows with progress history that leave the schedule; they are deactivated.
	Retire []int64
	// Delete lists ids of rows without progress that leave the schedule.
	Delete []int64
}

// Mutations returns the number of row writes the diff implies.
func (d ScheduleDiff) Mutations() int {
	return len(d.Create) + len(d.Update) + len(d.Retire) + len(d.Delete)
}

// Empty reports whether applying the diff would change nothing.
func (d ScheduleDiff) Empty() bool {
	return d.Mutations() == 0
}

// BuildDesiredSchedule evaluates every activity rule against every day plan. Pairs that
// evaluate to zero occurrences are omitted. Activities without a rule are never scheduled.
func BuildDesiredSchedule(dayPlans []DayPlan, activities []Activity) []DesiredEntry {
	desired := make([]DesiredEntry, 0, len(dayPlans)*len(activities))
	for _, dp := range dayPlans {
		for _, activity := range activities {
			if activity.Rule == nil {
				continue
			}
			planned := PlannedOccurrences(dp.DayNumber, *activity.Rule)
			if planned == 0 {
				continue
			}
			desired = append(desired, DesiredEntry{
				DayPlanID:          dp.ID,
				ActivityID:         activity.ID,
				PlannedOccurrences: planned,
				SortOrder:          activity.SortOrder,
			})
		}
	}
	return desired
}

// DiffSchedule compares the desired set against the persisted rows. Rows already matching the
// desired state produce no mutation, so diffing the result of a previous apply yields an empty diff.
func DiffSchedule(desired []DesiredEntry, existing []ExistingEntry) ScheduleDiff {
	byKey := make(map[ScheduleKey]ExistingEntry, len(existing))
	for _, row := range existing {
		byKey[row.Key()] = row
	}

	var diff ScheduleDiff
	wanted := make(map[ScheduleKey]struct{}, len(desired))
	for _, entry := range desired {
		key := entry.Key()
		if _, dup := wanted[key]; dup {
			continue
		}
		wanted[key] = struct{}{}

		row, ok := byKey[key]
		if !ok {
			diff.Create = append(diff.Create, entry)
			continue
		}
		if row.IsActive && row.PlannedOccurrences == entry.PlannedOccurrences && row.SortOrder == entry.SortOrder {
			continue
		}
		diff.Update = append(diff.Update, ScheduleUpdate{
			ID:                 row.ID,
			PlannedOccurrences: entry.PlannedOccurrences,
			SortOrder:          entry.SortOrder,
		})
	}

	for _, row := range existing {
		if _, ok := wanted[row.Key()]; ok {
			continue
		}
		switch {
		case row.ProgressCount == 0:
			diff.Delete = append(diff.Delete, row.ID)
		case row.IsActive:
			diff.Retire = append(diff.Retire, row.ID)
		}
	}

	slices.SortFunc(diff.Update, func(a, b ScheduleUpdate) int { return cmp.Compare(a.ID, b.ID) })
	slices.Sort(diff.Retire)
	slices.Sort(diff.Delete)
	return diff
}
