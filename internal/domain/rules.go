package domain

import "slices"

// RuleType selects how a SchedulingRule recurs across program days.
type RuleType string

const (
	RuleTypeDaily  RuleType = "DAILY"
	RuleTypeWeekly RuleType = "WEEKLY"
)

// DaysPerWeek is the recurrence period for weekly rules, counted from day 1 of the program.
const DaysPerWeek = 7

// SchedulingRule is the recurrence rule attached one-to-one to an Activity.
type SchedulingRule struct {
	RuleType          RuleType
	OccurrencesPerDay int
	// WeeklyDays holds 1-based positions within the 7-day cycle. Ignored for DAILY rules.
	WeeklyDays []int
}

// Validate reports whether the rule satisfies its structural invariants.
func (r SchedulingRule) Validate() error {
	if r.OccurrencesPerDay < 1 {
		return Validationf("occurrencesPerDay must be positive, got %d", r.OccurrencesPerDay)
	}
	switch r.RuleType {
	case RuleTypeDaily:
		return nil
	case RuleTypeWeekly:
		if len(r.WeeklyDays) == 0 {
			return Validationf("weekly rule requires at least one weekly day")
		}
		for _, d := range r.WeeklyDays {
			if d < 1 || d > DaysPerWeek {
				return Validationf("weekly day %d outside 1..%d", d, DaysPerWeek)
			}
		}
		return nil
	default:
		return Validationf("unknown rule type %q", r.RuleType)
	}
}

// DayInWeek maps a 1-based program day onto its 1-based position in the 7-day cycle.
func DayInWeek(dayNumber int) int {
	return ((dayNumber - 1) % DaysPerWeek) + 1
}

// PlannedOccurrences returns how many occurrences the rule schedules on dayNumber.
// Zero means the activity is not scheduled that day.
func PlannedOccurrences(dayNumber int, rule SchedulingRule) int {
	switch rule.RuleType {
	case RuleTypeDaily:
		return rule.OccurrencesPerDay
	case RuleTypeWeekly:
		if slices.Contains(rule.WeeklyDays, DayInWeek(dayNumber)) {
			return rule.OccurrencesPerDay
		}
	}
	return 0
}
