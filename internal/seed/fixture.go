// Package seed loads the demonstration program and materialises its schedule.
package seed

import (
	"strconv"

	"github.com/vishaldhankecha/prodigy-api/internal/domain"
)

// User is a seeded participant.
type User struct {
	Email string
	Name  string
}

// Fixture is a program template together with the participant enrolled in it.
type Fixture struct {
	Program    domain.Program
	User       User
	Activities []domain.Activity
}

// DayTitle is the title given to seeded day plans.
func DayTitle(day int) string {
	return "Day " + strconv.Itoa(day) + " Plan"
}

// WellnessProgram is the 30 day program used for local development and demos.
func WellnessProgram() Fixture {
	return Fixture{
		Program: domain.Program{
			Name:        "30-Day Wellness Program",
			Description: "A month-long plan with rule-driven activity scheduling.",
			TotalDays:   30,
		},
		User: User{Email: "test.user@prodigy.local", Name: "Test User"},
		Activities: []domain.Activity{
			template("Advanced Mobility Exercises", "Athleticism", domain.FrequencyMaximize, domain.TimeModeMax, 300, 1, daily(3)),
			template("Knowledge Boosters (Follow daily plans)", "Boosters", domain.FrequencyDaily2x, domain.TimeModeSec30, 30, 2, daily(2)),
			template("Visual Solfege", "Music", domain.FrequencyDaily1x, domain.TimeModeSec30, 30, 3, daily(1)),
			template("Auditory Memory (Song 2)", "Memory", domain.FrequencyDaily1x, domain.TimeModeSec30, 30, 4, daily(1)),
			template("Auditory Magic (Set 2)", "Creativity", domain.FrequencyDaily2x, domain.TimeModeSec60, 60, 5, daily(2)),
			template("Talk, To Listen", "Languages", domain.FrequencyDaily1x, domain.TimeModeSec60, 60, 6, daily(1)),
			template("Finger Skills", "Athleticism", domain.FrequencyWeekly3x, domain.TimeModeSec60, 60, 7, weekly(3, 6, 7)),
			template("Stimulus Explosion", "Creativity", domain.FrequencyWeekly2x, domain.TimeModeSec60, 60, 8, weekly(2, 5)),
			template("Foundations of Logic", "Logic", domain.FrequencyWeekly2x, domain.TimeModeSec60, 60, 9, weekly(1, 4)),
		},
	}
}

func template(title, category string, frequency domain.Frequency, timeMode domain.TimeMode, durationSec, sortOrder int, rule domain.SchedulingRule) domain.Activity {
	return domain.Activity{
		Title:                title,
		Category:             category,
		Frequency:            frequency,
		TimeMode:             timeMode,
		SuggestedDurationSec: durationSec,
		DefaultOccurrences:   rule.OccurrencesPerDay,
		SortOrder:            sortOrder,
		Rule:                 &rule,
	}
}

func daily(perDay int) domain.SchedulingRule {
	return domain.SchedulingRule{RuleType: domain.RuleTypeDaily, OccurrencesPerDay: perDay}
}

func weekly(days ...int) domain.SchedulingRule {
	return domain.SchedulingRule{RuleType: domain.RuleTypeWeekly, OccurrencesPerDay: 1, WeeklyDays: days}
}
