package seed

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vishaldhankecha/prodigy-api/internal/domain"
)

func TestWellnessProgramRulesAreValid(t *testing.T) {
	fixture := WellnessProgram()
	require.Len(t, fixture.Activities, 9)
	for i, a := range fixture.Activities {
		require.NotNil(t, a.Rule, a.Title)
		require.NoError(t, a.Rule.Validate(), a.Title)
		require.Equal(t, i+1, a.SortOrder)
	}
}

func TestWellnessProgramMaterialisedSchedule(t *testing.T) {
	fixture := WellnessProgram()
	dayPlans := make([]domain.DayPlan, 0, fixture.Program.TotalDays)
	for day := 1; day <= fixture.Program.TotalDays; day++ {
		dayPlans = append(dayPlans, domain.DayPlan{ID: int64(day), DayNumber: day, Title: DayTitle(day)})
	}
	activities := fixture.Activities
	for i := range activities {
		activities[i].ID = int64(i + 1)
	}

	desired := domain.BuildDesiredSchedule(dayPlans, activities)
	// six daily activities on every day, then 12 + 9 + 9 weekly placements
	require.Len(t, desired, 6*30+12+9+9)

	perDay := make(map[int64]int)
	for _, e := range desired {
		perDay[e.DayPlanID]++
	}
	// every weekday carries exactly one of the weekly activities
	for day := int64(1); day <= 30; day++ {
		require.Equal(t, 7, perDay[day], "day %d", day)
	}
}

func TestDayTitle(t *testing.T) {
	require.Equal(t, "Day 12 Plan", DayTitle(12))
}
