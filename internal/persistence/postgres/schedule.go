package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/vishaldhankecha/prodigy-api/internal/domain"
)

const scheduledActivityColumns = `dpa.id, dpa.day_plan_id, dpa.activity_id, dpa.planned_occurrences, dpa.sort_order, dpa.is_active,
        a.id, a.program_id, a.title, a.category, a.frequency, a.time_mode, a.suggested_duration_sec, a.default_occurrences, a.sort_order`

// GetDayPlan returns the program's plan for the day with its active scheduled activities, or nil
// when the day has no plan.
func (r *Repository) GetDayPlan(ctx context.Context, programID int64, day int) (*domain.DayPlan, error) {
	const query = `SELECT id, program_id, day_number, title FROM day_plans WHERE program_id=$1 AND day_number=$2`

	var dp domain.DayPlan
	if err := r.pool.QueryRow(ctx, query, programID, day).Scan(&dp.ID, &dp.ProgramID, &dp.DayNumber, &dp.Title); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	byDay, err := r.activeScheduledActivities(ctx, []int64{dp.ID})
	if err != nil {
		return nil, err
	}
	dp.Activities = byDay[dp.ID]
	return &dp, nil
}

// ProgramTotalDays returns the program's length in days, or 0 when the program does not exist.
func (r *Repository) ProgramTotalDays(ctx context.Context, programID int64) (int, error) {
	var totalDays int
	if err := r.pool.QueryRow(ctx, `SELECT total_days FROM programs WHERE id=$1`, programID).Scan(&totalDays); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return totalDays, nil
}

// ListDayPlans returns the plans whose day number falls in [startDay, endDay], ascending by day.
func (r *Repository) ListDayPlans(ctx context.Context, programID int64, startDay, endDay int) ([]domain.DayPlan, error) {
	const query = `SELECT id, program_id, day_number, title FROM day_plans
        WHERE program_id=$1 AND day_number BETWEEN $2 AND $3
        ORDER BY day_number`

	rows, err := r.pool.Query(ctx, query, programID, startDay, endDay)
	if err != nil {
		return nil, err
	}
	dayPlans, err := pgx.CollectRows(rows, scanDayPlan)
	if err != nil {
		return nil, err
	}
	if len(dayPlans) == 0 {
		return dayPlans, nil
	}

	ids := make([]int64, 0, len(dayPlans))
	for _, dp := range dayPlans {
		ids = append(ids, dp.ID)
	}
	byDay, err := r.activeScheduledActivities(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range dayPlans {
		dayPlans[i].Activities = byDay[dayPlans[i].ID]
	}
	return dayPlans, nil
}

func (r *Repository) activeScheduledActivities(ctx context.Context, dayPlanIDs []int64) (map[int64][]domain.ScheduledActivity, error) {
	query := `SELECT ` + scheduledActivityColumns + `
        FROM day_plan_activities dpa
        JOIN activities a ON a.id = dpa.activity_id
        WHERE dpa.day_plan_id = ANY($1) AND dpa.is_active
        ORDER BY dpa.day_plan_id, dpa.sort_order, dpa.id`

	rows, err := r.pool.Query(ctx, query, dayPlanIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]domain.ScheduledActivity, len(dayPlanIDs))
	for rows.Next() {
		var (
			sa        domain.ScheduledActivity
			frequency string
			timeMode  string
		)
		if err := rows.Scan(
			&sa.ID, &sa.DayPlanID, &sa.ActivityID, &sa.PlannedOccurrences, &sa.SortOrder, &sa.IsActive,
			&sa.Activity.ID, &sa.Activity.ProgramID, &sa.Activity.Title, &sa.Activity.Category, &frequency, &timeMode,
			&sa.Activity.SuggestedDurationSec, &sa.Activity.DefaultOccurrences, &sa.Activity.SortOrder,
		); err != nil {
			return nil, err
		}
		sa.Activity.Frequency = domain.Frequency(frequency)
		sa.Activity.TimeMode = domain.TimeMode(timeMode)
		out[sa.DayPlanID] = append(out[sa.DayPlanID], sa)
	}
	return out, rows.Err()
}

// GetScheduledActivity returns the active scheduled activity with its program, or nil.
func (r *Repository) GetScheduledActivity(ctx context.Context, scheduledActivityID int64) (*domain.ScheduledActivityRef, error) {
	const query = `SELECT dpa.id, dp.program_id, dpa.planned_occurrences
        FROM day_plan_activities dpa
        JOIN day_plans dp ON dp.id = dpa.day_plan_id
        WHERE dpa.id=$1 AND dpa.is_active`

	var ref domain.ScheduledActivityRef
	if err := r.pool.QueryRow(ctx, query, scheduledActivityID).Scan(&ref.ID, &ref.ProgramID, &ref.PlannedOccurrences); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ref, nil
}

// LoadTemplate returns the program's day plans and its activities with their scheduling rules.
func (r *Repository) LoadTemplate(ctx context.Context, programID int64) ([]domain.DayPlan, []domain.Activity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, program_id, day_number, title FROM day_plans WHERE program_id=$1 ORDER BY day_number`,
		programID)
	if err != nil {
		return nil, nil, err
	}
	dayPlans, err := pgx.CollectRows(rows, scanDayPlan)
	if err != nil {
		return nil, nil, err
	}

	const activityQuery = `SELECT a.id, a.program_id, a.title, a.category, a.frequency, a.time_mode,
            a.suggested_duration_sec, a.default_occurrences, a.sort_order,
            r.rule_type, r.occurrences_per_day, r.weekly_days
        FROM activities a
        LEFT JOIN activity_schedule_rules r ON r.activity_id = a.id
        WHERE a.program_id=$1
        ORDER BY a.sort_order, a.id`

	rows, err = r.pool.Query(ctx, activityQuery, programID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var activities []domain.Activity
	for rows.Next() {
		var (
			a           domain.Activity
			frequency   string
			timeMode    string
			ruleType    *string
			occurrences *int32
			weeklyDays  []int32
		)
		if err := rows.Scan(&a.ID, &a.ProgramID, &a.Title, &a.Category, &frequency, &timeMode,
			&a.SuggestedDurationSec, &a.DefaultOccurrences, &a.SortOrder,
			&ruleType, &occurrences, &weeklyDays); err != nil {
			return nil, nil, err
		}
		a.Frequency = domain.Frequency(frequency)
		a.TimeMode = domain.TimeMode(timeMode)
		if ruleType != nil {
			rule := &domain.SchedulingRule{RuleType: domain.RuleType(*ruleType)}
			if occurrences != nil {
				rule.OccurrencesPerDay = int(*occurrences)
			}
			for _, d := range weeklyDays {
				rule.WeeklyDays = append(rule.WeeklyDays, int(d))
			}
			a.Rule = rule
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return dayPlans, activities, nil
}

func scanDayPlan(row pgx.CollectableRow) (domain.DayPlan, error) {
	var dp domain.DayPlan
	err := row.Scan(&dp.ID, &dp.ProgramID, &dp.DayNumber, &dp.Title)
	return dp, err
}
