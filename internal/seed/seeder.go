package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vishaldhankecha/prodigy-api/internal/domain"
)

// Regenerator materialises a program's schedule from its rules.
type Regenerator interface {
	Regenerate(ctx context.Context, programID int64) (domain.ScheduleDiff, error)
}

// Seeder replaces all program data with a fixture.
type Seeder struct {
	pool        *pgxpool.Pool
	regenerator Regenerator
	logger      *slog.Logger
}

// NewSeeder constructs a Seeder.
func NewSeeder(pool *pgxpool.Pool, regenerator Regenerator, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{pool: pool, regenerator: regenerator, logger: logger}
}

// Run wipes programs, users, enrollments, schedules and progress, inserts the fixture with an
// ACTIVE enrollment and one day plan per program day, then materialises the schedule.
func (s *Seeder) Run(ctx context.Context, fixture Fixture) (int64, error) {
	programID, err := s.load(ctx, fixture)
	if err != nil {
		return 0, err
	}

	diff, err := s.regenerator.Regenerate(ctx, programID)
	if err != nil {
		return programID, err
	}
	s.logger.Info("seed completed",
		"program_id", programID,
		"activities", len(fixture.Activities),
		"days", fixture.Program.TotalDays,
		"scheduled", len(diff.Create),
	)
	return programID, nil
}

func (s *Seeder) load(ctx context.Context, fixture Fixture) (programID int64, err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `TRUNCATE activity_progress, program_enrollments, day_plan_activities,
        activity_schedule_rules, day_plans, activities, users, programs RESTART IDENTITY CASCADE`); err != nil {
		return 0, fmt.Errorf("reset: %w", err)
	}

	p := fixture.Program
	if err = tx.QueryRow(ctx,
		`INSERT INTO programs (name, description, total_days) VALUES ($1,$2,$3) RETURNING id`,
		p.Name, p.Description, p.TotalDays,
	).Scan(&programID); err != nil {
		return 0, fmt.Errorf("insert program: %w", err)
	}

	var userID int64
	if err = tx.QueryRow(ctx,
		`INSERT INTO users (email, name) VALUES ($1,$2) RETURNING id`,
		fixture.User.Email, fixture.User.Name,
	).Scan(&userID); err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}

	if _, err = tx.Exec(ctx,
		`INSERT INTO program_enrollments (user_id, program_id, status) VALUES ($1,$2,$3)`,
		userID, programID, string(domain.EnrollmentStatusActive),
	); err != nil {
		return 0, fmt.Errorf("insert enrollment: %w", err)
	}

	for _, a := range fixture.Activities {
		var activityID int64
		if err = tx.QueryRow(ctx,
			`INSERT INTO activities (program_id, title, category, frequency, time_mode, suggested_duration_sec, default_occurrences, sort_order)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
			programID, a.Title, a.Category, string(a.Frequency), string(a.TimeMode), a.SuggestedDurationSec, a.DefaultOccurrences, a.SortOrder,
		).Scan(&activityID); err != nil {
			return 0, fmt.Errorf("insert activity %q: %w", a.Title, err)
		}
		if a.Rule == nil {
			continue
		}
		weeklyDays := make([]int32, 0, len(a.Rule.WeeklyDays))
		for _, d := range a.Rule.WeeklyDays {
			weeklyDays = append(weeklyDays, int32(d))
		}
		if _, err = tx.Exec(ctx,
			`INSERT INTO activity_schedule_rules (activity_id, rule_type, occurrences_per_day, weekly_days) VALUES ($1,$2,$3,$4)`,
			activityID, string(a.Rule.RuleType), a.Rule.OccurrencesPerDay, weeklyDays,
		); err != nil {
			return 0, fmt.Errorf("insert rule for %q: %w", a.Title, err)
		}
	}

	rows := make([][]any, 0, p.TotalDays)
	for day := 1; day <= p.TotalDays; day++ {
		rows = append(rows, []any{programID, day, DayTitle(day)})
	}
	if _, err = tx.CopyFrom(ctx, pgx.Identifier{"day_plans"}, []string{"program_id", "day_number", "title"}, pgx.CopyFromRows(rows)); err != nil {
		return 0, fmt.Errorf("insert day plans: %w", err)
	}

	err = tx.Commit(ctx)
	return programID, err
}
