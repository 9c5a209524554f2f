package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vishaldhankecha/prodigy-api/internal/domain"
	"github.com/vishaldhankecha/prodigy-api/internal/events"
	"github.com/vishaldhankecha/prodigy-api/internal/observability"
)

// ApplySchedule locks the program's scheduled activities, diffs them against desired and applies
// the result in one transaction. An empty diff writes nothing.
func (r *Repository) ApplySchedule(ctx context.Context, programID int64, desired []domain.DesiredEntry) (diff domain.ScheduleDiff, err error) {
	start := time.Now()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.ScheduleDiff{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	existing, err := lockExistingSchedule(ctx, tx, programID)
	if err != nil {
		return domain.ScheduleDiff{}, classify(err)
	}

	diff = domain.DiffSchedule(desired, existing)
	if diff.Empty() {
		err = tx.Commit(ctx)
		return diff, err
	}

	if err = applyDiff(ctx, tx, diff); err != nil {
		return domain.ScheduleDiff{}, classify(err)
	}

	runID := uuid.NewString()
	if err = r.insertOutbox(ctx, tx, outboxRecord{
		AggregateType: "program",
		AggregateID:   strconv.FormatInt(programID, 10),
		EventType:     events.TypeScheduleRegenerated,
		PartitionKey:  strconv.FormatInt(programID, 10),
		DedupeKey:     runID + ":" + events.TypeScheduleRegenerated,
		Payload: events.ScheduleRegenerated{
			ProgramID:  programID,
			RunID:      runID,
			Created:    len(diff.Create),
			Updated:    len(diff.Update),
			Retired:    len(diff.Retire),
			Deleted:    len(diff.Delete),
			OccurredAt: time.Now().UTC(),
		},
	}); err != nil {
		return domain.ScheduleDiff{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.ScheduleDiff{}, classify(err)
	}
	observability.RecordScheduleMutations(len(diff.Create), len(diff.Update), len(diff.Retire), len(diff.Delete), time.Since(start))
	return diff, nil
}

// lockExistingSchedule takes row locks on every scheduled activity of the program before counting
// progress, so no completion can land on a row between the count and the diff being applied.
func lockExistingSchedule(ctx context.Context, tx pgx.Tx, programID int64) ([]domain.ExistingEntry, error) {
	const lockQuery = `SELECT dpa.id, dpa.day_plan_id, dpa.activity_id, dpa.planned_occurrences, dpa.sort_order, dpa.is_active
        FROM day_plan_activities dpa
        JOIN day_plans dp ON dp.id = dpa.day_plan_id
        WHERE dp.program_id=$1
        ORDER BY dpa.id
        FOR UPDATE OF dpa`

	rows, err := tx.Query(ctx, lockQuery, programID)
	if err != nil {
		return nil, err
	}
	existing, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ExistingEntry, error) {
		var e domain.ExistingEntry
		err := row.Scan(&e.ID, &e.DayPlanID, &e.ActivityID, &e.PlannedOccurrences, &e.SortOrder, &e.IsActive)
		return e, err
	})
	if err != nil || len(existing) == 0 {
		return existing, err
	}

	ids := make([]int64, 0, len(existing))
	for _, e := range existing {
		ids = append(ids, e.ID)
	}
	rows, err = tx.Query(ctx,
		`SELECT day_plan_activity_id, COUNT(*) FROM activity_progress WHERE day_plan_activity_id = ANY($1) GROUP BY day_plan_activity_id`,
		ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var (
			id    int64
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range existing {
		existing[i].ProgressCount = counts[existing[i].ID]
	}
	return existing, nil
}

func applyDiff(ctx context.Context, tx pgx.Tx, diff domain.ScheduleDiff) error {
	batch := &pgx.Batch{}
	for _, c := range diff.Create {
		batch.Queue(`INSERT INTO day_plan_activities (day_plan_id, activity_id, planned_occurrences, sort_order, is_active)
            VALUES ($1,$2,$3,$4,TRUE)`,
			c.DayPlanID, c.ActivityID, c.PlannedOccurrences, c.SortOrder)
	}
	for _, u := range diff.Update {
		batch.Queue(`UPDATE day_plan_activities SET planned_occurrences=$2, sort_order=$3, is_active=TRUE, updated_at=NOW() WHERE id=$1`,
			u.ID, u.PlannedOccurrences, u.SortOrder)
	}
	if len(diff.Retire) > 0 {
		batch.Queue(`UPDATE day_plan_activities SET is_active=FALSE, updated_at=NOW() WHERE id = ANY($1)`, diff.Retire)
	}
	if len(diff.Delete) > 0 {
		batch.Queue(`DELETE FROM day_plan_activities WHERE id = ANY($1)`, diff.Delete)
	}

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return err
		}
	}
	return results.Close()
}
