package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vishaldhankecha/prodigy-api/internal/domain"
	"github.com/vishaldhankecha/prodigy-api/internal/events"
	"github.com/vishaldhankecha/prodigy-api/internal/observability"
)

// CountCompletions returns the number of recorded occurrences per scheduled activity id.
// Ids without progress are absent from the result.
func (r *Repository) CountCompletions(ctx context.Context, userID int64, scheduledActivityIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(scheduledActivityIDs))
	if len(scheduledActivityIDs) == 0 {
		return counts, nil
	}

	const query = `SELECT day_plan_activity_id, COUNT(*) FROM activity_progress
        WHERE user_id=$1 AND day_plan_activity_id = ANY($2)
        GROUP BY day_plan_activity_id`

	rows, err := r.pool.Query(ctx, query, userID, scheduledActivityIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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
	return counts, rows.Err()
}

// CompleteNextOccurrence records occurrence count+1 for the user while holding a row lock on the
// scheduled activity, so concurrent callers for the same activity are serialised. The ceiling is
// the smaller of plannedOccurrences and the value read under the lock. It returns nil when the
// ceiling is already reached.
func (r *Repository) CompleteNextOccurrence(ctx context.Context, userID, scheduledActivityID int64, plannedOccurrences int) (completion *domain.Completion, err error) {
	// READ COMMITTED takes a fresh snapshot per statement, so the count below sees every
	// occurrence committed by the previous lock holder.
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil || completion == nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", strconv.FormatInt(r.lockTimeout.Milliseconds(), 10)+"ms"); err != nil {
		return nil, err
	}

	const lockQuery = `SELECT dp.program_id, dpa.planned_occurrences
        FROM day_plan_activities dpa
        JOIN day_plans dp ON dp.id = dpa.day_plan_id
        WHERE dpa.id=$1 AND dpa.is_active
        FOR UPDATE OF dpa`

	var (
		programID     int64
		lockedPlanned int
	)
	if err = tx.QueryRow(ctx, lockQuery, scheduledActivityID).Scan(&programID, &lockedPlanned); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// retired or deleted between the lookup and the lock
			err = domain.ErrScheduledActivityNotFound
			return nil, err
		}
		err = r.rejectRetryable(err)
		return nil, err
	}

	ceiling := lockedPlanned
	if plannedOccurrences > 0 && plannedOccurrences < ceiling {
		ceiling = plannedOccurrences
	}

	var count int
	if err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM activity_progress WHERE user_id=$1 AND day_plan_activity_id=$2`,
		userID, scheduledActivityID,
	).Scan(&count); err != nil {
		err = r.rejectRetryable(err)
		return nil, err
	}
	if count >= ceiling {
		observability.RecordCompletionRejected(observability.RejectAllCompleted)
		return nil, nil
	}

	occurrence := count + 1
	var completedAt time.Time
	if err = tx.QueryRow(ctx,
		`INSERT INTO activity_progress (user_id, day_plan_activity_id, occurrence_number) VALUES ($1,$2,$3) RETURNING completed_at`,
		userID, scheduledActivityID, occurrence,
	).Scan(&completedAt); err != nil {
		if isUniqueViolation(err) {
			observability.RecordCompletionRejected(observability.RejectRace)
			return nil, nil
		}
		err = r.rejectRetryable(err)
		return nil, err
	}

	progress := domain.Progress{
		UserID:              userID,
		ScheduledActivityID: scheduledActivityID,
		OccurrenceNumber:    occurrence,
		CompletedAt:         completedAt.UTC(),
	}

	if err = r.insertOutbox(ctx, tx, outboxRecord{
		AggregateType: "day_plan_activity",
		AggregateID:   strconv.FormatInt(scheduledActivityID, 10),
		EventType:     events.TypeOccurrenceCompleted,
		PartitionKey:  fmt.Sprintf("%d:%d", programID, userID),
		DedupeKey:     fmt.Sprintf("%d:%d:%d:%s", userID, scheduledActivityID, occurrence, events.TypeOccurrenceCompleted),
		Payload: events.OccurrenceCompleted{
			UserID:               userID,
			ProgramID:            programID,
			DayPlanActivityID:    scheduledActivityID,
			OccurrenceNumber:     occurrence,
			CompletedOccurrences: occurrence,
			PlannedOccurrences:   ceiling,
			CompletedAt:          progress.CompletedAt,
		},
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		err = r.rejectRetryable(err)
		return nil, err
	}
	observability.RecordCompletion(progress.CompletedAt)

	return &domain.Completion{
		Progress:             progress,
		CompletedOccurrences: occurrence,
		PlannedOccurrences:   ceiling,
	}, nil
}

func (r *Repository) rejectRetryable(err error) error {
	classified := classify(err)
	if errors.Is(classified, domain.ErrRetryable) {
		observability.RecordCompletionRejected(observability.RejectRetryable)
	}
	return classified
}
