package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func queueDeadLetter(batch *pgx.Batch, msg Message, reason string) {
	batch.Queue(`INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		msg.EventID, msg.EventType, msg.Topic, msg.Payload, reason, msg.AggregateType, msg.AggregateID, msg.SchemaSubject, msg.PartitionKey, msg.Attempt,
	)
}

// Replayer moves dead-lettered events back into the outbox for another delivery attempt and
// quarantines entries that keep failing.
type Replayer struct {
	pool       *pgxpool.Pool
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// NewReplayer constructs a Replayer. Non-positive limits fall back to 5 retries and a one minute
// base delay.
func NewReplayer(pool *pgxpool.Pool, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *Replayer {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Replayer{pool: pool, maxRetries: maxRetries, baseDelay: baseDelay, logger: logger}
}

// RunOnce processes up to batchSize due DLQ entries and returns how many were requeued.
func (r *Replayer) RunOnce(ctx context.Context, batchSize int) (int, error) {
	const query = `SELECT dlq_id, event_id, event_type, topic, payload, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count
        FROM outbox_dlq
        WHERE quarantined_at IS NULL AND (next_retry_at IS NULL OR next_retry_at <= NOW())
        ORDER BY created_at, dlq_id
        LIMIT $1`

	rows, err := r.pool.Query(ctx, query, batchSize)
	if err != nil {
		return 0, err
	}
	entries, err := pgx.CollectRows(rows, scanDLQEntry)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, entry := range entries {
		ok, entryErr := r.handleEntry(ctx, entry)
		if entryErr != nil {
			err = errors.Join(err, fmt.Errorf("dlq entry %d: %w", entry.ID, entryErr))
			continue
		}
		if ok {
			requeued++
		}
	}
	r.updateBacklog(ctx)
	return requeued, err
}

// handleEntry requeues or quarantines one entry. It reports whether the entry went back to the outbox.
func (r *Replayer) handleEntry(ctx context.Context, entry dlqEntry) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if entry.RetryCount >= r.maxRetries {
		if _, err := tx.Exec(ctx,
			`UPDATE outbox_dlq SET quarantined_at=NOW(), quarantine_reason=$1 WHERE dlq_id=$2`,
			"retry limit reached", entry.ID,
		); err != nil {
			return false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return false, err
		}
		dlqQuarantinedCounter.WithLabelValues(entry.Topic, entry.EventType).Inc()
		r.logger.Warn("dlq entry quarantined", "dlq_id", entry.ID, "event_type", entry.EventType, "retries", entry.RetryCount)
		return false, nil
	}

	if requeueErr := requeueOutbox(ctx, tx, entry); requeueErr != nil {
		// the failed insert aborted tx, so the retry bookkeeping runs outside it
		tx.Rollback(ctx)
		return false, r.scheduleRetry(ctx, entry, requeueErr)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM outbox_dlq WHERE dlq_id=$1`, entry.ID); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	dlqRequeuedCounter.WithLabelValues(entry.Topic, entry.EventType).Inc()
	return true, nil
}

func (r *Replayer) scheduleRetry(ctx context.Context, entry dlqEntry, cause error) error {
	next := time.Now().Add(r.backoffDelay(entry.RetryCount + 1))
	if _, err := r.pool.Exec(ctx,
		`UPDATE outbox_dlq
            SET retry_count = retry_count + 1, last_attempt_at = NOW(), next_retry_at = $1, reason = $2
          WHERE dlq_id = $3`,
		next, cause.Error(), entry.ID,
	); err != nil {
		return err
	}
	dlqRetryCounter.WithLabelValues(entry.Topic, entry.EventType).Inc()
	r.logger.Info("dlq retry scheduled", "dlq_id", entry.ID, "next_retry_at", next, "error", cause)
	return nil
}

// backoffDelay doubles the base delay per attempt, capped at one hour.
func (r *Replayer) backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 12 {
		return time.Hour
	}
	delay := time.Duration(1<<uint(attempt-1)) * r.baseDelay
	if delay > time.Hour {
		delay = time.Hour
	}
	return delay
}

func (r *Replayer) updateBacklog(ctx context.Context) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&count); err != nil {
		return
	}
	dlqBacklogGauge.Set(float64(count))
}

// requeueOutbox reinserts the payload as a fresh outbox row carrying the next attempt number, which
// a further delivery failure copies back into outbox_dlq.retry_count. The dedupe key is derived from
// the DLQ entry since the original row keeps its own.
func requeueOutbox(ctx context.Context, tx pgx.Tx, entry dlqEntry) error {
	if entry.SchemaSubject == "" {
		return fmt.Errorf("missing schema_subject for dlq entry %d", entry.ID)
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key, attempt)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		entry.AggregateType, entry.AggregateID, entry.EventType, entry.Topic, entry.SchemaSubject, entry.PartitionKey, entry.Payload,
		fmt.Sprintf("dlq:%d:%d", entry.ID, entry.RetryCount), entry.RetryCount+1,
	)
	return err
}

type dlqEntry struct {
	ID            int64
	EventID       int64
	EventType     string
	Topic         string
	Payload       []byte
	AggregateType string
	AggregateID   string
	SchemaSubject string
	PartitionKey  string
	RetryCount    int
}

func scanDLQEntry(row pgx.CollectableRow) (dlqEntry, error) {
	var e dlqEntry
	err := row.Scan(&e.ID, &e.EventID, &e.EventType, &e.Topic, &e.Payload, &e.AggregateType, &e.AggregateID, &e.SchemaSubject, &e.PartitionKey, &e.RetryCount)
	return e, err
}
