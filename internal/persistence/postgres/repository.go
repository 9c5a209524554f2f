// Package postgres implements the program, schedule and progress stores on top of pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vishaldhankecha/prodigy-api/internal/domain"
	"github.com/vishaldhankecha/prodigy-api/internal/events"
)

const defaultLockTimeout = 5 * time.Second

// Option configures optional Repository behaviour.
type Option func(*Repository)

// WithLockTimeout bounds how long a completion waits for the scheduled activity row lock.
func WithLockTimeout(timeout time.Duration) Option {
	return func(r *Repository) {
		if timeout > 0 {
			r.lockTimeout = timeout
		}
	}
}

// Repository provides Postgres-backed persistence for programs, schedules, progress and outbox events.
type Repository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool, opts ...Option) *Repository {
	r := &Repository{pool: pool, lockTimeout: defaultLockTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsEnrolled reports whether the user holds an ACTIVE enrollment in the program.
func (r *Repository) IsEnrolled(ctx context.Context, userID, programID int64) (bool, error) {
	const query = `SELECT status FROM program_enrollments WHERE user_id=$1 AND program_id=$2`

	var status string
	if err := r.pool.QueryRow(ctx, query, userID, programID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return domain.EnrollmentStatus(status) == domain.EnrollmentStatusActive, nil
}

// ListProgramIDs returns every program id in ascending order.
func (r *Repository) ListProgramIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM programs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// outboxRecord is one event routed through the outbox table.
type outboxRecord struct {
	AggregateType string
	AggregateID   string
	EventType     string
	PartitionKey  string
	DedupeKey     string
	Payload       any
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, record outboxRecord) error {
	body, err := json.Marshal(record.Payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[record.EventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", record.EventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		record.AggregateType,
		record.AggregateID,
		record.EventType,
		meta.Topic,
		meta.SchemaSubject,
		record.PartitionKey,
		body,
		record.DedupeKey,
	)
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeOccurrenceCompleted: {
		Topic:         "progress_events",
		SchemaSubject: "progress_events-value",
	},
	events.TypeScheduleRegenerated: {
		Topic:         "schedule_events",
		SchemaSubject: "schedule_events-value",
	},
}
