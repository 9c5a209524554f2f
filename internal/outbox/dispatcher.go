// Package outbox delivers events recorded in the outbox table to Kafka.
package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Option configures optional Dispatcher behaviour.
type Option func(*Dispatcher)

// WithLogger overrides the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// Dispatcher drains the outbox table and delivers events to Kafka using Schema Registry metadata.
type Dispatcher struct {
	pool             *pgxpool.Pool
	producer         messageWriter
	registry         schemaRegistrar
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	schemaIDCache    sync.Map
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool *pgxpool.Pool, producer messageWriter, registry schemaRegistrar, pollInterval time.Duration, batchSize int, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		pool:             pool,
		producer:         producer,
		registry:         registry,
		logger:           slog.Default(),
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the polling loop. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("outbox dispatcher error", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until the polling loop has stopped.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	start := time.Now()

	messages, err := d.fetchAndClaim(ctx)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	result := d.deliver(ctx, messages)
	if len(result.failed) > 0 {
		d.logger.Warn("outbox delivery failure",
			"failed", len(result.failed),
			"delivered", len(result.delivered),
			"reason", result.failed[0].reason)
	}
	if err := d.settle(ctx, result); err != nil {
		return err
	}

	deliveredCounter.Add(float64(len(result.delivered)))
	failedCounter.Add(float64(len(result.failed)))
	for _, f := range result.failed {
		dlqCounter.WithLabelValues(f.msg.Topic).Inc()
	}
	return nil
}

func (d *Dispatcher) fetchAndClaim(ctx context.Context) (messages []Message, err error) {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil || len(messages) == 0 {
			tx.Rollback(ctx)
		}
	}()

	const query = `SELECT event_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, attempt
        FROM outbox
        WHERE published_at IS NULL
        ORDER BY event_id
        LIMIT $1
        FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, d.batchSize)
	if err != nil {
		return nil, err
	}
	messages, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
		var msg Message
		err := row.Scan(&msg.EventID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Topic, &msg.SchemaSubject, &msg.PartitionKey, &msg.Payload, &msg.Attempt)
		return msg, err
	})
	if err != nil || len(messages) == 0 {
		return nil, err
	}

	ids := make([]int64, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.EventID)
	}
	if _, err = tx.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() WHERE event_id = ANY($1)`, ids); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return messages, nil
}

// deliveryResult partitions a claimed batch into events Kafka accepted and events bound for the DLQ.
type deliveryResult struct {
	delivered []Message
	failed    []failedMessage
}

type failedMessage struct {
	msg    Message
	reason string
}

// deliver publishes messages grouped by topic in claim order. A topic whose events cannot all be
// encoded or written is dead-lettered as a whole, so per-key ordering within it is never split;
// other topics in the batch are unaffected.
func (d *Dispatcher) deliver(ctx context.Context, messages []Message) deliveryResult {
	var (
		topics  []string
		grouped = make(map[string][]Message)
	)
	for _, msg := range messages {
		if _, ok := grouped[msg.Topic]; !ok {
			topics = append(topics, msg.Topic)
		}
		grouped[msg.Topic] = append(grouped[msg.Topic], msg)
	}

	var result deliveryResult
	for _, topic := range topics {
		batch := grouped[topic]
		err := d.publishTopic(ctx, topic, batch)
		if err == nil {
			result.delivered = append(result.delivered, batch...)
			continue
		}
		reason := fmt.Sprintf("%s (topic=%s)", err.Error(), topic)
		for _, msg := range batch {
			result.failed = append(result.failed, failedMessage{msg: msg, reason: reason})
		}
	}
	return result
}

func (d *Dispatcher) publishTopic(ctx context.Context, topic string, batch []Message) error {
	records := make([]kafka.Message, 0, len(batch))
	for _, msg := range batch {
		meta, ok := schemaCatalog[msg.EventType]
		if !ok {
			return fmt.Errorf("no schema metadata for event_type=%s", msg.EventType)
		}
		schemaID, err := d.schemaID(ctx, msg.SchemaSubject, meta.Schema)
		if err != nil {
			return err
		}
		records = append(records, kafka.Message{
			Key:   []byte(msg.PartitionKey),
			Value: encodeWireFormat(schemaID, msg.Payload),
			Time:  time.Now().UTC(),
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(msg.EventType)},
			},
		})
	}
	return d.producer.WriteMessages(ctx, topic, records...)
}

func (d *Dispatcher) schemaID(ctx context.Context, subject, schema string) (int, error) {
	cacheKey := subject + "::" + schema
	if id, ok := d.schemaIDCache.Load(cacheKey); ok {
		return id.(int), nil
	}
	id, err := d.registry.EnsureSchema(ctx, subject, schema)
	if err != nil {
		return 0, err
	}
	d.schemaIDCache.Store(cacheKey, id)
	return id, nil
}

// settle dead-letters the failed events and marks the whole batch published in one transaction,
// so an event never ends up both pending and in the DLQ.
func (d *Dispatcher) settle(ctx context.Context, result deliveryResult) error {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, f := range result.failed {
		queueDeadLetter(batch, f.msg, f.reason)
	}

	ids := make([]int64, 0, len(result.delivered)+len(result.failed))
	for _, msg := range result.delivered {
		ids = append(ids, msg.EventID)
	}
	for _, f := range result.failed {
		ids = append(ids, f.msg.EventID)
	}
	batch.Queue(`UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, ids)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Message represents a row fetched from outbox.
type Message struct {
	EventID       int64
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
	Attempt       int // number of times the event was requeued from the DLQ
}

// encodeWireFormat applies Confluent framing: a zero magic byte, the big-endian schema id, then the payload.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}
