package outbox

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestKafkaProducerReusesWriterPerTopic(t *testing.T) {
	p := NewKafkaProducer([]string{"localhost:9092"}, WithBatchTimeout(5*time.Millisecond))

	progress := p.writer("progress_events")
	require.Same(t, progress, p.writer("progress_events"))
	require.NotSame(t, progress, p.writer("schedule_events"))

	require.Equal(t, "progress_events", progress.Topic)
	require.Equal(t, 5*time.Millisecond, progress.BatchTimeout)
	require.IsType(t, &kafka.Hash{}, progress.Balancer)
	require.Equal(t, kafka.RequireAll, progress.RequiredAcks)

	require.NoError(t, p.Close())
	require.Empty(t, p.writers)
}
