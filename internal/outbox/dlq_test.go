package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReplayerDefaults(t *testing.T) {
	r := NewReplayer(nil, 0, 0, nil)
	require.Equal(t, 5, r.maxRetries)
	require.Equal(t, time.Minute, r.baseDelay)
	require.NotNil(t, r.logger)
}

func TestReplayerBackoffDoublesAndCaps(t *testing.T) {
	r := NewReplayer(nil, 3, 10*time.Second, nil)

	require.Equal(t, 10*time.Second, r.backoffDelay(1))
	require.Equal(t, 20*time.Second, r.backoffDelay(2))
	require.Equal(t, 80*time.Second, r.backoffDelay(4))
	require.Equal(t, time.Hour, r.backoffDelay(10))
	require.Equal(t, time.Hour, r.backoffDelay(64))
	require.Equal(t, 10*time.Second, r.backoffDelay(0))
}
