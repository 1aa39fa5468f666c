package worker_test

import (
	"context"
	"testing"
	"time"

	"a11yscan/internal/config"
	"a11yscan/internal/scan"
	"a11yscan/internal/worker"

	"github.com/stretchr/testify/require"
)

func TestNewClientConfig_QueuesAndRetention(t *testing.T) {
	f := newFixture(t)

	cfg := &config.Config{}
	cfg.Queue.MaxWorkers = 4
	cfg.Engine.PollInterval = time.Second
	cfg.Engine.PollTimeout = 5 * time.Second

	rc := worker.NewClientConfig(context.Background(), cfg, &stubEngine{}, f.scans)

	// each kind consumes from its own queue
	require.Contains(t, rc.Queues, scan.QueueFull)
	require.Contains(t, rc.Queues, scan.QueueQuick)
	require.Equal(t, 4, rc.Queues[scan.QueueFull].MaxWorkers)
	require.Equal(t, 4, rc.Queues[scan.QueueQuick].MaxWorkers)

	// finished jobs are kept around for inspection, completed ones longest
	require.Equal(t, scan.CompletedJobRetention, rc.CompletedJobRetentionPeriod)
	require.Equal(t, scan.DiscardedJobRetention, rc.DiscardedJobRetentionPeriod)
	require.Equal(t, scan.DiscardedJobRetention, rc.CancelledJobRetentionPeriod)
	require.Greater(t, rc.CompletedJobRetentionPeriod, rc.DiscardedJobRetentionPeriod)
}
