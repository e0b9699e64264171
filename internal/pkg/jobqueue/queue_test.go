package jobqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(ctx context.Context, payload map[string]interface{}) error {
	return nil
}

// Stop must drain the workers and return even though the workers read the
// handlers map while they run.
func TestQueueStopCompletesWithHandlersRegistered(t *testing.T) {
	q := NewQueue(2)
	q.RegisterHandler(JobTypeWebhookProcess, noopHandler)
	q.RegisterHandler(JobTypeUploadScan, noopHandler)
	q.Start()

	done := make(chan struct{})
	go func() {
		q.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestRegisterHandlerAfterStartPanics(t *testing.T) {
	q := NewQueue(1)
	q.RegisterHandler(JobTypeWebhookProcess, noopHandler)
	q.Start()
	defer q.Stop()

	require.Panics(t, func() {
		q.RegisterHandler(JobTypeUploadScan, noopHandler)
	})
}

func TestRegisterHandlerRejectsDuplicate(t *testing.T) {
	q := NewQueue(1)
	q.RegisterHandler(JobTypeUploadScan, noopHandler)
	assert.Panics(t, func() {
		q.RegisterHandler(JobTypeUploadScan, noopHandler)
	})
}
