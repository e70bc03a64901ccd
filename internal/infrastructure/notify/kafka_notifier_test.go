package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewpay/payments-api/pkg/logger"
)

func testLog() *logger.Logger {
	return logger.New(logger.Config{Env: "development", Level: "error"})
}

// Concurrent publishes against a full buffer must drop, never block. Run with
// the race detector this also covers the request-path goroutines racing on
// publish.
func TestPublishDropsWhenBufferFull(t *testing.T) {
	n := &KafkaNotifier{
		events: make(chan Event, 1),
		done:   make(chan struct{}),
		log:    testLog(),
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.InvoicePaid("inv-1", "ct-1", time.Now())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, len(n.events), "everything past the buffer is dropped")
}

func TestCloseDrainsWithoutBrokers(t *testing.T) {
	n := NewKafkaNotifier(nil, "invoice-events", testLog())
	n.InvoiceApproved("inv-1", "ct-1", 1, 2)
	n.InvoiceRejected("inv-2", "ct-1", "wrong rate")
	require.NoError(t, n.Close())
}
