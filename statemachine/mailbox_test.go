package statemachine

import (
	"sync"
	"testing"

	"github.com/alitto/pond/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestMailbox_RunsJobsInOrder(t *testing.T) {
	t.Parallel()

	pool := pond.NewPool(4)
	t.Cleanup(pool.StopAndWait)

	depth := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_mailbox_depth"})
	mb := newMailbox(pool, depth)

	const jobs = drainBatch*3 + 5

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		order   []int
		running int
		overlap bool
	)

	wg.Add(jobs)

	for i := range jobs {
		mb.post(func() {
			defer wg.Done()

			mu.Lock()
			running++
			overlap = overlap || running > 1
			order = append(order, i)
			mu.Unlock()

			mu.Lock()
			running--
			mu.Unlock()
		})
	}

	wg.Wait()

	assert.False(t, overlap)
	assert.Len(t, order, jobs)

	for i, n := range order {
		assert.Equal(t, i, n)
	}
}

func TestMailbox_KeepsRunningAfterPoolStops(t *testing.T) {
	t.Parallel()

	pool := pond.NewPool(1)
	pool.StopAndWait()

	depth := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_stopped_mailbox_depth"})
	mb := newMailbox(pool, depth)

	done := make(chan struct{})

	mb.post(func() { close(done) })

	<-done

	assert.Equal(t, 0, mb.pending())
}
