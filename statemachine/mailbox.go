package statemachine

import (
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// drainBatch is how many jobs a mailbox runs before handing its worker back
// to the pool.
const drainBatch = 32

// mailbox is a FIFO serial executor on top of a shared worker pool. Jobs
// posted to one mailbox never overlap and run in posting order; jobs of
// different mailboxes run concurrently.
type mailbox struct {
	pool  pond.Pool
	depth prometheus.Gauge

	mu       sync.Mutex
	queue    []func()
	draining bool
}

func newMailbox(pool pond.Pool, depth prometheus.Gauge) *mailbox {
	return &mailbox{pool: pool, depth: depth}
}

// post queues job. It never blocks on the job itself.
func (mb *mailbox) post(job func()) {
	mb.mu.Lock()

	mb.queue = append(mb.queue, job)
	mb.depth.Inc()

	if mb.draining {
		mb.mu.Unlock()

		return
	}

	mb.draining = true
	mb.mu.Unlock()

	if err := mb.pool.Go(mb.drain); err != nil {
		// The pool is stopping; queued jobs still run.
		go mb.drain()
	}
}

func (mb *mailbox) drain() {
	for range drainBatch {
		job, ok := mb.next()
		if !ok {
			return
		}

		job()
	}

	// Let other mailboxes have the worker. If the pool is stopping, keep going
	// here instead.
	if err := mb.pool.Go(mb.drain); err != nil {
		for {
			job, ok := mb.next()
			if !ok {
				return
			}

			job()
		}
	}
}

// next pops the oldest job. When the queue is empty it clears the draining
// flag and reports false.
func (mb *mailbox) next() (func(), bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if len(mb.queue) == 0 {
		mb.draining = false

		return nil, false
	}

	job := mb.queue[0]
	mb.queue[0] = nil
	mb.queue = mb.queue[1:]

	mb.depth.Dec()

	return job, true
}

// pending returns the number of queued jobs.
func (mb *mailbox) pending() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	return len(mb.queue)
}
