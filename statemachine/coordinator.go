package statemachine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/amp-labs/amp-fsm/future"
	"github.com/amp-labs/amp-fsm/logger"
	"github.com/prometheus/client_golang/prometheus"
)

type instance[C any] struct {
	machine *Machine[C]
	mailbox *mailbox
	events  *mailbox
}

// Coordinator routes events to registered machines of one machine type.
//
// Every machine gets a FIFO mailbox. Events for one machine are dispatched one
// at a time in submission order; events for different machines run
// concurrently on a shared worker pool.
//
// Listeners run on a second per-machine queue once the dispatch has released
// the mailbox, so a listener may dispatch to the machine it is observing.
// Notifications for one machine keep dispatch order but may arrive after the
// caller already holds the Outcome.
type Coordinator[C any] struct {
	name      string
	table     *Table[C]
	pool      pond.Pool
	timeout   time.Duration
	listeners listeners
	depth     prometheus.Gauge
	notified  prometheus.Gauge
	notifying sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	instances map[string]*instance[C]
}

// NewCoordinator creates a coordinator for machines built from table.
func NewCoordinator[C any](table *Table[C], opts ...Option) (*Coordinator[C], error) {
	if table == nil {
		return nil, ErrNilTable
	}

	o := newOptions(opts)

	logger.Get().Debug("Starting state machine coordinator",
		"coordinator", o.config.Name,
		"machine", table.Name(),
		"workers", o.config.Workers,
		"dispatch_timeout", o.config.DispatchTimeout)

	return &Coordinator[C]{
		name:      o.config.Name,
		table:     table,
		pool:      pond.NewPool(o.config.Workers),
		timeout:   o.config.DispatchTimeout,
		listeners: listeners(o.listeners),
		depth:     mailboxDepth.WithLabelValues(o.config.Name),
		notified:  listenerQueueDepth.WithLabelValues(o.config.Name),
		instances: make(map[string]*instance[C]),
	}, nil
}

// NewCoordinatorFromEnv creates a coordinator configured by LoadCoordinatorConfig.
// Options override the environment.
func NewCoordinatorFromEnv[C any](table *Table[C], opts ...Option) (*Coordinator[C], error) {
	cfg, err := LoadCoordinatorConfig()
	if err != nil {
		return nil, err
	}

	return NewCoordinator(table, append([]Option{WithConfig(cfg)}, opts...)...)
}

// Name returns the coordinator name.
func (c *Coordinator[C]) Name() string {
	return c.name
}

// Table returns the coordinator's transition table.
func (c *Coordinator[C]) Table() *Table[C] {
	return c.table
}

// Spawn creates a machine owning value and registers it.
func (c *Coordinator[C]) Spawn(value C, opts ...Option) (*Machine[C], error) {
	m, err := NewMachine(c.table, value, opts...)
	if err != nil {
		return nil, err
	}

	if err := c.Register(m); err != nil {
		return nil, err
	}

	return m, nil
}

// Register adds an existing machine. Its table must have the coordinator's fingerprint.
func (c *Coordinator[C]) Register(m *Machine[C]) error {
	if m.Table().Fingerprint() != c.table.Fingerprint() {
		return fmt.Errorf("%w: machine %s", ErrFingerprintMismatch, m.ID())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCoordinatorClosed
	}

	if _, ok := c.instances[m.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateInstance, m.ID())
	}

	c.instances[m.ID()] = &instance[C]{
		machine: m,
		mailbox: newMailbox(c.pool, c.depth),
		events:  newMailbox(c.pool, c.notified),
	}

	return nil
}

// Remove unregisters a machine. Events already queued for it still run.
func (c *Coordinator[C]) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.instances[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}

	delete(c.instances, id)

	return nil
}

// Machine returns a registered machine.
func (c *Coordinator[C]) Machine(id string) (*Machine[C], bool) {
	inst, err := c.lookup(id)
	if err != nil {
		return nil, false
	}

	return inst.machine, true
}

// IDs returns the registered instance ids in sorted order.
func (c *Coordinator[C]) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.instances))
	for id := range c.instances {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

// Len returns the number of registered machines.
func (c *Coordinator[C]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.instances)
}

// CurrentState returns a machine's committed state without waiting for its mailbox.
func (c *Coordinator[C]) CurrentState(id string) (State, error) {
	inst, err := c.lookup(id)
	if err != nil {
		return "", err
	}

	return inst.machine.CurrentState(), nil
}

// Pending returns the number of queued, not yet started jobs for a machine.
func (c *Coordinator[C]) Pending(id string) (int, error) {
	inst, err := c.lookup(id)
	if err != nil {
		return 0, err
	}

	return inst.mailbox.pending(), nil
}

func (c *Coordinator[C]) lookup(id string) (*instance[C], error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	inst, ok := c.instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}

	return inst, nil
}

// Submit queues an event for a machine and returns immediately. The returned
// future can be cancelled until the dispatch begins; after that it runs to
// completion. The future fails, rather than yielding an Outcome, for unknown
// instances, a closed coordinator, or a ctx that is done before the dispatch
// begins.
func (c *Coordinator[C]) Submit(ctx context.Context, id string, ev Event) *future.Future[Outcome] {
	fut, promise := future.New[Outcome]()

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		promise.Failure(ErrCoordinatorClosed)

		return fut
	}

	inst, ok := c.instances[id]
	if !ok {
		promise.Failure(fmt.Errorf("%w: %s", ErrUnknownInstance, id))

		return fut
	}

	inst.mailbox.post(func() {
		if !promise.Start() {
			return
		}

		if err := ctx.Err(); err != nil {
			promise.Failure(err)

			return
		}

		outcome := inst.machine.dispatch(ctx, ev)

		promise.Success(outcome)

		c.notify(ctx, inst, outcome)
	})

	return fut
}

// notify hands outcome to the machine and coordinator listeners on the
// instance's listener queue.
func (c *Coordinator[C]) notify(ctx context.Context, inst *instance[C], outcome Outcome) {
	ctx = context.WithoutCancel(ctx)

	c.notifying.Add(1)

	inst.events.post(func() {
		defer c.notifying.Done()

		inst.machine.listeners.Observe(ctx, outcome)
		c.listeners.Observe(ctx, outcome)
	})
}

// Dispatch submits an event and waits for its outcome, bounded by the
// configured dispatch timeout.
func (c *Coordinator[C]) Dispatch(ctx context.Context, id string, ev Event) (Outcome, error) {
	return c.DispatchTimeout(ctx, id, ev, c.timeout)
}

// DispatchTimeout submits an event and waits at most timeout for its outcome.
// A non-positive timeout waits until the dispatch finishes.
//
// On expiry the outcome is Failed with ErrTimeout. A dispatch that had not
// begun is cancelled; one already running completes in the background and its
// effects may land after the timeout was reported.
func (c *Coordinator[C]) DispatchTimeout(
	ctx context.Context, id string, ev Event, timeout time.Duration,
) (Outcome, error) {
	start := time.Now()
	fut := c.Submit(ctx, id, ev)

	var expired <-chan time.Time

	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		expired = timer.C
	}

	select {
	case <-fut.Done():
		return fut.Await()
	case <-expired:
		fut.Cancel()

		// Cancel loses to a result that arrived at the same time.
		select {
		case <-fut.Done():
			if outcome, err := fut.Await(); err == nil {
				return outcome, nil
			}
		default:
		}

		state, _ := c.CurrentState(id)
		outcome := failed(c.table.Name(), ev, state, -1, "", ErrTimeout)
		outcome.Duration = time.Since(start)

		logger.Get(ctx).Warn("Dispatch timed out",
			"coordinator", c.name,
			"machine", c.table.Name(),
			"instance_id", id,
			"event", string(ev.Name),
			"timeout", timeout)

		return outcome, nil
	case <-ctx.Done():
		fut.Cancel()

		return Outcome{}, ctx.Err()
	}
}

// Snapshot captures a machine through its mailbox, so it never observes a
// dispatch in progress.
func (c *Coordinator[C]) Snapshot(ctx context.Context, id string) (Snapshot[C], error) {
	fut, promise := future.New[Snapshot[C]]()

	c.mu.RLock()

	if c.closed {
		c.mu.RUnlock()

		return Snapshot[C]{}, ErrCoordinatorClosed
	}

	inst, ok := c.instances[id]
	if !ok {
		c.mu.RUnlock()

		return Snapshot[C]{}, fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}

	inst.mailbox.post(func() {
		if promise.Start() {
			promise.Complete(inst.machine.Snapshot())
		}
	})

	c.mu.RUnlock()

	snap, err := fut.AwaitContext(ctx)
	if err != nil {
		fut.Cancel()

		return Snapshot[C]{}, err
	}

	return snap, nil
}

// Save snapshots a machine and hands the snapshot to store.
func (c *Coordinator[C]) Save(ctx context.Context, id string, store Store[C]) error {
	snap, err := c.Snapshot(ctx, id)
	if err != nil {
		return err
	}

	if err := store.Save(ctx, snap); err != nil {
		return fmt.Errorf("saving machine %s: %w", id, err)
	}

	return nil
}

// Load restores a machine from store and registers it under id.
func (c *Coordinator[C]) Load(ctx context.Context, id string, store Store[C]) (*Machine[C], error) {
	snap, err := store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading machine %s: %w", id, err)
	}

	m, err := Restore(c.table, snap, WithID(id))
	if err != nil {
		return nil, err
	}

	if err := c.Register(m); err != nil {
		return nil, err
	}

	return m, nil
}

// Close stops accepting events and waits for every queued dispatch to finish
// and for its listeners to be notified.
func (c *Coordinator[C]) Close() error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()

		return nil
	}

	c.closed = true
	c.mu.Unlock()

	c.pool.StopAndWait()
	c.notifying.Wait()

	logger.Get().Debug("State machine coordinator stopped", "coordinator", c.name)

	return nil
}
