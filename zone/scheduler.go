package zone

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Scheduler is the cooperative task runtime each Service holds.
// Service.DispatchInbound runs each inbound application call's stub
// invocation as a task on the owning zone's Scheduler. Transport
// sends and receives and outbound calls through an ObjectProxy do not
// go through the Scheduler; they run on the goroutine that makes them.
//
// Tasks submitted for the same caller zone and the same object are run
// in submission order relative to each other (the ordering guarantee of
// §4.4); tasks for different (caller zone, object) pairs may run
// concurrently, bounded by the scheduler's worker limit.
type Scheduler struct {
	logger Logger

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	lanes map[laneKey]*lane
}

// laneKey identifies the ordering domain a task belongs to: all tasks
// sharing a (CallerZone, Object) pair run strictly in submission order.
type laneKey struct {
	caller CallerZone
	object Object
}

// lane serializes the tasks submitted for one laneKey behind a single
// goroutine-local queue, without blocking the Scheduler's other lanes.
type lane struct {
	mu      sync.Mutex
	pending []func(context.Context) error
	running bool
}

// NewScheduler builds a Scheduler bounded to at most maxConcurrent
// simultaneously running tasks (maxConcurrent <= 0 means unbounded,
// matching errgroup.Group's default). The scheduler's context is
// cancelled when parent is done; tasks submitted after that still run,
// and see the cancelled context.
func NewScheduler(parent context.Context, maxConcurrent int, logger Logger) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	group, groupCtx := errgroup.WithContext(ctx)
	if maxConcurrent > 0 {
		group.SetLimit(maxConcurrent)
	}
	return &Scheduler{
		logger: logger,
		group:  group,
		ctx:    groupCtx,
		cancel: cancel,
		lanes:  make(map[laneKey]*lane),
	}
}

// Context returns the scheduler's context, cancelled when Stop is
// called or when a task passed to Submit returns a non-nil error
// (mirroring errgroup.WithContext's fail-fast semantics). An error from a
// SubmitOrdered task is logged and does not cancel it.
func (s *Scheduler) Context() context.Context {
	return s.ctx
}

// Submit enqueues fn for unordered, concurrent execution bounded only by
// the scheduler's worker limit. Use this for work with no ordering
// requirement -- e.g. a pass-through relaying a message that carries no
// caller/object identity of its own.
func (s *Scheduler) Submit(fn func(context.Context) error) {
	s.group.Go(func() error {
		return fn(s.ctx)
	})
}

// SubmitOrdered enqueues fn to run after every previously submitted
// SubmitOrdered call sharing the same (caller, object) lane has
// completed, satisfying the §4.4 per-(caller zone, object) ordering
// guarantee. Tasks in different lanes still run concurrently with each
// other, bounded by the scheduler's worker limit.
func (s *Scheduler) SubmitOrdered(caller CallerZone, object Object, fn func(context.Context) error) {
	key := laneKey{caller: caller, object: object}

	s.mu.Lock()
	l, ok := s.lanes[key]
	if !ok {
		l = &lane{}
		s.lanes[key] = l
	}
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	start := !l.running
	if start {
		l.running = true
	}
	l.mu.Unlock()
	s.mu.Unlock()

	if start {
		s.drainLane(l)
	}
}

// drainLane submits a single errgroup task that runs the lane's pending
// entries back-to-back until the lane is empty, then marks it idle.
func (s *Scheduler) drainLane(l *lane) {
	s.group.Go(func() error {
		for {
			l.mu.Lock()
			if len(l.pending) == 0 {
				l.running = false
				l.mu.Unlock()
				return nil
			}
			fn := l.pending[0]
			l.pending = l.pending[1:]
			l.mu.Unlock()

			if err := fn(s.ctx); err != nil {
				if s.logger != nil {
					s.logger.WLogf("lane task failed: %s", err)
				}
			}
		}
	})
}

// Stop cancels the scheduler's context, causing in-flight tasks to
// observe cancellation on their next suspension point, and prevents any
// further task from starting new blocking work.
func (s *Scheduler) Stop() {
	s.cancel()
}

// Wait blocks until every submitted task has returned, then returns the
// first non-nil error any of them returned (errgroup.Group.Wait
// semantics).
func (s *Scheduler) Wait() error {
	return s.group.Wait()
}
