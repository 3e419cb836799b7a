package zone

import (
	"context"
	"sync"
)

// OnceTeardownHandler is implemented by whatever RefLifecycle is embedded
// into: a stub, an object proxy, or a pass-through.
// HandleOnceTeardown is invoked exactly once, in its own goroutine, never
// while teardown is paused, and never concurrently with itself.
type OnceTeardownHandler interface {
	HandleOnceTeardown(completionError error) error
}

// RefLifecycle is the base the ref-counted components (stub, object
// proxy, pass-through) embed to get "destroy when
// the last reference drops" semantics for free. A component's ref-count
// bookkeeping calls StartTeardown once the last shared (and, for
// pass-throughs, optimistic) reference is released; RefLifecycle takes
// it from there: run the owner's teardown exactly once, tear down
// registered children, and only then declare the component gone.
// ServiceProxy does not embed it: a service proxy is neither
// ref-counted nor torn down through this type.
//
// Teardown can be paused (PauseTeardown/ResumeTeardown) so a component
// mid-construction cannot be torn down by a racing release that lands
// before construction finishes.
type RefLifecycle struct {
	Logger

	mu sync.Mutex

	handler OnceTeardownHandler

	pauseCount int

	scheduled bool
	started   bool
	done      bool

	completionErr error

	startedChan chan struct{}
	handlerDone chan struct{}
	doneChan    chan struct{}

	wg sync.WaitGroup
}

// InitRefLifecycle initializes a RefLifecycle in place. Call this from
// the embedding type's constructor before the component becomes visible
// to other goroutines.
func (h *RefLifecycle) InitRefLifecycle(logger Logger, handler OnceTeardownHandler) {
	h.Logger = logger
	h.handler = handler
	h.startedChan = make(chan struct{})
	h.handlerDone = make(chan struct{})
	h.doneChan = make(chan struct{})
}

// PauseTeardown increments the pause count, preventing teardown from
// starting even if it has already been scheduled. Returns an error if
// teardown has already started. Each successful call must be paired
// with ResumeTeardown.
func (h *RefLifecycle) PauseTeardown() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return h.Errorf("PauseTeardown: teardown already started")
	}
	h.pauseCount++
	return nil
}

// ResumeTeardown decrements the pause count. If it reaches zero and
// teardown has been scheduled, teardown begins now.
func (h *RefLifecycle) ResumeTeardown() {
	h.mu.Lock()
	if h.pauseCount < 1 {
		h.mu.Unlock()
		h.Panic("ResumeTeardown without matching PauseTeardown")
		return
	}
	h.pauseCount--
	startNow := h.pauseCount == 0 && h.scheduled && !h.started
	if startNow {
		h.started = true
	}
	h.mu.Unlock()

	if startNow {
		h.runTeardown()
	}
}

// StartTeardown schedules teardown with an advisory completion error. A
// component's ref-count bookkeeping calls this the instant the last
// reference is released; if teardown is currently paused, the actual
// run is deferred until the pause count drops to zero. Calling this
// more than once has no additional effect -- the first completionErr
// wins.
func (h *RefLifecycle) StartTeardown(completionErr error) {
	var startNow bool
	h.mu.Lock()
	if !h.scheduled {
		h.completionErr = completionErr
		h.scheduled = true
		startNow = h.pauseCount == 0
		h.started = startNow
	}
	h.mu.Unlock()

	if startNow {
		h.runTeardown()
	}
}

// TeardownOnContext begins background monitoring of ctx and starts
// teardown with ctx.Err() if ctx completes before teardown has already
// started on its own.
func (h *RefLifecycle) TeardownOnContext(ctx context.Context) {
	go func() {
		select {
		case <-h.startedChan:
		case <-ctx.Done():
			h.StartTeardown(ctx.Err())
		}
	}()
}

func (h *RefLifecycle) runTeardown() {
	close(h.startedChan)
	go func() {
		h.completionErr = h.handler.HandleOnceTeardown(h.completionErr)
		close(h.handlerDone)
		h.wg.Wait()
		h.mu.Lock()
		h.done = true
		h.mu.Unlock()
		close(h.doneChan)
	}()
}

// IsScheduled reports whether StartTeardown has ever been called.
func (h *RefLifecycle) IsScheduled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scheduled
}

// IsStarted reports whether teardown has begun running.
func (h *RefLifecycle) IsStarted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

// IsDone reports whether teardown has completely finished.
func (h *RefLifecycle) IsDone() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// DoneChan returns a channel closed once teardown is completely finished.
func (h *RefLifecycle) DoneChan() <-chan struct{} {
	return h.doneChan
}

// HandlerDoneChan returns a channel closed after HandleOnceTeardown
// returns, before children are torn down and waited on. Useful for
// actively driving child teardown at the right moment.
func (h *RefLifecycle) HandlerDoneChan() <-chan struct{} {
	return h.handlerDone
}

// Wait blocks until teardown completes and returns its completion error.
// It does not itself initiate teardown.
func (h *RefLifecycle) Wait() error {
	<-h.doneChan
	return h.completionErr
}

// Teardown starts teardown (if not already scheduled) and blocks until
// it completes, returning the final completion error.
func (h *RefLifecycle) Teardown(completionErr error) error {
	h.StartTeardown(completionErr)
	return h.Wait()
}

// ChildWG returns the sync.WaitGroup children can Add/Done against to
// defer this component's "done" state until they finish.
func (h *RefLifecycle) ChildWG() *sync.WaitGroup {
	return &h.wg
}

// AddChildDoneChan defers completion until childDoneChan closes.
func (h *RefLifecycle) AddChildDoneChan(childDoneChan <-chan struct{}) {
	h.wg.Add(1)
	go func() {
		<-childDoneChan
		h.wg.Done()
	}()
}

// childLifecycle is the minimal surface RefLifecycle needs from a member
// it actively tears down -- object proxies, stubs and pass-throughs all
// satisfy it via their own RefLifecycle embedding.
type childLifecycle interface {
	StartTeardown(completionErr error)
	DoneChan() <-chan struct{}
}

// AddChild registers a child that this component will actively tear
// down once its own handler finishes, and waits for before declaring
// itself fully torn down.
func (h *RefLifecycle) AddChild(child childLifecycle) {
	h.wg.Add(1)
	go func() {
		select {
		case <-child.DoneChan():
		case <-h.handlerDone:
			child.StartTeardown(h.completionErr)
			<-child.DoneChan()
		}
		h.wg.Done()
	}()
}
