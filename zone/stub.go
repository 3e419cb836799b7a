package zone

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// callerCounts is the per-caller-zone entry a Stub keeps: how many
// shared and optimistic references that zone currently holds.
type callerCounts struct {
	shared     uint64
	optimistic uint64
}

// Stub is the callee-side mirror of an ObjectProxy: it represents one
// locally hosted object to every peer zone that holds a reference to
// it, attributing reference counts per caller zone so the object is
// destroyed only once every caller has released it.
type Stub struct {
	RefLifecycle

	service *Service
	object  Object
	target  Dispatchable
	facets  *facetTable

	// castCache remembers the outcome of a try_cast per interface
	// ordinal; it never affects reference counts (§4.3).
	castCache *lru.Cache

	mu      sync.Mutex
	callers map[CallerZone]*callerCounts
}

const stubCastCacheSize = 64

// newStub wraps target as the stub for object in service. It is created
// by Service.RegisterStub and is never constructed directly by callers.
func newStub(service *Service, object Object, target Dispatchable, logger Logger) *Stub {
	cache, _ := lru.New(stubCastCacheSize)
	s := &Stub{
		service:   service,
		object:    object,
		target:    target,
		facets:    newFacetTable(target.Facets()),
		castCache: cache,
		callers:   make(map[CallerZone]*callerCounts),
	}
	s.InitRefLifecycle(logger.Fork(object.String()), s)
	return s
}

// HandleOnceTeardown unregisters the stub from its owning service. It
// satisfies OnceTeardownHandler.
func (s *Stub) HandleOnceTeardown(completionErr error) error {
	s.service.unregisterStub(s.object)
	s.DLogf("stub torn down: %v", completionErr)
	return completionErr
}

// TryCast reports whether ordinal is supported, consulting (and
// populating) the cast cache first. It never changes reference counts.
func (s *Stub) TryCast(ctx context.Context, ordinal InterfaceOrdinal) (InterfaceOrdinal, error) {
	if cached, ok := s.castCache.Get(ordinal); ok {
		if cached.(bool) {
			return ordinal, nil
		}
	}
	facet, exact := s.facets.tryCast(ordinal)
	s.castCache.Add(ordinal, exact)
	if facet == nil {
		return 0, NewError(UnknownInterface, "object %s supports no requested interface", s.object)
	}
	if !exact {
		return facet.Ordinal, NewError(UnknownInterface, "object %s does not support %s, nearest is %s", s.object, ordinal, facet.Ordinal)
	}
	return facet.Ordinal, nil
}

// Invoke dispatches method on ordinal, attributing the call to caller
// for ordering purposes; the scheduler, not Invoke itself, enforces the
// per-(caller, object) arrival-order guarantee (§4.4).
func (s *Stub) Invoke(ctx context.Context, caller CallerZone, ordinal InterfaceOrdinal, method Method, input []byte) ([]byte, error) {
	facet, ok := s.facets.byOrdinal[ordinal]
	if !ok {
		return nil, NewError(UnknownInterface, "object %s does not support %s", s.object, ordinal)
	}
	return facet.Invoke(ctx, caller, method, input)
}

func (s *Stub) entry(caller CallerZone) *callerCounts {
	e, ok := s.callers[caller]
	if !ok {
		e = &callerCounts{}
		s.callers[caller] = e
	}
	return e
}

// AddShared bumps the shared count attributed to caller and returns the
// caller's new shared count.
func (s *Stub) AddShared(caller CallerZone) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(caller)
	e.shared++
	return e.shared
}

// AddOptimistic bumps the optimistic count attributed to caller and
// returns the caller's new optimistic count.
func (s *Stub) AddOptimistic(caller CallerZone) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(caller)
	e.optimistic++
	return e.optimistic
}

// ReleaseShared decrements the shared count attributed to caller,
// clamping at zero, and returns the caller's new shared count. If both
// of the caller's counts (and every other caller's) reach zero, the
// stub begins teardown.
func (s *Stub) ReleaseShared(caller CallerZone) uint64 {
	return s.release(caller, true)
}

// ReleaseOptimistic is ReleaseShared's optimistic-axis counterpart.
func (s *Stub) ReleaseOptimistic(caller CallerZone) uint64 {
	return s.release(caller, false)
}

func (s *Stub) release(caller CallerZone, shared bool) uint64 {
	s.mu.Lock()
	e := s.entry(caller)
	var newCount uint64
	if shared {
		if e.shared > 0 {
			e.shared--
		} else {
			s.WLogf("shared underflow clamped to zero for caller %s", caller)
		}
		newCount = e.shared
	} else {
		if e.optimistic > 0 {
			e.optimistic--
		} else {
			s.WLogf("optimistic underflow clamped to zero for caller %s", caller)
		}
		newCount = e.optimistic
	}
	if e.shared == 0 && e.optimistic == 0 {
		delete(s.callers, caller)
	}
	empty := len(s.callers) == 0
	s.mu.Unlock()

	if empty {
		s.StartTeardown(nil)
	}
	return newCount
}

// SharedCountFor returns the shared count attributed to caller alone, 0
// if caller holds no entry. Invariant checks (spec §8 invariant 1) are
// stated per attributing caller ("shared_count ≥ 1 attributable to X"),
// not as a cross-caller sum, so this reports the same way.
func (s *Stub) SharedCountFor(caller CallerZone) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.callers[caller]
	if !ok {
		return 0
	}
	return e.shared
}

// Object returns this stub's object id.
func (s *Stub) Object() Object {
	return s.object
}
