package zone

import (
	"context"

	"go.uber.org/atomic"
)

// PassThrough is a short-circuit routing entity that lives inside an
// intermediary zone B and forwards calls between two non-adjacent zones
// A and D, keeping its own independent reference counts rather than
// participating in either adjacent zone's stub/object-proxy tables.
//
// Exactly one PassThrough exists for a given unordered pair {A, D}
// (§8 invariant 2); its key is the UnorderedZonePair computed from the
// two zones it bridges.
type PassThrough struct {
	RefLifecycle

	key UnorderedZonePair

	// forward carries traffic toward whichever of the pair is reached
	// via this link; reverse carries traffic the other way. Which zone
	// is "forward" vs "reverse" is fixed at construction time by
	// whichever add_ref(options=relay) created this pass-through.
	forward  Transport
	reverse  Transport
	forwardZone DestinationZone
	reverseZone DestinationZone

	// shared and optimistic are the two reference-count axes, tracked
	// with acq_rel fetch_add/fetch_sub semantics per §5.
	shared     *atomic.Int64
	optimistic *atomic.Int64

	service *Service
}

// newPassThrough constructs the pass-through for key once B has received
// the triggering relay add_ref, plumbing the initial route-build
// messages in both directions per §4.6.
func newPassThrough(ctx context.Context, service *Service, key UnorderedZonePair, forward, reverse Transport, forwardZone, reverseZone DestinationZone, logger Logger) (*PassThrough, error) {
	p := &PassThrough{
		key:         key,
		forward:     forward,
		reverse:     reverse,
		forwardZone: forwardZone,
		reverseZone: reverseZone,
		shared:      atomic.NewInt64(1),
		optimistic:  atomic.NewInt64(0),
		service:     service,
	}
	p.InitRefLifecycle(logger.Fork("passthrough:"+key.String()), p)

	if _, err := forward.AddRef(ctx, 0, NoObject, CallerZone(NoZone), BuildDestinationRoute, KnownDirectionZone(NoZone)); err != nil {
		return nil, WrapError(NoRoute, err, "plumbing destination route for %s", key)
	}
	if _, err := reverse.AddRef(ctx, 0, NoObject, CallerZone(NoZone), BuildCallerRoute, KnownDirectionZone(NoZone)); err != nil {
		return nil, WrapError(NoRoute, err, "plumbing caller route for %s", key)
	}
	return p, nil
}

// HandleOnceTeardown removes this pass-through from its owning service's
// table. It satisfies OnceTeardownHandler.
func (p *PassThrough) HandleOnceTeardown(completionErr error) error {
	p.service.forgetPassThrough(p.key)
	p.DLogf("pass-through torn down: %v", completionErr)
	return completionErr
}

// Key returns the unordered zone pair this pass-through bridges.
func (p *PassThrough) Key() UnorderedZonePair { return p.key }

// AddRef increments shared or optimistic (selected by axis) without
// emitting further route-build messages -- those were sent once, at
// construction.
func (p *PassThrough) AddRef(axis RefAxis) int64 {
	if axis == OptimisticRef {
		return p.optimistic.Inc()
	}
	return p.shared.Inc()
}

// Release decrements shared or optimistic, clamping at zero, and begins
// teardown once both counts reach zero with no live references
// remaining (§8 invariant 6).
func (p *PassThrough) Release(axis RefAxis) int64 {
	var newVal int64
	if axis == OptimisticRef {
		newVal = p.optimistic.Dec()
		if newVal < 0 {
			p.optimistic.Store(0)
			newVal = 0
		}
	} else {
		newVal = p.shared.Dec()
		if newVal < 0 {
			p.shared.Store(0)
			newVal = 0
		}
	}
	if p.shared.Load() == 0 && p.optimistic.Load() == 0 {
		p.StartTeardown(nil)
	}
	return newVal
}

// Forward routes a message whose caller matches reverse's peer onto
// forward (§4.6 routing rule, forward direction).
func (p *PassThrough) Forward(ctx context.Context, encoding EncodingTag, txn TransactionID, input []byte) ([]byte, error) {
	return p.forward.Send(ctx, encoding, txn, input)
}

// Reverse is Forward's symmetric counterpart.
func (p *PassThrough) Reverse(ctx context.Context, encoding EncodingTag, txn TransactionID, input []byte) ([]byte, error) {
	return p.reverse.Send(ctx, encoding, txn, input)
}
