package zone

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

// proxyTableEntry is the per-object entry a ServiceProxy's reference
// table keeps, per §4.2: shared_count, optimistic_count, and a weak
// reference to the ObjectProxy fronting this object, if one is still
// alive.
type proxyTableEntry struct {
	shared     *atomic.Uint64
	optimistic *atomic.Uint64
	proxy      *ObjectProxy
}

// ServiceProxy is the per-destination outbound half of a zone
// connection: one-to-one with a destination zone and a transport. It
// owns the object proxies it has handed out, performs per-object
// reference counting, and cooperates with exactly one Transport.
type ServiceProxy struct {
	logger Logger

	operatingZone   Zone
	destination     DestinationZone
	transport       Transport
	operational     atomic.Bool

	mu      sync.RWMutex
	objects map[Object]*proxyTableEntry
}

// newServiceProxy builds a ServiceProxy for destination, backed by
// transport, inside the zone named operatingZone.
func newServiceProxy(operatingZone Zone, destination DestinationZone, transport Transport, logger Logger) *ServiceProxy {
	p := &ServiceProxy{
		logger:        logger.Fork("proxy:" + destination.String()),
		operatingZone: operatingZone,
		destination:   destination,
		transport:     transport,
		objects:       make(map[Object]*proxyTableEntry),
	}
	p.operational.Store(true)
	return p
}

// IsOperational reports whether this service proxy's transport is still
// usable. Once false it never becomes true again for this instance
// (§8 invariant 5).
func (p *ServiceProxy) IsOperational() bool {
	return p.operational.Load()
}

// OperatingZone returns the zone this service proxy lives inside.
func (p *ServiceProxy) OperatingZone() Zone { return p.operatingZone }

// DestinationZone returns the peer zone this service proxy connects to.
func (p *ServiceProxy) DestinationZone() DestinationZone { return p.destination }

// entry returns (creating if necessary) the table entry for object,
// along with whether it was just created.
func (p *ServiceProxy) entry(object Object) (*proxyTableEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.objects[object]
	if ok {
		return e, false
	}
	e = &proxyTableEntry{shared: atomic.NewUint64(0), optimistic: atomic.NewUint64(0)}
	p.objects[object] = e
	return e, true
}

// ObjectProxyFor returns the ObjectProxy fronting object, creating it
// (and the table entry, and emitting the first-encounter add_ref) if
// this is the first time this zone has referenced it.
func (p *ServiceProxy) ObjectProxyFor(ctx context.Context, object Object) (*ObjectProxy, error) {
	if !p.IsOperational() {
		return nil, NewError(NotOperational, "service proxy for %s is not operational", p.destination)
	}

	e, created := p.entry(object)
	if !created {
		p.mu.RLock()
		existing := e.proxy
		p.mu.RUnlock()
		if existing != nil {
			existing.AddLocalRef()
			return existing, nil
		}
	}

	proxy := newObjectProxy(p, p.destination, object, p.logger)
	p.mu.Lock()
	e.proxy = proxy
	p.mu.Unlock()

	opts := BuildCallerRoute
	newCount, err := p.transport.AddRef(ctx, 0, object, CallerZone(p.operatingZone), opts, 0)
	if err != nil {
		p.mu.Lock()
		delete(p.objects, object)
		p.mu.Unlock()
		return nil, err
	}
	e.shared.Store(newCount)
	return proxy, nil
}

// forgetObjectProxy removes an ObjectProxy's table entry once it has
// torn down, per §4.2's zero-count erase rule.
func (p *ServiceProxy) forgetObjectProxy(object Object) {
	p.mu.Lock()
	delete(p.objects, object)
	p.mu.Unlock()
}

// CloneForZone creates a new ServiceProxy representing
// (p.operatingZone, other) by piggybacking on the same transport chain,
// used when a reference travels forward to a third zone. It fails with
// NotOperational if the underlying transport is not CONNECTED.
func (p *ServiceProxy) CloneForZone(other DestinationZone) (*ServiceProxy, error) {
	if !p.IsOperational() || p.transport.Status() != TransportConnected {
		return nil, NewError(NotOperational, "cannot clone service proxy for %s: transport not connected", other)
	}
	return newServiceProxy(p.operatingZone, other, p.transport, p.logger), nil
}

// OnTransportDown implements TransportUpcalls' terminal-status half of
// the §4.2 disconnection contract: mark non-operational, invalidate
// every object proxy so later calls fail TRANSPORT_DOWN, and log the
// error. It drops no reference, does not remove the proxy from its
// service, and notifies no other component.
func (p *ServiceProxy) OnTransportDown(err error) {
	p.operational.Store(false)
	p.mu.RLock()
	proxies := make([]*ObjectProxy, 0, len(p.objects))
	for _, e := range p.objects {
		if e.proxy != nil {
			proxies = append(proxies, e.proxy)
		}
	}
	p.mu.RUnlock()
	for _, op := range proxies {
		op.invalidate()
	}
	p.logger.WLogf("transport down: %v", err)
}

// OnObjectReleased satisfies TransportUpcalls; the service proxy itself
// has no bookkeeping to do here beyond logging since releases are
// driven by ObjectProxy.Release on this side.
func (p *ServiceProxy) OnObjectReleased(object Object) {
	p.logger.DLogf("peer released %s", object)
}

// OnZoneTerminating satisfies TransportUpcalls.
func (p *ServiceProxy) OnZoneTerminating(peerZone Zone) {
	p.logger.ILogf("peer zone %s is terminating", peerZone)
	p.OnTransportDown(NewError(TransportDown, "peer zone %s terminated", peerZone))
}
