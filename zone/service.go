package zone

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// Service is the zone singleton: it hosts local objects, issues local
// object identities, and maintains the routing table for every known
// peer zone. Create exactly one per zone.
type Service struct {
	Name      string
	ZoneID    Zone
	Scheduler *Scheduler
	Logger    Logger

	// CorrelationID is a random id generated when the service is built;
	// nothing in this package attaches it to messages or log lines.
	CorrelationID string

	mu           sync.RWMutex
	stubs        map[Object]*Stub
	proxies      map[Zone]*ServiceProxy
	passThroughs map[UnorderedZonePair]*PassThrough
	directionHints map[Zone]KnownDirectionZone

	objectCounter uint64
	zoneCounter   uint64

	hierarchy *HierarchicalLink
}

// NewService creates the Service for a zone. scheduler may be shared
// across zones created within the same process; logger is forked once
// per internal component so every stub, proxy and pass-through gets its
// own breadcrumbed prefix.
func NewService(name string, zoneID Zone, scheduler *Scheduler, logger Logger) *Service {
	return &Service{
		Name:           name,
		ZoneID:         zoneID,
		Scheduler:      scheduler,
		Logger:         logger.Fork("zone:" + name),
		CorrelationID:  uuid.NewString(),
		stubs:          make(map[Object]*Stub),
		proxies:        make(map[Zone]*ServiceProxy),
		passThroughs:   make(map[UnorderedZonePair]*PassThrough),
		directionHints: make(map[Zone]KnownDirectionZone),
	}
}

// GenerateNewObjectID allocates a monotonic, never-zero, never-reused
// object id local to this zone.
func (s *Service) GenerateNewObjectID() Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objectCounter++
	return Object(s.objectCounter)
}

// GenerateNewZoneID allocates a monotonic id for a dynamically created
// child zone.
func (s *Service) GenerateNewZoneID() Zone {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoneCounter++
	return Zone(s.zoneCounter)
}

// RegisterStub makes target externally addressable at objectID. It
// fails DuplicateObject if objectID is already registered.
func (s *Service) RegisterStub(objectID Object, target Dispatchable) (*Stub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.stubs[objectID]; exists {
		return nil, NewError(DuplicateObject, "object %s already registered", objectID)
	}
	stub := newStub(s, objectID, target, s.Logger)
	s.stubs[objectID] = stub
	return stub, nil
}

// unregisterStub removes a stub's table entry once it has torn down.
func (s *Service) unregisterStub(objectID Object) {
	s.mu.Lock()
	delete(s.stubs, objectID)
	s.mu.Unlock()
}

// LookupStub returns the stub registered for objectID, or
// ObjectNotFound if none is registered (including "destroyed after its
// last release").
func (s *Service) LookupStub(objectID Object) (*Stub, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stub, ok := s.stubs[objectID]
	if !ok {
		return nil, NewError(ObjectNotFound, "object %s not found in zone %s", objectID, s.ZoneID)
	}
	return stub, nil
}

// ConnectToZone connects transport, installs a service proxy for the
// peer reached via it, and returns that proxy. It performs no handshake
// and does not fetch or return the peer's root object reference.
func (s *Service) ConnectToZone(ctx context.Context, peerZone Zone, transport Transport) (*ServiceProxy, error) {
	if err := transport.Connect(ctx); err != nil {
		return nil, WrapError(TransportDown, err, "connecting to zone %s", peerZone)
	}
	proxy := newServiceProxy(s.ZoneID, DestinationZone(peerZone), transport, s.Logger)
	s.mu.Lock()
	s.proxies[peerZone] = proxy
	s.mu.Unlock()
	return proxy, nil
}

// AttachRemoteZone is the server side of the handshake: it registers
// transport for peerZone and invokes bindFn with the new proxy so the
// caller can expose its local root object in response.
func (s *Service) AttachRemoteZone(ctx context.Context, peerZone Zone, transport Transport, bindFn func(*ServiceProxy) error) (*ServiceProxy, error) {
	proxy := newServiceProxy(s.ZoneID, DestinationZone(peerZone), transport, s.Logger)
	s.mu.Lock()
	s.proxies[peerZone] = proxy
	s.mu.Unlock()
	if bindFn != nil {
		if err := bindFn(proxy); err != nil {
			s.mu.Lock()
			delete(s.proxies, peerZone)
			s.mu.Unlock()
			return nil, err
		}
	}
	return proxy, nil
}

// SetDirectionHint records that dest is reachable via the hop zone hop,
// used as routing step 3 when no direct service proxy exists.
func (s *Service) SetDirectionHint(dest Zone, hop KnownDirectionZone) {
	s.mu.Lock()
	s.directionHints[dest] = hop
	s.mu.Unlock()
}

// route implements the §4.1 routing decision for a message with
// destination d and caller-side adjacent zone adjacentToCaller (used
// only to key a fallback pass-through lookup).
func (s *Service) route(d DestinationZone, adjacentToCaller Zone) (*ServiceProxy, *PassThrough, error) {
	if Zone(d) == s.ZoneID {
		return nil, nil, nil // local dispatch
	}

	s.mu.RLock()
	proxy, ok := s.proxies[Zone(d)]
	s.mu.RUnlock()
	if ok {
		return proxy, nil, nil
	}

	s.mu.RLock()
	hint, hasHint := s.directionHints[Zone(d)]
	s.mu.RUnlock()
	if hasHint {
		s.mu.RLock()
		hopProxy, ok := s.proxies[Zone(hint)]
		s.mu.RUnlock()
		if ok {
			return hopProxy, nil, nil
		}
	}

	key := MakeUnorderedZonePair(adjacentToCaller, Zone(d))
	s.mu.RLock()
	pt, ok := s.passThroughs[key]
	s.mu.RUnlock()
	if ok {
		return nil, pt, nil
	}

	return nil, nil, NewError(NoRoute, "no route to zone %s", d)
}

// DispatchInbound demultiplexes an inbound request by
// (destination, object, interface_ordinal, method): local dispatch to a
// registered stub, or forwarding via an existing service proxy or
// pass-through. It never reactively creates a route.
func (s *Service) DispatchInbound(ctx context.Context, caller CallerZone, destination DestinationZone, object Object, ordinal InterfaceOrdinal, method Method, input []byte) ([]byte, error) {
	if Zone(destination) == s.ZoneID {
		stub, err := s.LookupStub(object)
		if err != nil {
			return nil, err
		}
		var out []byte
		done := make(chan struct{})
		var invokeErr error
		s.Scheduler.SubmitOrdered(caller, object, func(ctx context.Context) error {
			out, invokeErr = stub.Invoke(ctx, caller, ordinal, method, input)
			close(done)
			return invokeErr
		})
		<-done
		return out, invokeErr
	}

	proxy, pt, err := s.route(destination, Zone(caller))
	if err != nil {
		return nil, err
	}
	if proxy != nil {
		if !proxy.IsOperational() {
			return nil, NewError(TransportDown, "service proxy for %s is not operational", destination)
		}
		op, err := proxy.ObjectProxyFor(ctx, object)
		if err != nil {
			return nil, err
		}
		return op.Invoke(ctx, ordinal, method, input)
	}
	if pt != nil {
		wire := EncodeApplicationRequest(object, ordinal, method, input)
		return pt.Forward(ctx, EncodingYasBinary, 0, wire)
	}
	return nil, NewError(NoRoute, "no route to zone %s", destination)
}

// RelayAddRef implements the intermediary-zone half of §4.6: it creates
// a pass-through for {caller, destination} on first relay add_ref, or
// increments an existing one's counts on subsequent relay add_refs.
func (s *Service) RelayAddRef(ctx context.Context, caller, destination Zone, axis RefAxis, forward, reverse Transport) (*PassThrough, error) {
	key := MakeUnorderedZonePair(caller, destination)

	s.mu.Lock()
	pt, exists := s.passThroughs[key]
	if !exists {
		var err error
		pt, err = newPassThrough(ctx, s, key, forward, reverse, DestinationZone(destination), DestinationZone(caller), s.Logger)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.passThroughs[key] = pt
		s.mu.Unlock()
		return pt, nil
	}
	s.mu.Unlock()

	pt.AddRef(axis)
	return pt, nil
}

// forgetPassThrough removes a pass-through's table entry once it has
// torn down (§8 invariant 6).
func (s *Service) forgetPassThrough(key UnorderedZonePair) {
	s.mu.Lock()
	delete(s.passThroughs, key)
	s.mu.Unlock()
}

// SetHierarchy installs the parent/child MemberRef pair for a zone that
// participates in the §4.7 hierarchical transport pattern.
func (s *Service) SetHierarchy(link *HierarchicalLink) {
	s.mu.Lock()
	s.hierarchy = link
	s.mu.Unlock()
}

// BroadcastZoneTerminating sends the zone_terminating control message
// to every known peer, calls OnZoneTerminating on each peer's service
// proxy and disconnects the hierarchical link; it leaves this zone's
// stub and proxy tables as they are. Per the
// §9 open-question decision this is a required, first-class operation,
// not an optional courtesy notification.
func (s *Service) BroadcastZoneTerminating(ctx context.Context) error {
	s.mu.RLock()
	proxies := make([]*ServiceProxy, 0, len(s.proxies))
	for _, p := range s.proxies {
		proxies = append(proxies, p)
	}
	link := s.hierarchy
	s.mu.RUnlock()

	var errs error
	for _, p := range proxies {
		if err := p.transport.Post(ctx, EncodingYasBinary, []byte(s.ZoneID.String())); err != nil {
			errs = multierror.Append(errs, WrapError(TransportDown, err, "broadcasting zone_terminating to %s", p.destination))
		}
		p.OnZoneTerminating(s.ZoneID)
	}
	if link != nil {
		link.Disconnect()
	}
	s.Logger.ILogf("zone %s broadcast zone_terminating to %d peers", s.ZoneID, len(proxies))
	return errs
}
