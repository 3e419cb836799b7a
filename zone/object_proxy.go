package zone

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// ObjectProxy represents one remote object locally: a (destination
// zone, object id, service proxy) triple plus a cache of interface
// facets already confirmed present on the far side. Its own lifetime is
// governed by local reference counts taken by the embedding
// application; the last local release emits a wire release and removes
// it from its ServiceProxy's table.
type ObjectProxy struct {
	RefLifecycle

	destination DestinationZone
	object      Object
	proxy       *ServiceProxy

	// facetCache remembers ordinals already confirmed by try_cast.
	// Per §4.3 this never affects reference counts -- a facet shares
	// the object proxy's own lifetime.
	facetCache *lru.Cache

	mu          sync.Mutex
	localRefs   uint64
	invalidated bool

	nextTxn uint64
}

const objectProxyCastCacheSize = 32

func newObjectProxy(proxy *ServiceProxy, destination DestinationZone, object Object, logger Logger) *ObjectProxy {
	cache, _ := lru.New(objectProxyCastCacheSize)
	p := &ObjectProxy{
		destination: destination,
		object:      object,
		proxy:       proxy,
		facetCache:  cache,
		localRefs:   1,
	}
	p.InitRefLifecycle(logger.Fork(object.String()), p)
	return p
}

// HandleOnceTeardown removes this object proxy from its service proxy's
// table. It satisfies OnceTeardownHandler.
func (p *ObjectProxy) HandleOnceTeardown(completionErr error) error {
	p.proxy.forgetObjectProxy(p.object)
	p.DLogf("object proxy torn down: %v", completionErr)
	return completionErr
}

// Destination returns the remote zone this proxy refers into.
func (p *ObjectProxy) Destination() DestinationZone { return p.destination }

// Object returns the remote object id this proxy refers to.
func (p *ObjectProxy) Object() Object { return p.object }

func (p *ObjectProxy) allocTxn() TransactionID {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextTxn++
	return TransactionID(p.nextTxn)
}

// QueryInterface reports whether ordinal is supported by the remote
// object: first against the local cache, falling back to a wire
// try_cast on miss. A positive response populates the cache but never
// bumps any reference count.
func (p *ObjectProxy) QueryInterface(ctx context.Context, ordinal InterfaceOrdinal) (InterfaceOrdinal, error) {
	if _, ok := p.facetCache.Get(ordinal); ok {
		return ordinal, nil
	}
	p.mu.Lock()
	invalid := p.invalidated
	p.mu.Unlock()
	if invalid {
		return 0, NewError(TransportDown, "object proxy for %s/%s is invalidated", p.destination, p.object)
	}

	resolved, err := p.proxy.transport.TryCast(ctx, p.allocTxn(), p.object, ordinal)
	if err != nil {
		return 0, err
	}
	p.facetCache.Add(resolved, true)
	return resolved, nil
}

// Invoke issues a synchronous (from the caller's standpoint) method
// call against the remote object; it sends on the caller's goroutine,
// not as a scheduler task, and carries a freshly allocated, monotonic
// transaction id.
func (p *ObjectProxy) Invoke(ctx context.Context, ordinal InterfaceOrdinal, method Method, input []byte) ([]byte, error) {
	p.mu.Lock()
	invalid := p.invalidated
	p.mu.Unlock()
	if invalid {
		return nil, NewError(TransportDown, "object proxy for %s/%s is invalidated", p.destination, p.object)
	}

	wire := EncodeApplicationRequest(p.object, ordinal, method, input)
	response, err := p.proxy.transport.Send(ctx, EncodingYasBinary, p.allocTxn(), wire)
	if err != nil {
		return nil, err
	}
	out, err := decodeEnvelopePayload(response)
	if err != nil {
		return nil, WrapError(ProxyDeserialisationError, err, "decoding response for %s.%s", ordinal, method)
	}
	return out.Data, nil
}

// invalidate marks the proxy unusable; called by its owning ServiceProxy
// when the transport goes terminal (§4.2 disconnection rule (b)).
func (p *ObjectProxy) invalidate() {
	p.mu.Lock()
	p.invalidated = true
	p.mu.Unlock()
}

// AddLocalRef bumps the local reference count kept by the embedding
// application (distinct from the wire-visible shared/optimistic counts
// the stub tracks on the far side).
func (p *ObjectProxy) AddLocalRef() {
	p.mu.Lock()
	p.localRefs++
	p.mu.Unlock()
}

// Release drops one local reference; when it reaches zero this proxy
// emits a wire release and begins teardown.
func (p *ObjectProxy) Release(ctx context.Context, opts AddRefOption) {
	p.mu.Lock()
	if p.localRefs > 0 {
		p.localRefs--
	}
	zero := p.localRefs == 0
	p.mu.Unlock()

	if !zero {
		return
	}
	if _, err := p.proxy.transport.Release(ctx, p.allocTxn(), p.object, CallerZone(p.proxy.operatingZone), opts); err != nil {
		p.WLogf("wire release failed: %s", err)
	}
	p.StartTeardown(nil)
}
