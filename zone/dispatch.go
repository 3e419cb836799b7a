package zone

import "context"

// MethodHandler implements one callable operation of one interface
// facet on a locally hosted object. input/output are opaque,
// already-decoded-from-the-wire byte spans; the handler's own generated
// glue (the IDL compiler's output, out of scope for this package) is
// responsible for marshalling its real parameter and return types
// through these spans.
type MethodHandler func(ctx context.Context, caller CallerZone, input []byte) (output []byte, err error)

// InterfaceFacet is an enum of the methods one interface ordinal
// exposes, keyed by Method rather than by reflection -- per the design
// note that this runtime dispatches through an explicit ordinal/method
// table, not inheritance.
type InterfaceFacet struct {
	Ordinal InterfaceOrdinal
	Methods map[Method]MethodHandler
}

// NewInterfaceFacet builds an empty facet for ordinal.
func NewInterfaceFacet(ordinal InterfaceOrdinal) *InterfaceFacet {
	return &InterfaceFacet{Ordinal: ordinal, Methods: make(map[Method]MethodHandler)}
}

// On registers handler for method and returns the facet for chaining.
func (f *InterfaceFacet) On(method Method, handler MethodHandler) *InterfaceFacet {
	f.Methods[method] = handler
	return f
}

// Invoke dispatches to the registered handler, or returns a
// StubDeserialisationError when method isn't registered -- callers are
// expected to have already try_cast-verified the ordinal; an unknown
// method at this layer is a protocol error.
func (f *InterfaceFacet) Invoke(ctx context.Context, caller CallerZone, method Method, input []byte) ([]byte, error) {
	handler, ok := f.Methods[method]
	if !ok {
		return nil, NewError(StubDeserialisationError, "no handler registered for %s on %s", method, f.Ordinal)
	}
	return handler(ctx, caller, input)
}

// Dispatchable is implemented by any local object registered with a
// Service: it exposes one or more interface facets keyed by ordinal.
type Dispatchable interface {
	// Facets returns every interface ordinal this object supports, in
	// the order a try_cast fallback search should prefer them.
	Facets() []*InterfaceFacet
}

// facetTable is the small by-ordinal index a Stub keeps over its
// Dispatchable's advertised facets, used to satisfy
// try_cast without a linear scan on the hot path.
type facetTable struct {
	byOrdinal map[InterfaceOrdinal]*InterfaceFacet
	ordered   []InterfaceOrdinal
}

func newFacetTable(facets []*InterfaceFacet) *facetTable {
	t := &facetTable{byOrdinal: make(map[InterfaceOrdinal]*InterfaceFacet, len(facets))}
	for _, f := range facets {
		t.byOrdinal[f.Ordinal] = f
		t.ordered = append(t.ordered, f.Ordinal)
	}
	return t
}

// tryCast returns the facet for ordinal if supported, else the first
// facet in preference order as a fallback candidate plus false, so a
// caller can report the ordinal it actually got.
func (t *facetTable) tryCast(ordinal InterfaceOrdinal) (*InterfaceFacet, bool) {
	if f, ok := t.byOrdinal[ordinal]; ok {
		return f, true
	}
	if len(t.ordered) == 0 {
		return nil, false
	}
	return t.byOrdinal[t.ordered[0]], false
}
