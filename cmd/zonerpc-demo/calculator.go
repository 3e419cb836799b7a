package main

import (
	"context"

	"github.com/sammck-go/zonerpc/pkg/zonecodec"
	"github.com/sammck-go/zonerpc/zone"
)

// calculatorObjectID is the demo's one well-known object: a real
// handshake would publish this id as the peer zone's root_ref, but
// pinning it lets both the client and server subcommands agree on it
// without running one.
const calculatorObjectID = zone.Object(1)

const (
	calculatorOrdinal = zone.InterfaceOrdinal(1)
	methodAdd         = zone.Method(1)
	methodMultiply    = zone.Method(2)
)

type addRequest struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

type addResponse struct {
	Result float64 `json:"result"`
}

// calculator is the demo's one Dispatchable local object, exercising
// zonecodec's JSON codec to marshal its request/response bodies.
type calculator struct{}

func (calculator) Facets() []*zone.InterfaceFacet {
	codec := zonecodec.NewJSONCodec()
	facet := zone.NewInterfaceFacet(calculatorOrdinal)
	facet.On(methodAdd, func(ctx context.Context, caller zone.CallerZone, input []byte) ([]byte, error) {
		var req addRequest
		if err := codec.Unmarshal(input, &req); err != nil {
			return nil, zone.WrapError(zone.StubDeserialisationError, err, "decoding add request")
		}
		return codec.Marshal(&addResponse{Result: req.A + req.B})
	})
	facet.On(methodMultiply, func(ctx context.Context, caller zone.CallerZone, input []byte) ([]byte, error) {
		var req addRequest
		if err := codec.Unmarshal(input, &req); err != nil {
			return nil, zone.WrapError(zone.StubDeserialisationError, err, "decoding multiply request")
		}
		return codec.Marshal(&addResponse{Result: req.A * req.B})
	})
	return []*zone.InterfaceFacet{facet}
}

func marshalAddRequest(a, b float64) ([]byte, error) {
	return zonecodec.NewJSONCodec().Marshal(&addRequest{A: a, B: b})
}

func unmarshalAddResponse(data []byte) (float64, error) {
	var resp addResponse
	if err := zonecodec.NewJSONCodec().Unmarshal(data, &resp); err != nil {
		return 0, err
	}
	return resp.Result, nil
}
