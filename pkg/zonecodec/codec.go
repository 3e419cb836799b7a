// Package zonecodec implements the concrete wire codecs behind the
// zone package's EncodingTag: the core only ever stores and compares
// the tag, never decoding payload bytes itself. A Codec here is the
// thing that actually turns an interface method's real parameters into
// bytes and back.
package zonecodec

import (
	"fmt"
	"sync"

	"github.com/sammck-go/zonerpc/zone"
)

// Codec marshals and unmarshals the application-level value carried
// inside an EnvelopePayload's Data field for one EncodingTag.
type Codec interface {
	Tag() zone.EncodingTag
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// Registry maps an EncodingTag to the Codec that handles it.
type Registry struct {
	mu     sync.RWMutex
	codecs map[zone.EncodingTag]Codec
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[zone.EncodingTag]Codec)}
}

// Register installs c under c.Tag(), replacing any codec previously
// registered for that tag.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.Tag()] = c
}

// Lookup returns the codec registered for tag, or
// IncompatibleSerialisation if none is registered -- this is the
// outcome for protocol_buffers, which this module names as a valid tag
// but ships no codec for (see DESIGN.md).
func (r *Registry) Lookup(tag zone.EncodingTag) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[tag]
	if !ok {
		return nil, zone.NewError(zone.IncompatibleSerialisation, "no codec registered for %s", tag)
	}
	return c, nil
}

// DefaultRegistry returns a Registry with every codec this module ships
// already installed, leaving protocol_buffers unregistered as a named,
// deliberately unimplemented slot.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewJSONCodec())
	r.Register(NewBinaryCodec(false))
	r.Register(NewBinaryCodec(true))
	return r
}

func errUnsupportedTag(tag zone.EncodingTag) error {
	return fmt.Errorf("zonecodec: %s is a named slot with no shipped implementation", tag)
}
