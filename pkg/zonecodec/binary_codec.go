package zonecodec

import (
	"bytes"
	"compress/flate"
	"encoding/gob"
	"io"

	"github.com/sammck-go/zonerpc/zone"
)

// BinaryCodec implements the yas_binary and yas_compressed_binary tags.
// The actual yas wire format named in the original spec is IDL-compiler
// output this module doesn't have access to (see DESIGN.md); this codec
// demonstrates the tag's pluggability with a real stdlib binary format
// (encoding/gob) instead, optionally passed through compress/flate for
// the compressed variant.
type BinaryCodec struct {
	compressed bool
}

// NewBinaryCodec builds a BinaryCodec for either the plain or the
// compressed tag.
func NewBinaryCodec(compressed bool) *BinaryCodec {
	return &BinaryCodec{compressed: compressed}
}

func (c *BinaryCodec) Tag() zone.EncodingTag {
	if c.compressed {
		return zone.EncodingYasCompressedBinary
	}
	return zone.EncodingYasBinary
}

func (c *BinaryCodec) Marshal(v interface{}) ([]byte, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(v); err != nil {
		return nil, err
	}
	if !c.compressed {
		return raw.Bytes(), nil
	}

	var compressed bytes.Buffer
	w, err := flate.NewWriter(&compressed, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw.Bytes()); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return compressed.Bytes(), nil
}

func (c *BinaryCodec) Unmarshal(data []byte, v interface{}) error {
	src := bytes.NewReader(data)
	var raw io.Reader = src
	if c.compressed {
		rc := flate.NewReader(src)
		defer rc.Close()
		raw = rc
	}
	return gob.NewDecoder(raw).Decode(v)
}
