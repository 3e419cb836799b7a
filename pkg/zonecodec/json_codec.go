package zonecodec

import (
	"encoding/json"

	"github.com/sammck-go/zonerpc/zone"
)

// JSONCodec implements the yas_json-equivalent tag with plain
// encoding/json: Marshal and Unmarshal call json.Marshal and
// json.Unmarshal directly on the caller's value.
type JSONCodec struct{}

// NewJSONCodec builds a JSONCodec.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

func (c *JSONCodec) Tag() zone.EncodingTag { return zone.EncodingYasJSON }

func (c *JSONCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
