package message

import "encoding/json"

// PayloadCodec converts a concrete message/response record to/from the
// mapping of primitives carried in the wire envelope's "m" field. This is
// the reflective-dataclass collaborator the runtime treats as external
// and swappable: production callers are expected to supply one backed by
// their own serializable-record framework. DefaultPayloadCodec is a
// reflection-based fallback good enough for tests, demos, and the shim
// generator's own fixtures.
type PayloadCodec interface {
	// ToMapping converts v, a concrete Message or Response, to a mapping
	// of JSON-safe primitives.
	ToMapping(v interface{}) (map[string]interface{}, error)

	// FromMapping populates the zero value pointed to by v (as produced
	// by a MessageDescriptor/ResponseDescriptor factory) from a mapping
	// of JSON-safe primitives.
	FromMapping(v interface{}, m map[string]interface{}) error
}

// DefaultPayloadCodec implements PayloadCodec by round-tripping through
// encoding/json. It is the codec used whenever a Protocol is built
// without an explicit PayloadCodec.
type DefaultPayloadCodec struct{}

// ToMapping is the implementation of PayloadCodec for DefaultPayloadCodec.
func (DefaultPayloadCodec) ToMapping(v interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}

	return m, nil
}

// FromMapping is the implementation of PayloadCodec for DefaultPayloadCodec.
func (DefaultPayloadCodec) FromMapping(v interface{}, m map[string]interface{}) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, v)
}
