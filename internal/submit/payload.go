package submit

import (
	"bytes"
	"encoding/json"
)

// Payload is a JSON object that serializes its keys in insertion order. The
// receiving service logs raw request bodies, so a stable key order keeps those
// logs diffable across runs and versions.
type Payload struct {
	keys   []string
	values map[string]any
}

// NewPayload returns an empty ordered payload.
func NewPayload() *Payload {
	return &Payload{values: make(map[string]any)}
}

// Set adds or replaces a key. A replaced key keeps its original position.
func (p *Payload) Set(key string, value any) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Len returns the number of keys in the payload.
func (p *Payload) Len() int {
	return len(p.keys)
}

// MarshalJSON writes the object with keys in insertion order.
func (p *Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(p.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
