package events

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Ping is an opaque payload echoed back in Pong. It is either a byte array
// or a number.
type Ping struct {
	Binary []byte
	Number uint64
}

// IsBinary reports whether the payload is a byte array
func (p Ping) IsBinary() bool {
	return p.Binary != nil
}

func (p Ping) MarshalJSON() ([]byte, error) {
	if p.Binary == nil {
		return json.Marshal(p.Number)
	}

	// Byte arrays travel as arrays of numbers, never base64
	values := make([]uint16, len(p.Binary))
	for i, b := range p.Binary {
		values[i] = uint16(b)
	}
	return json.Marshal(values)
}

func (p *Ping) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var values []uint8Value
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("invalid binary ping: %w", err)
		}
		p.Binary = make([]byte, len(values))
		for i, v := range values {
			p.Binary[i] = byte(v)
		}
		p.Number = 0
		return nil
	}

	var n uint64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid ping: %w", err)
	}
	p.Binary = nil
	p.Number = n
	return nil
}

// uint8Value rejects array elements outside the byte range
type uint8Value uint8

func (v *uint8Value) UnmarshalJSON(data []byte) error {
	var n uint16
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if n > 255 {
		return fmt.Errorf("byte value %d out of range", n)
	}
	*v = uint8Value(n)
	return nil
}
