// Package codec defines the serialization contract for job payloads.
// The dispatcher never interprets input or result payloads; codecs exist
// so the typed Submit and Result helpers can marshal caller values into
// the opaque byte payloads the scheduler carries.
package codec

// Codec serializes and deserializes payload values.
type Codec interface {
	// Marshal serializes a value to bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes bytes into the given value.
	Unmarshal(data []byte, v any) error

	// Name returns the codec identifier (e.g., "json", "msgpack").
	Name() string
}

// Name constants for format negotiation.
const (
	NameJSON    = "json"
	NameMsgpack = "msgpack"
)

// Get returns a codec by name. Defaults to JSON.
func Get(name string) Codec {
	switch name {
	case NameMsgpack:
		return Msgpack{}
	case NameJSON, "":
		return JSON{}
	default:
		return JSON{}
	}
}
