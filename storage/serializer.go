package storage

import (
	"encoding/json"
	"fmt"
)

// Serializer converts records to and from the bytes kept in Redis.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONSerializer implements Serializer using encoding/json.
type JSONSerializer struct{}

// Marshal serializes a value to JSON.
func (JSONSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal deserializes a value from JSON.
func (JSONSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// NewJSONSerializer creates a new JSON serializer.
func NewJSONSerializer() Serializer {
	return JSONSerializer{}
}

// GetSerializer returns a serializer for the given format.
// An empty format selects JSON.
func GetSerializer(format string) (Serializer, error) {
	switch format {
	case "", "json":
		return NewJSONSerializer(), nil
	default:
		return nil, fmt.Errorf("unsupported serialization format: %q", format)
	}
}
