package resident

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Defaults applied to records whose apartment or block is absent or empty.
const (
	DefaultApartment = "N/A"
	DefaultBlock     = "A"
)

// ID is an opaque resident identifier.
// The directory may send it as a JSON string or number; both decode to the same text.
type ID string

// Record is one resident as served by the directory.
type Record struct {
	ID        ID     `json:"id"                  yaml:"id"`
	Name      string `json:"name"                yaml:"name"`
	Apartment string `json:"apartment,omitempty" yaml:"apartment,omitempty"`
	Block     string `json:"block,omitempty"     yaml:"block,omitempty"`
}

// WithDefaults returns a copy of r with missing apartment and block filled in.
func (r Record) WithDefaults() Record {
	if r.Apartment == "" {
		r.Apartment = DefaultApartment
	}

	if r.Block == "" {
		r.Block = DefaultBlock
	}

	return r
}

// UnmarshalJSON implements custom JSON unmarshaling for ID.
// Accepts either a string or a number; null is rejected.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if bytes.Equal(data, []byte("null")) {
		return ErrMissingID
	}

	if len(data) > 0 && data[0] == '"' {
		var s string

		err := json.Unmarshal(data, &s)
		if err != nil {
			return err
		}

		*id = ID(s)

		return nil
	}

	var n json.Number

	err := json.Unmarshal(data, &n)
	if err != nil {
		return fmt.Errorf("resident id must be a string or number, got %s", data)
	}

	*id = ID(n.String())

	return nil
}

// UnmarshalYAML implements custom YAML unmarshaling for ID.
// Accepts any scalar value.
func (id *ID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("resident id must be a scalar, got %v", node.Kind)
	}

	*id = ID(node.Value)

	return nil
}
