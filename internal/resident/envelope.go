package resident

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope decoding failures.
var (
	ErrUnsuccessful = errors.New("directory reported success=false")
	ErrNotArray     = errors.New("directory data is not an array")
	ErrMissingID    = errors.New("resident id is missing")
)

// envelope is the directory response wrapper: {success, data}.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a {success, data} response body into records.
// Defaults are applied to every record.
func DecodeEnvelope(body []byte) ([]Record, error) {
	var env envelope

	err := json.Unmarshal(body, &env)
	if err != nil {
		return nil, fmt.Errorf("failed to parse directory response: %w", err)
	}

	if !env.Success {
		return nil, ErrUnsuccessful
	}

	return decodeArray(env.Data)
}

// decodeArray parses a JSON array of records.
func decodeArray(data json.RawMessage) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, ErrNotArray
	}

	var records []Record

	err := json.Unmarshal(data, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to parse directory records: %w", err)
	}

	err = requireIDs(records)
	if err != nil {
		return nil, err
	}

	return applyDefaults(records), nil
}

// requireIDs rejects records without an id; they would collapse into one candidate.
func requireIDs(records []Record) error {
	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record %d: %w", i, ErrMissingID)
		}
	}

	return nil
}

// applyDefaults fills in default values for optional fields.
func applyDefaults(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.WithDefaults()
	}

	return out
}
