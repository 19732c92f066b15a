package resident

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Directory lists the residents a search is matched against.
type Directory interface {
	Residents(ctx context.Context) ([]Record, error)
}

// StaticDirectory is an in-memory Directory.
type StaticDirectory struct {
	records []Record
}

// NewStaticDirectory returns a Directory serving a copy of records with defaults applied.
func NewStaticDirectory(records []Record) *StaticDirectory {
	return &StaticDirectory{records: applyDefaults(records)}
}

// Residents implements Directory.
func (d *StaticDirectory) Residents(ctx context.Context) ([]Record, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	out := make([]Record, len(d.records))
	copy(out, d.records)

	return out, nil
}

// LoadFile loads a resident fixture from the given path.
// JSON files may hold either a {success, data} envelope or a bare array;
// .yaml/.yml files hold a list of records.
func LoadFile(path string) (*StaticDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resident file %s: %w", path, err)
	}

	records, err := parseFixture(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse resident file %s: %w", path, err)
	}

	return &StaticDirectory{records: records}, nil
}

// parseFixture decodes fixture data according to the file extension.
func parseFixture(ext string, data []byte) ([]Record, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var records []Record

		err := yaml.Unmarshal(data, &records)
		if err != nil {
			return nil, err
		}

		err = requireIDs(records)
		if err != nil {
			return nil, err
		}

		return applyDefaults(records), nil

	default:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			return decodeArray(trimmed)
		}

		return DecodeEnvelope(trimmed)
	}
}
