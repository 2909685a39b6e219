package movie

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// LoadRecords reads a YAML or JSON list of records.
func LoadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records: %w", err)
	}
	defer f.Close()
	return ReadRecords(f)
}

// ReadRecords decodes records from r. JSON input is read as YAML.
func ReadRecords(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	var records []Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}
