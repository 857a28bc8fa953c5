// Package seed supplies the records installed into an empty collection on
// first start.
package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/warp/pos-tracker/tracker"
)

//go:embed sample-data.json
var sampleData []byte

// Sample returns the embedded sample offices.
func Sample() ([]tracker.Record, error) {
	return parse(sampleData)
}

// Load reads seed records from path, or the embedded sample when path is
// empty. The file holds a JSON array of records; ids in it are ignored.
func Load(path string) ([]tracker.Record, error) {
	if path == "" {
		return Sample()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) ([]tracker.Record, error) {
	var records []tracker.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse seed data: %w", err)
	}
	return records, nil
}
