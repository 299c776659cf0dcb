// Package crop holds the crop reference data and ranks classifier output
// into recommendations.
package crop

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
)

// Reference data errors.
var (
	ErrInvalidStats  = errors.New("invalid crop stats")
	ErrInvalidLabels = errors.New("invalid label index")
)

// SoilRequirements are the average soil parameters for a crop.
type SoilRequirements struct {
	N  float64 `json:"N"`
	P  float64 `json:"P"`
	K  float64 `json:"K"`
	PH float64 `json:"pH"`
}

// Entry is the reference record for one crop.
type Entry struct {
	Soil  SoilRequirements
	Price float64
}

// Stats maps crop names to their reference record. It is immutable after
// construction and safe for concurrent use.
type Stats struct {
	entries map[string]Entry
}

// NewStats builds Stats from entries. The map is copied.
func NewStats(entries map[string]Entry) *Stats {
	copied := make(map[string]Entry, len(entries))
	for name, e := range entries {
		copied[name] = e
	}
	return &Stats{entries: copied}
}

// Lookup returns the entry for a crop.
func (s *Stats) Lookup(name string) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	e, ok := s.entries[name]
	return e, ok
}

// Len returns the number of crops.
func (s *Stats) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Names returns the crop names in lexical order.
func (s *Stats) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// statsRecord is the on-disk form: {"Rice": {"avg_params": [N, P, K, pH], "avg_price": 1234.5}}.
type statsRecord struct {
	AvgParams []float64 `json:"avg_params"`
	AvgPrice  *float64  `json:"avg_price"`
}

// LoadStats reads crop stats from a JSON file.
func LoadStats(path string) (*Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening crop stats: %w", err)
	}
	defer f.Close()

	return ParseStats(f)
}

// ParseStats decodes crop stats. Every entry must carry four soil parameters
// and a price.
func ParseStats(r io.Reader) (*Stats, error) {
	var raw map[string]statsRecord
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStats, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no crops", ErrInvalidStats)
	}

	entries := make(map[string]Entry, len(raw))
	for name, rec := range raw {
		if name == "" {
			return nil, fmt.Errorf("%w: empty crop name", ErrInvalidStats)
		}
		if len(rec.AvgParams) != 4 {
			return nil, fmt.Errorf("%w: %s: avg_params has %d values, want 4", ErrInvalidStats, name, len(rec.AvgParams))
		}
		if rec.AvgPrice == nil {
			return nil, fmt.Errorf("%w: %s: missing avg_price", ErrInvalidStats, name)
		}
		for _, v := range append(rec.AvgParams, *rec.AvgPrice) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: %s: non-finite value", ErrInvalidStats, name)
			}
		}

		entries[name] = Entry{
			Soil: SoilRequirements{
				N:  rec.AvgParams[0],
				P:  rec.AvgParams[1],
				K:  rec.AvgParams[2],
				PH: rec.AvgParams[3],
			},
			Price: *rec.AvgPrice,
		}
	}

	return &Stats{entries: entries}, nil
}
