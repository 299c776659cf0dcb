package crop

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LabelIndex maps a classifier output position to a crop name.
type LabelIndex []string

// Name returns the class name at position i.
func (l LabelIndex) Name(i int) (string, bool) {
	if i < 0 || i >= len(l) {
		return "", false
	}
	return l[i], true
}

// LoadLabelIndex reads a JSON array of class names.
func LoadLabelIndex(path string) (LabelIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening label index: %w", err)
	}
	defer f.Close()

	return ParseLabelIndex(f)
}

// ParseLabelIndex decodes a JSON array of unique, non-empty class names.
func ParseLabelIndex(r io.Reader) (LabelIndex, error) {
	var names []string
	if err := json.NewDecoder(r).Decode(&names); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLabels, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no labels", ErrInvalidLabels)
	}

	seen := make(map[string]struct{}, len(names))
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("%w: empty label at %d", ErrInvalidLabels, i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate label %q", ErrInvalidLabels, name)
		}
		seen[name] = struct{}{}
	}

	return LabelIndex(names), nil
}
