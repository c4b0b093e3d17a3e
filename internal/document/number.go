package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a subsection id.
type ID uint64

// Revision is a page revision counter.
type Revision uint64

func (id *ID) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		*id = 0
		return nil
	}
	n, err := parseUint(b)
	if err != nil {
		return fmt.Errorf("subsection id: %w", err)
	}
	*id = ID(n)
	return nil
}

func (r *Revision) UnmarshalJSON(b []byte) error {
	n, err := parseUint(b)
	if err != nil {
		return fmt.Errorf("revision: %w", err)
	}
	*r = Revision(n)
	return nil
}

// parseUint accepts a JSON number or a JSON string holding decimal digits.
// Older pages store ids as strings ("1") and some clients post "12" for rev.
func parseUint(b []byte) (uint64, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, err
		}
		b = []byte(s)
	}
	if n, err := strconv.ParseUint(string(b), 10, 64); err == nil {
		return n, nil
	}
	// Integral floats such as 3.0 are representable.
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil || f < 0 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("%q is not a non-negative integer", b)
	}
	return uint64(f), nil
}
