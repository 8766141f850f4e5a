package keywords

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode serializes p as a JSON integer array. A nil vector encodes to nil so
// callers can store SQL NULL.
func Encode(p Progress) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	ints := make([]int, len(p))
	for i, s := range p {
		ints[i] = int(s)
	}
	return json.Marshal(ints)
}

// Decode parses the JSON integer array produced by Encode. Empty input and
// the literal null decode to a nil vector.
func Decode(data []byte) (Progress, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var ints []int
	if err := json.Unmarshal(trimmed, &ints); err != nil {
		return nil, fmt.Errorf("%w: decode keyword progress: %v", ErrInvariantViolation, err)
	}
	p := make(Progress, len(ints))
	for i, v := range ints {
		s := State(v)
		if !s.Valid() {
			return nil, fmt.Errorf("%w: keyword %d has unknown state %d", ErrInvariantViolation, i, v)
		}
		p[i] = s
	}
	return p, nil
}
