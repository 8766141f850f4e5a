package keywords

import (
	"errors"
	"fmt"
)

// ErrInvariantViolation marks a progress vector, or a transition request,
// that breaks the single-cursor rules.
var ErrInvariantViolation = errors.New("invariant violation")

// Action is a cursor transition requested by an annotator.
type Action string

const (
	ActionSave   Action = "save"
	ActionSkip   Action = "skip"
	ActionAbsent Action = "absent"
)

// ParseAction maps a route or CLI value to an Action.
func ParseAction(value string) (Action, error) {
	switch Action(value) {
	case ActionSave, ActionSkip, ActionAbsent:
		return Action(value), nil
	case "mark-absent", "not-present":
		return ActionAbsent, nil
	default:
		return "", fmt.Errorf("unknown keyword action %q", value)
	}
}

// Progress is the ordered state vector for an item's keywords.
type Progress []State

// Start returns the initial vector for n keywords: the first is Current and
// the rest are Pending.
func Start(n int) Progress {
	if n <= 0 {
		return Progress{}
	}
	p := make(Progress, n)
	p[0] = Current
	for i := 1; i < n; i++ {
		p[i] = Pending
	}
	return p
}

// Clone returns an independent copy.
func (p Progress) Clone() Progress {
	if p == nil {
		return nil
	}
	out := make(Progress, len(p))
	copy(out, p)
	return out
}

// Cursor returns the index of the Current keyword, or -1 when none is.
func (p Progress) Cursor() int {
	for i, s := range p {
		if s == Current {
			return i
		}
	}
	return -1
}

// ReadyToFinalize reports whether every keyword is Done or Skipped.
func (p Progress) ReadyToFinalize() bool {
	for _, s := range p {
		if !s.Resolved() {
			return false
		}
	}
	return true
}

// Started reports whether any keyword has been resolved.
func (p Progress) Started() bool {
	for _, s := range p {
		if s.Resolved() {
			return true
		}
	}
	return false
}

// Counts tallies entries per state.
func (p Progress) Counts() map[State]int {
	counts := make(map[State]int, 4)
	for _, s := range p {
		counts[s]++
	}
	return counts
}

// Validate checks p against a keyword list of length n.
func (p Progress) Validate(n int) error {
	if len(p) != n {
		return fmt.Errorf("%w: progress has %d entries for %d keywords", ErrInvariantViolation, len(p), n)
	}
	current := 0
	for i, s := range p {
		if !s.Valid() {
			return fmt.Errorf("%w: keyword %d has unknown state %d", ErrInvariantViolation, i, int(s))
		}
		if s == Current {
			current++
		}
	}
	if current > 1 {
		return fmt.Errorf("%w: %d keywords marked current", ErrInvariantViolation, current)
	}
	return nil
}

// Save marks the cursor keyword Done and advances the cursor.
func (p Progress) Save(index int) (Progress, error) {
	return p.resolve(index, Done)
}

// Skip marks the cursor keyword Skipped and advances the cursor.
func (p Progress) Skip(index int) (Progress, error) {
	return p.resolve(index, Skipped)
}

// MarkAbsent reverts the cursor keyword to Pending and advances the cursor.
// The reverted keyword is left behind the cursor and is not revisited.
func (p Progress) MarkAbsent(index int) (Progress, error) {
	return p.resolve(index, Pending)
}

// Apply dispatches action to the matching transition.
func (p Progress) Apply(action Action, index int) (Progress, error) {
	switch action {
	case ActionSave:
		return p.Save(index)
	case ActionSkip:
		return p.Skip(index)
	case ActionAbsent:
		return p.MarkAbsent(index)
	default:
		return nil, fmt.Errorf("unknown keyword action %q", action)
	}
}

func (p Progress) resolve(index int, next State) (Progress, error) {
	if err := p.Validate(len(p)); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(p) {
		return nil, fmt.Errorf("%w: keyword index %d out of range [0,%d)", ErrInvariantViolation, index, len(p))
	}
	if p[index] != Current {
		return nil, fmt.Errorf("%w: keyword %d is %s, not current", ErrInvariantViolation, index, p[index])
	}

	out := p.Clone()
	out[index] = next
	for i := index + 1; i < len(out); i++ {
		if out[i] == Pending {
			out[i] = Current
			break
		}
	}
	return out, nil
}
