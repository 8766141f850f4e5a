package keywords

import (
	"fmt"
	"strings"
)

// State is the annotation state of a single keyword.
type State int

const (
	Pending State = 1
	Done    State = 2
	Current State = 3
	Skipped State = 4
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Done:
		return "done"
	case Current:
		return "current"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Valid reports whether s is one of the four known states.
func (s State) Valid() bool {
	return s >= Pending && s <= Skipped
}

// Resolved reports whether the keyword needs no further work.
func (s State) Resolved() bool {
	return s == Done || s == Skipped
}

// ParseState accepts either the state name or its wire integer.
func ParseState(value string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "pending", "1":
		return Pending, nil
	case "done", "2":
		return Done, nil
	case "current", "3":
		return Current, nil
	case "skipped", "4":
		return Skipped, nil
	default:
		return 0, fmt.Errorf("%w: unknown keyword state %q", ErrInvariantViolation, value)
	}
}
