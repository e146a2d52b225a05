package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks a scenario that cannot be simulated.
	ErrConfiguration = errors.New("invalid scenario configuration")
	// ErrUnknownLocation indicates a reference to a node or edge outside the network.
	ErrUnknownLocation = errors.New("unknown location")
	// ErrUnknownEdge indicates a transport referencing a missing or mistyped edge.
	ErrUnknownEdge = errors.New("unknown edge")
	// ErrUnknownElement indicates a reference to an element with no definition.
	ErrUnknownElement = errors.New("unknown element")
	// ErrDuplicateElement indicates two definitions or two creations of one element.
	ErrDuplicateElement = errors.New("duplicate element")
	// ErrDuplicateLocation indicates a node and edge (or two of either) sharing an ID.
	ErrDuplicateLocation = errors.New("duplicate location")
	// ErrInvalidEvent indicates an event without a payload or with an invalid state index.
	ErrInvalidEvent = errors.New("invalid event")
)

// ConfigurationError collects every structural problem found while
// validating a scenario. It is returned before replay starts and no results
// are produced.
type ConfigurationError struct {
	Problems []error
}

func (e *ConfigurationError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("%v: %v", ErrConfiguration, e.Problems[0])
	}
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return fmt.Sprintf("%v: %d problems: %s", ErrConfiguration, len(e.Problems), strings.Join(msgs, "; "))
}

// Unwrap exposes ErrConfiguration and every individual problem so callers
// can match either with errors.Is.
func (e *ConfigurationError) Unwrap() []error {
	out := make([]error, 0, len(e.Problems)+1)
	out = append(out, ErrConfiguration)
	out = append(out, e.Problems...)
	return out
}
