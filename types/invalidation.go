// Package types contains shared domain types used across vizflow
package types

import (
	"fmt"
	"math"
	"strings"
)

// InvalidationLevel orders how stale a processor's outputs are.
// Levels only escalate until an evaluation pass clears them.
type InvalidationLevel int

const (
	// Valid means outputs reflect the current inputs and properties.
	Valid InvalidationLevel = iota
	// InvalidOutput means outputs must be recomputed.
	InvalidOutput
	// InvalidResources means internal resources must be rebuilt before recomputing.
	InvalidResources
)

// String returns the string representation of the level
func (l InvalidationLevel) String() string {
	switch l {
	case Valid:
		return "valid"
	case InvalidOutput:
		return "invalid_output"
	case InvalidResources:
		return "invalid_resources"
	default:
		return fmt.Sprintf("invalidation_level(%d)", int(l))
	}
}

// IsValid reports whether l is Valid.
func (l InvalidationLevel) IsValid() bool { return l == Valid }

// MarshalText implements encoding.TextMarshaler
func (l InvalidationLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (l *InvalidationLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseInvalidationLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseInvalidationLevel parses the String form of a level.
func ParseInvalidationLevel(s string) (InvalidationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "valid":
		return Valid, nil
	case "invalid_output":
		return InvalidOutput, nil
	case "invalid_resources":
		return InvalidResources, nil
	default:
		return Valid, fmt.Errorf("unknown invalidation level %q", s)
	}
}

// MaxLevel returns the more severe of a and b.
func MaxLevel(a, b InvalidationLevel) InvalidationLevel {
	if a > b {
		return a
	}
	return b
}

// MinLevel returns the less severe of a and b.
func MinLevel(a, b InvalidationLevel) InvalidationLevel {
	if a < b {
		return a
	}
	return b
}

// Position is the 2D placement of a processor in the network editor.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Distance returns the euclidean distance between two positions.
func (p Position) Distance(o Position) float64 {
	dx := float64(p.X - o.X)
	dy := float64(p.Y - o.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
