package model

import (
	"fmt"
	"math"
)

// InfinityThreshold is the magnitude from which the solver prints "infinite" bounds.
const InfinityThreshold = 1e20

// Bound is a primal or dual bound value. Known is false for bounds the
// solver reported as infinite or that were never observed.
type Bound struct {
	Value float64 `json:"value"`
	Known bool    `json:"known"`
}

// NewBound normalizes v: magnitudes at or above InfinityThreshold, NaN and
// infinities become an unknown bound.
func NewBound(v float64) Bound {
	if math.IsNaN(v) || math.Abs(v) >= InfinityThreshold {
		return Bound{}
	}
	return Bound{Value: v, Known: true}
}

// RootBoundRow is one iteration of the root bounds table.
type RootBoundRow struct {
	Iteration int     `json:"iteration"`
	Primal    Bound   `json:"primal"`
	Dual      Bound   `json:"dual"`
	Gap       float64 `json:"gap"` // normalized, in [0,1]
}

// GapStatus tells whether a gap series could be computed.
type GapStatus int

const (
	GapNoData GapStatus = iota
	GapOK
)

// Direction records which of the two bounds is the upper one.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionPrimalUpper
	DirectionPrimalLower
	DirectionAmbiguous
)

var gapStatusNames = [...]string{GapNoData: "no_data", GapOK: "ok"}

var directionNames = [...]string{
	DirectionUnknown:     "unknown",
	DirectionPrimalUpper: "primal_upper",
	DirectionPrimalLower: "primal_lower",
	DirectionAmbiguous:   "ambiguous",
}

func (s GapStatus) String() string { return enumName(gapStatusNames[:], int(s), "gap_status") }

func (d Direction) String() string { return enumName(directionNames[:], int(d), "direction") }

func (s GapStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (s *GapStatus) UnmarshalText(text []byte) error {
	i, err := enumIndex(gapStatusNames[:], string(text), "gap status")
	*s = GapStatus(i)
	return err
}

func (d *Direction) UnmarshalText(text []byte) error {
	i, err := enumIndex(directionNames[:], string(text), "direction")
	*d = Direction(i)
	return err
}

// GapPoint is one normalized gap value. Round is 0 when the iteration
// could not be joined to a pricing round.
type GapPoint struct {
	Iteration int     `json:"iteration"`
	Round     int     `json:"round"`
	Gap       float64 `json:"gap"`
}

// GapResult is the output of the gap metric calculator.
type GapResult struct {
	Status    GapStatus  `json:"status"`
	Direction Direction  `json:"direction"`
	Points    []GapPoint `json:"points,omitempty"`
}

func enumName(names []string, i int, kind string) string {
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("%s(%d)", kind, i)
	}
	return names[i]
}

func enumIndex(names []string, s, kind string) (int, error) {
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", kind, s)
}
