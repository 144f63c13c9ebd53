package session

import (
	"slices"
	"strings"
)

// DefaultLineLimit is the default number of diagnostic lines an instance may
// produce before its session is truncated.
const DefaultLineLimit = 1_000_000

// MinReportableTime is the smallest master LP duration the solver can
// report meaningfully. Shorter brackets are suppressed.
const MinReportableTime = 0.01

// Options is the immutable filter configuration every session is created
// with. Zero upper bounds mean unbounded.
type Options struct {
	MinRound int
	MaxRound int
	MinNode  int
	MaxNode  int

	// InstanceFilter keeps only instances whose name contains one of the
	// substrings. Empty keeps everything.
	InstanceFilter []string

	// Aggregate merges the pricing problem results of a round into one record.
	Aggregate bool

	// LineLimit caps the diagnostic lines accepted per instance.
	LineLimit int

	// BestBound selects best-bound tracking for the gap series.
	BestBound bool
}

// withDefaults returns a private copy of o with defaults applied.
func (o Options) withDefaults() Options {
	if o.LineLimit <= 0 {
		o.LineLimit = DefaultLineLimit
	}
	o.InstanceFilter = slices.Clone(o.InstanceFilter)
	return o
}

func (o Options) inWindow(node, round int) bool {
	if round < o.MinRound || (o.MaxRound > 0 && round > o.MaxRound) {
		return false
	}
	if node < o.MinNode || (o.MaxNode > 0 && node > o.MaxNode) {
		return false
	}
	return true
}

func (o Options) acceptsInstance(name string) bool {
	if len(o.InstanceFilter) == 0 {
		return true
	}
	for _, sub := range o.InstanceFilter {
		if strings.Contains(name, sub) {
			return true
		}
	}
	return false
}
