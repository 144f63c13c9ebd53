// Package aggregate folds the pricing problem results of one round into a single record.
package aggregate

import "github.com/crimson-sun/pricelog/internal/model"

// Key identifies the pricing round a group collects results for. Results
// from different keys never merge.
type Key struct {
	Node      int
	Round     int
	StabRound int
	Farkas    bool
}

// group accumulates pricing problem results under one key.
type group struct {
	key     Key
	count   int
	vars    int
	elapsed float64
}

// Aggregator collapses all pricing problem results of one round (or
// stabilization round) into a single synthetic record with summed time and
// variables. At most one group is open at a time.
type Aggregator struct {
	cur *group
}

// New creates an Aggregator with no open group.
func New() *Aggregator {
	return &Aggregator{}
}

// Add folds one pricing problem result into the group for k. When k differs
// from the open group's key, the open group is closed first and returned
// with ok set.
func (a *Aggregator) Add(k Key, vars int, elapsed float64) (closed model.PricingEvent, ok bool) {
	if a.cur != nil && a.cur.key != k {
		closed, ok = a.Flush()
	}
	if a.cur == nil {
		a.cur = &group{key: k}
	}
	a.cur.count++
	a.cur.vars += vars
	a.cur.elapsed += elapsed
	return closed, ok
}

// Flush closes the open group. ok is false when no group is open. The
// returned record has Prob 0 and no sequence number; the caller assigns it.
func (a *Aggregator) Flush() (model.PricingEvent, bool) {
	g := a.cur
	a.cur = nil
	if g == nil || g.count == 0 {
		return model.PricingEvent{}, false
	}
	return model.PricingEvent{
		Node:      g.key.Node,
		Round:     g.key.Round,
		StabRound: g.key.StabRound,
		Prob:      0,
		Elapsed:   g.elapsed,
		Vars:      g.vars,
		Farkas:    g.key.Farkas,
	}, true
}

// Pending returns the number of results folded into the open group.
func (a *Aggregator) Pending() int {
	if a.cur == nil {
		return 0
	}
	return a.cur.count
}
