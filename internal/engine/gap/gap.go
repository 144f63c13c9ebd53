// Package gap turns the root bounds table of one finished instance into a
// normalized optimality-gap series.
package gap

import (
	"math"

	"github.com/crimson-sun/pricelog/internal/model"
)

// Mode selects how the gap of a row is measured.
type Mode int

const (
	// Instantaneous uses |primal - dual| of each row.
	Instantaneous Mode = iota
	// BestBound uses the best primal and dual bound seen so far. Falls back
	// to Instantaneous when the bound direction is ambiguous.
	BestBound
)

// Compute returns the gap series for rows and a copy of rows with Gap set.
// Events join pricing rounds to iterations: reduced-cost pricing results at
// the root node, grouped by round, map onto rows so that the first round
// aligns with the first row. Empty rows yield a GapNoData result.
func Compute(events []model.PricingEvent, rows []model.RootBoundRow, mode Mode) (model.GapResult, []model.RootBoundRow) {
	if len(rows) == 0 {
		return model.GapResult{Status: model.GapNoData}, nil
	}

	dir := direction(rows)
	best := mode == BestBound && (dir == model.DirectionPrimalUpper || dir == model.DirectionPrimalLower)

	raw := make([]float64, len(rows))
	maxGap := 0.0
	var bestP, bestD model.Bound
	for i, r := range rows {
		p, d := r.Primal, r.Dual
		if best {
			bestP = better(bestP, p, dir == model.DirectionPrimalUpper)
			bestD = better(bestD, d, dir != model.DirectionPrimalUpper)
			p, d = bestP, bestD
		}
		if !p.Known || !d.Known {
			raw[i] = math.Inf(1)
			continue
		}
		raw[i] = math.Abs(p.Value - d.Value)
		maxGap = math.Max(maxGap, raw[i])
	}

	rounds := rootRounds(events)
	offset := rows[0].Iteration

	out := make([]model.RootBoundRow, len(rows))
	points := make([]model.GapPoint, len(rows))
	for i, r := range rows {
		g := normalize(raw[i], maxGap)
		r.Gap = g
		out[i] = r

		pt := model.GapPoint{Iteration: r.Iteration, Gap: g}
		if k := r.Iteration - offset; k >= 0 && k < len(rounds) {
			pt.Round = rounds[k]
		}
		points[i] = pt
	}
	return model.GapResult{Status: model.GapOK, Direction: dir, Points: points}, out
}

// direction takes the first finite pair as authoritative: primal above dual
// means primal is the upper bound, anything else means lower. A later pair
// strictly ordered the other way makes the run ambiguous; equal bounds agree
// with either ordering.
func direction(rows []model.RootBoundRow) model.Direction {
	dir := model.DirectionUnknown
	for _, r := range rows {
		if !r.Primal.Known || !r.Dual.Known {
			continue
		}
		p, d := r.Primal.Value, r.Dual.Value
		switch dir {
		case model.DirectionUnknown:
			if p > d {
				dir = model.DirectionPrimalUpper
			} else {
				dir = model.DirectionPrimalLower
			}
		case model.DirectionPrimalUpper:
			if p < d {
				return model.DirectionAmbiguous
			}
		case model.DirectionPrimalLower:
			if p > d {
				return model.DirectionAmbiguous
			}
		}
	}
	return dir
}

// better keeps the running best of cur and next: the minimum when lower is
// better, the maximum otherwise. Unknown values never replace known ones.
func better(cur, next model.Bound, lowerIsBetter bool) model.Bound {
	switch {
	case !next.Known:
		return cur
	case !cur.Known:
		return next
	case lowerIsBetter && next.Value < cur.Value:
		return next
	case !lowerIsBetter && next.Value > cur.Value:
		return next
	}
	return cur
}

func normalize(g, maxGap float64) float64 {
	if math.IsInf(g, 0) || math.IsNaN(g) {
		return 1
	}
	if maxGap <= 0 {
		return 0
	}
	return math.Min(1, math.Max(0, g/maxGap))
}

// rootRounds lists, in order, the distinct rounds with reduced-cost pricing
// results at the root node.
func rootRounds(events []model.PricingEvent) []int {
	var rounds []int
	for _, e := range events {
		if e.Node != model.RootNode || e.Farkas || e.Prob < 0 {
			continue
		}
		if n := len(rounds); n == 0 || rounds[n-1] != e.Round {
			rounds = append(rounds, e.Round)
		}
	}
	return rounds
}
