package pricelog

import "github.com/crimson-sun/pricelog/internal/model"

// Snapshot is the parse result of one solver instance.
type Snapshot = model.Snapshot

// Info summarizes one instance.
type Info = model.Info

// PricingEvent is one pricing record. Prob is a subproblem id, or one of
// ProbMasterLP and ProbColumnPool.
type PricingEvent = model.PricingEvent

// VariableCreationEvent records when a variable was created.
type VariableCreationEvent = model.VariableCreationEvent

// RootBoundRow is one iteration of the root bounds table.
type RootBoundRow = model.RootBoundRow

// GapResult is the normalized primal/dual gap series of an instance.
type GapResult = model.GapResult

// Status is the terminal status of an instance.
type Status = model.Status

const (
	StatusUnknown    = model.StatusUnknown
	StatusOptimal    = model.StatusOptimal
	StatusInfeasible = model.StatusInfeasible
	StatusTimeLimit  = model.StatusTimeLimit
	StatusMemLimit   = model.StatusMemLimit
	StatusNodeLimit  = model.StatusNodeLimit
	StatusAbrupt     = model.StatusAbrupt
	StatusTruncated  = model.StatusTruncated
)

const (
	ProbMasterLP   = model.ProbMasterLP
	ProbColumnPool = model.ProbColumnPool
)
