package model

// Special pricing problem ids. Pricing subproblems are numbered from 0.
const (
	ProbMasterLP   = -2 // master LP re-solve timing
	ProbColumnPool = -1 // column pool hit
)

// RootNode is the branch-and-bound node number of the root.
const RootNode = 1

// PricingEvent is one structured pricing record. Node, Round, StabRound,
// Sequence and Prob together form its key.
type PricingEvent struct {
	Node      int     `json:"node"`
	Round     int     `json:"round"`
	StabRound int     `json:"stab_round"`
	Sequence  int     `json:"sequence"`
	Prob      int     `json:"prob"`
	Elapsed   float64 `json:"elapsed"` // seconds
	Vars      int     `json:"vars"`
	Farkas    bool    `json:"farkas"`
}

// VariableCreationEvent records when a variable was created and whether it
// ended up in the incumbent or in the root LP solution.
type VariableCreationEvent struct {
	Time      float64 `json:"time"`
	Incumbent bool    `json:"incumbent"`
	RootLP    bool    `json:"root_lp"`
}
