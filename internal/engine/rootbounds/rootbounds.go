// Package rootbounds extracts the per-iteration primal/dual bound table the
// solver prints for the root node.
//
// The table starts with a "Root bounds:" line, followed by one header line
// of whitespace-delimited column names and zero or more numeric rows:
//
//	Root bounds              :
//	  iter        pb        db      time
//	     0     1e+20         0      0.10
//	     1        10         5      0.20
//
// Columns "iter", "pb" and "db" are required; other columns are ignored.
package rootbounds

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/crimson-sun/pricelog/internal/engine/classifier"
	"github.com/crimson-sun/pricelog/internal/model"
)

var (
	// ErrMissingColumns is returned by Header when a required column is absent.
	ErrMissingColumns = errors.New("rootbounds: header lacks iter/pb/db column")
	// ErrColumnMismatch is returned by Row when the row width differs from the header.
	ErrColumnMismatch = errors.New("rootbounds: row/header column count mismatch")
	// ErrBadCell is returned by Row when a required cell is not numeric.
	ErrBadCell = errors.New("rootbounds: unparsable cell")
)

type state int

const (
	idle state = iota
	inHeader
	inBody
)

// Parser is a small state machine fed by the session with the root bounds
// messages of the classifier.
type Parser struct {
	state state

	width   int
	iterCol int
	pbCol   int
	dbCol   int
	valid   bool // header had all required columns

	// last known values, used for "-" cells
	lastPrimal model.Bound
	lastDual   model.Bound

	rows []model.RootBoundRow
}

// New returns an idle Parser.
func New() *Parser {
	return &Parser{}
}

// Phase returns the classifier phase matching the parser state.
func (p *Parser) Phase() classifier.Phase {
	switch p.state {
	case inHeader:
		return classifier.PhaseRootBoundsHeader
	case inBody:
		return classifier.PhaseRootBoundsBody
	default:
		return classifier.PhaseNormal
	}
}

// Begin starts a new table. A table seen earlier in the same instance is
// replaced.
func (p *Parser) Begin() {
	p.state = inHeader
	p.valid = false
	p.lastPrimal = model.Bound{}
	p.lastDual = model.Bound{}
	p.rows = p.rows[:0]
}

// Header records the column layout. On ErrMissingColumns the table body is
// still consumed but every row is dropped.
func (p *Parser) Header(cols []string) error {
	p.state = inBody
	p.width = len(cols)
	p.iterCol, p.pbCol, p.dbCol = -1, -1, -1
	for i, c := range cols {
		switch c {
		case "iter":
			p.iterCol = i
		case "pb":
			p.pbCol = i
		case "db":
			p.dbCol = i
		}
	}
	p.valid = p.iterCol >= 0 && p.pbCol >= 0 && p.dbCol >= 0
	if !p.valid {
		return fmt.Errorf("%w: %v", ErrMissingColumns, cols)
	}
	return nil
}

// Row adds one table row. A row that cannot be used is skipped: err is
// non-nil when the row itself is malformed, and nil when the whole table is
// being dropped because of a bad header.
func (p *Parser) Row(fields []string) (added bool, err error) {
	if !p.valid {
		return false, nil
	}
	if len(fields) != p.width {
		return false, fmt.Errorf("%w: got %d, want %d", ErrColumnMismatch, len(fields), p.width)
	}
	iter, err := strconv.Atoi(fields[p.iterCol])
	if err != nil {
		return false, fmt.Errorf("%w: iter %q", ErrBadCell, fields[p.iterCol])
	}
	primal, err := cell(fields[p.pbCol], p.lastPrimal)
	if err != nil {
		return false, err
	}
	dual, err := cell(fields[p.dbCol], p.lastDual)
	if err != nil {
		return false, err
	}
	p.lastPrimal, p.lastDual = primal, dual
	p.rows = append(p.rows, model.RootBoundRow{Iteration: iter, Primal: primal, Dual: dual})
	return true, nil
}

// End closes the table.
func (p *Parser) End() {
	p.state = idle
}

// Rows returns a copy of the parsed rows, or nil if there are none.
func (p *Parser) Rows() []model.RootBoundRow {
	if len(p.rows) == 0 {
		return nil
	}
	out := make([]model.RootBoundRow, len(p.rows))
	copy(out, p.rows)
	return out
}

// cell parses one bound cell. "-" and "--" repeat the last known value.
func cell(s string, last model.Bound) (model.Bound, error) {
	if s == "-" || s == "--" {
		return last, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return model.Bound{}, fmt.Errorf("%w: %q", ErrBadCell, s)
	}
	return model.NewBound(v), nil
}
