// Package classifier maps solver transcript lines to typed messages using a
// fixed, versioned set of line prefixes.
package classifier

import (
	"fmt"
	"math"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/crimson-sun/pricelog/internal/model"
)

// Version identifies the recognized prefix set. Bump it whenever a line
// form is added or changed.
const Version = 1

// Kind is the tag of a classified line.
type Kind int

const (
	Noise Kind = iota
	InstanceBoundary
	SettingsLoaded
	ReadProblem
	FarkasPhaseEnd
	StatusLine
	VariableRecord
	RootBoundsBegin
	RootBoundsHeader
	RootBoundsRow
	RootBoundsEnd
	NewPricingRound
	MasterLPTimestamp
	StabilizationRound
	ColumnPoolHit
	PricingProblemResult
	ParseError

	// NumKinds is the number of message kinds, for dispatch tables.
	NumKinds
)

var kindNames = [...]string{
	Noise:                "noise",
	InstanceBoundary:     "instance_boundary",
	SettingsLoaded:       "settings_loaded",
	ReadProblem:          "read_problem",
	FarkasPhaseEnd:       "farkas_phase_end",
	StatusLine:           "status_line",
	VariableRecord:       "variable_record",
	RootBoundsBegin:      "root_bounds_begin",
	RootBoundsHeader:     "root_bounds_header",
	RootBoundsRow:        "root_bounds_row",
	RootBoundsEnd:        "root_bounds_end",
	NewPricingRound:      "new_pricing_round",
	MasterLPTimestamp:    "master_lp_timestamp",
	StabilizationRound:   "stabilization_round",
	ColumnPoolHit:        "column_pool_hit",
	PricingProblemResult: "pricing_problem_result",
	ParseError:           "parse_error",
}

func (k Kind) String() string {
	if k < 0 || k >= NumKinds {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// IsPricing reports whether k is one of the pricing diagnostic payloads.
func (k Kind) IsPricing() bool {
	return k >= NewPricingRound && k <= PricingProblemResult
}

// Phase selects how a line is read. Inside the root bounds table lines are
// header or rows rather than free-form output.
type Phase int

const (
	PhaseNormal Phase = iota
	PhaseRootBoundsHeader
	PhaseRootBoundsBody
)

// Message is a classified line. Only the fields relevant to Kind are set.
type Message struct {
	Kind Kind

	Name   string       // SettingsLoaded, ReadProblem
	Status model.Status // StatusLine
	ID     int          // node, stabilization round, pool count or pricing problem id
	Vars   int          // PricingProblemResult
	Time   float64      // MasterLPTimestamp, PricingProblemResult, VariableRecord

	SolVal       float64 // VariableRecord
	RootLPSolVal float64 // VariableRecord

	Fields []string // RootBoundsHeader, RootBoundsRow

	// Reclassify is set on a RootBoundsEnd caused by a line that belongs to
	// the normal output and must be classified again in PhaseNormal.
	Reclassify bool

	Raw string // ParseError: the offending line
	Err error  // ParseError: the parse failure
}

const boundaryPrefix = "@01"

var (
	reNewRound = regexp.MustCompile(`^New pricing round at node (\S+)`)
	reMasterLP = regexp.MustCompile(`^Master LP time:?\s+(\S+)`)
	reStab     = regexp.MustCompile(`^Stabilization round (\S+)`)
	rePool     = regexp.MustCompile(`^Column pool found (\S+) vars?\b`)
	reProb     = regexp.MustCompile(`^Pricing prob (\S+) found (\S+) vars? in (\S+)`)
)

// Classify maps one raw line to a tagged message.
func Classify(line string, phase Phase) Message {
	s := strings.TrimSpace(line)
	switch phase {
	case PhaseRootBoundsHeader:
		if s == "" {
			return Message{Kind: Noise}
		}
		if strings.HasPrefix(s, boundaryPrefix) {
			return Message{Kind: RootBoundsEnd, Reclassify: true}
		}
		return Message{Kind: RootBoundsHeader, Fields: strings.Fields(s)}
	case PhaseRootBoundsBody:
		if s == "" {
			return Message{Kind: RootBoundsEnd}
		}
		fields := strings.Fields(s)
		if _, err := strconv.Atoi(fields[0]); err != nil {
			return Message{Kind: RootBoundsEnd, Reclassify: true}
		}
		return Message{Kind: RootBoundsRow, Fields: fields}
	}
	return classifyNormal(s, line)
}

func classifyNormal(s, raw string) Message {
	switch {
	case s == "":
		return Message{Kind: Noise}
	case strings.HasPrefix(s, boundaryPrefix):
		return Message{Kind: InstanceBoundary}
	case strings.HasPrefix(s, "loaded parameter file"):
		p := bracketed(strings.TrimPrefix(s, "loaded parameter file"))
		return Message{Kind: SettingsLoaded, Name: strings.TrimSuffix(path.Base(p), ".set")}
	case strings.HasPrefix(s, "read problem"):
		return Message{Kind: ReadProblem, Name: bracketed(strings.TrimPrefix(s, "read problem"))}
	case strings.HasPrefix(s, "Starting reduced cost pricing"):
		return Message{Kind: FarkasPhaseEnd}
	case strings.HasPrefix(s, "SCIP Status"):
		return classifyStatus(s)
	case strings.HasPrefix(s, "VAR:"):
		return classifyVariable(s, raw)
	case strings.HasPrefix(s, "Root bounds") && strings.HasSuffix(s, ":"):
		return Message{Kind: RootBoundsBegin}
	}
	return classifyPricing(stripTags(s), raw)
}

func classifyStatus(s string) Message {
	_, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Message{Kind: Noise}
	}
	reason := rest
	if i := strings.IndexByte(rest, '['); i >= 0 {
		reason = strings.TrimSuffix(rest[i+1:], "]")
	}
	return Message{Kind: StatusLine, Status: statusFromReason(reason)}
}

func statusFromReason(reason string) model.Status {
	r := strings.ToLower(reason)
	switch {
	case strings.Contains(r, "optimal solution found"):
		return model.StatusOptimal
	case strings.Contains(r, "infeasible"):
		return model.StatusInfeasible
	case strings.Contains(r, "time limit"):
		return model.StatusTimeLimit
	case strings.Contains(r, "memory limit"):
		return model.StatusMemLimit
	case strings.Contains(r, "node limit"):
		return model.StatusNodeLimit
	default:
		return model.StatusUnknown
	}
}

// classifyVariable reads "VAR: <name> <time> <solval> <rootlpsolval>". The
// name may contain blanks, so the numeric fields are taken from the end.
func classifyVariable(s, raw string) Message {
	fields := strings.Fields(strings.TrimPrefix(s, "VAR:"))
	if len(fields) < 4 {
		return parseError(raw, fmt.Errorf("variable record has %d fields, want at least 4", len(fields)))
	}
	n := len(fields)
	t, err := parseNonNegFloat(fields[n-3])
	if err != nil {
		return parseError(raw, err)
	}
	sol, err := strconv.ParseFloat(fields[n-2], 64)
	if err != nil {
		return parseError(raw, err)
	}
	root, err := strconv.ParseFloat(fields[n-1], 64)
	if err != nil {
		return parseError(raw, err)
	}
	return Message{Kind: VariableRecord, Time: t, SolVal: sol, RootLPSolVal: root}
}

func classifyPricing(p, raw string) Message {
	if m := reNewRound.FindStringSubmatch(p); m != nil {
		node, err := parseNonNegInt(m[1])
		if err != nil {
			return parseError(raw, err)
		}
		return Message{Kind: NewPricingRound, ID: node}
	}
	if m := reMasterLP.FindStringSubmatch(p); m != nil {
		t, err := parseNonNegFloat(m[1])
		if err != nil {
			return parseError(raw, err)
		}
		return Message{Kind: MasterLPTimestamp, Time: t}
	}
	if m := reStab.FindStringSubmatch(p); m != nil {
		k, err := parseNonNegInt(m[1])
		if err != nil {
			return parseError(raw, err)
		}
		return Message{Kind: StabilizationRound, ID: k}
	}
	if m := rePool.FindStringSubmatch(p); m != nil {
		n, err := parseNonNegInt(m[1])
		if err != nil {
			return parseError(raw, err)
		}
		return Message{Kind: ColumnPoolHit, ID: n}
	}
	if m := reProb.FindStringSubmatch(p); m != nil {
		id, err := parseNonNegInt(m[1])
		if err != nil {
			return parseError(raw, err)
		}
		vars, err := parseNonNegInt(m[2])
		if err != nil {
			return parseError(raw, err)
		}
		t, err := parseNonNegFloat(m[3])
		if err != nil {
			return parseError(raw, err)
		}
		return Message{Kind: PricingProblemResult, ID: id, Vars: vars, Time: t}
	}
	return Message{Kind: Noise}
}

// stripTags removes a leading "[file:line]" location tag and a "pricing:"
// or "debug:" tag from a diagnostic line.
func stripTags(s string) string {
	if strings.HasPrefix(s, "[") {
		if i := strings.IndexByte(s, ']'); i >= 0 {
			s = strings.TrimSpace(s[i+1:])
		}
	}
	for _, tag := range []string{"pricing:", "debug:"} {
		if strings.HasPrefix(s, tag) {
			return strings.TrimSpace(s[len(tag):])
		}
	}
	return s
}

// bracketed returns the text inside <...>, or the trimmed input when there
// are no brackets.
func bracketed(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '<'); i >= 0 {
		if j := strings.LastIndexByte(s, '>'); j > i {
			return s[i+1 : j]
		}
	}
	return s
}

func trimNumber(s string) string {
	return strings.TrimRight(s, ":,;")
}

func parseNonNegInt(s string) (int, error) {
	n, err := strconv.Atoi(trimNumber(s))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}

func parseNonNegFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(trimNumber(s), 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return f, nil
}

func parseError(raw string, err error) Message {
	return Message{Kind: ParseError, Raw: raw, Err: err}
}
