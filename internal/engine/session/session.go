// Package session implements the per-instance state machine that turns
// classified transcript lines into pricing events, variable records and the
// root bounds table.
//
// Exactly one instance is live at a time. Transitions are looked up in a
// table indexed by (State, classifier.Kind); a missing entry means the
// message is ignored in that state.
package session

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/crimson-sun/pricelog/internal/engine/accumulator"
	"github.com/crimson-sun/pricelog/internal/engine/aggregate"
	"github.com/crimson-sun/pricelog/internal/engine/classifier"
	"github.com/crimson-sun/pricelog/internal/engine/rootbounds"
	"github.com/crimson-sun/pricelog/internal/model"
)

// State is the machine state.
type State int

const (
	Idle             State = iota // no instance seen in the current file yet
	CollectingHeader              // instance started, no pricing output yet
	InFarkas                      // pricing, Farkas phase
	InRedCost                     // pricing, reduced cost phase
	Done                          // terminal status seen, waiting for next boundary
	Truncated                     // line guard tripped, waiting for next boundary
	Skipping                      // instance rejected or broken, waiting for next boundary

	numStates
)

var stateNames = [...]string{
	Idle:             "idle",
	CollectingHeader: "collecting_header",
	InFarkas:         "farkas",
	InRedCost:        "redcost",
	Done:             "done",
	Truncated:        "truncated",
	Skipping:         "skipping",
}

func (s State) String() string {
	if s < 0 || s >= numStates {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

const (
	defaultInstance = "unknown"
	defaultSettings = "default"
)

// Sink receives every finalized snapshot, in instance order.
type Sink func(model.Snapshot) error

// instance is the mutable state of the live session.
type instance struct {
	name     slot[string]
	settings slot[string]
	status   slot[model.Status]

	node   int
	round  int
	stab   int
	seq    int
	farkas bool

	lines       int
	diagnostics int
	anomalies   int

	events *accumulator.Buffer[model.PricingEvent]
	vars   *accumulator.Buffer[model.VariableCreationEvent]
	roots  *rootbounds.Parser
	agg    *aggregate.Aggregator

	masterOpen  bool
	masterStart float64
	masterIdx   int         // master LP record of the current round/stab, -1 if none
	probIdx     map[int]int // pricing problem id -> record of the current round/stab
}

// Machine drives instance sessions over the lines of one or more transcripts.
type Machine struct {
	opts Options
	log  *zap.Logger
	sink Sink

	file     string
	state    State
	cur      *instance
	settings slot[string] // settings announced before the instance boundary
}

// New creates a Machine. A nil logger discards diagnostics.
func New(opts Options, log *zap.Logger, sink Sink) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{opts: opts.withDefaults(), log: log, sink: sink}
}

// State returns the current machine state.
func (m *Machine) State() State { return m.state }

// BeginFile starts a new transcript. Nothing from a previous file is kept.
func (m *Machine) BeginFile(name string) {
	m.file = name
	m.state = Idle
	m.cur = nil
	m.settings = slot[string]{}
}

// EndFile finalizes a live instance as Abrupt and returns to Idle.
func (m *Machine) EndFile() error {
	var err error
	if m.live() {
		m.anomaly(MissingTerminalMarker, zap.String("reason", "end of transcript"))
		err = m.finalize(model.StatusAbrupt, Idle)
	}
	m.BeginFile("")
	return err
}

// Step consumes one transcript line. The only errors returned come from
// the sink.
func (m *Machine) Step(line string) error {
	if m.live() {
		m.cur.lines++
	}
	msg := classifier.Classify(line, m.phase())
	if err := m.dispatch(msg); err != nil {
		return err
	}
	if msg.Kind == classifier.RootBoundsEnd && msg.Reclassify {
		return m.dispatch(classifier.Classify(line, classifier.PhaseNormal))
	}
	return nil
}

func (m *Machine) live() bool {
	return m.cur != nil
}

func (m *Machine) phase() classifier.Phase {
	if m.cur == nil {
		return classifier.PhaseNormal
	}
	return m.cur.roots.Phase()
}

func (m *Machine) dispatch(msg classifier.Message) error {
	if msg.Kind == classifier.Noise {
		return nil
	}
	if m.live() && (msg.Kind.IsPricing() || msg.Kind == classifier.VariableRecord) {
		m.cur.diagnostics++
		if m.cur.diagnostics > m.opts.LineLimit {
			return m.trip()
		}
	}
	h := transitions[m.state][msg.Kind]
	if h == nil {
		return nil
	}
	return h(m, msg)
}

// start opens a fresh instance in CollectingHeader.
func (m *Machine) start() {
	m.cur = &instance{
		farkas:    true,
		lines:     1,
		events:    accumulator.New[model.PricingEvent](m.opts.LineLimit),
		vars:      accumulator.New[model.VariableCreationEvent](m.opts.LineLimit),
		roots:     rootbounds.New(),
		agg:       aggregate.New(),
		masterIdx: -1,
		probIdx:   make(map[int]int),
	}
	if m.settings.set {
		m.cur.settings.put(m.settings.v)
	}
	m.state = CollectingHeader
}

// finalize hands the live instance to the sink and moves to next.
func (m *Machine) finalize(status model.Status, next State) error {
	s := m.cur
	if m.opts.Aggregate && status != model.StatusTruncated {
		if ev, ok := s.agg.Flush(); ok {
			m.emit(ev)
		}
	}
	if status != model.StatusAbrupt && status != model.StatusTruncated {
		status = s.status.or(model.StatusUnknown)
	}

	snap := model.Snapshot{
		Info: model.Info{
			InstanceName: s.name.or(defaultInstance),
			SettingsName: s.settings.or(defaultSettings),
			Status:       status,
			File:         m.file,
			Lines:        s.lines,
			Diagnostics:  s.diagnostics,
			Rounds:       s.round,
			Anomalies:    s.anomalies,
		},
		Events:     s.events.Snapshot(),
		RootBounds: s.roots.Rows(),
		Variables:  s.vars.Snapshot(),
	}
	for _, v := range snap.Variables {
		if v.Incumbent {
			snap.IncumbentTimes = append(snap.IncumbentTimes, v.Time)
		}
		if v.RootLP {
			snap.RootLPTimes = append(snap.RootLPTimes, v.Time)
		}
	}

	m.cur = nil
	m.state = next
	return m.sink(snap)
}

// trip stops the live instance once it exceeds the line limit. Whatever was
// collected so far is flushed.
func (m *Machine) trip() error {
	m.anomaly(ResourceGuardTripped,
		zap.Int("limit", m.opts.LineLimit),
		zap.Int("events", m.cur.events.Len()),
		zap.Int("unflushed", m.cur.agg.Pending()))
	return m.finalize(model.StatusTruncated, Truncated)
}

func (m *Machine) anomaly(kind AnomalyKind, fields ...zap.Field) {
	if kind == RecoverableParseAnomaly {
		return
	}
	instance := defaultInstance
	if m.cur != nil {
		m.cur.anomalies++
		instance = m.cur.name.or(defaultInstance)
	}
	fields = append([]zap.Field{
		zap.String("file", m.file),
		zap.String("instance", instance),
		zap.Stringer("kind", kind),
		zap.Int("prefix_set", classifier.Version),
	}, fields...)
	m.log.Warn("transcript anomaly", fields...)
}

// record appends ev with the next sequence number. It returns the index of
// the stored record, or -1 when the buffer is full.
func (m *Machine) record(ev model.PricingEvent) int {
	s := m.cur
	s.seq++
	ev.Sequence = s.seq
	idx, err := s.events.Append(ev)
	if errors.Is(err, accumulator.ErrFull) {
		return -1
	}
	return idx
}

// emit records ev if it falls inside the node/round window. full is set
// when the event buffer has no room left.
func (m *Machine) emit(ev model.PricingEvent) (idx int, full bool) {
	if !m.opts.inWindow(ev.Node, ev.Round) {
		return -1, false
	}
	idx = m.record(ev)
	return idx, idx < 0
}

// flushAggregate closes the open per-round aggregate, if any.
func (m *Machine) flushAggregate() error {
	if !m.opts.Aggregate {
		return nil
	}
	if ev, ok := m.cur.agg.Flush(); ok {
		if _, full := m.emit(ev); full {
			return m.trip()
		}
	}
	return nil
}

// resetRoundKeys forgets the records of the previous round/stab key.
func (s *instance) resetRoundKeys() {
	s.masterIdx = -1
	clear(s.probIdx)
}

// instanceName strips directories, a compression suffix and the format
// extension from a problem path.
func instanceName(raw string) string {
	name := raw
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	for _, ext := range []string{".gz", ".z", ".Z", ".GZ"} {
		if strings.HasSuffix(name, ext) {
			name = strings.TrimSuffix(name, ext)
			break
		}
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}
