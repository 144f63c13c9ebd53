package session

import (
	"errors"

	"go.uber.org/zap"

	"github.com/crimson-sun/pricelog/internal/engine/aggregate"
	"github.com/crimson-sun/pricelog/internal/engine/classifier"
	"github.com/crimson-sun/pricelog/internal/engine/rootbounds"
	"github.com/crimson-sun/pricelog/internal/model"
)

const (
	timeEpsilon = 1e-9
	solTol      = 1e-6
)

type handler func(m *Machine, msg classifier.Message) error

// transitions is the dispatch table. Nil entries are ignored messages.
var transitions [numStates][classifier.NumKinds]handler

var pricingKinds = []classifier.Kind{
	classifier.NewPricingRound,
	classifier.MasterLPTimestamp,
	classifier.StabilizationRound,
	classifier.ColumnPoolHit,
	classifier.PricingProblemResult,
}

var liveStates = []State{CollectingHeader, InFarkas, InRedCost}

func on(s State, k classifier.Kind, h handler) {
	transitions[s][k] = h
}

func init() {
	for _, s := range []State{Idle, Done, Truncated, Skipping} {
		on(s, classifier.InstanceBoundary, (*Machine).onBoundary)
		on(s, classifier.SettingsLoaded, (*Machine).onPendingSettings)
	}

	// A transcript of a single solver run may lack the boundary marker; its
	// first instance output opens a session implicitly.
	on(Idle, classifier.ParseError, (*Machine).onStrayParseError)
	on(Idle, classifier.ReadProblem, (*Machine).implicitStart)
	on(Idle, classifier.VariableRecord, (*Machine).implicitStart)
	on(Idle, classifier.RootBoundsBegin, (*Machine).implicitStart)
	for _, k := range pricingKinds {
		on(Idle, k, (*Machine).implicitStart)
	}

	for _, s := range liveStates {
		on(s, classifier.InstanceBoundary, (*Machine).onAbruptBoundary)
		on(s, classifier.SettingsLoaded, (*Machine).onSettings)
		on(s, classifier.ReadProblem, (*Machine).onReadProblem)
		on(s, classifier.FarkasPhaseEnd, (*Machine).onFarkasEnd)
		on(s, classifier.StatusLine, (*Machine).onStatus)
		on(s, classifier.VariableRecord, (*Machine).onVariable)
		on(s, classifier.RootBoundsBegin, (*Machine).onRootBegin)
		on(s, classifier.RootBoundsHeader, (*Machine).onRootHeader)
		on(s, classifier.RootBoundsRow, (*Machine).onRootRow)
		on(s, classifier.RootBoundsEnd, (*Machine).onRootEnd)
		on(s, classifier.ParseError, (*Machine).onParseError)
		on(s, classifier.NewPricingRound, (*Machine).onNewRound)
		on(s, classifier.MasterLPTimestamp, (*Machine).onMasterLP)
		on(s, classifier.StabilizationRound, (*Machine).onStabRound)
		on(s, classifier.ColumnPoolHit, (*Machine).onColumnPool)
		on(s, classifier.PricingProblemResult, (*Machine).onPricingResult)
	}

	// The first pricing diagnostic ends the header.
	for _, k := range pricingKinds {
		on(CollectingHeader, k, enterPhase(transitions[InFarkas][k]))
	}
}

func enterPhase(h handler) handler {
	return func(m *Machine, msg classifier.Message) error {
		if m.cur.farkas {
			m.state = InFarkas
		} else {
			m.state = InRedCost
		}
		return h(m, msg)
	}
}

func (m *Machine) onBoundary(classifier.Message) error {
	m.start()
	return nil
}

func (m *Machine) onAbruptBoundary(msg classifier.Message) error {
	m.anomaly(MissingTerminalMarker, zap.String("reason", "next instance started"))
	if err := m.finalize(model.StatusAbrupt, Idle); err != nil {
		return err
	}
	return m.onBoundary(msg)
}

func (m *Machine) implicitStart(msg classifier.Message) error {
	m.log.Debug("instance output without boundary marker", zap.String("file", m.file))
	m.start()
	return m.dispatch(msg)
}

func (m *Machine) onPendingSettings(msg classifier.Message) error {
	m.settings.put(msg.Name)
	return nil
}

func (m *Machine) onStrayParseError(msg classifier.Message) error {
	m.anomaly(CorruptedNumericField, zap.String("line", msg.Raw), zap.Error(msg.Err))
	return nil
}

func (m *Machine) onSettings(msg classifier.Message) error {
	m.cur.settings.put(msg.Name)
	return nil
}

func (m *Machine) onReadProblem(msg classifier.Message) error {
	name := instanceName(msg.Name)
	m.cur.name.put(name)
	if !m.opts.acceptsInstance(name) {
		m.log.Debug("instance filtered out", zap.String("file", m.file), zap.String("instance", name))
		m.cur = nil
		m.state = Skipping
	}
	return nil
}

func (m *Machine) onFarkasEnd(classifier.Message) error {
	if err := m.flushAggregate(); err != nil || !m.live() {
		return err
	}
	m.cur.farkas = false
	if m.state == InFarkas {
		m.state = InRedCost
	}
	return nil
}

func (m *Machine) onStatus(msg classifier.Message) error {
	m.cur.status.put(msg.Status)
	return m.finalize(msg.Status, Done)
}

func (m *Machine) onVariable(msg classifier.Message) error {
	ev := model.VariableCreationEvent{
		Time:      msg.Time,
		Incumbent: msg.SolVal > solTol,
		RootLP:    msg.RootLPSolVal > solTol,
	}
	if _, err := m.cur.vars.Append(ev); err != nil {
		return m.trip()
	}
	return nil
}

func (m *Machine) onRootBegin(classifier.Message) error {
	m.cur.roots.Begin()
	return nil
}

func (m *Machine) onRootHeader(msg classifier.Message) error {
	if err := m.cur.roots.Header(msg.Fields); err != nil {
		m.anomaly(HeaderInconsistency, zap.Error(err))
	}
	return nil
}

func (m *Machine) onRootRow(msg classifier.Message) error {
	if _, err := m.cur.roots.Row(msg.Fields); err != nil {
		kind := HeaderInconsistency
		if errors.Is(err, rootbounds.ErrBadCell) {
			kind = CorruptedNumericField
		}
		m.anomaly(kind, zap.Error(err))
	}
	return nil
}

func (m *Machine) onRootEnd(classifier.Message) error {
	m.cur.roots.End()
	return nil
}

func (m *Machine) onParseError(msg classifier.Message) error {
	m.anomaly(CorruptedNumericField, zap.String("line", msg.Raw), zap.Error(msg.Err))
	return m.finalize(model.StatusAbrupt, Skipping)
}

func (m *Machine) onNewRound(msg classifier.Message) error {
	if err := m.flushAggregate(); err != nil || !m.live() {
		return err
	}
	s := m.cur
	s.round++
	s.seq++
	s.stab = 0
	s.node = msg.ID
	s.resetRoundKeys()
	return nil
}

// onStabRound starts a stabilization round. Repeating the current number
// keeps the (node, round, stab) key, so its records stay open for merging.
func (m *Machine) onStabRound(msg classifier.Message) error {
	if msg.ID == m.cur.stab {
		m.cur.seq++
		return nil
	}
	if err := m.flushAggregate(); err != nil || !m.live() {
		return err
	}
	s := m.cur
	s.stab = msg.ID
	s.seq++
	s.resetRoundKeys()
	return nil
}

// onMasterLP pairs timestamps: the first opens a bracket around a master LP
// solve, the second closes it.
func (m *Machine) onMasterLP(msg classifier.Message) error {
	s := m.cur
	if !s.masterOpen {
		s.masterOpen = true
		s.masterStart = msg.Time
		return nil
	}
	s.masterOpen = false
	elapsed := msg.Time - s.masterStart
	if elapsed < MinReportableTime-timeEpsilon {
		return nil
	}
	if s.masterIdx >= 0 {
		s.events.At(s.masterIdx).Elapsed += elapsed
		return nil
	}
	idx, full := m.emit(model.PricingEvent{
		Node:      s.node,
		Round:     s.round,
		StabRound: s.stab,
		Prob:      model.ProbMasterLP,
		Elapsed:   elapsed,
		Farkas:    s.farkas,
	})
	if full {
		return m.trip()
	}
	s.masterIdx = idx
	return nil
}

func (m *Machine) onColumnPool(msg classifier.Message) error {
	if msg.ID == 0 {
		return nil
	}
	s := m.cur
	_, full := m.emit(model.PricingEvent{
		Node:      s.node,
		Round:     s.round,
		StabRound: s.stab,
		Prob:      model.ProbColumnPool,
		Vars:      msg.ID,
		Farkas:    s.farkas,
	})
	if full {
		return m.trip()
	}
	return nil
}

func (m *Machine) onPricingResult(msg classifier.Message) error {
	s := m.cur
	if m.opts.Aggregate {
		key := aggregate.Key{Node: s.node, Round: s.round, StabRound: s.stab, Farkas: s.farkas}
		if closed, ok := s.agg.Add(key, msg.Vars, msg.Time); ok {
			if _, full := m.emit(closed); full {
				return m.trip()
			}
		}
		return nil
	}

	if idx, ok := s.probIdx[msg.ID]; ok {
		ev := s.events.At(idx)
		ev.Vars += msg.Vars
		ev.Elapsed += msg.Time
		return nil
	}
	idx, full := m.emit(model.PricingEvent{
		Node:      s.node,
		Round:     s.round,
		StabRound: s.stab,
		Prob:      msg.ID,
		Elapsed:   msg.Time,
		Vars:      msg.Vars,
		Farkas:    s.farkas,
	})
	if full {
		return m.trip()
	}
	if idx >= 0 {
		s.probIdx[msg.ID] = idx
	}
	return nil
}
