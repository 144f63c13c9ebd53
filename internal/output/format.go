package output

import (
	"strings"

	"github.com/crimson-sun/pricelog/internal/model"
)

// Verbosity controls how much of a snapshot an output writes.
type Verbosity int

const (
	// Standard writes the whole snapshot.
	Standard Verbosity = iota
	// Minimal drops the event and variable tables and the gap points.
	Minimal
)

// ParseVerbosity converts "minimal" or "standard". Unknown strings default
// to Standard.
func ParseVerbosity(s string) Verbosity {
	if strings.EqualFold(s, "minimal") {
		return Minimal
	}
	return Standard
}

func (v Verbosity) String() string {
	if v == Minimal {
		return "minimal"
	}
	return "standard"
}

// FormatSnapshot returns a copy of the snapshot with fields stripped
// according to verbosity. At Minimal the tables are nil (omitted from JSON
// via omitempty). At Standard all fields are preserved.
func FormatSnapshot(s model.Snapshot, verbosity Verbosity) model.Snapshot {
	if verbosity == Minimal {
		s.Events = nil
		s.Variables = nil
		s.Gap.Points = nil
	}
	return s
}

// Summary is the compact description of a snapshot sent to remote sinks.
type Summary struct {
	Instance   string          `json:"instance"`
	Settings   string          `json:"settings"`
	Status     model.Status    `json:"status"`
	File       string          `json:"file"`
	Rounds     int             `json:"rounds"`
	Events     int             `json:"events"`
	Variables  int             `json:"variables"`
	RootBounds int             `json:"root_bounds"`
	Anomalies  int             `json:"anomalies"`
	GapStatus  model.GapStatus `json:"gap_status"`
	FinalGap   *float64        `json:"final_gap,omitempty"`
}

// Summarize reduces a snapshot to its Summary. FinalGap is the gap of the
// last root bounds row, if any.
func Summarize(s model.Snapshot) Summary {
	sum := Summary{
		Instance:   s.Info.InstanceName,
		Settings:   s.Info.SettingsName,
		Status:     s.Info.Status,
		File:       s.Info.File,
		Rounds:     s.Info.Rounds,
		Events:     len(s.Events),
		Variables:  len(s.Variables),
		RootBounds: len(s.RootBounds),
		Anomalies:  s.Info.Anomalies,
		GapStatus:  s.Gap.Status,
	}
	if s.Gap.Status == model.GapOK && len(s.RootBounds) > 0 {
		g := s.RootBounds[len(s.RootBounds)-1].Gap
		sum.FinalGap = &g
	}
	return sum
}
