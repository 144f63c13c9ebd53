package session

import "fmt"

// AnomalyKind classifies a problem found in a transcript. Anomalies stay
// local to one instance and never abort a batch.
type AnomalyKind int

const (
	// RecoverableParseAnomaly is an unrecognized line. It is never logged.
	RecoverableParseAnomaly AnomalyKind = iota
	// CorruptedNumericField is a recognized line whose number does not parse.
	CorruptedNumericField
	// MissingPrerequisiteData is a gap computation without root bounds.
	MissingPrerequisiteData
	// ResourceGuardTripped is an instance that exceeded the line limit.
	ResourceGuardTripped
	// HeaderInconsistency is a root bounds row that does not fit the header.
	HeaderInconsistency
	// MissingTerminalMarker is an instance that ended without a status line.
	MissingTerminalMarker
)

var anomalyNames = [...]string{
	RecoverableParseAnomaly: "recoverable_parse_anomaly",
	CorruptedNumericField:   "corrupted_numeric_field",
	MissingPrerequisiteData: "missing_prerequisite_data",
	ResourceGuardTripped:    "resource_guard_tripped",
	HeaderInconsistency:     "header_inconsistency",
	MissingTerminalMarker:   "missing_terminal_marker",
}

func (k AnomalyKind) String() string {
	if k < 0 || int(k) >= len(anomalyNames) {
		return fmt.Sprintf("anomaly(%d)", int(k))
	}
	return anomalyNames[k]
}
