package model

import "fmt"

// Status is the terminal status of one solver instance.
type Status int

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusInfeasible
	StatusTimeLimit
	StatusMemLimit
	StatusNodeLimit
	StatusAbrupt    // transcript ended or broke before a terminal marker
	StatusTruncated // line guard tripped
)

var statusNames = [...]string{
	StatusUnknown:    "unknown",
	StatusOptimal:    "optimal",
	StatusInfeasible: "infeasible",
	StatusTimeLimit:  "time_limit",
	StatusMemLimit:   "mem_limit",
	StatusNodeLimit:  "node_limit",
	StatusAbrupt:     "abrupt",
	StatusTruncated:  "truncated",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return StatusUnknown, fmt.Errorf("unknown status %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	v, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
