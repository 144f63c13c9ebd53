package model

// Info summarizes one instance session.
type Info struct {
	InstanceName string `json:"instance_name"`
	SettingsName string `json:"settings_name"`
	Status       Status `json:"status"`
	File         string `json:"file"`
	Lines        int    `json:"lines"`
	Diagnostics  int    `json:"diagnostics"` // pricing and variable lines, counted against the line limit
	Rounds       int    `json:"rounds"`
	Anomalies    int    `json:"anomalies"`
}

// Snapshot is the immutable result of parsing one instance. It is produced
// exactly once per instance and handed to an output.
type Snapshot struct {
	Info           Info                    `json:"info"`
	Events         []PricingEvent          `json:"events,omitempty"`
	RootBounds     []RootBoundRow          `json:"root_bounds,omitempty"`
	Variables      []VariableCreationEvent `json:"variables,omitempty"`
	IncumbentTimes []float64               `json:"incumbent_times,omitempty"`
	RootLPTimes    []float64               `json:"root_lp_times,omitempty"`
	Gap            GapResult               `json:"gap"`
}
