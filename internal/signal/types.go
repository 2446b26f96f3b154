package signal

import "time"

type Decision string

const (
	DecisionLong    Decision = "LONG"
	DecisionShort   Decision = "SHORT"
	DecisionNoTrade Decision = "NO_TRADE"
)

// Directional reports whether the decision calls for taking a position.
func (d Decision) Directional() bool {
	return d == DecisionLong || d == DecisionShort
}

// Signal is a validated trading recommendation. Immutable after
// normalization; confidence and safety are always within [0,100] and the
// decision is always one of the three enum values.
type Signal struct {
	Decision    Decision  `json:"decision"`
	Confidence  int       `json:"confidence"`
	SafetyScore int       `json:"safety_score"`
	Entry       float64   `json:"entry,omitempty"`
	Stoploss    float64   `json:"stoploss,omitempty"`
	Target1     float64   `json:"target1,omitempty"`
	RiskReward  string    `json:"risk_reward,omitempty"`
	Reasoning   []string  `json:"reasoning,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
