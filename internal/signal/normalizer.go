package signal

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/camuig/chartvision-agent/internal/logger"
)

const (
	historyCapacity   = 50
	maxReasoningLines = 5
)

// Normalizer projects untrusted recommendation payloads into validated
// Signals and keeps a bounded most-recent-first history. The serialized form
// of the last accepted signal is retained as conversational memory for the
// next analysis request.
type Normalizer struct {
	logger *logger.Logger
	now    func() time.Time

	mu       sync.Mutex
	history  []Signal
	prevJSON string
}

func NewNormalizer(log *logger.Logger) *Normalizer {
	return &Normalizer{
		logger: log,
		now:    time.Now,
	}
}

// Normalize validates and canonicalizes a raw payload. It returns false when
// the payload is not a structured object; a rejection has no side effect.
func (n *Normalizer) Normalize(raw json.RawMessage) (*Signal, bool) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		n.logger.Warn("rejected malformed signal payload", "length", len(raw))
		return nil, false
	}

	sig := Signal{
		Decision:    coerceDecision(fields["decision"]),
		Confidence:  clampScore(toInt(fields["confidence"])),
		SafetyScore: clampScore(toInt(fields["safety_score"])),
		Entry:       toFloat64(fields["entry"]),
		Stoploss:    toFloat64(fields["stoploss"]),
		Target1:     toFloat64(fields["target1"]),
		RiskReward:  toString(fields["risk_reward"]),
		Reasoning:   toStrings(fields["reasoning"], maxReasoningLines),
		Warnings:    toStrings(fields["warnings"], 0),
		Timestamp:   n.now(),
	}

	serialized, err := json.Marshal(&sig)
	if err != nil {
		serialized = nil
	}

	n.mu.Lock()
	n.history = append([]Signal{sig}, n.history...)
	if len(n.history) > historyCapacity {
		n.history = n.history[:historyCapacity]
	}
	if serialized != nil {
		n.prevJSON = string(serialized)
	}
	n.mu.Unlock()

	n.logger.Info("signal normalized",
		"decision", sig.Decision,
		"confidence", sig.Confidence,
		"safety_score", sig.SafetyScore,
		"entry", sig.Entry)

	return &sig, true
}

// History returns a copy of the retained signals, newest first.
func (n *Normalizer) History() []Signal {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Signal, len(n.history))
	copy(out, n.history)
	return out
}

// Latest returns the most recent signal, or nil if none has arrived yet.
func (n *Normalizer) Latest() *Signal {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.history) == 0 {
		return nil
	}
	sig := n.history[0]
	return &sig
}

// PreviousAnalysis returns the serialized last signal for use as the
// previous-analysis context of the next request. Empty until a signal has
// been accepted.
func (n *Normalizer) PreviousAnalysis() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.prevJSON
}

func coerceDecision(v interface{}) Decision {
	s, _ := v.(string)
	switch Decision(strings.ToUpper(strings.TrimSpace(s))) {
	case DecisionLong:
		return DecisionLong
	case DecisionShort:
		return DecisionShort
	default:
		return DecisionNoTrade
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func toInt(v interface{}) int {
	return int(toFloat64(v))
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

func toStrings(v interface{}, limit int) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}

	var out []string
	for _, item := range items {
		s, ok := item.(string)
		if !ok || s == "" {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
