package scheduler

import (
	"fmt"
	"strings"
)

// buildStrategyContext assembles the free-text strategy context sent with
// every analysis request: risk configuration, current trading state and the
// outcome of the last few signals.
func (s *Scheduler) buildStrategyContext() string {
	var sb strings.Builder

	sb.WriteString("## Trading setup\n")
	sb.WriteString(fmt.Sprintf("Symbol: %s (%s)\n", s.cfg.Trading.Symbol, s.cfg.Trading.Exchange))
	sb.WriteString(fmt.Sprintf("Capital: %.2f / Risk per trade: %.1f%%\n",
		s.cfg.Trading.Capital, s.cfg.Trading.RiskPercent))
	sb.WriteString(fmt.Sprintf("Auto-trade thresholds: confidence >= %d, safety >= %d\n",
		s.cfg.Trading.MinConfidence, s.cfg.Trading.MinSafetyScore))

	sb.WriteString("\n## Current position\n")
	if s.position != nil {
		sb.WriteString(s.position.Describe())
	} else {
		sb.WriteString("FLAT")
	}
	sb.WriteString("\n")

	history := s.signals.History()
	if len(history) > 0 {
		sb.WriteString("\n## Recent signals (newest first)\n")
		limit := len(history)
		if limit > 5 {
			limit = 5
		}
		for _, sig := range history[:limit] {
			sb.WriteString(fmt.Sprintf("- %s conf=%d safety=%d entry=%.2f\n",
				sig.Decision, sig.Confidence, sig.SafetyScore, sig.Entry))
		}
	}

	if notes := strings.TrimSpace(s.cfg.Analysis.StrategyNotes); notes != "" {
		sb.WriteString("\n## Operator notes\n")
		sb.WriteString(notes)
		sb.WriteString("\n")
	}

	return sb.String()
}
