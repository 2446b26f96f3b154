package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/camuig/chartvision-agent/internal/config"
	"github.com/camuig/chartvision-agent/internal/logger"
	"github.com/camuig/chartvision-agent/internal/notify"
	"github.com/camuig/chartvision-agent/internal/platform"
	"github.com/camuig/chartvision-agent/internal/safety"
	"github.com/camuig/chartvision-agent/internal/signal"
	"github.com/camuig/chartvision-agent/internal/storage"
)

const debounceWindow = 3 * time.Second

// Analyzer is the slice of the platform client the scheduler needs.
type Analyzer interface {
	SubmitAnalysis(ctx context.Context, req *platform.AnalysisRequest) (json.RawMessage, error)
}

// FrameSource provides the captured chart frames, one per active input.
type FrameSource interface {
	Frames() []platform.ChartImage
	ActiveInputs() int
}

// SignalSink receives each newly normalized signal.
type SignalSink interface {
	OnSignal(ctx context.Context, sig *signal.Signal)
}

// PositionDescriber summarizes the trading state for the strategy context.
type PositionDescriber interface {
	Describe() string
}

// AnalysisStore records analysis attempts.
type AnalysisStore interface {
	SaveAnalysisLog(log *storage.AnalysisLog) error
	SaveSignalLog(log *storage.SignalLog) error
}

// State is a snapshot of the auto cycle.
type State struct {
	Active           bool `json:"active"`
	IntervalSeconds  int  `json:"interval_seconds"`
	RemainingSeconds int  `json:"remaining_seconds"`
}

// Scheduler triggers analysis requests. On-demand and auto-cycle triggers
// converge on the same debounced path: calls within the debounce window are
// silently dropped, never queued.
type Scheduler struct {
	analyzer  Analyzer
	frames    FrameSource
	signals   *signal.Normalizer
	sink      SignalSink
	position  PositionDescriber
	interlock *safety.Interlock
	queue     *notify.Queue
	store     AnalysisStore
	cfg       *config.Config
	logger    *logger.Logger
	now       func() time.Time

	mu               sync.Mutex
	debounceUntil    time.Time
	active           bool
	intervalSeconds  int
	remainingSeconds int
	stopCh           chan struct{}
}

func NewScheduler(
	analyzer Analyzer,
	frames FrameSource,
	signals *signal.Normalizer,
	sink SignalSink,
	position PositionDescriber,
	interlock *safety.Interlock,
	queue *notify.Queue,
	store AnalysisStore,
	cfg *config.Config,
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		analyzer:  analyzer,
		frames:    frames,
		signals:   signals,
		sink:      sink,
		position:  position,
		interlock: interlock,
		queue:     queue,
		store:     store,
		cfg:       cfg,
		logger:    log,
		now:       time.Now,
	}
}

// TriggerAnalysis runs one analysis attempt. It returns false when the call
// was dropped by the debounce window or refused by a precondition; refusals
// surface a distinct reason, debounced drops are silent. Only a trigger that
// proceeds arms the debounce window, so a refused attempt does not swallow
// an immediately corrected retry.
func (s *Scheduler) TriggerAnalysis(ctx context.Context) bool {
	s.mu.Lock()
	if s.now().Before(s.debounceUntil) {
		s.mu.Unlock()
		s.logger.Debug("analysis trigger debounced")
		return false
	}

	var blocked string
	switch {
	case s.interlock.Engaged():
		blocked = "Kill switch is engaged"
	case !s.cfg.GeminiConfigured():
		blocked = "Gemini API key is not configured"
	case s.frames.ActiveInputs() == 0:
		blocked = "No chart frames available"
	}
	if blocked != "" {
		s.mu.Unlock()
		s.queue.Push(notify.LevelWarning, "Analysis blocked", blocked)
		return false
	}

	s.debounceUntil = s.now().Add(debounceWindow)
	s.mu.Unlock()

	s.runAnalysis(ctx)
	return true
}

func (s *Scheduler) runAnalysis(ctx context.Context) {
	charts := s.frames.Frames()

	req := &platform.AnalysisRequest{
		Charts:           charts,
		StrategyContext:  s.buildStrategyContext(),
		PreviousAnalysis: s.signals.PreviousAnalysis(),
	}

	s.logger.Info("submitting analysis request", "charts", len(charts))

	raw, err := s.analyzer.SubmitAnalysis(ctx, req)
	if err != nil {
		s.logger.Error("analysis request failed", "error", err)
		s.queue.Push(notify.LevelError, "Analysis failed", err.Error())
		s.saveAnalysisLog(len(charts), "", err)
		return
	}
	s.saveAnalysisLog(len(charts), string(raw), nil)

	sig, ok := s.signals.Normalize(raw)
	if !ok {
		s.queue.Push(notify.LevelWarning, "Analysis discarded", "Response was not a structured signal")
		return
	}
	s.saveSignalLog(sig, "analysis", raw)

	s.sink.OnSignal(ctx, sig)
}

// StartAuto arms the countdown cycle. It requires a valid timeframe
// interval, at least one active input and a clear kill switch.
func (s *Scheduler) StartAuto(ctx context.Context, intervalSeconds int) error {
	if !config.ValidInterval(intervalSeconds) {
		return fmt.Errorf("interval %ds is not one of %v", intervalSeconds, config.AutoIntervals)
	}
	if s.interlock.Engaged() {
		return fmt.Errorf("kill switch engaged")
	}
	if s.frames.ActiveInputs() == 0 {
		return fmt.Errorf("at least one active chart input is required")
	}

	s.mu.Lock()
	if s.active {
		close(s.stopCh)
	}
	s.active = true
	s.intervalSeconds = intervalSeconds
	s.remainingSeconds = intervalSeconds
	s.stopCh = make(chan struct{})
	stop := s.stopCh
	s.mu.Unlock()

	go s.tickLoop(ctx, stop)

	s.logger.Info("auto cycle armed", "interval_seconds", intervalSeconds)
	s.queue.Push(notify.LevelInfo, "Auto mode on", fmt.Sprintf("Re-analysis every %ds", intervalSeconds))
	return nil
}

// StopAuto disarms the cycle. An in-flight analysis call completes normally.
func (s *Scheduler) StopAuto() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.intervalSeconds = 0
	s.remainingSeconds = 0
	close(s.stopCh)
	s.mu.Unlock()

	s.logger.Info("auto cycle disarmed")
}

func (s *Scheduler) tickLoop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if fire := s.tick(); fire {
				go s.TriggerAnalysis(ctx)
			}
		}
	}
}

// tick decrements the countdown and reports whether an analysis is due.
func (s *Scheduler) tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return false
	}
	s.remainingSeconds--
	if s.remainingSeconds > 0 {
		return false
	}
	s.remainingSeconds = s.intervalSeconds
	return true
}

// Snapshot returns a copy of the auto-cycle state.
func (s *Scheduler) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Active:           s.active,
		IntervalSeconds:  s.intervalSeconds,
		RemainingSeconds: s.remainingSeconds,
	}
}

func (s *Scheduler) saveAnalysisLog(chartsCount int, rawResponse string, err error) {
	if s.store == nil {
		return
	}
	log := &storage.AnalysisLog{
		ChartsCount: chartsCount,
		RawResponse: rawResponse,
	}
	if err != nil {
		log.Error = err.Error()
	}
	if dbErr := s.store.SaveAnalysisLog(log); dbErr != nil {
		s.logger.Error("save analysis log", "error", dbErr)
	}
}

func (s *Scheduler) saveSignalLog(sig *signal.Signal, source string, raw json.RawMessage) {
	if s.store == nil {
		return
	}
	log := &storage.SignalLog{
		Decision:    string(sig.Decision),
		Confidence:  sig.Confidence,
		SafetyScore: sig.SafetyScore,
		Entry:       sig.Entry,
		Stoploss:    sig.Stoploss,
		Target:      sig.Target1,
		Source:      source,
		RawJSON:     string(raw),
	}
	if err := s.store.SaveSignalLog(log); err != nil {
		s.logger.Error("save signal log", "error", err)
	}
}
