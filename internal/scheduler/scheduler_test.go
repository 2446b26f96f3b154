package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/camuig/chartvision-agent/internal/config"
	"github.com/camuig/chartvision-agent/internal/logger"
	"github.com/camuig/chartvision-agent/internal/notify"
	"github.com/camuig/chartvision-agent/internal/platform"
	"github.com/camuig/chartvision-agent/internal/safety"
	"github.com/camuig/chartvision-agent/internal/signal"
)

type fakeAnalyzer struct {
	mu       sync.Mutex
	calls    int
	response json.RawMessage
	err      error
}

func (f *fakeAnalyzer) SubmitAnalysis(_ context.Context, _ *platform.AnalysisRequest) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeFrames struct {
	frames []platform.ChartImage
}

func (f *fakeFrames) Frames() []platform.ChartImage { return f.frames }
func (f *fakeFrames) ActiveInputs() int             { return len(f.frames) }

type fakeSink struct {
	mu      sync.Mutex
	signals []*signal.Signal
}

func (f *fakeSink) OnSignal(_ context.Context, sig *signal.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, sig)
}

type flatDescriber struct{}

func (flatDescriber) Describe() string { return "FLAT" }

func testConfig() *config.Config {
	return &config.Config{
		Gemini: config.GeminiConfig{APIKey: "key"},
		Trading: config.TradingConfig{
			Symbol: "NIFTY", Exchange: "NSE",
			Capital: 100000, RiskPercent: 1,
			MinConfidence: 70, MinSafetyScore: 70,
		},
		Analysis: config.AnalysisConfig{IntervalSeconds: 60},
	}
}

func newTestScheduler(analyzer Analyzer, frames FrameSource, cfg *config.Config, interlock *safety.Interlock) (*Scheduler, *fakeSink) {
	log := logger.New("error")
	sink := &fakeSink{}
	s := NewScheduler(analyzer, frames, signal.NewNormalizer(log), sink, flatDescriber{},
		interlock, notify.NewQueue(), nil, cfg, log)
	return s, sink
}

func oneFrame() *fakeFrames {
	return &fakeFrames{frames: []platform.ChartImage{{
		ChartType: platform.ChartSpot, ImageBase64: "aGk=", Symbol: "NIFTY", Timeframe: "5m",
	}}}
}

func TestDebounceDropsSecondTrigger(t *testing.T) {
	analyzer := &fakeAnalyzer{response: json.RawMessage(`{"decision":"NO_TRADE"}`)}
	s, _ := newTestScheduler(analyzer, oneFrame(), testConfig(), safety.NewInterlock())

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }

	if !s.TriggerAnalysis(context.Background()) {
		t.Fatal("first trigger should run")
	}
	now = base.Add(2 * time.Second)
	if s.TriggerAnalysis(context.Background()) {
		t.Error("trigger inside the debounce window should be dropped")
	}
	if analyzer.callCount() != 1 {
		t.Errorf("analysis calls = %d, want exactly 1", analyzer.callCount())
	}

	now = base.Add(3100 * time.Millisecond)
	if !s.TriggerAnalysis(context.Background()) {
		t.Error("trigger after the debounce window should run")
	}
	if analyzer.callCount() != 2 {
		t.Errorf("analysis calls = %d, want 2", analyzer.callCount())
	}
}

func TestPreconditionsBlockWithoutNetworkCall(t *testing.T) {
	// Kill switch engaged.
	analyzer := &fakeAnalyzer{response: json.RawMessage(`{}`)}
	interlock := safety.NewInterlock()
	interlock.Engage()
	s, _ := newTestScheduler(analyzer, oneFrame(), testConfig(), interlock)
	if s.TriggerAnalysis(context.Background()) {
		t.Error("trigger must be refused while the kill switch is engaged")
	}

	// Missing credential.
	cfg := testConfig()
	cfg.Gemini.APIKey = ""
	s, _ = newTestScheduler(analyzer, oneFrame(), cfg, safety.NewInterlock())
	if s.TriggerAnalysis(context.Background()) {
		t.Error("trigger must be refused without a configured API key")
	}

	// No frames.
	s, _ = newTestScheduler(analyzer, &fakeFrames{}, testConfig(), safety.NewInterlock())
	if s.TriggerAnalysis(context.Background()) {
		t.Error("trigger must be refused without chart frames")
	}

	if analyzer.callCount() != 0 {
		t.Errorf("refused triggers made %d network calls, want 0", analyzer.callCount())
	}
}

func TestRefusalDoesNotConsumeDebounceWindow(t *testing.T) {
	analyzer := &fakeAnalyzer{response: json.RawMessage(`{"decision":"NO_TRADE"}`)}
	frames := &fakeFrames{}
	s, _ := newTestScheduler(analyzer, frames, testConfig(), safety.NewInterlock())

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	if s.TriggerAnalysis(context.Background()) {
		t.Fatal("trigger without frames must be refused")
	}

	// Corrected immediately: the refusal must not have armed the window.
	frames.frames = oneFrame().frames
	if !s.TriggerAnalysis(context.Background()) {
		t.Error("trigger right after a refusal should run once the precondition holds")
	}
	if analyzer.callCount() != 1 {
		t.Errorf("analysis calls = %d, want 1", analyzer.callCount())
	}
}

func TestAnalysisRoutesSignalToSink(t *testing.T) {
	analyzer := &fakeAnalyzer{response: json.RawMessage(
		`{"decision":"LONG","confidence":85,"safety_score":90,"entry":100.5}`)}
	s, sink := newTestScheduler(analyzer, oneFrame(), testConfig(), safety.NewInterlock())

	if !s.TriggerAnalysis(context.Background()) {
		t.Fatal("trigger should run")
	}

	if len(sink.signals) != 1 {
		t.Fatalf("sink received %d signals, want 1", len(sink.signals))
	}
	sig := sink.signals[0]
	if sig.Decision != signal.DecisionLong || sig.Confidence != 85 || sig.Entry != 100.5 {
		t.Errorf("unexpected signal: %+v", sig)
	}
}

func TestAnalysisFailureLeavesHistoryUntouched(t *testing.T) {
	analyzer := &fakeAnalyzer{err: context.DeadlineExceeded}
	s, sink := newTestScheduler(analyzer, oneFrame(), testConfig(), safety.NewInterlock())

	s.TriggerAnalysis(context.Background())

	if len(sink.signals) != 0 {
		t.Error("failed analysis must not emit a signal")
	}
	if len(s.signals.History()) != 0 {
		t.Error("failed analysis must leave history untouched")
	}
}

func TestStartAutoRequiresValidIntervalAndInput(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	s, _ := newTestScheduler(analyzer, oneFrame(), testConfig(), safety.NewInterlock())

	if err := s.StartAuto(context.Background(), 45); err == nil {
		t.Error("interval outside the fixed set must be refused")
	}

	noInput, _ := newTestScheduler(analyzer, &fakeFrames{}, testConfig(), safety.NewInterlock())
	if err := noInput.StartAuto(context.Background(), 60); err == nil {
		t.Error("arming without active inputs must be refused")
	}

	if err := s.StartAuto(context.Background(), 60); err != nil {
		t.Fatalf("StartAuto: %v", err)
	}
	defer s.StopAuto()

	state := s.Snapshot()
	if !state.Active || state.IntervalSeconds != 60 || state.RemainingSeconds != 60 {
		t.Errorf("unexpected scheduler state: %+v", state)
	}
}

func TestCountdownFiresAndResets(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	s, _ := newTestScheduler(analyzer, oneFrame(), testConfig(), safety.NewInterlock())

	s.mu.Lock()
	s.active = true
	s.intervalSeconds = 60
	s.remainingSeconds = 2
	s.mu.Unlock()

	if s.tick() {
		t.Error("tick with remaining=2 must not fire")
	}
	if !s.tick() {
		t.Error("tick reaching zero must fire")
	}

	state := s.Snapshot()
	if state.RemainingSeconds != 60 {
		t.Errorf("remaining after fire = %d, want reset to 60", state.RemainingSeconds)
	}
}

func TestStopAutoDisarms(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	s, _ := newTestScheduler(analyzer, oneFrame(), testConfig(), safety.NewInterlock())

	if err := s.StartAuto(context.Background(), 300); err != nil {
		t.Fatalf("StartAuto: %v", err)
	}
	s.StopAuto()

	state := s.Snapshot()
	if state.Active {
		t.Error("scheduler should be inactive after StopAuto")
	}
	if state.IntervalSeconds != 0 || state.RemainingSeconds != 0 {
		t.Errorf("disarmed snapshot = %+v, want a cleared countdown", state)
	}
	if s.tick() {
		t.Error("ticks after disarm must not fire")
	}
}
