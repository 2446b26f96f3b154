package capture

import (
	"testing"

	"github.com/camuig/chartvision-agent/internal/platform"
)

func frame(chartType string) platform.ChartImage {
	return platform.ChartImage{
		ChartType:   chartType,
		ImageBase64: "aW1n",
		Symbol:      "NIFTY",
		Timeframe:   "5m",
	}
}

func TestPutRejectsInvalidFrames(t *testing.T) {
	s := NewStore()

	if err := s.Put(frame("candlestick")); err == nil {
		t.Error("unknown chart type must be rejected")
	}

	empty := frame(platform.ChartSpot)
	empty.ImageBase64 = ""
	if err := s.Put(empty); err == nil {
		t.Error("empty image must be rejected")
	}

	noSym := frame(platform.ChartSpot)
	noSym.Symbol = ""
	if err := s.Put(noSym); err == nil {
		t.Error("missing symbol must be rejected")
	}

	if s.ActiveInputs() != 0 {
		t.Errorf("active inputs = %d, rejected frames must not be stored", s.ActiveInputs())
	}
}

func TestPutReplacesPerChartType(t *testing.T) {
	s := NewStore()

	first := frame(platform.ChartSpot)
	first.Timeframe = "1m"
	if err := s.Put(first); err != nil {
		t.Fatalf("Put: %v", err)
	}
	second := frame(platform.ChartSpot)
	second.Timeframe = "15m"
	if err := s.Put(second); err != nil {
		t.Fatalf("Put: %v", err)
	}

	frames := s.Frames()
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1: same chart type must replace", len(frames))
	}
	if frames[0].Timeframe != "15m" {
		t.Errorf("timeframe = %s, want the latest frame", frames[0].Timeframe)
	}
}

func TestFramesStableOrder(t *testing.T) {
	s := NewStore()
	for _, ct := range []string{
		platform.ChartOptionChain,
		platform.ChartSpot,
		platform.ChartOrderflow,
	} {
		if err := s.Put(frame(ct)); err != nil {
			t.Fatalf("Put(%s): %v", ct, err)
		}
	}

	frames := s.Frames()
	want := []string{platform.ChartSpot, platform.ChartOrderflow, platform.ChartOptionChain}
	if len(frames) != len(want) {
		t.Fatalf("frames = %d, want %d", len(frames), len(want))
	}
	for i, ct := range want {
		if frames[i].ChartType != ct {
			t.Errorf("frames[%d] = %s, want %s", i, frames[i].ChartType, ct)
		}
	}
}

func TestRemoveClearsInput(t *testing.T) {
	s := NewStore()
	if err := s.Put(frame(platform.ChartSpot)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.Remove(platform.ChartSpot)
	s.Remove(platform.ChartMarketProfile) // absent, no-op

	if s.ActiveInputs() != 0 {
		t.Errorf("active inputs = %d, want 0", s.ActiveInputs())
	}
}
