package capture

import (
	"fmt"
	"sync"

	"github.com/camuig/chartvision-agent/internal/platform"
)

// chartOrder fixes the order frames are packaged into an analysis request.
var chartOrder = []string{
	platform.ChartSpot,
	platform.ChartMarketProfile,
	platform.ChartOrderflow,
	platform.ChartOptionChain,
}

// Store holds the latest captured frame per chart type. The dashboard pushes
// frames in over the local API; the scheduler packages one frame per active
// input into each analysis request.
type Store struct {
	mu     sync.RWMutex
	frames map[string]platform.ChartImage
}

func NewStore() *Store {
	return &Store{frames: make(map[string]platform.ChartImage)}
}

// Put stores a frame, replacing any previous frame of the same chart type.
func (s *Store) Put(img platform.ChartImage) error {
	if !validChartType(img.ChartType) {
		return fmt.Errorf("invalid chart_type %q", img.ChartType)
	}
	if img.ImageBase64 == "" {
		return fmt.Errorf("empty image for chart_type %q", img.ChartType)
	}
	if img.Symbol == "" || img.Timeframe == "" {
		return fmt.Errorf("symbol and timeframe are required")
	}

	s.mu.Lock()
	s.frames[img.ChartType] = img
	s.mu.Unlock()
	return nil
}

func (s *Store) Remove(chartType string) {
	s.mu.Lock()
	delete(s.frames, chartType)
	s.mu.Unlock()
}

// Frames returns a snapshot of the current frames, one per active input,
// in stable chart-type order.
func (s *Store) Frames() []platform.ChartImage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]platform.ChartImage, 0, len(s.frames))
	for _, ct := range chartOrder {
		if img, ok := s.frames[ct]; ok {
			out = append(out, img)
		}
	}
	return out
}

func (s *Store) ActiveInputs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frames)
}

func validChartType(ct string) bool {
	for _, v := range chartOrder {
		if v == ct {
			return true
		}
	}
	return false
}
