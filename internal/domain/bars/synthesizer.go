package bars

import (
	"errors"
	"sort"
	"time"

	"github.com/soulscout/soulscout/internal/models"
)

// ErrInvalidInterval is returned when a synthesizer is constructed with a
// non-positive bar interval.
var ErrInvalidInterval = errors.New("bar interval must be positive")

// Synthesizer buckets price ticks into fixed-interval OHLCV bars. A bar is
// complete once the wall clock has advanced past its end; ticks belonging to
// the still-open bar are retained across calls.
type Synthesizer struct {
	interval time.Duration
	ticks    []models.PriceTick
	now      func() time.Time
}

// NewSynthesizer creates a synthesizer for the given bar interval
// (typically 5m and 15m).
func NewSynthesizer(interval time.Duration) (*Synthesizer, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	return &Synthesizer{
		interval: interval,
		now:      time.Now,
	}, nil
}

// AddTick buffers a tick for bucketing.
func (s *Synthesizer) AddTick(t models.PriceTick) {
	s.ticks = append(s.ticks, t)
}

// bucketStart maps a timestamp onto the start of its bar interval.
func (s *Synthesizer) bucketStart(tsMs int64) int64 {
	iv := s.interval.Milliseconds()
	return (tsMs / iv) * iv
}

// CompletedBars emits every bar whose interval has fully elapsed, oldest
// first, and retains the ticks of the still-open bar.
func (s *Synthesizer) CompletedBars() []models.OHLCVBar {
	if len(s.ticks) == 0 {
		return nil
	}

	sort.Slice(s.ticks, func(i, j int) bool {
		return s.ticks[i].TsMs < s.ticks[j].TsMs
	})

	nowMs := s.now().UnixMilli()
	iv := s.interval.Milliseconds()

	var completed []models.OHLCVBar
	var open []models.PriceTick

	start := s.bucketStart(s.ticks[0].TsMs)
	var group []models.PriceTick

	flush := func(bucketStart int64, ticks []models.PriceTick) {
		if len(ticks) == 0 {
			return
		}
		if nowMs >= bucketStart+iv {
			completed = append(completed, synthesize(bucketStart, ticks))
		} else {
			open = append(open, ticks...)
		}
	}

	for _, t := range s.ticks {
		b := s.bucketStart(t.TsMs)
		if b != start {
			flush(start, group)
			start = b
			group = group[:0]
		}
		group = append(group, t)
	}
	flush(start, group)

	s.ticks = open
	return completed
}

// CurrentBar synthesizes the still-open bar from buffered ticks. The second
// return is false when no ticks are buffered.
func (s *Synthesizer) CurrentBar() (models.OHLCVBar, bool) {
	if len(s.ticks) == 0 {
		return models.OHLCVBar{Degraded: true}, false
	}
	sorted := append([]models.PriceTick(nil), s.ticks...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].TsMs < sorted[j].TsMs
	})
	return synthesize(s.bucketStart(sorted[0].TsMs), sorted), true
}

// synthesize folds ticks into one bar. Fewer than three contributing ticks
// marks the bar degraded.
func synthesize(startMs int64, ticks []models.PriceTick) models.OHLCVBar {
	bar := models.OHLCVBar{
		TsMs:     startMs,
		Degraded: len(ticks) < 3,
	}
	if len(ticks) == 0 {
		return bar
	}

	bar.Open = ticks[0].Price
	bar.Close = ticks[len(ticks)-1].Price
	bar.High = ticks[0].Price
	bar.Low = ticks[0].Price

	for _, t := range ticks {
		if t.Price > bar.High {
			bar.High = t.Price
		}
		if t.Price < bar.Low {
			bar.Low = t.Price
		}
		bar.VolumeUSD += t.VolumeUSD
	}
	return bar
}
