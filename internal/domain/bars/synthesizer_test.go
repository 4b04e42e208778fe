package bars

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulscout/soulscout/internal/models"
)

func newTestSynth(t *testing.T, interval time.Duration, nowMs int64) *Synthesizer {
	t.Helper()
	s, err := NewSynthesizer(interval)
	require.NoError(t, err)
	s.now = func() time.Time { return time.UnixMilli(nowMs) }
	return s
}

func TestNewSynthesizer_InvalidInterval(t *testing.T) {
	_, err := NewSynthesizer(0)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = NewSynthesizer(-5 * time.Minute)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestCompletedBars_BasicOHLCV(t *testing.T) {
	// One full 5m bucket [600000, 900000) plus wall clock past its end.
	s := newTestSynth(t, 5*time.Minute, 950_000)

	s.AddTick(models.PriceTick{Price: 1.00, VolumeUSD: 100, TsMs: 600_000})
	s.AddTick(models.PriceTick{Price: 1.20, VolumeUSD: 50, TsMs: 700_000})
	s.AddTick(models.PriceTick{Price: 0.90, VolumeUSD: 25, TsMs: 800_000})
	s.AddTick(models.PriceTick{Price: 1.10, VolumeUSD: 10, TsMs: 880_000})

	bars := s.CompletedBars()
	require.Len(t, bars, 1)

	bar := bars[0]
	assert.Equal(t, int64(600_000), bar.TsMs)
	assert.Equal(t, 1.00, bar.Open)
	assert.Equal(t, 1.10, bar.Close)
	assert.Equal(t, 1.20, bar.High)
	assert.Equal(t, 0.90, bar.Low)
	assert.Equal(t, 185.0, bar.VolumeUSD)
	assert.False(t, bar.Degraded)
}

func TestCompletedBars_SparseBarDegraded(t *testing.T) {
	s := newTestSynth(t, 5*time.Minute, 950_000)

	s.AddTick(models.PriceTick{Price: 2.0, VolumeUSD: 10, TsMs: 610_000})
	s.AddTick(models.PriceTick{Price: 2.1, VolumeUSD: 10, TsMs: 620_000})

	bars := s.CompletedBars()
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Degraded)
}

func TestCompletedBars_OpenBarRetained(t *testing.T) {
	// Wall clock sits inside the second bucket: only the first bar emits.
	s := newTestSynth(t, 5*time.Minute, 1_000_000)

	s.AddTick(models.PriceTick{Price: 1.0, VolumeUSD: 1, TsMs: 610_000})
	s.AddTick(models.PriceTick{Price: 1.1, VolumeUSD: 1, TsMs: 700_000})
	s.AddTick(models.PriceTick{Price: 1.2, VolumeUSD: 1, TsMs: 890_000})
	s.AddTick(models.PriceTick{Price: 1.3, VolumeUSD: 1, TsMs: 910_000})

	bars := s.CompletedBars()
	require.Len(t, bars, 1)
	assert.Equal(t, int64(600_000), bars[0].TsMs)

	// The open-bucket tick is still buffered.
	cur, ok := s.CurrentBar()
	require.True(t, ok)
	assert.Equal(t, int64(900_000), cur.TsMs)
	assert.Equal(t, 1.3, cur.Open)

	// Advance the clock: the retained bar now completes.
	s.now = func() time.Time { return time.UnixMilli(1_300_000) }
	bars = s.CompletedBars()
	require.Len(t, bars, 1)
	assert.Equal(t, int64(900_000), bars[0].TsMs)

	bars = s.CompletedBars()
	assert.Empty(t, bars)
}

func TestCompletedBars_OutOfOrderTicks(t *testing.T) {
	s := newTestSynth(t, 5*time.Minute, 950_000)

	s.AddTick(models.PriceTick{Price: 1.2, VolumeUSD: 1, TsMs: 800_000})
	s.AddTick(models.PriceTick{Price: 1.0, VolumeUSD: 1, TsMs: 610_000})
	s.AddTick(models.PriceTick{Price: 1.1, VolumeUSD: 1, TsMs: 700_000})

	bars := s.CompletedBars()
	require.Len(t, bars, 1)
	assert.Equal(t, 1.0, bars[0].Open)
	assert.Equal(t, 1.2, bars[0].Close)
}

func TestCurrentBar_Empty(t *testing.T) {
	s := newTestSynth(t, 5*time.Minute, 0)
	bar, ok := s.CurrentBar()
	assert.False(t, ok)
	assert.True(t, bar.Degraded)
}
