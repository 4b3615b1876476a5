package timeweight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiplierBoundaries(t *testing.T) {
	open := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lock := open.Add(10 * time.Hour)

	tests := []struct {
		name string
		now  time.Time
		want uint32
	}{
		{name: "before open", now: open.Add(-time.Hour), want: MaxMultiplierBps},
		{name: "exactly at open", now: open, want: MaxMultiplierBps},
		{name: "midpoint", now: open.Add(5 * time.Hour), want: 10000},
		{name: "exactly at lock", now: lock, want: MinMultiplierBps},
		{name: "after lock", now: lock.Add(time.Hour), want: MinMultiplierBps},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Multiplier(tt.now, open, lock))
		})
	}
}

func TestMultiplierZeroWindow(t *testing.T) {
	open := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Degenerate market where lock == open must not divide by zero.
	assert.Equal(t, uint32(MaxMultiplierBps), Multiplier(open, open, open))
	assert.Equal(t, uint32(MinMultiplierBps), Multiplier(open.Add(time.Second), open, open))
}

func TestMultiplierMonotonicDecay(t *testing.T) {
	open := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	lock := open.Add(24 * time.Hour)

	prev := uint32(MaxMultiplierBps + 1)
	for i := 0; i <= 96; i++ {
		now := open.Add(time.Duration(i) * 15 * time.Minute)
		m := Multiplier(now, open, lock)
		require.LessOrEqual(t, m, prev, "multiplier must never increase over time")
		require.GreaterOrEqual(t, m, uint32(MinMultiplierBps))
		require.LessOrEqual(t, m, uint32(MaxMultiplierBps))
		prev = m
	}
}

func TestWeightBounds(t *testing.T) {
	open := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	lock := open.Add(time.Hour)

	// 0 <= weighted <= 1.5 * amount for arbitrary instants.
	for _, amount := range []uint64{0, 1, 999, 10_000, 1_000_000_007} {
		for i := -2; i < 8; i++ {
			now := open.Add(time.Duration(i) * 10 * time.Minute)
			w, err := Weight(amount, now, open, lock)
			require.NoError(t, err)
			require.LessOrEqual(t, w, amount+amount/2)
		}
	}
}

func TestWeightAtOpen(t *testing.T) {
	open := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	lock := open.Add(time.Hour)

	// A 1000-unit bet placed exactly at open earns the full 150% weight.
	w, err := Weight(1000, open, open, lock)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), w)
}

func TestBonusBps(t *testing.T) {
	assert.Equal(t, uint32(0), BonusBps(0, 250))
	assert.Equal(t, uint32(750), BonusBps(3, 250))
	assert.Equal(t, uint32(MaxBonusBps), BonusBps(10, 250), "bonus caps at 2000 bps")
	assert.Equal(t, uint32(MaxBonusBps), BonusBps(100, 250))
}

func TestBonusAmount(t *testing.T) {
	got, err := BonusAmount(10_000, 4, 250)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), got)

	capped, err := BonusAmount(10_000, 50, 250)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), capped)
}
