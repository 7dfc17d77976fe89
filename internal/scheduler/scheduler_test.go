package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gridbot/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntervalDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"15m", 15 * time.Minute, true},
		{"1H", time.Hour, true},
		{"1d", 24 * time.Hour, true},
		{"1w", 7 * 24 * time.Hour, true},
		{"", 0, false},
		{"h", 0, false},
		{"0m", 0, false},
		{"30s", 30 * time.Second, true},
		{"1.5h", 0, false},
		{"5x", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseIntervalDuration(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPollSchedulerRun(t *testing.T) {
	newScheduler := func(waits *[]time.Duration) *PollScheduler {
		s := NewPollScheduler("test", time.Minute, 5*time.Second)
		s.sleepFn = func(ctx context.Context, d time.Duration) bool {
			*waits = append(*waits, d)
			return ctx.Err() == nil
		}
		return s
	}

	t.Run("backs off after failure and stops on ErrStop", func(t *testing.T) {
		var waits []time.Duration
		s := newScheduler(&waits)
		calls := 0
		err := s.Run(context.Background(), func(context.Context) error {
			calls++
			switch calls {
			case 1:
				return errors.New("network down")
			case 2:
				return nil
			default:
				return fmt.Errorf("stop loss: %w", ErrStop)
			}
		})
		require.ErrorIs(t, err, ErrStop)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{5 * time.Second, time.Minute}, waits)
	})

	t.Run("returns nil when ctx is cancelled", func(t *testing.T) {
		var waits []time.Duration
		s := newScheduler(&waits)
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := s.Run(ctx, func(context.Context) error {
			calls++
			cancel()
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("rejects zero interval", func(t *testing.T) {
		s := NewPollScheduler("bad", 0, 0)
		assert.Error(t, s.Run(context.Background(), func(context.Context) error { return nil }))
	})
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, Sleep(ctx, time.Hour))
	assert.True(t, Sleep(context.Background(), time.Millisecond))
}

func TestDropUnclosedKline(t *testing.T) {
	now := time.UnixMilli(10 * 60_000)
	klines := []market.Candle{{OpenTime: 8 * 60_000}, {OpenTime: 9 * 60_000}}

	out := dropUnclosedKlineAt(klines, time.Minute, now, 10*time.Second)
	assert.Len(t, out, 1)

	out = dropUnclosedKlineAt(klines, time.Minute, now.Add(11*time.Second), 10*time.Second)
	assert.Len(t, out, 2)
}
