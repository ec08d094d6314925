package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedIsMonotonicAndCompletesOnce(t *testing.T) {
	steps := []float64{10, 0, 35, 40, 30}
	task := &Simulated{
		Interval: time.Millisecond,
		Step: func() float64 {
			s := steps[0]
			steps = steps[1:]
			return s
		},
	}

	var ticks []float64
	completed := 0
	err := task.Start(context.Background(), Observer{
		OnTick:     func(p float64) { ticks = append(ticks, p) },
		OnComplete: func() { completed++ },
	})
	require.NoError(t, err)

	assert.Equal(t, []float64{10, 10, 45, 85, 100}, ticks)
	assert.Equal(t, 1, completed)
}

func TestSimulatedStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	task := &Simulated{Interval: time.Millisecond, Step: func() float64 { return 1 }}

	completed := false
	ticks := 0
	err := task.Start(ctx, Observer{
		OnTick: func(float64) {
			ticks++
			if ticks == 3 {
				cancel()
			}
		},
		OnComplete: func() { completed = true },
	})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, completed)
}

func TestTrackerReportsPercentOfTotal(t *testing.T) {
	var ticks []float64
	done := false
	tr := NewTracker(200, Observer{
		OnTick:     func(p float64) { ticks = append(ticks, p) },
		OnComplete: func() { done = true },
	})

	tr.Add(50)
	tr.Add(0)
	tr.Add(150)
	tr.Finish()

	assert.Equal(t, []float64{25, 100}, ticks)
	assert.True(t, done)
}
