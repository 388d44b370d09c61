package stats

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/crowdcount-bench/internal/model"
)

func TestSummarize_KnownSet(t *testing.T) {
	s, err := Summarize([]float64{1.0, 2.0, 3.0})
	require.NoError(t, err)

	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 6.0, s.Total, 1e-12)
	assert.InDelta(t, 2.0, s.Mean, 1e-12)
	assert.InDelta(t, 2.0/3.0, s.Variance, 1e-12, "population variance, not Bessel-corrected")
	assert.InDelta(t, math.Sqrt(2.0/3.0), s.StdDev, 1e-12)
	assert.InDelta(t, 0.816, s.StdDev, 1e-3)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 3.0, s.Max)
}

func TestSummarize_SingleSample(t *testing.T) {
	s, err := Summarize([]float64{0.42})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Count)
	assert.InDelta(t, 0.42, s.Mean, 1e-12)
	assert.Equal(t, 0.0, s.Variance)
	assert.Equal(t, 0.0, s.StdDev)
	assert.Equal(t, s.Min, s.Max)
}

func TestSummarize_Empty(t *testing.T) {
	_, err := Summarize(nil)
	assert.ErrorIs(t, err, ErrNoSamples)

	_, err = Summarize([]float64{})
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestSummarize_DoesNotMutateInput(t *testing.T) {
	in := []float64{3, 1, 2}
	_, err := Summarize(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func recorded(idx int, elapsed time.Duration, energy float64) model.Trial {
	return model.Trial{Index: idx, State: model.StateRecorded, Elapsed: elapsed, Energy: energy}
}

func TestSummarizeRun(t *testing.T) {
	t.Run("single_concurrency", func(t *testing.T) {
		run := model.ImageRun{Concurrency: 1, Trials: []model.Trial{
			recorded(1, 100*time.Millisecond, 1),
			recorded(2, 200*time.Millisecond, 2),
			{Index: 3, State: model.StateFailed, ErrorKind: "timeout"},
			recorded(4, 300*time.Millisecond, 3),
		}}

		sum, err := SummarizeRun(run)
		require.NoError(t, err)

		assert.Equal(t, 4, sum.Attempted)
		assert.Equal(t, 3, sum.Recorded)
		assert.Equal(t, 1, sum.Failed)
		assert.Equal(t, 3, sum.TotalRequests)
		assert.InDelta(t, 0.2, sum.Time.Mean, 1e-12)
		require.NotNil(t, sum.Energy)
		assert.InDelta(t, 6.0, sum.Energy.Total, 1e-12)
		assert.InDelta(t, 2.0, sum.EnergyPerRequest, 1e-12)
	})

	t.Run("dual_concurrency_counts_both_requests", func(t *testing.T) {
		run := model.ImageRun{Concurrency: 2, Trials: []model.Trial{
			recorded(1, 100*time.Millisecond, 4),
			recorded(2, 100*time.Millisecond, 4),
		}}

		sum, err := SummarizeRun(run)
		require.NoError(t, err)
		assert.Equal(t, 4, sum.TotalRequests)
		assert.InDelta(t, 4.0, sum.Energy.Mean, 1e-12, "average energy is per trial")
		assert.InDelta(t, 2.0, sum.EnergyPerRequest, 1e-12)
	})

	t.Run("wrapped_trial_keeps_time_drops_energy", func(t *testing.T) {
		wrapped := recorded(2, 300*time.Millisecond, 0)
		wrapped.Wrapped = true
		run := model.ImageRun{Concurrency: 1, Trials: []model.Trial{
			recorded(1, 100*time.Millisecond, 1),
			wrapped,
		}}

		sum, err := SummarizeRun(run)
		require.NoError(t, err)
		assert.Equal(t, 2, sum.Time.Count)
		assert.Equal(t, 1, sum.Energy.Count)
		assert.Equal(t, 1, sum.Wrapped)
	})

	t.Run("all_wrapped", func(t *testing.T) {
		wrapped := recorded(1, 100*time.Millisecond, 0)
		wrapped.Wrapped = true
		sum, err := SummarizeRun(model.ImageRun{Concurrency: 1, Trials: []model.Trial{wrapped}})
		require.NoError(t, err)
		assert.Nil(t, sum.Energy)
		assert.Equal(t, 0.0, sum.EnergyPerRequest)
	})

	t.Run("no_recorded_trials", func(t *testing.T) {
		run := model.ImageRun{Concurrency: 1, Trials: []model.Trial{
			{Index: 1, State: model.StateFailed},
		}}
		sum, err := SummarizeRun(run)
		assert.ErrorIs(t, err, ErrNoSamples)
		assert.Nil(t, sum)
	})
}
