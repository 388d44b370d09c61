// Package stats reduces per-trial samples into summary statistics.
package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/daryltucker/crowdcount-bench/internal/model"
)

// ErrNoSamples is returned when there is nothing to summarize.
var ErrNoSamples = errors.New("stats: no samples")

// Summarize computes total, mean, population variance, population standard
// deviation, min and max over samples. It recomputes everything on each call.
func Summarize(samples []float64) (model.Statistics, error) {
	if len(samples) == 0 {
		return model.Statistics{}, ErrNoSamples
	}

	mean, variance := stat.PopMeanVariance(samples, nil)
	return model.Statistics{
		Count:    len(samples),
		Total:    floats.Sum(samples),
		Mean:     mean,
		Variance: variance,
		StdDev:   math.Sqrt(variance),
		Min:      floats.Min(samples),
		Max:      floats.Max(samples),
	}, nil
}

// SummarizeRun builds the summary block for one image. It returns
// ErrNoSamples when no trial was recorded.
func SummarizeRun(run model.ImageRun) (*model.ImageSummary, error) {
	timeStats, err := Summarize(run.TimeSamples())
	if err != nil {
		return nil, err
	}

	sum := &model.ImageSummary{
		Time:      timeStats,
		Attempted: len(run.Trials),
	}
	for _, t := range run.Trials {
		switch {
		case t.Recorded():
			sum.Recorded++
			if t.Wrapped {
				sum.Wrapped++
			}
		default:
			sum.Failed++
		}
	}

	concurrency := run.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sum.TotalRequests = sum.Recorded * concurrency

	// every recorded trial may have wrapped; time stats still stand
	if energyStats, err := Summarize(run.EnergySamples()); err == nil {
		sum.Energy = &energyStats
		sum.EnergyPerRequest = energyStats.Total / float64(sum.TotalRequests)
	}

	return sum, nil
}
