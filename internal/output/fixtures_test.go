package output

import (
	"time"

	"github.com/daryltucker/crowdcount-bench/internal/model"
)

func sampleRun(image string, trials int) *model.ImageRun {
	run := &model.ImageRun{
		RunID:       "run-1",
		Image:       image,
		Concurrency: 1,
		StartedAt:   time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
	for i := 1; i <= trials; i++ {
		run.Trials = append(run.Trials, model.Trial{
			Index:        i,
			Concurrency:  1,
			State:        model.StateRecorded,
			Requests:     []model.Request{{Count: 3, Elapsed: 100 * time.Millisecond}},
			Elapsed:      100 * time.Millisecond,
			EnergyBefore: float64(i),
			EnergyAfter:  float64(i) + 0.5,
			Energy:       0.5,
		})
	}
	energy := model.Statistics{Count: trials, Total: 0.5 * float64(trials), Mean: 0.5, Min: 0.5, Max: 0.5}
	run.Summary = &model.ImageSummary{
		Time:             model.Statistics{Count: trials, Total: 0.1 * float64(trials), Mean: 0.1, Min: 0.1, Max: 0.1},
		Energy:           &energy,
		Attempted:        trials,
		Recorded:         trials,
		TotalRequests:    trials,
		EnergyPerRequest: 0.5,
	}
	return run
}
