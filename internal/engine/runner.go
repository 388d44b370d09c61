/*
PURPOSE:
  Trial runner that orchestrates the benchmark.
  Loops through Images -> Trials, bracketing every trial with two energy
  samples and handing each finished trial to the result sink.

REQUIREMENTS:
  User-specified:
  - N sequential trials per image, one or two concurrent requests each.
  - Energy attributed to a trial = after - before, clamped at zero.
  - A failed request fails its trial only; the batch goes on.

  Implementation-discovered:
  - The after-sample must follow the join of both requests of a dual trial.
  - An image with no recorded trial gets no summary block.
  - Cancellation is checked between trials, never mid-request.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/energy, internal/stats, internal/output, internal/model

ERROR HANDLING:
  - Logs errors but continues (resilience).
  - No retries: N is the number of attempts.

IMPLEMENTATION RULES:
  - Trials strictly sequential.
  - Sink writes in iteration order.

USAGE:
  r := &engine.Runner{Executor: client, Sampler: src, Sink: sink, Trials: 5, Concurrency: 1}
  runs, err := r.Run(ctx, paths)

SELF-HEALING INSTRUCTIONS:
  - If more than two concurrent requests are ever needed, the fan-out in
    runTrial already handles any width; lift the config validation.

RELATED FILES:
  - internal/engine/client.go
  - internal/stats/stats.go

MAINTENANCE:
  - Update iteration logic if cross-image parallelism is introduced.
*/

package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daryltucker/crowdcount-bench/internal/energy"
	"github.com/daryltucker/crowdcount-bench/internal/model"
	"github.com/daryltucker/crowdcount-bench/internal/output"
	"github.com/daryltucker/crowdcount-bench/internal/stats"
)

// Image is a prepared request body for one named image.
type Image struct {
	Name    string
	Payload []byte
}

// Runner executes benchmark trials.
type Runner struct {
	Executor Executor
	Sampler  energy.Sampler
	Sink     output.Sink // optional

	Endpoint    string
	Trials      int
	Concurrency int
	Pause       time.Duration

	// RunID stamps every result; Run generates one when empty.
	RunID string
	Now   func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) sampler() energy.Sampler {
	if r.Sampler == nil {
		return energy.NopSampler{}
	}
	return r.Sampler
}

// Run benchmarks every image in paths. Images whose file cannot be loaded
// are logged and skipped. It returns the finished runs and ctx.Err() if the
// batch was interrupted.
func (r *Runner) Run(ctx context.Context, paths []string) ([]model.ImageRun, error) {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	output.Logger.Info("Starting benchmark", "run_id", r.RunID, "images", len(paths),
		"trials", r.Trials, "concurrency", r.Concurrency, "endpoint", r.Endpoint)

	var runs []model.ImageRun
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return runs, err
		}
		if i > 0 && r.Pause > 0 {
			select {
			case <-ctx.Done():
				return runs, ctx.Err()
			case <-time.After(r.Pause):
			}
		}

		name := filepath.Base(path)
		payload, err := PrepareImage(path)
		if err != nil {
			output.Logger.Error("Skipping image", "image", name, "error", err)
			continue
		}

		run := r.RunImage(ctx, Image{Name: name, Payload: payload}, r.Trials, r.Concurrency)
		runs = append(runs, run)
	}
	return runs, ctx.Err()
}

// RunImage runs trials sequential trials against one image and reports them
// to the sink, trial rows first and the summary last.
func (r *Runner) RunImage(ctx context.Context, image Image, trials, concurrency int) model.ImageRun {
	if concurrency < 1 {
		concurrency = 1
	}
	run := model.ImageRun{
		RunID:       r.RunID,
		Image:       image.Name,
		Endpoint:    r.Endpoint,
		Concurrency: concurrency,
		StartedAt:   r.now(),
	}
	output.Logger.Info("Benchmarking image", "image", image.Name, "trials", trials, "concurrency", concurrency)

	for i := 1; i <= trials; i++ {
		if ctx.Err() != nil {
			output.Logger.Warn("Interrupted", "image", image.Name, "completed_trials", i-1)
			break
		}

		t := r.runTrial(ctx, image.Payload, i, concurrency)
		run.Trials = append(run.Trials, t)

		if t.State == model.StateFailed {
			output.Logger.Error("Trial failed", "image", image.Name, "trial", i, "kind", t.ErrorKind, "error", t.Error)
		} else {
			output.Logger.Info("Trial recorded", "image", image.Name, "trial", i, "count", t.Counts(),
				"elapsed", t.Elapsed, "energy_mwh", t.Energy)
		}

		if r.Sink != nil {
			if err := r.Sink.WriteTrial(&run, t); err != nil {
				output.Logger.Error("Failed to write trial", "image", image.Name, "trial", i, "error", err)
			}
		}
	}

	summary, err := stats.SummarizeRun(run)
	switch {
	case errors.Is(err, stats.ErrNoSamples):
		output.Logger.Warn("No successful trials, image skipped", "image", image.Name, "attempted", len(run.Trials))
	case err != nil:
		output.Logger.Error("Failed to summarize", "image", image.Name, "error", err)
	default:
		run.Summary = summary
		output.Logger.Info("Image summary", "image", image.Name,
			"mean_time_s", summary.Time.Mean, "recorded", summary.Recorded, "failed", summary.Failed,
			"total_requests", summary.TotalRequests, "energy_per_request_mwh", summary.EnergyPerRequest)
	}

	if r.Sink != nil {
		if err := r.Sink.WriteSummary(&run); err != nil {
			output.Logger.Error("Failed to write summary", "image", image.Name, "error", err)
		}
	}
	return run
}

type requestResult struct {
	resp Response
	err  error
}

// runTrial walks one trial through its states. The after-sample is taken only
// once every request of the trial has returned.
func (r *Runner) runTrial(ctx context.Context, payload []byte, index, concurrency int) model.Trial {
	t := model.Trial{Index: index, Concurrency: concurrency, State: model.StatePending}
	sampler := r.sampler()

	t.EnergyBefore = sampler.Sample()
	t.State = model.StateSampledBefore

	t.State = model.StateInFlight
	results := make([]requestResult, concurrency)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := r.Executor.Execute(ctx, payload)
			results[i] = requestResult{resp: resp, err: err}
		}(i)
	}
	wg.Wait()

	t.EnergyAfter = sampler.Sample()
	t.State = model.StateSampledAfter

	var firstErr error
	for _, res := range results {
		req := model.Request{Count: res.resp.Count, Elapsed: res.resp.Elapsed}
		if res.err != nil {
			req.Error = res.err.Error()
			if firstErr == nil {
				firstErr = res.err
			}
		}
		if req.Elapsed > t.Elapsed {
			t.Elapsed = req.Elapsed
		}
		t.Requests = append(t.Requests, req)
	}

	if firstErr != nil {
		t.State = model.StateFailed
		t.Error = firstErr.Error()
		t.ErrorKind = ErrorKind(firstErr)
		return t
	}

	t.Energy, t.Wrapped = energy.Attribute(t.EnergyBefore, t.EnergyAfter)
	if t.Wrapped {
		output.Logger.Warn("Energy counter went backwards, energy sample dropped", "trial", index,
			"before", t.EnergyBefore, "after", t.EnergyAfter)
	}
	t.State = model.StateRecorded
	return t
}
