/*
PURPOSE:
  Defines the core data structures used throughout crowdcount-bench.
  These models represent trials, per-image runs and their summary statistics.

REQUIREMENTS:
  User-specified:
  - Record count, elapsed time and energy (before / after / attributed) per trial.
  - Summarize time and energy per image (total, mean, variance, std dev, min, max).

  Implementation-discovered:
  - Need JSON tags for the JSONL sink.
  - Failed trials are kept in the run (for the log) but never enter statistics.
  - A wrapped energy counter keeps the trial's time but drops its energy sample.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine, internal/stats, internal/output
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs).

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - Use time.Duration for latencies, float64 mWh for energy.

USAGE:
  run := model.ImageRun{Image: "0p0f_0.jpg"}

SELF-HEALING INSTRUCTIONS:
  - If new metrics are needed, add the field and update the CSV/JSON/XLSX writers.

RELATED FILES:
  - internal/output/csv.go
  - internal/output/workbook.go

MAINTENANCE:
  - Update when adding new metrics to capture.
*/

package model

import (
	"strconv"
	"strings"
	"time"
)

// TrialState tracks a trial through its lifecycle.
type TrialState string

const (
	StatePending       TrialState = "pending"
	StateSampledBefore TrialState = "energy_sampled_before"
	StateInFlight      TrialState = "in_flight"
	StateSampledAfter  TrialState = "energy_sampled_after"
	StateRecorded      TrialState = "recorded"
	StateFailed        TrialState = "failed"
)

// Request is the outcome of one HTTP call inside a trial.
type Request struct {
	Count   int           `json:"count"`
	Elapsed time.Duration `json:"elapsed"`
	Error   string        `json:"error,omitempty"`
}

// Trial is one attempt (one or two concurrent requests) against one image.
type Trial struct {
	Index        int           `json:"index"`
	Concurrency  int           `json:"concurrency"`
	State        TrialState    `json:"state"`
	Requests     []Request     `json:"requests"`
	Elapsed      time.Duration `json:"elapsed"`
	EnergyBefore float64       `json:"energy_before_mwh"`
	EnergyAfter  float64       `json:"energy_after_mwh"`
	Energy       float64       `json:"energy_mwh"`
	Wrapped      bool          `json:"wrapped,omitempty"`
	Error        string        `json:"error,omitempty"`
	ErrorKind    string        `json:"error_kind,omitempty"`
}

// Recorded reports whether the trial made it into the statistics.
func (t Trial) Recorded() bool { return t.State == StateRecorded }

// Counts renders the per-request counts the way the result sheet shows them:
// "3" for a single request, "3, 3" for a dual trial.
func (t Trial) Counts() string {
	parts := make([]string, 0, len(t.Requests))
	for _, r := range t.Requests {
		parts = append(parts, strconv.Itoa(r.Count))
	}
	return strings.Join(parts, ", ")
}

// Statistics is a read-only summary over a set of samples.
// Variance and StdDev are population (1/n) quantities.
type Statistics struct {
	Count    int     `json:"count"`
	Total    float64 `json:"total"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	StdDev   float64 `json:"std_dev"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// ImageSummary is the derived summary block for one image.
type ImageSummary struct {
	// Time is in seconds.
	Time Statistics `json:"time_s"`
	// Energy is in mWh; nil when every recorded trial saw a counter wrap.
	Energy *Statistics `json:"energy_mwh,omitempty"`

	Attempted int `json:"attempted"`
	Recorded  int `json:"recorded"`
	Failed    int `json:"failed"`
	Wrapped   int `json:"wrapped"`

	// TotalRequests counts the requests of recorded trials (recorded x concurrency).
	TotalRequests    int     `json:"total_requests"`
	EnergyPerRequest float64 `json:"energy_per_request_mwh"`
}

// ImageRun aggregates all trials for one image.
type ImageRun struct {
	RunID       string        `json:"run_id"`
	Image       string        `json:"image"`
	Endpoint    string        `json:"endpoint"`
	Concurrency int           `json:"concurrency"`
	StartedAt   time.Time     `json:"started_at"`
	Trials      []Trial       `json:"trials"`
	Summary     *ImageSummary `json:"summary"`
}

// TimeSamples returns elapsed seconds of the recorded trials, in order.
func (r ImageRun) TimeSamples() []float64 {
	var out []float64
	for _, t := range r.Trials {
		if t.Recorded() {
			out = append(out, t.Elapsed.Seconds())
		}
	}
	return out
}

// EnergySamples returns attributed energy of the recorded trials whose
// counter did not wrap, in order.
func (r ImageRun) EnergySamples() []float64 {
	var out []float64
	for _, t := range r.Trials {
		if t.Recorded() && !t.Wrapped {
			out = append(out, t.Energy)
		}
	}
	return out
}
