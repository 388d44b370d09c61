/*
PURPOSE:
  Writes benchmark results to CSV files: one row per trial, one row per image summary.
  Ensures data integrity by flushing writes immediately.

REQUIREMENTS:
  User-specified:
  - Trial rows: iteration, count(s), elapsed, energy before/after/attributed.
  - Summary columns: Total Time ... Std Dev Energy.

  Implementation-discovered:
  - Two files keep both tables rectangular and easy to load.
  - Failed trials get a row too (state + error kind) so gaps are visible.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (via output.Sink)
  - Consumes: internal/model.ImageRun, model.Trial

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() after every write (critical for crash resilience).
  - Mutex-guarded.

USAGE:
  w, err := output.NewCSVWriter("trials.csv", "summary.csv")
  w.WriteTrial(&run, trial)
  w.Close()

SELF-HEALING INSTRUCTIONS:
  - If CSV format changes, update header and record conversion.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Update record mapping when Trial / ImageSummary change.
*/

package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/daryltucker/crowdcount-bench/internal/model"
)

// SummaryLabels are the summary block labels, in sheet order.
var SummaryLabels = []string{
	"Total Time", "Average Time", "Variance", "Std Dev", "Min Time", "Max Time",
	"Total Requests",
	"Total Energy", "Average Energy", "Variance Energy", "Std Dev Energy",
}

// SummaryValues returns the values for SummaryLabels. Energy values are
// zero when no energy sample survived.
func SummaryValues(s *model.ImageSummary) []float64 {
	var e model.Statistics
	if s.Energy != nil {
		e = *s.Energy
	}
	return []float64{
		s.Time.Total, s.Time.Mean, s.Time.Variance, s.Time.StdDev, s.Time.Min, s.Time.Max,
		float64(s.TotalRequests),
		e.Total, e.Mean, e.Variance, e.StdDev,
	}
}

var trialHeader = []string{
	"run_id", "image", "iteration", "state", "count", "elapsed_s",
	"energy_before_mwh", "energy_after_mwh", "energy_mwh", "wrapped",
	"error_kind", "error",
}

var summaryHeader = []string{
	"run_id", "image", "total_time_s", "average_time_s", "variance_time", "std_dev_time",
	"min_time_s", "max_time_s", "total_requests", "total_energy_mwh", "average_energy_mwh",
	"variance_energy", "std_dev_energy", "attempted", "recorded", "failed", "wrapped",
	"energy_per_request_mwh",
}

// CSVWriter handles writing results to CSV files.
type CSVWriter struct {
	trialFile   *os.File
	trials      *csv.Writer
	summaryFile *os.File
	summaries   *csv.Writer
	mu          sync.Mutex
}

// NewCSVWriter creates a new CSVWriter.
// It overwrites the files if they exist.
func NewCSVWriter(trialPath, summaryPath string) (*CSVWriter, error) {
	tf, tw, err := createCSV(trialPath, trialHeader)
	if err != nil {
		return nil, err
	}
	sf, sw, err := createCSV(summaryPath, summaryHeader)
	if err != nil {
		tf.Close()
		return nil, err
	}
	return &CSVWriter{
		trialFile:   tf,
		trials:      tw,
		summaryFile: sf,
		summaries:   sw,
	}, nil
}

func createCSV(path string, header []string) (*os.File, *csv.Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, nil, err
	}
	w.Flush()
	return f, w, w.Error()
}

// WriteTrial writes one trial row.
func (cw *CSVWriter) WriteTrial(run *model.ImageRun, t model.Trial) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	record := []string{
		run.RunID,
		run.Image,
		strconv.Itoa(t.Index),
		string(t.State),
		t.Counts(),
		fmt.Sprintf("%.4f", t.Elapsed.Seconds()),
		fmt.Sprintf("%.6f", t.EnergyBefore),
		fmt.Sprintf("%.6f", t.EnergyAfter),
		fmt.Sprintf("%.6f", t.Energy),
		strconv.FormatBool(t.Wrapped),
		t.ErrorKind,
		t.Error,
	}
	if err := cw.trials.Write(record); err != nil {
		return err
	}
	cw.trials.Flush()
	return cw.trials.Error()
}

// WriteSummary writes the summary row of one image.
func (cw *CSVWriter) WriteSummary(run *model.ImageRun) error {
	if run.Summary == nil {
		return nil
	}
	cw.mu.Lock()
	defer cw.mu.Unlock()

	s := run.Summary
	record := []string{run.RunID, run.Image}
	for i, v := range SummaryValues(s) {
		if SummaryLabels[i] == "Total Requests" {
			record = append(record, strconv.Itoa(s.TotalRequests))
			continue
		}
		record = append(record, strconv.FormatFloat(v, 'f', 6, 64))
	}
	record = append(record,
		strconv.Itoa(s.Attempted),
		strconv.Itoa(s.Recorded),
		strconv.Itoa(s.Failed),
		strconv.Itoa(s.Wrapped),
		strconv.FormatFloat(s.EnergyPerRequest, 'f', 6, 64),
	)

	if err := cw.summaries.Write(record); err != nil {
		return err
	}
	cw.summaries.Flush()
	return cw.summaries.Error()
}

// Close closes the underlying files.
func (cw *CSVWriter) Close() error {
	cw.trials.Flush()
	cw.summaries.Flush()
	return errors.Join(cw.trialFile.Close(), cw.summaryFile.Close())
}
