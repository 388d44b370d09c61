package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/crowdcount-bench/internal/model"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVWriter(t *testing.T) {
	dir := t.TempDir()
	trialsPath := filepath.Join(dir, "trials.csv")
	summaryPath := filepath.Join(dir, "summary.csv")

	w, err := NewCSVWriter(trialsPath, summaryPath)
	require.NoError(t, err)

	run := sampleRun("1p1f_0.jpg", 2)
	failed := model.Trial{Index: 3, State: model.StateFailed, ErrorKind: "timeout", Error: "request timed out"}
	run.Trials = append(run.Trials, failed)

	for _, tr := range run.Trials {
		require.NoError(t, w.WriteTrial(run, tr))
	}
	require.NoError(t, w.WriteSummary(run))
	require.NoError(t, w.WriteSummary(&model.ImageRun{Image: "skipped.jpg"}), "nil summary is ignored")
	require.NoError(t, w.Close())

	trials := readCSV(t, trialsPath)
	require.Len(t, trials, 4)
	assert.Equal(t, trialHeader, trials[0])
	assert.Equal(t, []string{
		"run-1", "1p1f_0.jpg", "1", "recorded", "3", "0.1000",
		"1.000000", "1.500000", "0.500000", "false", "", "",
	}, trials[1])
	assert.Equal(t, "failed", trials[3][3])
	assert.Equal(t, "timeout", trials[3][10])

	summaries := readCSV(t, summaryPath)
	require.Len(t, summaries, 2)
	assert.Equal(t, summaryHeader, summaries[0])
	row := summaries[1]
	assert.Equal(t, "1p1f_0.jpg", row[1])
	assert.Equal(t, "0.200000", row[2], "total time")
	assert.Equal(t, "2", row[8], "total requests")
	assert.Equal(t, "1.000000", row[9], "total energy")
}

func TestCSVWriter_BadPath(t *testing.T) {
	_, err := NewCSVWriter(filepath.Join(t.TempDir(), "missing", "t.csv"), "s.csv")
	assert.Error(t, err)
}
