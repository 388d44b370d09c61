package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/crowdcount-bench/internal/model"
)

func TestJSONWriter_OneLinePerImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	w, err := NewJSONWriter(path)
	require.NoError(t, err)

	run := sampleRun("2p0f_0.jpg", 3)
	for _, tr := range run.Trials {
		require.NoError(t, w.WriteTrial(run, tr))
	}
	require.NoError(t, w.WriteSummary(run))
	require.NoError(t, w.WriteSummary(&model.ImageRun{Image: "skipped.jpg"}))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var got []model.ImageRun
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r model.ImageRun
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		got = append(got, r)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "2p0f_0.jpg", got[0].Image)
	assert.Len(t, got[0].Trials, 3)
	require.NotNil(t, got[0].Summary)
	assert.Equal(t, 3, got[0].Summary.TotalRequests)
	assert.Nil(t, got[1].Summary)
}

func TestJSONWriter_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	for _, img := range []string{"a.jpg", "b.jpg"} {
		w, err := NewJSONWriter(path)
		require.NoError(t, err)
		require.NoError(t, w.WriteSummary(sampleRun(img, 1)))
		require.NoError(t, w.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[1]), `"image":"b.jpg"`)
}
