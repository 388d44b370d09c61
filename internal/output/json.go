/*
PURPOSE:
  Writes benchmark results to a JSON Lines file (NDJSON), one ImageRun per line.

REQUIREMENTS:
  User-specified:
  - JSON output for easier parsing.

  Implementation-discovered:
  - One line per image (trials + summary) keeps each record self-contained.
  - Skipped images (no recorded trial) still get a line with a null summary.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (via output.Sink)
  - Consumes: internal/model.ImageRun

ERROR HANDLING:
  - Returns error on file creation, encode or fsync failure.

IMPLEMENTATION RULES:
  - Append mode: a rerun adds to earlier results instead of replacing them.
  - Each line is synced before WriteSummary returns, so a crash or power cut
    on the device under test loses at most the image in progress.

USAGE:
  w, err := output.NewJSONWriter("runs.jsonl")
  w.WriteSummary(&run)
  w.Close()

RELATED FILES:
  - internal/model/types.go
*/

package output

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/daryltucker/crowdcount-bench/internal/model"
)

// JSONWriter appends one ImageRun per line to a JSON Lines file.
type JSONWriter struct {
	mu  sync.Mutex
	out *os.File
	enc *json.Encoder
}

// NewJSONWriter opens path for appending, creating it if needed.
func NewJSONWriter(path string) (*JSONWriter, error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{out: out, enc: json.NewEncoder(out)}, nil
}

// WriteTrial is a no-op; trials are emitted with their image.
func (jw *JSONWriter) WriteTrial(*model.ImageRun, model.Trial) error { return nil }

// WriteSummary appends the whole image run and syncs it to disk.
func (jw *JSONWriter) WriteSummary(run *model.ImageRun) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.enc.Encode(run); err != nil {
		return fmt.Errorf("encode %s: %w", run.Image, err)
	}
	return jw.out.Sync()
}

func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.out.Close()
}
