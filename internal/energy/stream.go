package energy

import (
	"bufio"
	"context"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/daryltucker/crowdcount-bench/internal/output"
)

// mW x ms -> mWh
const msPerHour = 3_600_000

// Integrator turns "<timestamp_ms>;<current_mA>;<voltage_V>" telemetry lines
// into cumulative energy using rectangular integration. It is not safe for
// concurrent use; only the telemetry goroutine calls Ingest.
type Integrator struct {
	cell     *Cell
	prevTS   int64
	havePrev bool
}

// NewIntegrator returns an Integrator adding into cell.
func NewIntegrator(cell *Cell) *Integrator {
	return &Integrator{cell: cell}
}

// Ingest parses one line and accumulates its energy. It reports whether the
// line was valid; malformed lines leave all state untouched. The first valid
// line only establishes the baseline timestamp.
func (in *Integrator) Ingest(line string) bool {
	fields := strings.Split(strings.TrimSpace(line), ";")
	if len(fields) != 3 {
		return false
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return false
	}
	current, ok := parseFinite(fields[1])
	if !ok {
		return false
	}
	voltage, ok := parseFinite(fields[2])
	if !ok {
		return false
	}

	if in.havePrev {
		// a meter that restarts its clock starts a new baseline
		if delta := ts - in.prevTS; delta > 0 {
			power := current * voltage // mW
			in.cell.Add(power * float64(delta) / msPerHour)
		}
	}
	in.prevTS = ts
	in.havePrev = true
	return true
}

// parseFinite parses a float field, rejecting NaN and infinities, which
// ParseFloat accepts.
func parseFinite(field string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// maxLineBytes bounds one telemetry line. Longer lines are line noise and
// are dropped up to the next newline.
const maxLineBytes = 4096

// Stream feeds every line from r into in until EOF, a read error or ctx is done.
func Stream(ctx context.Context, r io.Reader, in *Integrator) error {
	br := bufio.NewReaderSize(r, maxLineBytes)
	overlong := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := br.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			if !overlong {
				output.Logger.Debug("Dropping overlong telemetry line", "limit", maxLineBytes)
			}
			overlong = true
			continue
		}

		if overlong {
			// tail of a dropped line
			overlong = false
		} else if line := strings.TrimRight(string(chunk), "\r\n"); line != "" {
			if !in.Ingest(line) {
				output.Logger.Debug("Skipping malformed telemetry line", "line", line)
			}
		}

		switch {
		case err == nil:
		case err == io.EOF:
			return nil
		default:
			return err
		}
	}
}

// OpenSerial opens the telemetry device.
func OpenSerial(port string, baud int) (io.ReadCloser, error) {
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, errors.Wrapf(err, "energy: open serial port %s", port)
	}
	return p, nil
}

// StreamSampler exposes the total integrated by a background telemetry reader.
type StreamSampler struct {
	cell *Cell
	src  io.ReadCloser
	done chan struct{}

	closeOnce sync.Once
	closeErr  error
	err       error
}

// StartStream starts one goroutine that integrates src into cell for the
// lifetime of ctx (or until Close).
func StartStream(ctx context.Context, src io.ReadCloser, cell *Cell) *StreamSampler {
	s := &StreamSampler{
		cell: cell,
		src:  src,
		done: make(chan struct{}),
	}

	// unblock a pending Read when the run is cancelled
	stop := context.AfterFunc(ctx, func() { _ = s.closeSource() })

	go func() {
		defer close(s.done)
		defer stop()
		err := Stream(ctx, src, NewIntegrator(cell))
		if err != nil && ctx.Err() == nil {
			output.Logger.Warn("Telemetry stream stopped", "error", err)
		}
		s.err = err
	}()

	return s
}

// Sample returns the cumulative energy integrated so far.
func (s *StreamSampler) Sample() float64 { return s.cell.Load() }

// Close stops the telemetry reader and waits for it to exit.
func (s *StreamSampler) Close() error {
	err := s.closeSource()
	<-s.done
	return err
}

// Err returns the error that ended the stream, if it has ended.
func (s *StreamSampler) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *StreamSampler) closeSource() error {
	s.closeOnce.Do(func() { s.closeErr = s.src.Close() })
	return s.closeErr
}
