/*
PURPOSE:
  Abstracts a monotonically increasing energy counter (mWh) so the trial runner
  can snapshot it right before and right after a trial.

REQUIREMENTS:
  User-specified:
  - Serial telemetry (streamed, integrated in the background).
  - RAPL / powercap counter file (polled, microjoules).

  Implementation-discovered:
  - A "none" source is handy for latency-only runs.
  - Wraparound is detected by the caller comparing two readings.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (Runner), internal/cli (energy command)
  - Uses: go.bug.st/serial, internal/output (Logger)

ERROR HANDLING:
  - Setup errors (port cannot open, no counter file) are returned from Open.
  - Read errors after setup are logged and surface as a zero reading.

IMPLEMENTATION RULES:
  - Sample() never blocks on I/O longer than one file read.
  - The streamed total is owned by a Cell; one writer, many readers.

USAGE:
  src, err := energy.Open(ctx, energy.Options{Kind: energy.KindRAPL})
  defer src.Close()
  before := src.Sample()

SELF-HEALING INSTRUCTIONS:
  - If RAPL is not found, check /sys/class/powercap permissions (often root-only).

RELATED FILES:
  - internal/energy/stream.go
  - internal/energy/counter.go

MAINTENANCE:
  - Add new Kind constants here when adding a telemetry source.
*/

package energy

import (
	"context"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Source kinds.
const (
	KindSerial = "serial"
	KindRAPL   = "rapl"
	KindNone   = "none"
)

// Sampler reads the current cumulative energy in mWh.
type Sampler interface {
	Sample() float64
}

// Source is a Sampler that holds resources until closed.
type Source interface {
	Sampler
	io.Closer
}

// Options selects and configures a Source.
type Options struct {
	Kind        string
	SerialPort  string
	BaudRate    int
	CounterPath string // empty: search the default powercap locations
}

// Open builds the Source described by opts. For the serial kind the
// telemetry reader starts immediately and runs until ctx is done or the
// source is closed.
func Open(ctx context.Context, opts Options) (Source, error) {
	switch opts.Kind {
	case KindSerial:
		port, err := OpenSerial(opts.SerialPort, opts.BaudRate)
		if err != nil {
			return nil, err
		}
		return StartStream(ctx, port, &Cell{}), nil
	case KindRAPL:
		path := opts.CounterPath
		if path == "" {
			found, err := FindCounterFile()
			if err != nil {
				return nil, err
			}
			path = found
		}
		return NewCounterFileSampler(path), nil
	case KindNone, "":
		return NopSampler{}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownSource, "%q", opts.Kind)
	}
}

// NopSampler always reads zero.
type NopSampler struct{}

func (NopSampler) Sample() float64 { return 0 }
func (NopSampler) Close() error    { return nil }

// Attribute returns the energy consumed between two readings, clamped at zero.
// wrapped reports a counter that went backwards (overflow or reset); a
// non-finite reading is treated the same way, so its sample is dropped.
func Attribute(before, after float64) (energy float64, wrapped bool) {
	if !isFinite(before) || !isFinite(after) || after < before {
		return 0, true
	}
	return after - before, false
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
