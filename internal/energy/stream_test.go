package energy

import (
	"context"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrator_RectangularSum(t *testing.T) {
	cell := &Cell{}
	in := NewIntegrator(cell)

	lines := []struct {
		ts      int64
		current float64
		voltage float64
	}{
		{1000, 100, 5.0},
		{1500, 120, 5.0},
		{2500, 80, 5.1},
		{2600, 200, 4.9},
	}

	var want float64
	for i, l := range lines {
		line := strings.Join([]string{
			itoa(l.ts), ftoa(l.current), ftoa(l.voltage),
		}, ";")
		require.True(t, in.Ingest(line), "line %d", i)
		if i > 0 {
			want += l.current * l.voltage * float64(l.ts-lines[i-1].ts) / 3_600_000
		}
		assert.InDelta(t, want, cell.Load(), 1e-12, "after line %d", i)
	}
}

func TestIntegrator_FirstLineIsBaselineOnly(t *testing.T) {
	cell := &Cell{}
	in := NewIntegrator(cell)

	require.True(t, in.Ingest("5000;1000;5"))
	assert.Equal(t, 0.0, cell.Load())

	require.True(t, in.Ingest("8600;1000;5"))
	// 5000 mW for 3600 ms = 5 mWh
	assert.InDelta(t, 5.0, cell.Load(), 1e-12)
}

func TestIntegrator_MalformedLinesIgnored(t *testing.T) {
	cell := &Cell{}
	in := NewIntegrator(cell)
	require.True(t, in.Ingest("0;100;5"))
	require.True(t, in.Ingest("1000;100;5"))
	before := cell.Load()

	bad := []string{
		"",
		"garbage",
		"1;2",
		"1;2;3;4",
		"abc;100;5",
		"2000;x;5",
		"2000;100;volts",
		"2000.5;100;5",
		"\x00\xff;;",
		"2000;NaN;5",
		"2000;100;nan",
		"2000;inf;5",
		"2000;100;-Inf",
		"2000;Infinity;5",
	}
	for _, line := range bad {
		assert.False(t, in.Ingest(line), "line %q", line)
		assert.Equal(t, before, cell.Load(), "line %q changed the total", line)
	}

	// baseline survives the garbage: next valid line integrates from ts=1000
	require.True(t, in.Ingest("2000;100;5"))
	assert.InDelta(t, before+500.0*1000/3_600_000, cell.Load(), 1e-12)
}

func TestIntegrator_NonFiniteLineKeepsTotalFinite(t *testing.T) {
	cell := &Cell{}
	in := NewIntegrator(cell)

	require.True(t, in.Ingest("1000;100;5"))
	assert.False(t, in.Ingest("2000;NaN;5"))
	require.True(t, in.Ingest("3000;100;5"))

	assert.False(t, math.IsNaN(cell.Load()))
	assert.InDelta(t, 500.0*2000/3_600_000, cell.Load(), 1e-12)
}

func TestIntegrator_ClockResetStartsNewBaseline(t *testing.T) {
	cell := &Cell{}
	in := NewIntegrator(cell)
	require.True(t, in.Ingest("9000;100;5"))
	require.True(t, in.Ingest("10000;100;5"))
	total := cell.Load()

	require.True(t, in.Ingest("10;100;5"))
	assert.Equal(t, total, cell.Load(), "a backwards timestamp adds nothing")

	require.True(t, in.Ingest("1010;100;5"))
	assert.InDelta(t, 2*total, cell.Load(), 1e-12)
}

func TestStream_ReadsUntilEOF(t *testing.T) {
	cell := &Cell{}
	r := strings.NewReader("0;1000;3.6\n\nnot a line\n1000;1000;3.6\r\n2000;1000;3.6\n")

	err := Stream(context.Background(), r, NewIntegrator(cell))
	require.NoError(t, err)
	// 3600 mW for 2000 ms = 2 mWh
	assert.InDelta(t, 2.0, cell.Load(), 1e-12)
}

func TestStream_DropsOverlongLines(t *testing.T) {
	cell := &Cell{}
	noise := strings.Repeat("#", 70*1024)
	r := strings.NewReader("0;1000;3.6\n" + noise + "\n1000;1000;3.6\n" + noise + "2000;1000;3.6\n3000;1000;3.6\n")

	err := Stream(context.Background(), r, NewIntegrator(cell))
	require.NoError(t, err)
	// the noise-prefixed 2000 line is dropped with the noise; 0 -> 1000 -> 3000
	assert.InDelta(t, 3.0, cell.Load(), 1e-12)
}

func TestStream_LastLineWithoutNewline(t *testing.T) {
	cell := &Cell{}
	err := Stream(context.Background(), strings.NewReader("0;1000;3.6\n1000;1000;3.6"), NewIntegrator(cell))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cell.Load(), 1e-12)
}

func TestStream_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Stream(ctx, strings.NewReader("0;1;1\n1;1;1\n"), NewIntegrator(&Cell{}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamSampler_BackgroundReader(t *testing.T) {
	pr, pw := io.Pipe()
	s := StartStream(context.Background(), pr, &Cell{})

	_, err := io.WriteString(pw, "0;1000;3.6\n1000;1000;3.6\n")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return s.Sample() > 0.999
	}, time.Second, 5*time.Millisecond)
	assert.InDelta(t, 1.0, s.Sample(), 1e-12)

	require.NoError(t, s.Close())
	assert.Error(t, s.Err(), "reading a closed pipe ends the stream")
}

func TestStreamSampler_ContextCancelStopsReader(t *testing.T) {
	pr, _ := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	s := StartStream(ctx, pr, &Cell{})

	cancel()
	select {
	case <-s.done:
	case <-time.After(time.Second):
		t.Fatal("telemetry goroutine did not exit after cancel")
	}
	assert.NoError(t, s.Close())
}

func TestCell_ConcurrentReaders(t *testing.T) {
	cell := &Cell{}
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			cell.Add(0.5)
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev := 0.0
			for i := 0; i < 1000; i++ {
				v := cell.Load()
				assert.GreaterOrEqual(t, v, prev)
				prev = v
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 500.0, cell.Load())
}
