package energy

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/daryltucker/crowdcount-bench/internal/output"
)

// microjoules per mWh
const ujPerMWh = 3.6e6

// DefaultCounterPatterns are searched in order by FindCounterFile.
var DefaultCounterPatterns = []string{
	"/sys/class/powercap/intel-rapl:*/energy_uj",
	"/sys/class/power_cap/dram-*-*/energy",
	"/sys/class/hwmon/hwmon*/energy*_input", // amd_energy
}

// FindCounterFile returns the first file matching patterns (or
// DefaultCounterPatterns when none are given).
func FindCounterFile(patterns ...string) (string, error) {
	if len(patterns) == 0 {
		patterns = DefaultCounterPatterns
	}
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return "", errors.Wrapf(err, "energy: bad counter pattern %q", p)
		}
		if len(matches) > 0 {
			return matches[0], nil
		}
	}
	return "", errors.Wrapf(ErrNoCounterFile, "searched %s", strings.Join(patterns, ", "))
}

// ReadCounter reads a plain-text microjoule counter and converts it to mWh.
func ReadCounter(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(ErrCounterRead, "%s: %v", path, err)
	}
	uj, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrCounterRead, "%s: %v", path, err)
	}
	return float64(uj) / ujPerMWh, nil
}

// CounterFileSampler polls a counter file on every Sample call.
type CounterFileSampler struct {
	Path string
}

// NewCounterFileSampler returns a sampler for path.
func NewCounterFileSampler(path string) *CounterFileSampler {
	return &CounterFileSampler{Path: path}
}

// Sample re-reads the counter. Failures are logged and read as zero.
func (c *CounterFileSampler) Sample() float64 {
	v, err := ReadCounter(c.Path)
	if err != nil {
		output.Logger.Warn("Could not read energy counter, using 0", "path", c.Path, "error", err)
		return 0
	}
	return v
}

func (c *CounterFileSampler) Close() error { return nil }
