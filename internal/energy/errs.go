package energy

import "github.com/pkg/errors"

var (
	// ErrNoCounterFile indicates that none of the counter-file patterns matched.
	ErrNoCounterFile = errors.New("energy: no counter file found")

	// ErrCounterRead indicates that the counter file could not be read or parsed.
	// Samplers absorb it and report a zero reading.
	ErrCounterRead = errors.New("energy: counter read failed")

	// ErrUnknownSource indicates an unsupported energy source kind.
	ErrUnknownSource = errors.New("energy: unknown source")
)
