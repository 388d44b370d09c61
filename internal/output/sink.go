package output

import (
	"errors"

	"github.com/daryltucker/crowdcount-bench/internal/model"
)

// Sink receives benchmark results in iteration order: every trial of an image,
// then the image itself. run.Summary is nil when no trial was recorded.
type Sink interface {
	WriteTrial(run *model.ImageRun, t model.Trial) error
	WriteSummary(run *model.ImageRun) error
	Close() error
}

// MultiSink fans out to several sinks. A failing sink does not stop the others.
type MultiSink []Sink

func (m MultiSink) WriteTrial(run *model.ImageRun, t model.Trial) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteTrial(run, t))
	}
	return errors.Join(errs...)
}

func (m MultiSink) WriteSummary(run *model.ImageRun) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteSummary(run))
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
