package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/daryltucker/crowdcount-bench/internal/model"
)

// WorkbookWriter appends result blocks to an .xlsx workbook, keeping whatever
// earlier runs left in it. The workbook is saved after every image.
type WorkbookWriter struct {
	path  string
	file  *excelize.File
	sheet string
	retry RetryPolicy

	cursor  blockCursor
	current *model.ImageRun
	mu      sync.Mutex
}

// NewWorkbookWriter opens path (or creates a new workbook there). trials
// sizes the blocks and must match the run's trial count.
func NewWorkbookWriter(path string, trials int, retry RetryPolicy) (*WorkbookWriter, error) {
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy
	}

	var (
		f   *excelize.File
		err error
	)
	if _, statErr := os.Stat(path); statErr == nil {
		f, err = excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
		}
	} else {
		f = excelize.NewFile()
		if err := f.SetSheetName(f.GetSheetName(0), "Results"); err != nil {
			return nil, err
		}
		Logger.Info("Created new workbook", "path", path)
	}

	return &WorkbookWriter{
		path:    path,
		file:    f,
		sheet:   f.GetSheetName(f.GetActiveSheetIndex()),
		retry:  retry,
		cursor: newBlockCursor(trials),
	}, nil
}

func (w *WorkbookWriter) setAll(cells []CellValue) error {
	var errs []error
	for _, c := range cells {
		cell, err := excelize.CoordinatesToCellName(c.Col, c.Row)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		errs = append(errs, w.file.SetCellValue(w.sheet, cell, c.Value))
	}
	return errors.Join(errs...)
}

func (w *WorkbookWriter) occupied(col, row int) (bool, error) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false, err
	}
	v, err := w.file.GetCellValue(w.sheet, cell)
	return v != "", err
}

// place allocates a block for run and writes its headers.
func (w *WorkbookWriter) place(run *model.ImageRun) error {
	if w.current == run {
		return nil
	}
	if err := w.cursor.seek(w.occupied); err != nil {
		return err
	}
	w.current = run
	return w.setAll(w.cursor.headerCells(run))
}

// WriteTrial writes one trial row into the image's block.
func (w *WorkbookWriter) WriteTrial(run *model.ImageRun, t model.Trial) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.place(run); err != nil {
		return err
	}
	return w.setAll(w.cursor.trialCells(t))
}

// WriteSummary writes the summary block and saves the workbook.
func (w *WorkbookWriter) WriteSummary(run *model.ImageRun) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.place(run); err != nil {
		return err
	}
	if err := w.setAll(w.cursor.summaryCells(run)); err != nil {
		return err
	}

	w.current = nil
	w.cursor.advance()
	return w.retry.Do(context.Background(), "save workbook", func() error {
		return w.file.SaveAs(w.path)
	})
}

// Close saves any pending block and releases the workbook.
func (w *WorkbookWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var saveErr error
	if w.current != nil {
		saveErr = w.file.SaveAs(w.path)
	}
	return errors.Join(saveErr, w.file.Close())
}
