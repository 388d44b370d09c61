package output

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/daryltucker/crowdcount-bench/internal/model"
)

// SheetValues reads and writes cells of one spreadsheet tab.
type SheetValues interface {
	// Row returns the first width cells of row; trailing empty cells may be
	// omitted.
	Row(ctx context.Context, row, width int) ([]interface{}, error)
	Write(ctx context.Context, cells []CellValue) error
}

// SheetsWriter mirrors the workbook block layout into a shared online
// spreadsheet. Every write is retried; a write that still fails is returned
// to the caller, which logs it and carries on with the run.
type SheetsWriter struct {
	values SheetValues
	retry  RetryPolicy

	cursor  blockCursor
	current *model.ImageRun
	rows    map[int][]interface{}
	mu      sync.Mutex
}

// NewSheetsWriter writes blocks sized for trials into values.
func NewSheetsWriter(values SheetValues, trials int, retry RetryPolicy) *SheetsWriter {
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy
	}
	return &SheetsWriter{
		values: values,
		retry:  retry,
		cursor: newBlockCursor(trials),
		rows:   make(map[int][]interface{}),
	}
}

// occupied reports whether a cell held something before this run started.
// Rows are fetched once and cached; blocks written by this run are skipped by
// advancing the cursor.
func (w *SheetsWriter) occupied(col, row int) (bool, error) {
	cells, ok := w.rows[row]
	if !ok {
		err := w.retry.Do(context.Background(), "read sheet row", func() error {
			var err error
			cells, err = w.values.Row(context.Background(), row, blockWidth*blocksPerBand)
			return err
		})
		if err != nil {
			return false, err
		}
		w.rows[row] = cells
	}
	if col-1 >= len(cells) || cells[col-1] == nil {
		return false, nil
	}
	return fmt.Sprint(cells[col-1]) != "", nil
}

func (w *SheetsWriter) write(op string, cells []CellValue) error {
	return w.retry.Do(context.Background(), op, func() error {
		return w.values.Write(context.Background(), cells)
	})
}

func (w *SheetsWriter) place(run *model.ImageRun) error {
	if w.current == run {
		return nil
	}
	if err := w.cursor.seek(w.occupied); err != nil {
		return err
	}
	w.current = run
	return w.write("write sheet header", w.cursor.headerCells(run))
}

// WriteTrial writes one trial row into the image's block.
func (w *SheetsWriter) WriteTrial(run *model.ImageRun, t model.Trial) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.place(run); err != nil {
		return err
	}
	return w.write("write sheet trial", w.cursor.trialCells(t))
}

// WriteSummary writes the summary cells and moves on to the next block.
func (w *SheetsWriter) WriteSummary(run *model.ImageRun) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.place(run); err != nil {
		return err
	}
	err := w.write("write sheet summary", w.cursor.summaryCells(run))
	w.current = nil
	w.cursor.advance()
	return err
}

func (w *SheetsWriter) Close() error { return nil }

// googleSheet is SheetValues backed by the Sheets v4 API.
type googleSheet struct {
	svc   *sheets.Service
	id    string
	sheet string
}

// OpenGoogleSheet connects to spreadsheetID with a service-account key file.
// An empty sheet name selects the first tab.
func OpenGoogleSheet(ctx context.Context, credentialsFile, spreadsheetID, sheet string) (SheetValues, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	if sheet == "" {
		ss, err := svc.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to open spreadsheet %s: %w", spreadsheetID, err)
		}
		if len(ss.Sheets) == 0 || ss.Sheets[0].Properties == nil {
			return nil, fmt.Errorf("spreadsheet %s has no sheets", spreadsheetID)
		}
		sheet = ss.Sheets[0].Properties.Title
	}

	Logger.Info("Connected to spreadsheet", "id", spreadsheetID, "sheet", sheet)
	return &googleSheet{svc: svc, id: spreadsheetID, sheet: sheet}, nil
}

func (g *googleSheet) a1(ref string) string {
	return "'" + strings.ReplaceAll(g.sheet, "'", "''") + "'!" + ref
}

func (g *googleSheet) Row(ctx context.Context, row, width int) ([]interface{}, error) {
	last, err := excelize.ColumnNumberToName(width)
	if err != nil {
		return nil, err
	}
	vr, err := g.svc.Spreadsheets.Values.Get(g.id, g.a1(fmt.Sprintf("A%d:%s%d", row, last, row))).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(vr.Values) == 0 {
		return nil, nil
	}
	return vr.Values[0], nil
}

func (g *googleSheet) Write(ctx context.Context, cells []CellValue) error {
	data := make([]*sheets.ValueRange, 0, len(cells))
	for _, c := range cells {
		ref, err := excelize.CoordinatesToCellName(c.Col, c.Row)
		if err != nil {
			return err
		}
		data = append(data, &sheets.ValueRange{
			Range:  g.a1(ref),
			Values: [][]interface{}{{c.Value}},
		})
	}
	_, err := g.svc.Spreadsheets.Values.BatchUpdate(g.id, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do()
	return err
}
