package output

import (
	"time"

	"github.com/daryltucker/crowdcount-bench/internal/model"
)

// Block layout shared by the workbook and spreadsheet sinks. Each image gets a
// block of blockWidth columns; blocksPerBand blocks sit side by side, then the
// next band starts further down.
//
//	top       Run <timestamp>
//	top+1     Image: <name>
//	top+2     column headers
//	top+2+i   trial i (1-based)
//	top+N+6   Summary, labels and values on the rows below
const (
	blockWidth    = 6
	blocksPerBand = 4
	// band height is trials + bandPadding rows
	bandPadding = 20
)

var trialColumns = []string{
	"Iteration", "Count", "Elapsed Time (s)",
	"Energy Start (mWh)", "Energy End (mWh)", "Energy Request (mWh)",
}

// CellValue is one value at 1-based (Col, Row).
type CellValue struct {
	Col   int
	Row   int
	Value interface{}
}

// blockCursor tracks where the next image block goes.
type blockCursor struct {
	trials int
	band   int
	col    int
}

func newBlockCursor(trials int) blockCursor {
	return blockCursor{trials: trials, col: 1}
}

// top is the first row of the current band. The first band starts at row 1;
// band b starts at b*(trials+bandPadding).
func (c *blockCursor) top() int {
	if c.band == 0 {
		return 1
	}
	return c.band * (c.trials + bandPadding)
}

func (c *blockCursor) headerRow() int { return c.top() + 2 }

// seek moves to the first block whose column-header cell is empty.
func (c *blockCursor) seek(occupied func(col, row int) (bool, error)) error {
	for {
		for c.col < 1+blockWidth*blocksPerBand {
			used, err := occupied(c.col, c.headerRow())
			if err != nil {
				return err
			}
			if !used {
				return nil
			}
			c.col += blockWidth
		}
		c.col = 1
		c.band++
	}
}

// advance skips past the block just written.
func (c *blockCursor) advance() {
	c.col += blockWidth
	if c.col >= 1+blockWidth*blocksPerBand {
		c.col = 1
		c.band++
	}
}

func (c *blockCursor) headerCells(run *model.ImageRun) []CellValue {
	started := run.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	top := c.top()
	cells := []CellValue{
		{c.col, top, "Run " + started.Format("2006-01-02 15:04:05")},
		{c.col, top + 1, "Image: " + run.Image},
	}
	for i, h := range trialColumns {
		cells = append(cells, CellValue{c.col + i, c.headerRow(), h})
	}
	return cells
}

func (c *blockCursor) trialCells(t model.Trial) []CellValue {
	row := c.headerRow() + t.Index
	if !t.Recorded() {
		return []CellValue{
			{c.col, row, t.Index},
			{c.col + 1, row, "failed: " + t.ErrorKind},
			{c.col + 3, row, t.EnergyBefore},
		}
	}

	var count interface{} = t.Counts()
	if len(t.Requests) == 1 {
		count = t.Requests[0].Count
	}
	return []CellValue{
		{c.col, row, t.Index},
		{c.col + 1, row, count},
		{c.col + 2, row, t.Elapsed.Seconds()},
		{c.col + 3, row, t.EnergyBefore},
		{c.col + 4, row, t.EnergyAfter},
		{c.col + 5, row, t.Energy},
	}
}

func (c *blockCursor) summaryCells(run *model.ImageRun) []CellValue {
	row := c.top() + c.trials + 6
	if run.Summary == nil {
		return []CellValue{{c.col, row, "Summary: no successful trials"}}
	}

	cells := []CellValue{{c.col, row, "Summary"}}
	for i, v := range SummaryValues(run.Summary) {
		var value interface{} = v
		if SummaryLabels[i] == "Total Requests" {
			value = run.Summary.TotalRequests
		}
		cells = append(cells,
			CellValue{c.col, row + 1 + i, SummaryLabels[i]},
			CellValue{c.col + 1, row + 1 + i, value},
		)
	}
	return cells
}
