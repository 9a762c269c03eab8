package sheets

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dvloznov/telegrind/internal/domain"
	"github.com/rs/zerolog"
	gsheets "google.golang.org/api/sheets/v4"
)

// Worksheet is a handle on one tab of the document. Row indexes are 1-based
// as in the Sheets UI; row 1 is the header.
type Worksheet struct {
	api        API
	documentID string
	spec       domain.WorksheetSpec
	sheetID    int64
	log        zerolog.Logger
}

// Name is the worksheet title.
func (w *Worksheet) Name() string { return w.spec.Name }

// Spec is the worksheet layout.
func (w *Worksheet) Spec() domain.WorksheetSpec { return w.spec }

func (w *Worksheet) a1(cells string) string {
	return quoteSheet(w.spec.Name) + "!" + cells
}

func (w *Worksheet) fullRange() string {
	return w.a1("A:" + columnLetter(w.spec.Cols))
}

// Append writes one row after the last row.
func (w *Worksheet) Append(ctx context.Context, row []interface{}) error {
	return w.AppendMany(ctx, [][]interface{}{row})
}

// AppendMany writes rows after the last row in one request.
func (w *Worksheet) AppendMany(ctx context.Context, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	if err := w.api.AppendValues(ctx, w.documentID, w.a1("A1"), rows); err != nil {
		return fmt.Errorf("AppendMany %s: %w", w.spec.Name, err)
	}
	w.log.Debug().Int("rows", len(rows)).Msg("Appended rows")
	return w.applyFilter(ctx)
}

// Rows reads every row including the header.
func (w *Worksheet) Rows(ctx context.Context) ([][]interface{}, error) {
	rows, err := w.api.GetValues(ctx, w.documentID, w.fullRange())
	if err != nil {
		return nil, fmt.Errorf("Rows %s: %w", w.spec.Name, err)
	}
	return rows, nil
}

// FindAllByID returns the indexes of every row whose first cell equals id.
func (w *Worksheet) FindAllByID(ctx context.Context, id int64) ([]int, error) {
	rows, err := w.Rows(ctx)
	if err != nil {
		return nil, err
	}
	want := strconv.FormatInt(id, 10)
	var found []int
	for i, row := range rows {
		if len(row) > 0 && domain.CellText(row[0]) == want {
			found = append(found, i+1)
		}
	}
	return found, nil
}

// FindByID returns the index and cells of the first row carrying id, or
// domain.ErrRecordNotFound. Duplicate ids are tolerated and logged.
func (w *Worksheet) FindByID(ctx context.Context, id int64) (int, []interface{}, error) {
	rows, err := w.Rows(ctx)
	if err != nil {
		return 0, nil, err
	}
	want := strconv.FormatInt(id, 10)
	index := 0
	var cells []interface{}
	dups := 0
	for i, row := range rows {
		if len(row) == 0 || domain.CellText(row[0]) != want {
			continue
		}
		if index == 0 {
			index, cells = i+1, row
		} else {
			dups++
		}
	}
	if index == 0 {
		return 0, nil, domain.ErrRecordNotFound
	}
	if dups > 0 {
		w.log.Warn().Int64("message_id", id).Int("duplicates", dups).Msg("Message id appears in more than one row")
	}
	return index, cells, nil
}

// UpdateRow overwrites the row at index.
func (w *Worksheet) UpdateRow(ctx context.Context, index int, row []interface{}) error {
	if index < 2 {
		return fmt.Errorf("UpdateRow %s: refusing to overwrite row %d", w.spec.Name, index)
	}
	rng := w.a1("A" + strconv.Itoa(index))
	if err := w.api.UpdateValues(ctx, w.documentID, rng, [][]interface{}{row}); err != nil {
		return fmt.Errorf("UpdateRow %s: %w", w.spec.Name, err)
	}
	return w.applyFilter(ctx)
}

// DeleteRow removes the row at index, shifting the rows below it up.
func (w *Worksheet) DeleteRow(ctx context.Context, index int) error {
	if index < 2 {
		return fmt.Errorf("DeleteRow %s: refusing to delete row %d", w.spec.Name, index)
	}
	_, err := w.api.BatchUpdate(ctx, w.documentID, &gsheets.Request{
		DeleteDimension: &gsheets.DeleteDimensionRequest{
			Range: &gsheets.DimensionRange{
				SheetId:         w.sheetID,
				Dimension:       "ROWS",
				StartIndex:      int64(index - 1),
				EndIndex:        int64(index),
				ForceSendFields: []string{"SheetId", "StartIndex"},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("DeleteRow %s: %w", w.spec.Name, err)
	}
	return w.applyFilter(ctx)
}

// applyFilter (re)sets the basic filter over all columns of the worksheet.
func (w *Worksheet) applyFilter(ctx context.Context) error {
	if len(w.spec.Header) == 0 {
		return nil
	}
	if _, err := w.api.BatchUpdate(ctx, w.documentID, filterRequest(w.sheetID, w.spec.Cols)); err != nil {
		return fmt.Errorf("applyFilter %s: %w", w.spec.Name, err)
	}
	return nil
}

// filterRequest sets a basic filter over every row of the first cols columns.
func filterRequest(sheetID int64, cols int) *gsheets.Request {
	return &gsheets.Request{
		SetBasicFilter: &gsheets.SetBasicFilterRequest{
			Filter: &gsheets.BasicFilter{
				Range: &gsheets.GridRange{
					SheetId:          sheetID,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(cols),
					ForceSendFields:  []string{"SheetId", "StartColumnIndex"},
				},
			},
		},
	}
}
