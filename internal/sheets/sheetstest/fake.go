// Package sheetstest provides an in-memory sheets.API for tests.
package sheetstest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/dvloznov/telegrind/internal/sheets"
	gsheets "google.golang.org/api/sheets/v4"
)

type sheet struct {
	props  *gsheets.SheetProperties
	rows   [][]interface{}
	filter *gsheets.GridRange
}

// Fake is a single in-memory spreadsheet. It is safe for concurrent use.
type Fake struct {
	mu     sync.Mutex
	id     string
	title  string
	sheets []*sheet
	nextID int64
	calls  map[string]int
	failOn map[string]error

	// Err, when set, is returned by every call.
	Err error
}

// New returns an empty spreadsheet with the given id and title.
func New(id, title string) *Fake {
	return &Fake{id: id, title: title, nextID: 100, calls: make(map[string]int), failOn: make(map[string]error)}
}

// FailRequest makes BatchUpdate fail with err whenever a batch carries a
// request of the given kind ("AddSheet", "UpdateCells", "DeleteDimension",
// "SetBasicFilter"). A nil err clears the failure.
func (f *Fake) FailRequest(kind string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failOn, kind)
		return
	}
	f.failOn[kind] = err
}

// URL is a share link that resolves to this spreadsheet.
func (f *Fake) URL() string {
	return "https://docs.google.com/spreadsheets/d/" + f.id + "/edit#gid=0"
}

// Seed creates a worksheet with the given rows.
func (f *Fake) Seed(name string, rows ...[]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.find(name)
	if s == nil {
		s = f.add(&gsheets.SheetProperties{Title: name, GridProperties: &gsheets.GridProperties{}})
	}
	s.rows = append(s.rows, rows...)
}

// Rows returns a copy of a worksheet's rows, header included.
func (f *Fake) Rows(name string) [][]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.find(name)
	if s == nil {
		return nil
	}
	out := make([][]interface{}, len(s.rows))
	copy(out, s.rows)
	return out
}

// Titles lists worksheet titles in creation order.
func (f *Fake) Titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sheets))
	for _, s := range f.sheets {
		out = append(out, s.props.Title)
	}
	return out
}

// Properties returns the sheet properties of a worksheet.
func (f *Fake) Properties(name string) *gsheets.SheetProperties {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s := f.find(name); s != nil {
		return s.props
	}
	return nil
}

// Filter returns the basic filter range of a worksheet, if any.
func (f *Fake) Filter(name string) *gsheets.GridRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s := f.find(name); s != nil {
		return s.filter
	}
	return nil
}

// Calls reports how many times a method was invoked. Batch request kinds
// ("AddSheet", ...) count only batches that were applied.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *Fake) enter(method, spreadsheetID string) error {
	f.calls[method]++
	if f.Err != nil {
		return f.Err
	}
	if spreadsheetID != f.id {
		return fmt.Errorf("%s: spreadsheet %s not found", method, spreadsheetID)
	}
	return nil
}

func (f *Fake) find(name string) *sheet {
	for _, s := range f.sheets {
		if s.props.Title == name {
			return s
		}
	}
	return nil
}

func (f *Fake) findID(id int64) *sheet {
	for _, s := range f.sheets {
		if s.props.SheetId == id {
			return s
		}
	}
	return nil
}

func (f *Fake) add(props *gsheets.SheetProperties) *sheet {
	p := *props
	if p.SheetId == 0 {
		f.nextID++
		p.SheetId = f.nextID
	}
	s := &sheet{props: &p}
	f.sheets = append(f.sheets, s)
	return s
}

// snapshot copies the worksheets so a failed batch can be rolled back.
func (f *Fake) snapshot() ([]*sheet, int64) {
	out := make([]*sheet, len(f.sheets))
	for i, s := range f.sheets {
		cp := *s
		cp.rows = make([][]interface{}, len(s.rows))
		copy(cp.rows, s.rows)
		out[i] = &cp
	}
	return out, f.nextID
}

func (f *Fake) GetSpreadsheet(ctx context.Context, spreadsheetID string) (*gsheets.Spreadsheet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetSpreadsheet", spreadsheetID); err != nil {
		return nil, err
	}
	ss := &gsheets.Spreadsheet{
		SpreadsheetId: f.id,
		Properties:    &gsheets.SpreadsheetProperties{Title: f.title},
	}
	for _, s := range f.sheets {
		p := *s.props
		ss.Sheets = append(ss.Sheets, &gsheets.Sheet{Properties: &p})
	}
	return ss, nil
}

// BatchUpdate applies the requests in order. Like the real API, a batch is
// atomic: when any request fails none of them take effect.
func (f *Fake) BatchUpdate(ctx context.Context, spreadsheetID string, reqs ...*gsheets.Request) (*gsheets.BatchUpdateSpreadsheetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("BatchUpdate", spreadsheetID); err != nil {
		return nil, err
	}
	saved, nextID := f.snapshot()
	resp, err := f.apply(reqs)
	if err != nil {
		f.sheets, f.nextID = saved, nextID
		return nil, err
	}
	for _, r := range reqs {
		f.calls[requestKind(r)]++
	}
	return resp, nil
}

func (f *Fake) apply(reqs []*gsheets.Request) (*gsheets.BatchUpdateSpreadsheetResponse, error) {
	resp := &gsheets.BatchUpdateSpreadsheetResponse{SpreadsheetId: f.id}
	for _, r := range reqs {
		reply := &gsheets.Response{}
		kind := requestKind(r)
		if err := f.failOn[kind]; err != nil {
			return nil, err
		}
		switch kind {
		case "AddSheet":
			if f.find(r.AddSheet.Properties.Title) != nil {
				return nil, fmt.Errorf("BatchUpdate: sheet %q already exists", r.AddSheet.Properties.Title)
			}
			if id := r.AddSheet.Properties.SheetId; id != 0 && f.findID(id) != nil {
				return nil, fmt.Errorf("BatchUpdate: sheet id %d already in use", id)
			}
			s := f.add(r.AddSheet.Properties)
			reply.AddSheet = &gsheets.AddSheetResponse{Properties: s.props}
		case "UpdateCells":
			start := r.UpdateCells.Start
			if start == nil {
				return nil, fmt.Errorf("BatchUpdate: UpdateCells without start")
			}
			s := f.findID(start.SheetId)
			if s == nil {
				return nil, fmt.Errorf("BatchUpdate: no sheet %d", start.SheetId)
			}
			for i, rd := range r.UpdateCells.Rows {
				idx := int(start.RowIndex) + i
				for len(s.rows) <= idx {
					s.rows = append(s.rows, []interface{}{})
				}
				row := make([]interface{}, 0, len(rd.Values))
				for _, c := range rd.Values {
					row = append(row, cellValue(c))
				}
				s.rows[idx] = row
			}
		case "DeleteDimension":
			rg := r.DeleteDimension.Range
			s := f.findID(rg.SheetId)
			if s == nil {
				return nil, fmt.Errorf("BatchUpdate: no sheet %d", rg.SheetId)
			}
			if int(rg.EndIndex) > len(s.rows) || rg.StartIndex >= rg.EndIndex {
				return nil, fmt.Errorf("BatchUpdate: bad row range %d-%d", rg.StartIndex, rg.EndIndex)
			}
			s.rows = append(s.rows[:rg.StartIndex], s.rows[rg.EndIndex:]...)
		case "SetBasicFilter":
			rg := r.SetBasicFilter.Filter.Range
			s := f.findID(rg.SheetId)
			if s == nil {
				return nil, fmt.Errorf("BatchUpdate: no sheet %d", rg.SheetId)
			}
			cp := *rg
			s.filter = &cp
		default:
			return nil, fmt.Errorf("BatchUpdate: unsupported request")
		}
		resp.Replies = append(resp.Replies, reply)
	}
	return resp, nil
}

func requestKind(r *gsheets.Request) string {
	switch {
	case r.AddSheet != nil:
		return "AddSheet"
	case r.UpdateCells != nil:
		return "UpdateCells"
	case r.DeleteDimension != nil:
		return "DeleteDimension"
	case r.SetBasicFilter != nil:
		return "SetBasicFilter"
	}
	return ""
}

func cellValue(c *gsheets.CellData) interface{} {
	if c == nil || c.UserEnteredValue == nil {
		return ""
	}
	v := c.UserEnteredValue
	switch {
	case v.StringValue != nil:
		return *v.StringValue
	case v.NumberValue != nil:
		return *v.NumberValue
	case v.BoolValue != nil:
		return *v.BoolValue
	}
	return ""
}

func (f *Fake) GetValues(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetValues", spreadsheetID); err != nil {
		return nil, err
	}
	name, start, end, err := parseRange(rng)
	if err != nil {
		return nil, err
	}
	s := f.find(name)
	if s == nil {
		return nil, fmt.Errorf("GetValues: unable to parse range: %s", rng)
	}
	var out [][]interface{}
	for i := start - 1; i < len(s.rows); i++ {
		if end > 0 && i >= end {
			break
		}
		row := make([]interface{}, len(s.rows[i]))
		copy(row, s.rows[i])
		out = append(out, row)
	}
	return out, nil
}

func (f *Fake) UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateValues", spreadsheetID); err != nil {
		return err
	}
	name, start, _, err := parseRange(rng)
	if err != nil {
		return err
	}
	s := f.find(name)
	if s == nil {
		return fmt.Errorf("UpdateValues: unable to parse range: %s", rng)
	}
	for i, row := range values {
		idx := start - 1 + i
		for len(s.rows) <= idx {
			s.rows = append(s.rows, []interface{}{})
		}
		s.rows[idx] = append([]interface{}(nil), row...)
	}
	return nil
}

func (f *Fake) AppendValues(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("AppendValues", spreadsheetID); err != nil {
		return err
	}
	name, _, _, err := parseRange(rng)
	if err != nil {
		return err
	}
	s := f.find(name)
	if s == nil {
		return fmt.Errorf("AppendValues: unable to parse range: %s", rng)
	}
	for _, row := range values {
		s.rows = append(s.rows, append([]interface{}(nil), row...))
	}
	return nil
}

// parseRange understands 'Name'!A1, 'Name'!A5, 'Name'!A:E and 'Name'!A1:B2.
// end is 0 when the range is open-ended.
func parseRange(rng string) (name string, start, end int, err error) {
	i := strings.LastIndex(rng, "!")
	if i < 0 {
		return "", 0, 0, fmt.Errorf("parseRange: no sheet in %q", rng)
	}
	name = rng[:i]
	if strings.HasPrefix(name, "'") && strings.HasSuffix(name, "'") {
		name = strings.ReplaceAll(name[1:len(name)-1], "''", "'")
	}
	parts := strings.SplitN(rng[i+1:], ":", 2)
	start = rowOf(parts[0])
	if start == 0 {
		start = 1
	}
	if len(parts) == 2 {
		end = rowOf(parts[1])
	}
	return name, start, end, nil
}

func rowOf(cell string) int {
	digits := strings.TrimLeft(cell, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	n, _ := strconv.Atoi(digits)
	return n
}

var _ sheets.API = (*Fake)(nil)
