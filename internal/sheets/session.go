package sheets

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/dvloznov/telegrind/internal/domain"
	"github.com/dvloznov/telegrind/internal/logger"
	"github.com/rs/zerolog"
	gsheets "google.golang.org/api/sheets/v4"
)

type handleKey struct {
	document  string
	worksheet string
}

// Session is one event's view of one document. Worksheet handles and the
// settings are fetched at most once per session; sessions are never shared
// between events.
type Session struct {
	api        API
	documentID string
	title      string
	sheets     map[string]*gsheets.SheetProperties
	handles    map[handleKey]*Worksheet
	config     *ConfigSheet
	log        zerolog.Logger
}

// Open loads document metadata. Failures to reach the document surface as
// domain.DocumentAccessError.
func Open(ctx context.Context, api API, documentURL string) (*Session, error) {
	id, err := SpreadsheetID(documentURL)
	if err != nil {
		return nil, err
	}
	ss, err := api.GetSpreadsheet(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	s := &Session{
		api:        api,
		documentID: id,
		sheets:     make(map[string]*gsheets.SheetProperties),
		handles:    make(map[handleKey]*Worksheet),
		log:        logger.FromContext(ctx).With().Str("document_id", id).Logger(),
	}
	if ss.Properties != nil {
		s.title = ss.Properties.Title
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			s.sheets[sh.Properties.Title] = sh.Properties
		}
	}
	s.config = &ConfigSheet{session: s}
	return s, nil
}

// DocumentID is the spreadsheet id.
func (s *Session) DocumentID() string { return s.documentID }

// Title is the document title.
func (s *Session) Title() string { return s.title }

// Settings returns the settings worksheet accessor.
func (s *Session) Settings() *ConfigSheet { return s.config }

// Config is shorthand for Settings().Get.
func (s *Session) Config(ctx context.Context) (domain.DocumentConfig, error) {
	return s.config.Get(ctx)
}

// WorksheetFor returns the ensured worksheet holding records of kind k.
func (s *Session) WorksheetFor(ctx context.Context, k domain.Kind) (*Worksheet, error) {
	spec, err := domain.Spec(k)
	if err != nil {
		return nil, err
	}
	ws, _, err := s.Worksheet(ctx, spec)
	return ws, err
}

// Lookup returns the worksheet for kind k only if it already exists in the
// document; it never creates one.
func (s *Session) Lookup(k domain.Kind) (*Worksheet, bool) {
	spec, err := domain.Spec(k)
	if err != nil {
		return nil, false
	}
	key := handleKey{document: s.documentID, worksheet: spec.Name}
	if ws, ok := s.handles[key]; ok {
		return ws, true
	}
	props, ok := s.sheets[spec.Name]
	if !ok {
		return nil, false
	}
	ws := s.newWorksheet(spec, props)
	s.handles[key] = ws
	return ws, true
}

// Worksheet returns the memoized handle for spec, creating the worksheet
// with its header row and filter when the document lacks it. created is true
// only for the call that created it.
func (s *Session) Worksheet(ctx context.Context, spec domain.WorksheetSpec) (ws *Worksheet, created bool, err error) {
	key := handleKey{document: s.documentID, worksheet: spec.Name}
	if ws, ok := s.handles[key]; ok {
		return ws, false, nil
	}

	props, ok := s.sheets[spec.Name]
	if !ok {
		props, err = s.addSheet(ctx, spec)
		if err != nil {
			return nil, false, err
		}
		created = true
	}

	ws = s.newWorksheet(spec, props)
	s.handles[key] = ws
	return ws, created, nil
}

func (s *Session) newWorksheet(spec domain.WorksheetSpec, props *gsheets.SheetProperties) *Worksheet {
	return &Worksheet{
		api:        s.api,
		documentID: s.documentID,
		spec:       spec,
		sheetID:    props.SheetId,
		log:        s.log.With().Str("worksheet", spec.Name).Logger(),
	}
}

// addSheet creates the worksheet, its header row and its filter in one
// batch. The batch is applied atomically, so a worksheet never exists
// without its header.
func (s *Session) addSheet(ctx context.Context, spec domain.WorksheetSpec) (*gsheets.SheetProperties, error) {
	sheetID := s.freeSheetID(spec.Name)
	reqs := []*gsheets.Request{{
		AddSheet: &gsheets.AddSheetRequest{
			Properties: &gsheets.SheetProperties{
				SheetId: sheetID,
				Title:   spec.Name,
				GridProperties: &gsheets.GridProperties{
					RowCount:    int64(spec.Rows),
					ColumnCount: int64(spec.Cols),
				},
			},
		},
	}}
	if len(spec.Header) > 0 {
		reqs = append(reqs, headerRequest(sheetID, spec.Header), filterRequest(sheetID, spec.Cols))
	}

	resp, err := s.api.BatchUpdate(ctx, s.documentID, reqs...)
	if err != nil {
		return nil, fmt.Errorf("addSheet %s: %w", spec.Name, err)
	}
	if resp == nil || len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return nil, fmt.Errorf("addSheet %s: empty reply", spec.Name)
	}
	props := resp.Replies[0].AddSheet.Properties
	s.sheets[spec.Name] = props
	s.log.Info().Str("worksheet", spec.Name).Int64("sheet_id", props.SheetId).Msg("Created worksheet")
	return props, nil
}

// freeSheetID derives a sheet id from the title, stepping past ids the
// document already uses.
func (s *Session) freeSheetID(name string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	id := int64(h.Sum32() & 0x7fffffff)

	taken := make(map[int64]bool, len(s.sheets))
	for _, p := range s.sheets {
		taken[p.SheetId] = true
	}
	for id == 0 || taken[id] {
		id = (id + 1) & 0x7fffffff
	}
	return id
}

func headerRequest(sheetID int64, header []string) *gsheets.Request {
	cells := make([]*gsheets.CellData, len(header))
	for i, h := range header {
		v := h
		cells[i] = &gsheets.CellData{UserEnteredValue: &gsheets.ExtendedValue{StringValue: &v}}
	}
	return &gsheets.Request{
		UpdateCells: &gsheets.UpdateCellsRequest{
			Start: &gsheets.GridCoordinate{
				SheetId:         sheetID,
				ForceSendFields: []string{"SheetId", "RowIndex", "ColumnIndex"},
			},
			Rows:   []*gsheets.RowData{{Values: cells}},
			Fields: "userEnteredValue",
		},
	}
}

// quoteSheet renders a sheet title for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// columnLetter converts a 1-based column number to its A1 letters.
func columnLetter(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}
