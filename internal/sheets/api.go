// Package sheets reads and writes the user's Google Sheets document: one
// worksheet per record kind plus a small settings worksheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/dvloznov/telegrind/internal/domain"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// API is the subset of the Sheets v4 REST surface the gateway needs.
type API interface {
	// GetSpreadsheet returns document metadata including sheet properties.
	GetSpreadsheet(ctx context.Context, spreadsheetID string) (*gsheets.Spreadsheet, error)

	// BatchUpdate applies structural requests (add sheet, delete rows, filters).
	BatchUpdate(ctx context.Context, spreadsheetID string, reqs ...*gsheets.Request) (*gsheets.BatchUpdateSpreadsheetResponse, error)

	// GetValues reads a range with numbers unformatted.
	GetValues(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)

	// UpdateValues overwrites a range.
	UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error

	// AppendValues appends rows after the last row of the table at rng.
	AppendValues(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error
}

// GoogleAPI implements API with a service account and a client-side rate limit.
type GoogleAPI struct {
	svc     *gsheets.Service
	limiter *rate.Limiter
	email   string
}

// NewGoogleAPIFromFile reads service account credentials from path.
func NewGoogleAPIFromFile(ctx context.Context, path string, requestsPerMinute int) (*GoogleAPI, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("NewGoogleAPIFromFile: reading credentials: %w", err)
	}
	return NewGoogleAPI(ctx, b, requestsPerMinute)
}

// NewGoogleAPI builds a Sheets client from service account JSON.
func NewGoogleAPI(ctx context.Context, credentialsJSON []byte, requestsPerMinute int) (*GoogleAPI, error) {
	jwt, err := google.JWTConfigFromJSON(credentialsJSON, gsheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("NewGoogleAPI: parsing service account: %w", err)
	}
	svc, err := gsheets.NewService(ctx, option.WithHTTPClient(jwt.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("NewGoogleAPI: creating sheets service: %w", err)
	}
	return &GoogleAPI{
		svc:     svc,
		limiter: newLimiter(requestsPerMinute),
		email:   jwt.Email,
	}, nil
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60), perMinute/6+1)
}

// ServiceAccountEmail is the address users share their documents with.
func (g *GoogleAPI) ServiceAccountEmail() string {
	return g.email
}

func (g *GoogleAPI) GetSpreadsheet(ctx context.Context, spreadsheetID string) (*gsheets.Spreadsheet, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ss, err := g.svc.Spreadsheets.Get(spreadsheetID).
		Fields(googleapi.Field("spreadsheetId,properties.title,sheets.properties")).
		Context(ctx).Do()
	if err != nil {
		return nil, classify(spreadsheetID, fmt.Errorf("GetSpreadsheet: %w", err))
	}
	return ss, nil
}

func (g *GoogleAPI) BatchUpdate(ctx context.Context, spreadsheetID string, reqs ...*gsheets.Request) (*gsheets.BatchUpdateSpreadsheetResponse, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := g.svc.Spreadsheets.BatchUpdate(spreadsheetID, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: reqs,
	}).Context(ctx).Do()
	if err != nil {
		return nil, classify(spreadsheetID, fmt.Errorf("BatchUpdate: %w", err))
	}
	return resp, nil
}

func (g *GoogleAPI) GetValues(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := g.svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, classify(spreadsheetID, fmt.Errorf("GetValues %s: %w", rng, err))
	}
	return resp.Values, nil
}

func (g *GoogleAPI) UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := g.svc.Spreadsheets.Values.Update(spreadsheetID, rng, &gsheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return classify(spreadsheetID, fmt.Errorf("UpdateValues %s: %w", rng, err))
	}
	return nil
}

func (g *GoogleAPI) AppendValues(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := g.svc.Spreadsheets.Values.Append(spreadsheetID, rng, &gsheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return classify(spreadsheetID, fmt.Errorf("AppendValues %s: %w", rng, err))
	}
	return nil
}

// classify wraps permission and connectivity failures in DocumentAccessError.
// Other API errors (malformed requests) are returned as is.
func classify(spreadsheetID string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return &domain.DocumentAccessError{DocumentID: spreadsheetID, Err: err}
		}
		if gerr.Code < http.StatusInternalServerError {
			return err
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &domain.DocumentAccessError{DocumentID: spreadsheetID, Err: err}
}

var spreadsheetIDRe = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)
var bareIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{20,}$`)

// SpreadsheetID extracts the document id from a share link or accepts a bare id.
func SpreadsheetID(link string) (string, error) {
	link = strings.TrimSpace(link)
	if m := spreadsheetIDRe.FindStringSubmatch(link); m != nil {
		return m[1], nil
	}
	if bareIDRe.MatchString(link) {
		return link, nil
	}
	return "", &domain.DocumentAccessError{Err: fmt.Errorf("%q is not a Google Sheets link", link)}
}

var _ API = (*GoogleAPI)(nil)
