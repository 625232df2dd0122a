// Package view defines the external read-only mirror of the tally.
package view

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Sheets API constants.
const (
	defaultBaseURL     = "https://sheets.googleapis.com/v4/spreadsheets"
	defaultSheetName   = "Sheet1"
	defaultHTTPTimeout = 15 * time.Second
)

// TokenSource supplies a bearer token for the spreadsheet API. Credential
// refresh is the caller's concern; this adapter only consumes tokens.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource backed by a fixed token string.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(_ context.Context) (string, error) {
	return string(t), nil
}

// SheetsView mirrors the tally into a Google spreadsheet, one row per entry
// with a header row, matching the sheet layout viewers already know.
type SheetsView struct {
	spreadsheetID string
	sheetName     string
	baseURL       string
	tokens        TokenSource
	client        *http.Client
}

// SheetsOption applies a configuration option to the SheetsView.
type SheetsOption func(*SheetsView)

// WithSheetName sets the worksheet tab that receives the mirror.
func WithSheetName(name string) SheetsOption {
	return func(v *SheetsView) {
		if name != "" {
			v.sheetName = name
		}
	}
}

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(base string) SheetsOption {
	return func(v *SheetsView) {
		if base != "" {
			v.baseURL = base
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) SheetsOption {
	return func(v *SheetsView) {
		if c != nil {
			v.client = c
		}
	}
}

// NewSheetsView creates a spreadsheet-backed view.
func NewSheetsView(spreadsheetID string, tokens TokenSource, opts ...SheetsOption) *SheetsView {
	v := &SheetsView{
		spreadsheetID: spreadsheetID,
		sheetName:     defaultSheetName,
		baseURL:       defaultBaseURL,
		tokens:        tokens,
		client:        &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// updateRequest mirrors the values.update payload.
type updateRequest struct {
	Range          string     `json:"range"`
	MajorDimension string     `json:"majorDimension"`
	Values         [][]string `json:"values"`
}

// Overwrite replaces the sheet's rows with the given snapshot. The write is
// a single ranged values.update, so a retried call lands on the same cells.
func (v *SheetsView) Overwrite(ctx context.Context, rows []Row) error {
	values := make([][]string, 0, len(rows)+1)
	values = append(values, []string{"Votes", "Game"})
	for _, r := range rows {
		values = append(values, []string{strconv.Itoa(r.Score), r.Name})
	}

	cellRange := fmt.Sprintf("%s!A1:B%d", v.sheetName, len(values))
	body, err := json.Marshal(updateRequest{
		Range:          cellRange,
		MajorDimension: "ROWS",
		Values:         values,
	})
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/values/%s?valueInputOption=RAW",
		v.baseURL, v.spreadsheetID, url.PathEscape(cellRange))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := v.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("fetch token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("update sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, snippet)
	}
	return nil
}
