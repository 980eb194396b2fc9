package blacklist

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/comzer-gov/casbot/internal/blacklist"
	"google.golang.org/api/sheets/v4"
)

const (
	headerCategory = "Type(Country/Player)"
	headerStatus   = "status"
	headerValue    = "value"
	headerReason   = "reason"
	headerDate     = "date"
)

var defaultHeaders = []string{headerCategory, headerStatus, headerValue, headerReason, headerDate}

// SheetsStore keeps the blacklist in one tab of a Google spreadsheet; the first row is the header.
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
}

func NewSheetsStore(svc *sheets.Service, spreadsheetID, sheetName string) *SheetsStore {
	return &SheetsStore{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

func (s *SheetsStore) Load(ctx context.Context) ([]blacklist.Entry, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.tabRange("A:Z")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", s.sheetName, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	cols := columnIndex(resp.Values[0])
	entries := make([]blacklist.Entry, 0, len(resp.Values)-1)
	for i, row := range resp.Values[1:] {
		entry := blacklist.Entry{
			// Sheet rows are 1-based and the header occupies row 1.
			Ref:      i + 2,
			Category: blacklist.Category(cell(row, cols[headerCategory])),
			Status:   blacklist.Status(cell(row, cols[headerStatus])),
			Value:    cell(row, cols[headerValue]),
			Reason:   cell(row, cols[headerReason]),
			Date:     cell(row, cols[headerDate]),
		}
		if entry.Value == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *SheetsStore) Append(ctx context.Context, entry blacklist.Entry) error {
	cols, width, err := s.header(ctx)
	if err != nil {
		return err
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{toRow(entry, cols, width)}}
	_, err = s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.tabRange("A:"+columnLetter(width)), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append row to sheet %s: %w", s.sheetName, err)
	}
	return nil
}

func (s *SheetsStore) Update(ctx context.Context, entry blacklist.Entry) error {
	if entry.Ref < 2 {
		return fmt.Errorf("invalid sheet row reference %d", entry.Ref)
	}
	cols, width, err := s.header(ctx)
	if err != nil {
		return err
	}
	row := strconv.Itoa(entry.Ref)
	vr := &sheets.ValueRange{Values: [][]interface{}{toRow(entry, cols, width)}}
	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, s.tabRange("A"+row+":"+columnLetter(width)+row), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update row %d of sheet %s: %w", entry.Ref, s.sheetName, err)
	}
	return nil
}

func (s *SheetsStore) header(ctx context.Context) (map[string]int, int, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.tabRange("1:1")).Context(ctx).Do()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header of sheet %s: %w", s.sheetName, err)
	}
	var header []interface{}
	if len(resp.Values) > 0 {
		header = resp.Values[0]
	}
	cols := columnIndex(header)
	width := 0
	for _, idx := range cols {
		if idx+1 > width {
			width = idx + 1
		}
	}
	return cols, width, nil
}

func (s *SheetsStore) tabRange(cells string) string {
	return "'" + strings.ReplaceAll(s.sheetName, "'", "''") + "'!" + cells
}

// columnIndex maps the known headers to column positions, falling back to the default layout.
func columnIndex(header []interface{}) map[string]int {
	cols := make(map[string]int, len(defaultHeaders))
	for i, h := range header {
		name := strings.TrimSpace(fmt.Sprint(h))
		for _, known := range defaultHeaders {
			if strings.EqualFold(name, known) {
				cols[known] = i
			}
		}
	}
	if len(cols) != len(defaultHeaders) {
		cols = make(map[string]int, len(defaultHeaders))
		for i, known := range defaultHeaders {
			cols[known] = i
		}
	}
	return cols
}

func toRow(entry blacklist.Entry, cols map[string]int, width int) []interface{} {
	row := make([]interface{}, width)
	for i := range row {
		row[i] = ""
	}
	row[cols[headerCategory]] = string(entry.Category)
	row[cols[headerStatus]] = string(entry.Status)
	row[cols[headerValue]] = entry.Value
	row[cols[headerReason]] = entry.Reason
	row[cols[headerDate]] = entry.Date
	return row
}

func cell(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}

func columnLetter(n int) string {
	if n <= 0 {
		return "A"
	}
	letters := ""
	for n > 0 {
		n--
		letters = string(rune('A'+n%26)) + letters
		n /= 26
	}
	return letters
}
