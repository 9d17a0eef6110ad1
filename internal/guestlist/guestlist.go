// Package guestlist reads uploaded guest spreadsheets (.xlsx or .csv) into
// guest records.  The first non-empty row is the header; columns are
// matched by name, so their order does not matter.
package guestlist

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/venue-scan/internal/model"
)

var (
	ErrUnsupportedFormat = errors.New("guest list must be an .xlsx or .csv file")
	ErrMissingHeader     = errors.New("guest list needs a firstName (or name) column")
	ErrEmpty             = errors.New("guest list has no guests")
)

// MaxGuests bounds one upload.
const MaxGuests = 20000

// aliases maps a normalised header to the field it fills.
var aliases = map[string]string{
	"firstname": "first", "first": "first", "givenname": "first",
	"lastname": "last", "last": "last", "surname": "last", "familyname": "last",
	"name": "full", "fullname": "full", "guest": "full", "guestname": "full",
	"phone": "phone", "phonenumber": "phone", "mobile": "phone", "tel": "phone", "whatsapp": "phone",
	"type": "type", "tickettype": "type", "guesttype": "type",
}

// Parse dispatches on the file extension.
func Parse(filename string, r io.Reader) ([]model.Guest, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ParseXLSX(r)
	case ".csv":
		return ParseCSV(r)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// ParseXLSX reads the first sheet of a workbook.
func ParseXLSX(r io.Reader) ([]model.Guest, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmpty
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return fromRows(rows)
}

// ParseCSV reads comma separated rows; a UTF-8 BOM is tolerated.
func ParseCSV(r io.Reader) ([]model.Guest, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) ([]model.Guest, error) {
	hdr := -1
	for i, row := range rows {
		if !blank(row) {
			hdr = i
			break
		}
	}
	if hdr < 0 {
		return nil, ErrEmpty
	}

	cols := map[string]int{}
	for i, h := range rows[hdr] {
		if field, ok := aliases[normalize(h)]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	_, hasFirst := cols["first"]
	_, hasFull := cols["full"]
	if !hasFirst && !hasFull {
		return nil, ErrMissingHeader
	}

	var guests []model.Guest
	for n, row := range rows[hdr+1:] {
		if blank(row) {
			continue
		}
		g := model.Guest{
			FirstName: cell(row, cols, "first"),
			LastName:  cell(row, cols, "last"),
			Phone:     cell(row, cols, "phone"),
			Type:      model.ParseGuestType(cell(row, cols, "type")),
		}
		if g.FirstName == "" && g.LastName == "" {
			if full := cell(row, cols, "full"); full != "" {
				g.FirstName, g.LastName = splitName(full)
			}
		}
		if g.FirstName == "" && g.LastName == "" {
			return nil, fmt.Errorf("row %d: guest name is empty", hdr+n+2)
		}
		guests = append(guests, g)
		if len(guests) > MaxGuests {
			return nil, fmt.Errorf("guest list exceeds %d rows", MaxGuests)
		}
	}
	if len(guests) == 0 {
		return nil, ErrEmpty
	}
	return guests, nil
}

func cell(row []string, cols map[string]int, field string) string {
	i, ok := cols[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func normalize(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "", "_", "", "-", "", ".", "").Replace(h)
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
