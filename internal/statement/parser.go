// Package statement parses uploaded bank/processor statement files
// into validated rows. Rows failing validation are skipped and counted,
// never fatal to the file; multiple sheets and number/date locales are
// tolerated.
package statement

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nkrasko/paper-trail/internal/common"
	"github.com/nkrasko/paper-trail/internal/normalize"
)

// ParseResult carries the valid rows of one file plus the count of
// rows rejected by validation.
type ParseResult struct {
	Rows    []normalize.StatementRow
	Skipped int
}

// Parser reads statement files.
type Parser struct{}

// NewParser creates a statement parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile parses a statement file, dispatching on extension.
func (p *Parser) ParseFile(path string) (*ParseResult, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open statement file: %w", err)
		}
		defer func() { _ = f.Close() }()
		return p.ParseCSV(f)
	case ".xlsx", ".xlsm":
		return p.ParseXLSX(path)
	default:
		return nil, common.NewValidationError("file", "unsupported statement format "+filepath.Ext(path))
	}
}

// ParseCSV parses a CSV statement.
func (p *Parser) ParseCSV(r io.Reader) (*ParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	result := &ParseResult{}
	p.consumeSheet(records, result)
	return result, nil
}

// ParseXLSX parses an XLSX statement, concatenating all sheets. Each
// sheet carries its own header row.
func (p *Parser) ParseXLSX(path string) (*ParseResult, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = book.Close() }()

	result := &ParseResult{}
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		p.consumeSheet(rows, result)
	}

	return result, nil
}

// consumeSheet locates the header row, then maps and validates every
// data row beneath it.
func (p *Parser) consumeSheet(rows [][]string, result *ParseResult) {
	headerIdx, columns := findHeader(rows)
	if columns == nil {
		return
	}

	for _, cells := range rows[headerIdx+1:] {
		if isBlankRow(cells) {
			continue
		}

		row, err := mapRow(cells, columns)
		if err != nil {
			result.Skipped++
			slog.Debug("Skipping invalid statement row", "error", err)
			continue
		}
		result.Rows = append(result.Rows, row)
	}
}

// columnMap holds the index of each recognized column, -1 when absent.
type columnMap struct {
	uid, status, txType, amount, currency, occurredAt int
}

var headerAliases = map[string]string{
	"uid":              "uid",
	"transaction id":   "uid",
	"status":           "status",
	"type":             "type",
	"transaction type": "type",
	"amount":           "amount",
	"sum":              "amount",
	"currency":         "currency",
	"occurred_at":      "occurred_at",
	"occurred at":      "occurred_at",
	"paid_at":          "occurred_at",
	"paid at":          "occurred_at",
	"date":             "occurred_at",
}

func findHeader(rows [][]string) (int, *columnMap) {
	for idx, cells := range rows {
		columns := columnMap{uid: -1, status: -1, txType: -1, amount: -1, currency: -1, occurredAt: -1}
		for col, cell := range cells {
			switch headerAliases[strings.ToLower(strings.TrimSpace(cell))] {
			case "uid":
				columns.uid = col
			case "status":
				columns.status = col
			case "type":
				columns.txType = col
			case "amount":
				columns.amount = col
			case "currency":
				columns.currency = col
			case "occurred_at":
				columns.occurredAt = col
			}
		}
		if columns.uid >= 0 && columns.status >= 0 && columns.amount >= 0 {
			return idx, &columns
		}
	}
	return 0, nil
}

func mapRow(cells []string, columns *columnMap) (normalize.StatementRow, error) {
	row := normalize.StatementRow{
		UID:      cellAt(cells, columns.uid),
		Status:   cellAt(cells, columns.status),
		Type:     cellAt(cells, columns.txType),
		Currency: cellAt(cells, columns.currency),
	}
	if row.Type == "" {
		row.Type = "payment"
	}

	if err := normalize.ValidateUID(row.UID); err != nil {
		return normalize.StatementRow{}, err
	}
	if _, err := normalize.NormalizeStatus(row.Status); err != nil {
		return normalize.StatementRow{}, err
	}
	if _, err := normalize.NormalizeType(row.Type); err != nil {
		return normalize.StatementRow{}, err
	}
	if row.Currency == "" {
		return normalize.StatementRow{}, common.NewValidationError("currency", "missing")
	}

	amount, err := parseAmount(cellAt(cells, columns.amount))
	if err != nil {
		return normalize.StatementRow{}, err
	}
	row.Amount = amount

	if raw := cellAt(cells, columns.occurredAt); raw != "" {
		ts, err := parseTimestamp(raw)
		if err != nil {
			return normalize.StatementRow{}, err
		}
		row.OccurredAt = &ts
	}

	return row, nil
}

func cellAt(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

func isBlankRow(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// parseAmount tolerates comma decimal separators and grouping spaces.
func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, common.NewValidationError("amount", "missing")
	}

	cleaned := strings.NewReplacer(" ", "", " ", "").Replace(raw)
	if strings.Contains(cleaned, ",") && !strings.Contains(cleaned, ".") {
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, common.NewValidationError("amount", "not a number: "+raw)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, common.NewValidationError("amount", "non-positive: "+raw)
	}
	return amount, nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, common.NewValidationError("occurred_at", "unrecognized timestamp: "+raw)
}
