package statement

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"buchhaltung/internal/logger"
	"buchhaltung/internal/numfmt"
)

// RangeReader reads cell values from a spreadsheet range such as "Bank!A:K".
type RangeReader interface {
	ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error)
}

// Bank sheet columns
const (
	colDate        = iota // Datum
	colBankType           // Transaktionstyp
	colDescription        // Beschreibung
	colEREF               // End-to-End Reference
	colMREF               // Mandate Reference
	colCRED               // Creditor ID
	colSVWZ               // Verwendungszweck
	colCounterPart        // Empfänger/Absender
	colBIC
	colIBAN
	colAmount // Betrag
	bankColumns
)

// SheetReader reads bank transactions exported into a spreadsheet.
type SheetReader struct {
	sheets RangeReader
	log    zerolog.Logger
}

// NewSheetReader creates a reader over a spreadsheet source.
func NewSheetReader(sheets RangeReader) *SheetReader {
	return &SheetReader{
		sheets: sheets,
		log:    logger.WithComponent("statement-sheet"),
	}
}

// ReadTransactions reads the bank sheet. Rows that cannot be parsed are
// logged and skipped.
func (r *SheetReader) ReadTransactions(ctx context.Context, sheetName string) ([]ParsedTransaction, error) {
	const op = "ReadTransactions"

	r.log.Info().Str("sheet", sheetName).Msg("Reading bank transactions")

	values, err := r.sheets.ReadRange(ctx, sheetName+"!A:K")
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read %s sheet: %w", op, sheetName, err)
	}
	if len(values) < 2 {
		return nil, fmt.Errorf("%s: %s sheet: %w", op, sheetName, ErrNoTransactions)
	}

	var transactions []ParsedTransaction
	for i, row := range values[1:] {
		rowNum := i + 2 // header plus 1-based rows

		if len(row) < bankColumns {
			r.log.Warn().
				Int("row", rowNum).
				Int("columns", len(row)).
				Msg("Skipping bank transaction row with insufficient columns")
			continue
		}

		tx, err := parseBankRow(row)
		if err != nil {
			r.log.Warn().
				Err(err).
				Int("row", rowNum).
				Msg("Failed to parse bank transaction, skipping")
			continue
		}
		transactions = append(transactions, tx)
	}

	r.log.Info().
		Int("total_rows", len(values)-1).
		Int("parsed_transactions", len(transactions)).
		Str("sheet", sheetName).
		Msg("Bank transactions read successfully")

	return transactions, nil
}

func parseBankRow(row []interface{}) (ParsedTransaction, error) {
	const op = "parseBankRow"

	dateStr := cell(row, colDate)
	date, err := numfmt.ParseDate(dateStr)
	if err != nil {
		return ParsedTransaction{}, fmt.Errorf("%s: invalid date %q: %w", op, dateStr, err)
	}

	amountStr := cell(row, colAmount)
	amount, err := numfmt.ParseAmount(amountStr)
	if err != nil {
		return ParsedTransaction{}, fmt.Errorf("%s: invalid amount %q: %w", op, amountStr, err)
	}

	description := cell(row, colDescription)
	if svwz := cell(row, colSVWZ); svwz != "" && !strings.Contains(description, svwz) {
		description = strings.TrimSpace(description + " " + svwz)
	}

	raw := make([]string, 0, len(row))
	for i := range row {
		raw = append(raw, cell(row, i))
	}

	return ParsedTransaction{
		Date:          date,
		RawDate:       dateStr,
		Correspondent: cell(row, colCounterPart),
		Title:         cell(row, colBankType),
		Description:   description,
		Amount:        amount,
		Currency:      "EUR",
		RawData:       strings.Join(raw, "; "),
	}, nil
}

// cell safely extracts a trimmed string value from a row slice
func cell(row []interface{}, index int) string {
	if index >= len(row) || row[index] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", row[index]))
}
