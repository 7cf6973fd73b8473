package parsers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/structdoc/structdoc/pkg/elements"
)

// extractCSV reads delimiter-separated content into a single table
// element. The first record becomes the header row when it looks like one.
func (p *UniversalParser) extractCSV(result *ParseResult, data []byte, delimiter rune) error {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.AddWarning(fmt.Sprintf("skipping malformed record: %v", err))
			continue
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		result.AddWarning("no records found in delimited content")
		return nil
	}

	if !p.Config().ExtractTables {
		p.csvFallbackText(result, records)
		return nil
	}

	hasHeader := looksLikeHeaderRecord(records)
	table := elements.NewTableElement(nil)
	for rowIndex, record := range records {
		row := elements.NewTableRow()
		for colIndex, field := range record {
			cell := elements.NewTableCell(strings.TrimSpace(field), rowIndex, colIndex)
			cell.IsHeader = hasHeader && rowIndex == 0
			row.AddCell(cell)
		}
		table.AddRow(row)
	}
	if _, msg := table.Validate(); msg != "" {
		result.AddWarning(msg)
	}

	stampProvenance(table, StrategyUniversal, "delimited_text")
	result.AddElement(table)

	if result.Document != nil && result.Document.Metadata != nil {
		result.Document.Metadata.Custom["row_count"] = len(records)
		result.Document.Metadata.Custom["column_count"] = table.ColumnCount()
	}
	return nil
}

// csvFallbackText renders records as plain paragraphs when table
// extraction is disabled.
func (p *UniversalParser) csvFallbackText(result *ParseResult, records [][]string) {
	var sb strings.Builder
	for i, record := range records {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.Join(record, " | "))
	}
	paragraph := elements.NewParagraphElement(sb.String())
	stampProvenance(paragraph, StrategyUniversal, "delimited_text")
	result.AddElement(paragraph)
}

// looksLikeHeaderRecord guesses whether the first record is a header: its
// fields are non-numeric while at least one later record carries numbers.
func looksLikeHeaderRecord(records [][]string) bool {
	if len(records) < 2 {
		return false
	}
	for _, field := range records[0] {
		if field != "" && isNumericField(field) {
			return false
		}
	}
	for _, record := range records[1:] {
		for _, field := range record {
			if isNumericField(field) {
				return true
			}
		}
	}
	// All-text data: still treat the first record as a header, matching
	// common CSV conventions.
	return true
}

func isNumericField(field string) bool {
	field = strings.TrimSpace(field)
	if field == "" {
		return false
	}
	seenDigit := false
	for _, r := range field {
		switch {
		case unicode.IsDigit(r):
			seenDigit = true
		case r == '.' || r == ',' || r == '-' || r == '+' || r == '%' || r == '$' || r == '€':
		default:
			return false
		}
	}
	return seenDigit
}
