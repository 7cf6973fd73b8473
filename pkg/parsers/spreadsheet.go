package parsers

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/structdoc/structdoc/pkg/elements"
)

// extractWorkbook reads an XLSX workbook: one heading element per sheet
// with its table linked underneath. Workbook properties feed the document
// metadata.
func (p *UniversalParser) extractWorkbook(result *ParseResult, filePath string) error {
	book, err := excelize.OpenFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() {
		if closeErr := book.Close(); closeErr != nil {
			p.Logger().Warn("failed to close workbook", map[string]interface{}{
				"file_path": filePath,
				"error":     closeErr.Error(),
			})
		}
	}()

	if p.Config().ExtractMetadata {
		p.applyWorkbookProperties(result, book)
	}

	sheets := book.GetSheetList()
	for _, sheet := range sheets {
		records, err := book.GetRows(sheet)
		if err != nil {
			result.AddWarning(fmt.Sprintf("failed to read sheet %q: %v", sheet, err))
			continue
		}
		if len(records) == 0 {
			continue
		}

		heading := elements.NewHeadingElement(sheet, 2)
		stampProvenance(heading, StrategyUniversal, "workbook")
		result.AddElement(heading)

		if !p.Config().ExtractTables {
			p.csvFallbackText(result, records)
			continue
		}

		table := elements.NewTableElement(nil)
		hasHeader := looksLikeHeaderRecord(records)
		for rowIndex, record := range records {
			row := elements.NewTableRow()
			for colIndex, value := range record {
				cell := elements.NewTableCell(strings.TrimSpace(value), rowIndex, colIndex)
				cell.IsHeader = hasHeader && rowIndex == 0
				row.AddCell(cell)
			}
			table.AddRow(row)
		}
		if _, msg := table.Validate(); msg != "" {
			result.AddWarning(fmt.Sprintf("sheet %q: %s", sheet, msg))
		}
		stampProvenance(table, StrategyUniversal, "workbook")
		result.AddElement(table)
		heading.LinkChild(table)
	}

	if result.Document != nil && result.Document.Metadata != nil {
		result.Document.Metadata.Custom["sheet_count"] = len(sheets)
	}
	return nil
}

// applyWorkbookProperties copies workbook document properties into the
// document metadata. Failures are logged, never fatal.
func (p *UniversalParser) applyWorkbookProperties(result *ParseResult, book *excelize.File) {
	if result.Document == nil || result.Document.Metadata == nil {
		return
	}
	props, err := book.GetDocProps()
	if err != nil || props == nil {
		p.Logger().Warn("failed to read workbook properties", map[string]interface{}{
			"error": fmt.Sprintf("%v", err),
		})
		return
	}

	meta := result.Document.Metadata
	if props.Title != "" {
		meta.Title = props.Title
	}
	if props.Creator != "" {
		meta.Author = props.Creator
	}
	if props.Subject != "" {
		meta.Subject = props.Subject
	} else if props.Description != "" {
		meta.Subject = props.Description
	}
	if props.Language != "" {
		meta.Language = props.Language
	}
	for _, kw := range strings.Split(props.Keywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			meta.Keywords = append(meta.Keywords, kw)
		}
	}
	if t, err := time.Parse(time.RFC3339, props.Created); err == nil {
		meta.CreatedAt = &t
	}
	if t, err := time.Parse(time.RFC3339, props.Modified); err == nil {
		meta.ModifiedAt = &t
	}
}
