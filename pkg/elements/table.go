package elements

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TableCell is one cell of a table grid. Cells are value records, not
// standalone elements; the owning TableElement serializes them.
type TableCell struct {
	// Content is the cell text
	Content string `json:"content"`

	// RowIndex and ColIndex locate the cell's top-left corner in the grid
	RowIndex int `json:"row_index"`
	ColIndex int `json:"col_index"`

	// RowSpan and ColSpan give the cell extent, minimum 1
	RowSpan int `json:"row_span"`
	ColSpan int `json:"col_span"`

	// IsHeader marks header cells, rendered as th
	IsHeader bool `json:"is_header"`

	// Alignment is the horizontal text alignment, empty for default
	Alignment string `json:"alignment,omitempty"`

	// BBox locates the cell on the page when the parser recovered it
	BBox *BoundingBox `json:"bbox,omitempty"`
}

// NewTableCell creates a cell with single-cell extent
func NewTableCell(content string, rowIndex, colIndex int) *TableCell {
	return &TableCell{
		Content:  content,
		RowIndex: rowIndex,
		ColIndex: colIndex,
		RowSpan:  1,
		ColSpan:  1,
	}
}

// ToMap converts the cell to its serialized map form
func (c *TableCell) ToMap() map[string]interface{} {
	var bbox interface{}
	if c.BBox != nil {
		bbox = c.BBox.ToMap()
	}
	return map[string]interface{}{
		"content":   c.Content,
		"row_index": c.RowIndex,
		"col_index": c.ColIndex,
		"row_span":  c.RowSpan,
		"col_span":  c.ColSpan,
		"is_header": c.IsHeader,
		"alignment": c.Alignment,
		"bbox":      bbox,
	}
}

// TableCellFromMap rebuilds a cell from its serialized map form
func TableCellFromMap(m map[string]interface{}) *TableCell {
	cell := &TableCell{
		Content:   mapString(m, "content"),
		RowIndex:  mapInt(m, "row_index"),
		ColIndex:  mapInt(m, "col_index"),
		RowSpan:   mapInt(m, "row_span"),
		ColSpan:   mapInt(m, "col_span"),
		IsHeader:  mapBool(m, "is_header"),
		Alignment: mapString(m, "alignment"),
	}
	if cell.RowSpan < 1 {
		cell.RowSpan = 1
	}
	if cell.ColSpan < 1 {
		cell.ColSpan = 1
	}
	if bm, ok := m["bbox"].(map[string]interface{}); ok {
		cell.BBox = BoundingBoxFromMap(bm)
	}
	return cell
}

// TableRow is an ordered run of cells
type TableRow struct {
	Cells []*TableCell `json:"cells"`
}

// NewTableRow creates an empty row
func NewTableRow() *TableRow {
	return &TableRow{Cells: []*TableCell{}}
}

// AddCell appends a cell to the row
func (r *TableRow) AddCell(cell *TableCell) {
	r.Cells = append(r.Cells, cell)
}

// HasHeaderCell reports whether any cell in the row is a header cell
func (r *TableRow) HasHeaderCell() bool {
	for _, cell := range r.Cells {
		if cell.IsHeader {
			return true
		}
	}
	return false
}

// ToMap converts the row to its serialized map form
func (r *TableRow) ToMap() map[string]interface{} {
	cells := make([]interface{}, 0, len(r.Cells))
	for _, cell := range r.Cells {
		cells = append(cells, cell.ToMap())
	}
	return map[string]interface{}{"cells": cells}
}

// TableRowFromMap rebuilds a row from its serialized map form
func TableRowFromMap(m map[string]interface{}) *TableRow {
	row := NewTableRow()
	if raw, ok := m["cells"].([]interface{}); ok {
		for _, entry := range raw {
			if cm, ok := entry.(map[string]interface{}); ok {
				row.AddCell(TableCellFromMap(cm))
			}
		}
	}
	return row
}

// TableElement is a grid of rows and cells with derived geometry
type TableElement struct {
	BaseElement
	Rows []*TableRow `json:"rows"`
}

// NewTableElement creates a table from its rows
func NewTableElement(rows []*TableRow) *TableElement {
	if rows == nil {
		rows = []*TableRow{}
	}
	e := &TableElement{Rows: rows}
	e.BaseElement = newBaseElement(TypeTable, e.plainText(), nil)
	return e
}

// AddRow appends a row to the table and refreshes the content-derived
// identity of tables built incrementally
func (e *TableElement) AddRow(row *TableRow) {
	e.Rows = append(e.Rows, row)
	if !e.restored {
		e.contentKey = e.plainText()
		e.ID = StableElementID(TypeTable, e.contentKey, e.BBox, 0)
	}
}

// RowCount derives the number of grid rows from cell extents
func (e *TableElement) RowCount() int {
	max := 0
	for _, row := range e.Rows {
		for _, cell := range row.Cells {
			if end := cell.RowIndex + cell.RowSpan; end > max {
				max = end
			}
		}
	}
	return max
}

// ColumnCount derives the number of grid columns from cell extents
func (e *TableElement) ColumnCount() int {
	max := 0
	for _, row := range e.Rows {
		for _, cell := range row.Cells {
			if end := cell.ColIndex + cell.ColSpan; end > max {
				max = end
			}
		}
	}
	return max
}

func (e *TableElement) plainText() string {
	var sb strings.Builder
	for i, row := range e.Rows {
		if i > 0 {
			sb.WriteByte('\n')
		}
		for j, cell := range row.Cells {
			if j > 0 {
				sb.WriteString(" | ")
			}
			sb.WriteString(cell.Content)
		}
	}
	return sb.String()
}

// GetText renders the table as pipe-separated rows
func (e *TableElement) GetText() string {
	return e.plainText()
}

// ToHTML renders the table grid. The first row moves into a thead section
// when it contains at least one header cell.
func (e *TableElement) ToHTML() string {
	var sb strings.Builder
	sb.WriteString("<table>")

	bodyStart := 0
	if len(e.Rows) > 0 && e.Rows[0].HasHeaderCell() {
		sb.WriteString("<thead>")
		writeHTMLRow(&sb, e.Rows[0])
		sb.WriteString("</thead>")
		bodyStart = 1
	}

	sb.WriteString("<tbody>")
	for _, row := range e.Rows[bodyStart:] {
		writeHTMLRow(&sb, row)
	}
	sb.WriteString("</tbody></table>")
	return sb.String()
}

func writeHTMLRow(sb *strings.Builder, row *TableRow) {
	sb.WriteString("<tr>")
	for _, cell := range row.Cells {
		tag := "td"
		if cell.IsHeader {
			tag = "th"
		}
		sb.WriteByte('<')
		sb.WriteString(tag)
		if cell.ColSpan > 1 {
			fmt.Fprintf(sb, " colspan=\"%d\"", cell.ColSpan)
		}
		if cell.RowSpan > 1 {
			fmt.Fprintf(sb, " rowspan=\"%d\"", cell.RowSpan)
		}
		if cell.Alignment != "" {
			fmt.Fprintf(sb, " align=\"%s\"", cell.Alignment)
		}
		sb.WriteByte('>')
		sb.WriteString(html.EscapeString(cell.Content))
		sb.WriteString("</")
		sb.WriteString(tag)
		sb.WriteByte('>')
	}
	sb.WriteString("</tr>")
}

// TableFromHTML parses an HTML table back into a TableElement. Cell grid
// positions are assigned left to right using declared column spans.
func TableFromHTML(markup string) (*TableElement, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse table HTML: %w", err)
	}

	table := NewTableElement(nil)
	doc.Find("tr").Each(func(rowIndex int, tr *goquery.Selection) {
		row := NewTableRow()
		colIndex := 0
		tr.Find("th, td").Each(func(_ int, s *goquery.Selection) {
			cell := NewTableCell(strings.TrimSpace(s.Text()), rowIndex, colIndex)
			cell.IsHeader = goquery.NodeName(s) == "th"
			if v, ok := s.Attr("colspan"); ok {
				if span, err := strconv.Atoi(v); err == nil && span > 1 {
					cell.ColSpan = span
				}
			}
			if v, ok := s.Attr("rowspan"); ok {
				if span, err := strconv.Atoi(v); err == nil && span > 1 {
					cell.RowSpan = span
				}
			}
			if v, ok := s.Attr("align"); ok {
				cell.Alignment = v
			}
			colIndex += cell.ColSpan
			row.AddCell(cell)
		})
		table.AddRow(row)
	})

	if len(table.Rows) == 0 {
		return nil, fmt.Errorf("no table rows found in HTML")
	}
	return table, nil
}

// Validate fails when the table has no rows. Uneven row widths are a soft
// warning.
func (e *TableElement) Validate() (bool, string) {
	if len(e.Rows) == 0 {
		return false, "table has no rows"
	}
	width := -1
	for _, row := range e.Rows {
		rowWidth := 0
		for _, cell := range row.Cells {
			rowWidth += cell.ColSpan
		}
		if width == -1 {
			width = rowWidth
		} else if rowWidth != width && rowWidth != 0 {
			return true, "inconsistent column structure across rows"
		}
	}
	return true, ""
}

// ToMap converts the table to its serialized map form
func (e *TableElement) ToMap() map[string]interface{} {
	rows := make([]interface{}, 0, len(e.Rows))
	for _, row := range e.Rows {
		rows = append(rows, row.ToMap())
	}
	m := e.baseMap()
	m["rows"] = rows
	return m
}

func tableElementFromMap(m map[string]interface{}) *TableElement {
	table := &TableElement{
		BaseElement: restoredBaseElement(m),
		Rows:        []*TableRow{},
	}
	if raw, ok := m["rows"].([]interface{}); ok {
		for _, entry := range raw {
			if rm, ok := entry.(map[string]interface{}); ok {
				table.AddRow(TableRowFromMap(rm))
			}
		}
	}
	return table
}
