package elements

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildHeaderTable() *TableElement {
	header := NewTableRow()
	name := NewTableCell("Name", 0, 0)
	name.IsHeader = true
	age := NewTableCell("Age", 0, 1)
	age.IsHeader = true
	header.AddCell(name)
	header.AddCell(age)

	body := NewTableRow()
	body.AddCell(NewTableCell("Ada", 1, 0))
	body.AddCell(NewTableCell("36", 1, 1))

	return NewTableElement([]*TableRow{header, body})
}

func TestTableGeometry(t *testing.T) {
	t.Run("SimpleGrid", func(t *testing.T) {
		table := buildHeaderTable()
		assert.Equal(t, 2, table.RowCount())
		assert.Equal(t, 2, table.ColumnCount())
	})

	t.Run("ColumnCountFollowsSpans", func(t *testing.T) {
		row0 := NewTableRow()
		wide := NewTableCell("span", 0, 0)
		wide.ColSpan = 3
		row0.AddCell(wide)

		row1 := NewTableRow()
		row1.AddCell(NewTableCell("a", 1, 0))
		row1.AddCell(NewTableCell("b", 1, 1))

		table := NewTableElement([]*TableRow{row0, row1})
		assert.Equal(t, 3, table.ColumnCount(), "max col_index+col_span wins")
		assert.Equal(t, 2, table.RowCount())
	})

	t.Run("RowCountFollowsRowSpans", func(t *testing.T) {
		row := NewTableRow()
		tall := NewTableCell("tall", 0, 0)
		tall.RowSpan = 4
		row.AddCell(tall)
		table := NewTableElement([]*TableRow{row})
		assert.Equal(t, 4, table.RowCount())
	})
}

func TestTableHTML(t *testing.T) {
	t.Run("TheadWhenFirstRowHasHeaderCell", func(t *testing.T) {
		markup := buildHeaderTable().ToHTML()
		assert.Contains(t, markup, "<thead>")
		assert.Contains(t, markup, "<th>Name</th>")
		assert.Contains(t, markup, "<td>Ada</td>")
	})

	t.Run("NoTheadWithoutHeaderRow", func(t *testing.T) {
		row := NewTableRow()
		row.AddCell(NewTableCell("plain", 0, 0))
		markup := NewTableElement([]*TableRow{row}).ToHTML()
		assert.NotContains(t, markup, "<thead>")
		assert.Contains(t, markup, "<tbody>")
	})

	t.Run("SpanAndAlignmentAttributes", func(t *testing.T) {
		row := NewTableRow()
		cell := NewTableCell("total", 0, 0)
		cell.ColSpan = 2
		cell.Alignment = "right"
		row.AddCell(cell)
		markup := NewTableElement([]*TableRow{row}).ToHTML()
		assert.Contains(t, markup, `colspan="2"`)
		assert.Contains(t, markup, `align="right"`)
	})

	t.Run("ContentIsEscaped", func(t *testing.T) {
		row := NewTableRow()
		row.AddCell(NewTableCell("a < b", 0, 0))
		markup := NewTableElement([]*TableRow{row}).ToHTML()
		assert.Contains(t, markup, "a &lt; b")
	})
}

func TestTableFromHTML(t *testing.T) {
	table, err := TableFromHTML(`<table>
		<thead><tr><th>City</th><th colspan="2">Population</th></tr></thead>
		<tbody><tr><td>Oslo</td><td align="right">709k</td><td>2024</td></tr></tbody>
	</table>`)
	require.NoError(t, err)

	assert.Equal(t, 2, len(table.Rows))
	assert.Equal(t, 3, table.ColumnCount())

	header := table.Rows[0]
	require.Len(t, header.Cells, 2)
	assert.True(t, header.Cells[0].IsHeader)
	assert.Equal(t, 2, header.Cells[1].ColSpan)

	body := table.Rows[1]
	require.Len(t, body.Cells, 3)
	assert.Equal(t, "Oslo", body.Cells[0].Content)
	assert.Equal(t, "right", body.Cells[1].Alignment)
	assert.Equal(t, 2, body.Cells[2].ColIndex, "col index advances past spans")

	t.Run("NoRowsIsAnError", func(t *testing.T) {
		_, err := TableFromHTML("<p>not a table</p>")
		assert.Error(t, err)
	})
}

func TestTableRoundTrip(t *testing.T) {
	table := buildHeaderTable()
	merged := NewTableRow()
	span := NewTableCell("merged footer", 2, 0)
	span.ColSpan = 2
	span.Alignment = "center"
	merged.AddCell(span)
	table.AddRow(merged)
	table.BBox = NewBoundingBox(0, 0, 400, 200, 2)

	restored, err := FromMap(table.ToMap())
	require.NoError(t, err)
	restoredTable, ok := restored.(*TableElement)
	require.True(t, ok)

	assert.Equal(t, table.GetID(), restoredTable.GetID())
	assert.Equal(t, table.GetText(), restoredTable.GetText())
	assert.Equal(t, table.RowCount(), restoredTable.RowCount())
	assert.Equal(t, table.ColumnCount(), restoredTable.ColumnCount())
	assert.Equal(t, table.ToHTML(), restoredTable.ToHTML(), "HTML rendition survives the round trip")
	require.NotNil(t, restoredTable.GetBBox())
	assert.Equal(t, 2, restoredTable.GetBBox().Page)
}

func TestTableValidation(t *testing.T) {
	t.Run("EmptyTableFails", func(t *testing.T) {
		ok, msg := NewTableElement(nil).Validate()
		assert.False(t, ok)
		assert.Equal(t, "table has no rows", msg)
	})

	t.Run("UnevenRowsWarnSoftly", func(t *testing.T) {
		a := NewTableRow()
		a.AddCell(NewTableCell("1", 0, 0))
		a.AddCell(NewTableCell("2", 0, 1))
		b := NewTableRow()
		b.AddCell(NewTableCell("only", 1, 0))
		ok, msg := NewTableElement([]*TableRow{a, b}).Validate()
		assert.True(t, ok, "a warning is not a failure")
		assert.True(t, strings.Contains(msg, "inconsistent"))
	})
}
