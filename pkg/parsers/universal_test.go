package parsers

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/structdoc/structdoc/pkg/elements"
	"github.com/structdoc/structdoc/pkg/logger"
)

func parseFixture(t *testing.T, cfg *ParserConfiguration, name, content string) *ParseResult {
	t.Helper()
	path := writeTempFile(t, name, content)
	parser := NewUniversalParser(cfg, logger.NewRecorder())
	result, err := parser.Parse(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestUniversalParsePlainText(t *testing.T) {
	content := strings.Join([]string{
		"PROJECT STATUS",
		"",
		"Work continues on the ingestion pipeline.",
		"Throughput is stable.",
		"",
		"- collect inputs",
		"- normalize records",
		"",
		"Release Notes",
		"=============",
		"",
		"1. freeze dependencies",
		"2. tag the build",
	}, "\n")

	result := parseFixture(t, nil, "status.txt", content)
	require.True(t, result.Success, "errors: %v", result.Errors)
	require.Len(t, result.Elements, 5)

	heading, ok := result.Elements[0].(*elements.HeadingElement)
	require.True(t, ok)
	assert.Equal(t, "PROJECT STATUS", heading.GetText())
	assert.Equal(t, 2, heading.Level)

	para, ok := result.Elements[1].(*elements.ParagraphElement)
	require.True(t, ok)
	assert.Equal(t, "Work continues on the ingestion pipeline. Throughput is stable.", para.GetText())

	list, ok := result.Elements[2].(*elements.ListElement)
	require.True(t, ok)
	assert.Equal(t, []string{"collect inputs", "normalize records"}, list.Items)
	assert.False(t, list.Ordered)

	setext, ok := result.Elements[3].(*elements.HeadingElement)
	require.True(t, ok)
	assert.Equal(t, "Release Notes", setext.GetText())
	assert.Equal(t, 1, setext.Level)

	ordered, ok := result.Elements[4].(*elements.ListElement)
	require.True(t, ok)
	assert.Equal(t, []string{"freeze dependencies", "tag the build"}, ordered.Items)
	assert.True(t, ordered.Ordered)

	meta := heading.GetMetadata()
	assert.Equal(t, "universal", meta.SourceParser)
	assert.Equal(t, "native_text", meta.ExtractionMethod)

	require.NotNil(t, result.Document)
	require.NotNil(t, result.Document.Metadata)
	assert.Positive(t, result.Document.Metadata.WordCount)
	require.NotNil(t, result.Quality)
}

func TestUniversalParsePreserveFormatting(t *testing.T) {
	cfg := NewParserConfiguration()
	cfg.PreserveFormatting = true

	result := parseFixture(t, cfg, "raw.txt", "keep   internal\nline structure")
	require.Len(t, result.Elements, 1)
	assert.Equal(t, "keep   internal\nline structure", result.Elements[0].GetText())
}

func TestUniversalParseInvalidUTF8(t *testing.T) {
	result := parseFixture(t, nil, "broken.txt", "valid before \xff\xfe after")
	require.True(t, result.Success)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "invalid UTF-8")
}

func TestUniversalParseMarkdown(t *testing.T) {
	content := strings.Join([]string{
		"---",
		"title: Integration Guide",
		"author: Dana",
		"keywords: ingest, parse",
		"---",
		"# Overview",
		"",
		"Connect the service to your pipeline.",
		"",
		"## Steps",
		"",
		"- install the agent",
		"- configure credentials",
		"",
		"```go",
		"fmt.Println(\"ready\")",
		"```",
		"",
		"| Region | Latency |",
		"| ------ | ------- |",
		"| east   | 40ms    |",
	}, "\n")

	result := parseFixture(t, nil, "guide.md", content)
	require.True(t, result.Success, "errors: %v", result.Errors)

	meta := result.Document.Metadata
	assert.Equal(t, "Integration Guide", meta.Title)
	assert.Equal(t, "Dana", meta.Author)
	assert.Equal(t, []string{"ingest", "parse"}, meta.Keywords)

	require.Len(t, result.Elements, 6)

	h1, ok := result.Elements[0].(*elements.HeadingElement)
	require.True(t, ok)
	assert.Equal(t, "Overview", h1.GetText())
	assert.Equal(t, 1, h1.Level)

	assert.Equal(t, elements.TypeParagraph, result.Elements[1].Type())
	assert.Equal(t, "Connect the service to your pipeline.", result.Elements[1].GetText())

	h2, ok := result.Elements[2].(*elements.HeadingElement)
	require.True(t, ok)
	assert.Equal(t, 2, h2.Level)

	list, ok := result.Elements[3].(*elements.ListElement)
	require.True(t, ok)
	assert.Equal(t, []string{"install the agent", "configure credentials"}, list.Items)

	code, ok := result.Elements[4].(*elements.CodeElement)
	require.True(t, ok)
	assert.Equal(t, `fmt.Println("ready")`, code.Code)
	assert.Equal(t, "go", code.Language)

	table, ok := result.Elements[5].(*elements.TableElement)
	require.True(t, ok)
	assert.Equal(t, 2, table.RowCount())
	assert.Equal(t, 2, table.ColumnCount())
	require.NotEmpty(t, table.Rows[0].Cells)
	assert.True(t, table.Rows[0].Cells[0].IsHeader)
	assert.Equal(t, "Region", table.Rows[0].Cells[0].Content)

	assert.Equal(t, "markdown_ast", h1.GetMetadata().ExtractionMethod)
}

func TestUniversalParseHTML(t *testing.T) {
	content := strings.Join([]string{
		`<!DOCTYPE html>`,
		`<html lang="en">`,
		`<head><title>Service Guide</title><meta name="author" content="Dana"></head>`,
		`<body>`,
		`<h1>Welcome</h1>`,
		`<p>This page  explains   setup.</p>`,
		`<ul><li>one</li><li>two</li></ul>`,
		`<table><tr><th>K</th><th>V</th></tr><tr><td>a</td><td>1</td></tr></table>`,
		`<pre><code class="language-sh">make install</code></pre>`,
		`</body>`,
		`</html>`,
	}, "\n")

	result := parseFixture(t, nil, "page.html", content)
	require.True(t, result.Success, "errors: %v", result.Errors)

	meta := result.Document.Metadata
	assert.Equal(t, "Service Guide", meta.Title)
	assert.Equal(t, "en", meta.Language)
	assert.Equal(t, "Dana", meta.Author)

	require.Len(t, result.Elements, 5)

	h1, ok := result.Elements[0].(*elements.HeadingElement)
	require.True(t, ok)
	assert.Equal(t, "Welcome", h1.GetText())
	assert.Equal(t, 1, h1.Level)

	assert.Equal(t, "This page explains setup.", result.Elements[1].GetText())

	list, ok := result.Elements[2].(*elements.ListElement)
	require.True(t, ok)
	assert.Equal(t, []string{"one", "two"}, list.Items)

	table, ok := result.Elements[3].(*elements.TableElement)
	require.True(t, ok)
	assert.Equal(t, 2, table.RowCount())

	code, ok := result.Elements[4].(*elements.CodeElement)
	require.True(t, ok)
	assert.Equal(t, "make install", code.Code)
	assert.Equal(t, "sh", code.Language)

	assert.Equal(t, "html_dom", h1.GetMetadata().ExtractionMethod)
}

func TestUniversalParseCSV(t *testing.T) {
	t.Run("HeaderDetected", func(t *testing.T) {
		result := parseFixture(t, nil, "data.csv", "name,amount\nalpha,10\nbeta,20\n")
		require.True(t, result.Success)
		require.Len(t, result.Elements, 1)

		table, ok := result.Elements[0].(*elements.TableElement)
		require.True(t, ok)
		assert.Equal(t, 3, table.RowCount())
		assert.Equal(t, 2, table.ColumnCount())
		assert.True(t, table.Rows[0].Cells[0].IsHeader)
		assert.False(t, table.Rows[1].Cells[0].IsHeader)

		assert.Equal(t, 3, result.Document.Metadata.Custom["row_count"])
		assert.Equal(t, 2, result.Document.Metadata.Custom["column_count"])
	})

	t.Run("TSVDelimiter", func(t *testing.T) {
		result := parseFixture(t, nil, "data.tsv", "k\tv\na\t1\n")
		require.Len(t, result.Elements, 1)
		table, ok := result.Elements[0].(*elements.TableElement)
		require.True(t, ok)
		assert.Equal(t, 2, table.ColumnCount())
	})

	t.Run("EmptyContentWarns", func(t *testing.T) {
		result := parseFixture(t, nil, "empty.csv", "")
		require.True(t, result.Success)
		assert.Empty(t, result.Elements)
		require.NotEmpty(t, result.Warnings)
		assert.Contains(t, result.Warnings[0], "no records found")
	})

	t.Run("TablesDisabledFallsBackToText", func(t *testing.T) {
		cfg := NewParserConfiguration()
		cfg.ExtractTables = false

		result := parseFixture(t, cfg, "data.csv", "name,amount\nalpha,10\n")
		require.Len(t, result.Elements, 1)
		para, ok := result.Elements[0].(*elements.ParagraphElement)
		require.True(t, ok)
		assert.Equal(t, "name | amount\nalpha | 10", para.GetText())
	})
}

func TestUniversalParseJSON(t *testing.T) {
	t.Run("ValidObject", func(t *testing.T) {
		result := parseFixture(t, nil, "config.json",
			`{"name":"ingestor","description":"Pipeline config","workers":4}`)
		require.True(t, result.Success)
		require.Len(t, result.Elements, 1)

		code, ok := result.Elements[0].(*elements.CodeElement)
		require.True(t, ok)
		assert.Equal(t, "json", code.Language)
		assert.Contains(t, code.Code, "\"name\"")

		meta := result.Document.Metadata
		assert.Equal(t, "ingestor", meta.Title)
		assert.Equal(t, "Pipeline config", meta.Subject)
		assert.Equal(t, 3, meta.Custom["json_keys"])
	})

	t.Run("InvalidFallsBackToText", func(t *testing.T) {
		result := parseFixture(t, nil, "bad.json", "{not json")
		require.True(t, result.Success)
		require.NotEmpty(t, result.Warnings)
		assert.Contains(t, result.Warnings[0], "invalid JSON")
		require.Len(t, result.Elements, 1)
		assert.Equal(t, elements.TypeParagraph, result.Elements[0].Type())
	})
}

func TestUniversalParseUnknownExtension(t *testing.T) {
	t.Run("SniffsMarkdown", func(t *testing.T) {
		result := parseFixture(t, nil, "readme.data", "# Title\n\n- first\n- second\n")
		require.True(t, result.Success)
		require.NotEmpty(t, result.Warnings)
		assert.Contains(t, result.Warnings[0], "detected as markdown")
		require.Len(t, result.Elements, 2)
		assert.Equal(t, elements.TypeHeading, result.Elements[0].Type())
		assert.Equal(t, elements.TypeList, result.Elements[1].Type())
	})

	t.Run("SniffsHTML", func(t *testing.T) {
		result := parseFixture(t, nil, "snippet.data", "<html><body><p>hi</p></body></html>")
		require.True(t, result.Success)
		assert.Contains(t, result.Warnings[0], "detected as HTML")
		require.Len(t, result.Elements, 1)
		assert.Equal(t, "hi", result.Elements[0].GetText())
	})

	t.Run("FallsBackToPlainText", func(t *testing.T) {
		result := parseFixture(t, nil, "notes.data", "just some prose about nothing in particular.")
		require.True(t, result.Success)
		assert.Contains(t, result.Warnings[0], "treated as plain text")
		require.Len(t, result.Elements, 1)
	})

	t.Run("BinaryRejected", func(t *testing.T) {
		result := parseFixture(t, nil, "blob.data", "prefix\x00\x01\x02suffix")
		assert.False(t, result.Success)
		require.NotEmpty(t, result.Errors)
		assert.Contains(t, result.Errors[0], "binary content is not supported")
	})

	t.Run("PDFMagicRejected", func(t *testing.T) {
		result := parseFixture(t, nil, "doc.data", "%PDF-1.7\nbinary payload")
		assert.False(t, result.Success)
		require.NotEmpty(t, result.Errors)
		assert.Contains(t, result.Errors[0], "requires the pdf_text strategy")
	})
}

func TestDetectTextFormat(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"PDFMagic", "%PDF-1.4", formatPDF},
		{"NULByte", "abc\x00def", formatBinary},
		{"DoctypeHTML", "  <!DOCTYPE html><html></html>", formatHTML},
		{"BodyTag", "<div><body>x</body></div>", formatHTML},
		{"MarkdownSignals", "# Head\n- item\n- item", formatMarkdown},
		{"SingleSignalIsPlain", "# just one heading line", formatPlain},
		{"Prose", "Nothing special here.", formatPlain},
		{"Empty", "", formatPlain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectTextFormat([]byte(tt.data)))
		})
	}
}

func writeDocxFixture(t *testing.T, parts map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

const docxBodyXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Report</w:t></w:r></w:p>
<w:p><w:r><w:t>Body text here.</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:trPr><w:tblHeader/></w:trPr><w:tc><w:p><w:r><w:t>K</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>V</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>a</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>1</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
</w:body>
</w:document>`

func TestUniversalParseDOCX(t *testing.T) {
	t.Run("BodyAndProperties", func(t *testing.T) {
		path := writeDocxFixture(t, map[string]string{
			"word/document.xml": docxBodyXML,
			"docProps/core.xml": `<?xml version="1.0"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title>Annual Report</dc:title><dc:creator>Dana</dc:creator></cp:coreProperties>`,
			"docProps/app.xml": `<?xml version="1.0"?>
<Properties><Pages>3</Pages><Words>1200</Words></Properties>`,
		})

		parser := NewUniversalParser(nil, logger.NewRecorder())
		result, err := parser.Parse(context.Background(), path)
		require.NoError(t, err)
		require.True(t, result.Success, "errors: %v", result.Errors)

		meta := result.Document.Metadata
		assert.Equal(t, "Annual Report", meta.Title)
		assert.Equal(t, "Dana", meta.Author)
		assert.Equal(t, 3, meta.PageCount)
		assert.Equal(t, 1200, meta.WordCount)

		require.Len(t, result.Elements, 3)

		heading, ok := result.Elements[0].(*elements.HeadingElement)
		require.True(t, ok)
		assert.Equal(t, "Report", heading.GetText())
		assert.Equal(t, 1, heading.Level)

		assert.Equal(t, "Body text here.", result.Elements[1].GetText())

		table, ok := result.Elements[2].(*elements.TableElement)
		require.True(t, ok)
		assert.Equal(t, 2, table.RowCount())
		assert.True(t, table.Rows[0].Cells[0].IsHeader)
		assert.Equal(t, "K", table.Rows[0].Cells[0].Content)
		assert.False(t, table.Rows[1].Cells[0].IsHeader)
		assert.Equal(t, "docx_xml", table.GetMetadata().ExtractionMethod)
	})

	t.Run("MissingBodyIsError", func(t *testing.T) {
		path := writeDocxFixture(t, map[string]string{
			"docProps/core.xml": `<coreProperties/>`,
		})

		parser := NewUniversalParser(nil, logger.NewRecorder())
		result, err := parser.Parse(context.Background(), path)
		require.NoError(t, err)
		assert.False(t, result.Success)
		require.NotEmpty(t, result.Errors)
		assert.Contains(t, result.Errors[0], "not a DOCX document")
	})
}

func TestUniversalParseWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	book := excelize.NewFile()
	require.NoError(t, book.SetCellValue("Sheet1", "A1", "name"))
	require.NoError(t, book.SetCellValue("Sheet1", "B1", "amount"))
	require.NoError(t, book.SetCellValue("Sheet1", "A2", "alpha"))
	require.NoError(t, book.SetCellValue("Sheet1", "B2", 10))
	require.NoError(t, book.SaveAs(path))
	require.NoError(t, book.Close())

	parser := NewUniversalParser(nil, logger.NewRecorder())
	result, err := parser.Parse(context.Background(), path)
	require.NoError(t, err)
	require.True(t, result.Success, "errors: %v", result.Errors)

	require.Len(t, result.Elements, 2)

	heading, ok := result.Elements[0].(*elements.HeadingElement)
	require.True(t, ok)
	assert.Equal(t, "Sheet1", heading.GetText())

	table, ok := result.Elements[1].(*elements.TableElement)
	require.True(t, ok)
	assert.Equal(t, 2, table.RowCount())
	assert.True(t, table.Rows[0].Cells[0].IsHeader)
	assert.Equal(t, "alpha", table.Rows[1].Cells[0].Content)

	children := result.ResolveChildren(heading)
	require.Len(t, children, 1)
	assert.Equal(t, table.GetID(), children[0].GetID())

	assert.Equal(t, 1, result.Document.Metadata.Custom["sheet_count"])
}

func TestUniversalParseValidation(t *testing.T) {
	t.Run("OversizeFileRecordedOnResult", func(t *testing.T) {
		cfg := NewParserConfiguration()
		cfg.MaxFileSize = 4

		result := parseFixture(t, cfg, "big.txt", "far too large for the limit")
		assert.False(t, result.Success)
		require.NotEmpty(t, result.Errors)
		assert.Contains(t, result.Errors[0], "exceeds limit")
		assert.Empty(t, result.Elements)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		path := writeTempFile(t, "late.txt", "content")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		parser := NewUniversalParser(nil, logger.NewRecorder())
		result, err := parser.Parse(ctx, path)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
