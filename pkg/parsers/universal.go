package parsers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/structdoc/structdoc/pkg/elements"
	"github.com/structdoc/structdoc/pkg/logger"
)

// UniversalParser handles text-based formats: plain text, markdown, HTML,
// XML, JSON, CSV, DOCX and XLSX. It is the fallback strategy for unknown
// extensions, where it sniffs the content to pick an extraction path.
type UniversalParser struct {
	BaseDocumentParser
}

// NewUniversalParser creates the universal parser. It accepts any file;
// validation never rejects on format.
func NewUniversalParser(config *ParserConfiguration, log logger.Logger) *UniversalParser {
	return &UniversalParser{
		BaseDocumentParser: NewBaseDocumentParser(StrategyUniversal, nil, config, log),
	}
}

// Parse extracts structured content from the file, dispatching on the
// extension and falling back to content sniffing.
func (p *UniversalParser) Parse(ctx context.Context, filePath string) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, p.Config().Timeout())
	defer cancel()

	start := time.Now()
	result := NewParseResult(StrategyUniversal)

	if valid, reason := p.ValidateFile(filePath); !valid {
		result.AddError(reason)
		return p.finishResult(ctx, result, start), nil
	}
	if err := p.Preprocess(ctx, filePath); err != nil {
		result.AddError(fmt.Sprintf("preprocessing failed: %v", err))
		return p.finishResult(ctx, result, start), nil
	}

	doc := NewDocument(filePath)
	if p.Config().ExtractMetadata {
		doc.Metadata = p.ExtractMetadata(filePath)
	}
	result.Document = doc

	ext := normalizeExtension(filepath.Ext(filePath))

	var err error
	switch ext {
	case ".docx":
		err = p.extractDOCX(result, filePath)
	case ".xlsx", ".xls":
		err = p.extractWorkbook(result, filePath)
	default:
		err = p.parseBytes(ctx, result, filePath, ext)
	}
	if err != nil {
		result.AddError(fmt.Sprintf("content extraction failed: %v", err))
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		result.AddError(fmt.Sprintf("parsing interrupted: %v", ctxErr))
		return p.finishResult(ctx, result, start), ctxErr
	}

	fillContentStats(result)
	return p.finishResult(ctx, result, start), nil
}

// parseBytes handles the formats that are read fully into memory.
func (p *UniversalParser) parseBytes(ctx context.Context, result *ParseResult, filePath, ext string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	switch ext {
	case ".html", ".htm", ".xml":
		return p.extractHTML(result, data)
	case ".md", ".markdown":
		return p.extractMarkdown(result, data)
	case ".csv":
		return p.extractCSV(result, data, ',')
	case ".tsv":
		return p.extractCSV(result, data, '\t')
	case ".json":
		return p.extractJSON(result, data)
	case ".txt":
		return p.extractPlainText(result, data)
	default:
		return p.parseUnknown(result, data)
	}
}

// parseUnknown sniffs undeclared content and routes it to the closest
// extraction path.
func (p *UniversalParser) parseUnknown(result *ParseResult, data []byte) error {
	switch detectTextFormat(data) {
	case formatPDF:
		return fmt.Errorf("binary PDF content requires the %s strategy", StrategyPDFText)
	case formatBinary:
		return fmt.Errorf("binary content is not supported by the %s strategy", StrategyUniversal)
	case formatHTML:
		result.AddWarning("unknown extension, content detected as HTML")
		return p.extractHTML(result, data)
	case formatMarkdown:
		result.AddWarning("unknown extension, content detected as markdown")
		return p.extractMarkdown(result, data)
	default:
		result.AddWarning("unknown extension, content treated as plain text")
		return p.extractPlainText(result, data)
	}
}


// Content sniffing outcomes
const (
	formatPlain    = "plain"
	formatHTML     = "html"
	formatMarkdown = "markdown"
	formatPDF      = "pdf"
	formatBinary   = "binary"
)

// detectTextFormat classifies undeclared content. PDF magic and NUL bytes
// mark binary data; HTML markers and a markdown signal count decide between
// the structured text paths.
func detectTextFormat(data []byte) string {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return formatPDF
	}
	probe := data
	if len(probe) > 4096 {
		probe = probe[:4096]
	}
	if bytes.IndexByte(probe, 0x00) >= 0 {
		return formatBinary
	}

	trimmed := bytes.ToLower(bytes.TrimLeft(probe, " \t\r\n"))
	if bytes.HasPrefix(trimmed, []byte("<!doctype html")) ||
		bytes.HasPrefix(trimmed, []byte("<html")) ||
		bytes.Contains(trimmed, []byte("<body")) {
		return formatHTML
	}

	score := 0
	for _, line := range strings.Split(string(probe), "\n") {
		l := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(l, "#"):
			score++
		case strings.HasPrefix(l, "- ") || strings.HasPrefix(l, "* "):
			score++
		case strings.HasPrefix(l, "```"):
			score++
		case strings.Contains(l, "](") && strings.Contains(l, "["):
			score++
		}
	}
	if score >= 2 {
		return formatMarkdown
	}
	return formatPlain
}

// stampProvenance records which strategy produced an element and the
// extraction technique used.
func stampProvenance(el elements.Element, strategy ParsingStrategy, method string) {
	meta := el.GetMetadata()
	meta.SourceParser = string(strategy)
	meta.ExtractionMethod = method
}

// fillContentStats derives word and character counts from the extracted
// elements when document metadata is present. Counts already recovered
// from document properties are kept.
func fillContentStats(result *ParseResult) {
	if result.Document == nil || result.Document.Metadata == nil {
		return
	}
	text := result.PlainText()
	if result.Document.Metadata.WordCount == 0 {
		result.Document.Metadata.WordCount = len(strings.Fields(text))
	}
	result.Document.Metadata.CharacterCount = utf8.RuneCountInString(text)
}
