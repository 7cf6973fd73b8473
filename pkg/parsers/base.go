// Package parsers provides the document parsing framework: a typed element
// model produced by strategy-keyed parsers, a factory that resolves the
// right strategy per file, and quality assessment over parse results.
package parsers

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/structdoc/structdoc/pkg/elements"
	"github.com/structdoc/structdoc/pkg/logger"
)

// DocumentParser is the contract implemented by every parsing backend.
// Each Parse call is a one-shot stateless transform of a file into a
// ParseResult.
type DocumentParser interface {
	// Strategy returns the strategy this parser implements. The factory
	// derives registration keys from this value.
	Strategy() ParsingStrategy

	// SupportsFormat reports whether the parser can handle the given file
	SupportsFormat(filePath string) bool

	// SupportedExtensions lists the file extensions the parser accepts
	SupportedExtensions() []string

	// Parse extracts structured content from the file. Content-level
	// problems are accumulated on the result; the error return is for
	// failures that prevented producing a result at all.
	Parse(ctx context.Context, filePath string) (*ParseResult, error)
}

// BaseDocumentParser carries the configuration, logging and file handling
// shared by parser implementations. Concrete parsers embed it and provide
// Parse.
type BaseDocumentParser struct {
	strategy   ParsingStrategy
	extensions []string
	config     *ParserConfiguration
	logger     logger.Logger
}

// NewBaseDocumentParser creates the shared parser base. An empty extension
// list means the parser accepts any file.
func NewBaseDocumentParser(strategy ParsingStrategy, extensions []string, config *ParserConfiguration, log logger.Logger) BaseDocumentParser {
	if config == nil {
		config = NewParserConfiguration()
	}
	if log == nil {
		log = logger.New()
	}
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		normalized = append(normalized, normalizeExtension(ext))
	}
	return BaseDocumentParser{
		strategy:   strategy,
		extensions: normalized,
		config:     config,
		logger:     log,
	}
}

// Strategy returns the strategy this parser implements.
func (p *BaseDocumentParser) Strategy() ParsingStrategy {
	return p.strategy
}

// Config returns the parser configuration.
func (p *BaseDocumentParser) Config() *ParserConfiguration {
	return p.config
}

// Logger returns the parser logger.
func (p *BaseDocumentParser) Logger() logger.Logger {
	return p.logger
}

// SupportedExtensions lists the file extensions the parser accepts.
func (p *BaseDocumentParser) SupportedExtensions() []string {
	return append([]string(nil), p.extensions...)
}

// SupportsFormat reports whether the file's extension is one the parser
// accepts. Parsers constructed with no extension list accept any file.
func (p *BaseDocumentParser) SupportsFormat(filePath string) bool {
	if len(p.extensions) == 0 {
		return true
	}
	ext := normalizeExtension(filepath.Ext(filePath))
	for _, supported := range p.extensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// ValidateFile checks a file before parsing: it must exist, be a regular
// file, fit the size bound, match the parser's formats and be readable.
// Failures return false with the reason.
func (p *BaseDocumentParser) ValidateFile(filePath string) (bool, string) {
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return false, fmt.Sprintf("file does not exist: %s", filePath)
	}
	if err != nil {
		return false, fmt.Sprintf("cannot stat file: %v", err)
	}
	if info.IsDir() {
		return false, fmt.Sprintf("not a regular file: %s", filePath)
	}
	if p.config.MaxFileSize > 0 && info.Size() > p.config.MaxFileSize {
		return false, fmt.Sprintf("file size %d exceeds limit %d", info.Size(), p.config.MaxFileSize)
	}
	if !p.SupportsFormat(filePath) {
		return false, fmt.Sprintf("unsupported format: %s", filepath.Ext(filePath))
	}

	f, err := os.Open(filePath)
	if err != nil {
		return false, fmt.Sprintf("file is not readable: %v", err)
	}
	defer f.Close()
	probe := make([]byte, 1)
	if _, err := f.Read(probe); err != nil && err != io.EOF {
		return false, fmt.Sprintf("file is not readable: %v", err)
	}
	return true, ""
}

// Preprocess runs before parsing. The default does nothing; parsers with
// strategy-specific preparation override it.
func (p *BaseDocumentParser) Preprocess(ctx context.Context, filePath string) error {
	return nil
}

// Postprocess runs after parsing and returns the final result. The default
// assesses quality when the parser produced none.
func (p *BaseDocumentParser) Postprocess(ctx context.Context, result *ParseResult) *ParseResult {
	if result == nil {
		return nil
	}
	if result.Quality == nil {
		result.Quality = AssessQuality(result, DefaultQualityWeights())
	}
	return result
}

// finishResult stamps processing time on a result and runs the default
// postprocessing.
func (p *BaseDocumentParser) finishResult(ctx context.Context, result *ParseResult, start time.Time) *ParseResult {
	result.ProcessingTime = time.Since(start)
	result = p.Postprocess(ctx, result)
	if result.Quality != nil {
		result.Quality.ProcessingTime = result.ProcessingTime
	}
	return result
}

// ExtractMetadata derives document metadata from filesystem facts. Stat
// failures are logged and return nil, never an error.
func (p *BaseDocumentParser) ExtractMetadata(filePath string) *DocumentMetadata {
	info, err := os.Stat(filePath)
	if err != nil {
		p.logger.Warn("failed to extract file metadata", map[string]interface{}{
			"file_path": filePath,
			"error":     err.Error(),
		})
		return nil
	}

	ext := normalizeExtension(filepath.Ext(filePath))
	meta := NewDocumentMetadata()
	meta.FileSize = info.Size()
	meta.FileExtension = ext
	meta.MimeType = mime.TypeByExtension(ext)
	meta.Title = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	modTime := info.ModTime()
	meta.ModifiedAt = &modTime
	return meta
}

// normalizeExtension lowercases an extension and guarantees a leading dot.
func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ext
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// ElementParser is the per-element contract for components that turn raw
// serialized payloads into typed elements.
type ElementParser interface {
	// ParseElement converts a raw payload into a typed element
	ParseElement(raw map[string]interface{}) (elements.Element, error)

	// SupportsElementType reports whether the parser handles the type
	SupportsElementType(t elements.ElementType) bool
}

// BaseElementParser provides the default per-element validation shared by
// element parser implementations.
type BaseElementParser struct {
	logger logger.Logger
}

// NewBaseElementParser creates the shared element parser base.
func NewBaseElementParser(log logger.Logger) BaseElementParser {
	if log == nil {
		log = logger.New()
	}
	return BaseElementParser{logger: log}
}

// Logger returns the element parser logger.
func (p *BaseElementParser) Logger() logger.Logger {
	return p.logger
}

// ValidateElement checks a parsed element. Empty content fails. Low
// confidence is valid but returns a warning message, which callers must
// not treat as failure.
func (p *BaseElementParser) ValidateElement(el elements.Element) (bool, string) {
	if el == nil {
		return false, "element is nil"
	}
	if ok, msg := el.Validate(); !ok {
		return false, msg
	}
	if el.Type() != elements.TypeImage && el.Type() != elements.TypeFigure && el.Type() != elements.TypeDiagram {
		if strings.TrimSpace(el.GetText()) == "" {
			return false, "element content is empty"
		}
	}
	if confidence := el.GetMetadata().Confidence; confidence < 0.5 {
		return true, fmt.Sprintf("element confidence %.2f is low", confidence)
	}
	return true, ""
}

// StandardElementParser restores typed elements from their serialized map
// form. It backs response decoding for the remote strategy.
type StandardElementParser struct {
	BaseElementParser
	types map[elements.ElementType]bool
}

// NewStandardElementParser creates an element parser for the given types.
// With no types it accepts every recognized element type.
func NewStandardElementParser(log logger.Logger, types ...elements.ElementType) *StandardElementParser {
	p := &StandardElementParser{
		BaseElementParser: NewBaseElementParser(log),
	}
	if len(types) > 0 {
		p.types = make(map[elements.ElementType]bool, len(types))
		for _, t := range types {
			p.types[t] = true
		}
	}
	return p
}

// SupportsElementType reports whether the parser handles the type.
func (p *StandardElementParser) SupportsElementType(t elements.ElementType) bool {
	if p.types == nil {
		return t.IsValid()
	}
	return p.types[t]
}

// ParseElement restores a typed element from its serialized map form and
// validates it. Low-confidence elements pass with a logged warning.
func (p *StandardElementParser) ParseElement(raw map[string]interface{}) (elements.Element, error) {
	if raw == nil {
		return nil, fmt.Errorf("element payload is nil")
	}
	t := elements.ElementType(rawString(raw, "type"))
	if !p.SupportsElementType(t) {
		return nil, fmt.Errorf("unsupported element type: %q", t)
	}

	el, err := elements.FromMap(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to restore element: %w", err)
	}

	valid, msg := p.ValidateElement(el)
	if !valid {
		return nil, fmt.Errorf("element validation failed: %s", msg)
	}
	if msg != "" {
		p.logger.Warn("element passed validation with warning", map[string]interface{}{
			"element_id": el.GetID(),
			"warning":    msg,
		})
	}
	return el, nil
}

func rawString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
