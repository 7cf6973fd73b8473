//go:build !ocr

package parsers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/structdoc/structdoc/pkg/logger"
)

// ocrAvailable reports whether Tesseract-backed recognition was compiled
// in. This build has the stub; NewDefaultFactory skips OCR registration.
const ocrAvailable = false

// ErrOCRNotEnabled is returned when the OCR strategy is invoked but OCR
// support was not compiled in. Rebuild with -tags ocr to enable it.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// OCRParser is the stub used when OCR support is not compiled in. Every
// parse fails with ErrOCRNotEnabled recorded on the result.
type OCRParser struct {
	BaseDocumentParser
}

// NewOCRParser creates the stub OCR parser. The strategy stays registrable
// so an explicit request fails with a clear error instead of an
// unknown-strategy miss.
func NewOCRParser(config *ParserConfiguration, log logger.Logger) *OCRParser {
	extensions := []string{".pdf", ".png", ".jpg", ".jpeg", ".tiff", ".tif", ".bmp", ".gif"}
	return &OCRParser{
		BaseDocumentParser: NewBaseDocumentParser(StrategyOCR, extensions, config, log),
	}
}

// Parse records ErrOCRNotEnabled on the result.
func (p *OCRParser) Parse(ctx context.Context, filePath string) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	result := NewParseResult(StrategyOCR)
	result.AddError(fmt.Sprintf("cannot parse %s: %v", filePath, ErrOCRNotEnabled))
	return p.finishResult(ctx, result, start), nil
}
