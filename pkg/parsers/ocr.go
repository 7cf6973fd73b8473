//go:build ocr

package parsers

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/structdoc/structdoc/pkg/elements"
	"github.com/structdoc/structdoc/pkg/logger"
)

// ocrAvailable reports whether Tesseract-backed recognition was compiled
// in. NewDefaultFactory registers the OCR parser only when it is true.
const ocrAvailable = true

// OCRParser recognizes text in scanned images with Tesseract. It needs the
// tesseract shared library at build time and its language data files at
// runtime. On Ubuntu/Debian:
//
//	apt-get install tesseract-ocr libtesseract-dev
type OCRParser struct {
	BaseDocumentParser
}

// ocrBlock is one recognized text region. Confidence is normalized to 0..1.
type ocrBlock struct {
	text       string
	confidence float64
	box        image.Rectangle
}

// NewOCRParser creates the OCR parser. PDF is accepted so the strategy can
// be selected for scanned documents, but pages must be rasterized to an
// image format before recognition.
func NewOCRParser(config *ParserConfiguration, log logger.Logger) *OCRParser {
	extensions := []string{".pdf", ".png", ".jpg", ".jpeg", ".tiff", ".tif", ".bmp", ".gif"}
	return &OCRParser{
		BaseDocumentParser: NewBaseDocumentParser(StrategyOCR, extensions, config, log),
	}
}

// Parse runs Tesseract over the image and emits one paragraph per
// recognized text block, carrying the block's pixel box and confidence.
func (p *OCRParser) Parse(ctx context.Context, filePath string) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, p.Config().Timeout())
	defer cancel()

	start := time.Now()
	result := NewParseResult(StrategyOCR)

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

	if normalizeExtension(filepath.Ext(filePath)) == ".pdf" {
		result.AddError("PDF pages must be rasterized to an image format before OCR")
		return p.finishResult(ctx, result, start), nil
	}

	blocks, err := p.recognize(filePath)
	if err != nil {
		result.AddError(fmt.Sprintf("recognition failed: %v", err))
		return p.finishResult(ctx, result, start), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		result.AddError(fmt.Sprintf("parsing interrupted: %v", ctxErr))
		return p.finishResult(ctx, result, start), ctxErr
	}

	minConfidence, _ := customNumber(p.Config().CustomOptions, "ocr_min_confidence")
	skipped := 0
	for _, block := range blocks {
		if minConfidence > 0 && block.confidence < minConfidence {
			skipped++
			continue
		}
		content := block.text
		if !p.Config().PreserveFormatting {
			content = strings.Join(strings.Fields(content), " ")
		}
		para := elements.NewParagraphElement(content)
		para.BBox = elements.NewBoundingBox(
			float64(block.box.Min.X), float64(block.box.Min.Y),
			float64(block.box.Max.X), float64(block.box.Max.Y), 1)
		para.SetConfidence(block.confidence)
		stampProvenance(para, StrategyOCR, "ocr")
		result.AddElement(para)
	}
	if skipped > 0 {
		result.AddWarning(fmt.Sprintf("dropped %d blocks below confidence %.2f", skipped, minConfidence))
	}
	if len(result.Elements) == 0 {
		result.AddWarning("no text recognized in image")
	}

	fillContentStats(result)
	return p.finishResult(ctx, result, start), nil
}

// recognize runs Tesseract over a single image file and returns the
// block-level regions.
func (p *OCRParser) recognize(filePath string) ([]ocrBlock, error) {
	client := gosseract.NewClient()
	defer func() {
		if err := client.Close(); err != nil {
			p.Logger().Warn("failed to close OCR client", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	opts := p.Config().CustomOptions
	if prefix := customString(opts, "ocr_tessdata_prefix"); prefix != "" {
		if err := client.SetTessdataPrefix(prefix); err != nil {
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if mode, ok := customNumber(opts, "ocr_page_seg_mode"); ok {
		if err := client.SetPageSegMode(gosseract.PageSegMode(int(mode))); err != nil {
			return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
		}
	}
	if langs := p.Config().OCRLanguages; len(langs) > 0 {
		if err := client.SetLanguage(langs...); err != nil {
			return nil, fmt.Errorf("failed to set OCR languages %v: %w", langs, err)
		}
	}
	if err := client.SetImage(filePath); err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_BLOCK)
	if err != nil {
		return nil, fmt.Errorf("recognition failed: %w", err)
	}

	blocks := make([]ocrBlock, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		blocks = append(blocks, ocrBlock{
			text:       text,
			confidence: b.Confidence / 100,
			box:        b.Box,
		})
	}
	return blocks, nil
}

// customString reads a string option, tolerating absent keys.
func customString(opts map[string]interface{}, key string) string {
	if v, ok := opts[key].(string); ok {
		return v
	}
	return ""
}

// customNumber reads a numeric option. JSON round trips deliver numbers as
// float64, config code sets native ints.
func customNumber(opts map[string]interface{}, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case int:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
