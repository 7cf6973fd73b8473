package parsers

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/structdoc/structdoc/pkg/elements"
	"github.com/structdoc/structdoc/pkg/logger"
)

// PDFTextParser extracts embedded text from PDF files. It groups
// positioned text runs into lines and blocks, classifies headings by
// relative font size and derives bounding boxes from run geometry. Scanned
// PDFs without embedded text produce empty results; those need the OCR
// strategy.
type PDFTextParser struct {
	BaseDocumentParser
}

// NewPDFTextParser creates the PDF text parser.
func NewPDFTextParser(config *ParserConfiguration, log logger.Logger) *PDFTextParser {
	return &PDFTextParser{
		BaseDocumentParser: NewBaseDocumentParser(StrategyPDFText, []string{".pdf"}, config, log),
	}
}

// Parse extracts structured content from the PDF.
func (p *PDFTextParser) Parse(ctx context.Context, filePath string) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, p.Config().Timeout())
	defer cancel()

	start := time.Now()
	result := NewParseResult(StrategyPDFText)

	if valid, reason := p.ValidateFile(filePath); !valid {
		result.AddError(reason)
		return p.finishResult(ctx, result, start), nil
	}

	doc := NewDocument(filePath)
	if p.Config().ExtractMetadata {
		doc.Metadata = p.ExtractMetadata(filePath)
	}
	result.Document = doc

	if err := p.extractPDF(ctx, result, filePath); err != nil {
		result.AddError(fmt.Sprintf("content extraction failed: %v", err))
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		result.AddError(fmt.Sprintf("parsing interrupted: %v", ctxErr))
		return p.finishResult(ctx, result, start), ctxErr
	}

	fillContentStats(result)
	return p.finishResult(ctx, result, start), nil
}

// extractPDF walks the document pages. Malformed PDF structures can panic
// inside the reader library; the recover converts that into an error.
func (p *PDFTextParser) extractPDF(ctx context.Context, result *ParseResult, filePath string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF reader failed: %v", r)
		}
	}()

	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	if p.Config().ExtractMetadata {
		p.applyPDFInfo(result, reader)
	}

	pageCount := reader.NumPage()
	if result.Document != nil && result.Document.Metadata != nil {
		result.Document.Metadata.PageCount = pageCount
		result.Document.Metadata.MimeType = "application/pdf"
	}

	extracted := 0
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			result.AddWarning(fmt.Sprintf("page %d has no content", pageNum))
			continue
		}
		content := page.Content()
		for _, el := range pdfPageElements(content.Text, pageNum) {
			stampProvenance(el, StrategyPDFText, "embedded_text")
			result.AddElement(el)
			extracted++
		}
	}

	if extracted == 0 && pageCount > 0 {
		result.AddWarning(fmt.Sprintf("no embedded text found, consider the %s strategy", StrategyOCR))
	}
	return nil
}

// applyPDFInfo merges the PDF info dictionary into the document metadata.
func (p *PDFTextParser) applyPDFInfo(result *ParseResult, reader *pdf.Reader) {
	if result.Document == nil || result.Document.Metadata == nil {
		return
	}
	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return
	}
	meta := result.Document.Metadata

	if v := strings.TrimSpace(info.Key("Title").Text()); v != "" {
		meta.Title = v
	}
	if v := strings.TrimSpace(info.Key("Author").Text()); v != "" {
		meta.Author = v
	}
	if v := strings.TrimSpace(info.Key("Subject").Text()); v != "" {
		meta.Subject = v
	}
	for _, kw := range strings.Split(info.Key("Keywords").Text(), ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			meta.Keywords = append(meta.Keywords, kw)
		}
	}
	if t := parsePDFDate(info.Key("CreationDate").Text()); t != nil {
		meta.CreatedAt = t
	}
	if t := parsePDFDate(info.Key("ModDate").Text()); t != nil {
		meta.ModifiedAt = t
	}
}

// parsePDFDate reads the D:YYYYMMDDHHMMSS prefix of a PDF date string.
// Timezone suffixes are ignored.
func parsePDFDate(s string) *time.Time {
	s = strings.TrimPrefix(strings.TrimSpace(s), "D:")
	digits := s
	for i, r := range s {
		if r < '0' || r > '9' {
			digits = s[:i]
			break
		}
	}
	for _, layout := range []string{"20060102150405", "200601021504", "20060102"} {
		if len(digits) == len(layout) {
			if t, err := time.Parse(layout, digits); err == nil {
				return &t
			}
		}
	}
	return nil
}

// pdfLine is one assembled line of text with its geometry.
type pdfLine struct {
	text     string
	x0, x1   float64
	y        float64
	fontSize float64
}

// pdfPageElements groups a page's positioned text runs into heading and
// paragraph elements with bounding boxes.
func pdfPageElements(runs []pdf.Text, pageNum int) []elements.Element {
	lines := groupPDFLines(runs)
	if len(lines) == 0 {
		return nil
	}
	bodySize := dominantFontSize(lines)

	var out []elements.Element
	for _, block := range groupPDFBlocks(lines, bodySize) {
		el := pdfBlockElement(block, bodySize, pageNum)
		if el != nil {
			out = append(out, el)
		}
	}
	return out
}

// groupPDFLines merges runs that share a baseline into lines, reading top
// to bottom, left to right. PDF coordinates grow upward, so higher y comes
// first.
func groupPDFLines(runs []pdf.Text) []pdfLine {
	filtered := make([]pdf.Text, 0, len(runs))
	for _, r := range runs {
		if strings.TrimSpace(r.S) != "" {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return nil
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if math.Abs(filtered[i].Y-filtered[j].Y) > lineTolerance {
			return filtered[i].Y > filtered[j].Y
		}
		return filtered[i].X < filtered[j].X
	})

	var lines []pdfLine
	var current *pdfLine
	var prevEnd float64
	for _, r := range filtered {
		if current == nil || math.Abs(r.Y-current.y) > lineTolerance {
			if current != nil {
				lines = append(lines, *current)
			}
			current = &pdfLine{
				text:     r.S,
				x0:       r.X,
				x1:       r.X + r.W,
				y:        r.Y,
				fontSize: r.FontSize,
			}
			prevEnd = r.X + r.W
			continue
		}

		if r.X > prevEnd+wordGap {
			current.text += " "
		}
		current.text += r.S
		if r.X+r.W > current.x1 {
			current.x1 = r.X + r.W
		}
		if r.FontSize > current.fontSize {
			current.fontSize = r.FontSize
		}
		prevEnd = r.X + r.W
	}
	if current != nil {
		lines = append(lines, *current)
	}
	return lines
}

const (
	// lineTolerance is the baseline distance in points within which runs
	// belong to the same line
	lineTolerance = 2.0
	// wordGap is the horizontal gap in points treated as a word boundary
	wordGap = 0.5
)

// dominantFontSize returns the most frequent line font size, which stands
// in for the document's body text size.
func dominantFontSize(lines []pdfLine) float64 {
	counts := make(map[float64]int)
	for _, l := range lines {
		counts[roundFontSize(l.fontSize)]++
	}
	best, bestCount := 12.0, 0
	for size, count := range counts {
		if count > bestCount || (count == bestCount && size < best) {
			best, bestCount = size, count
		}
	}
	if best <= 0 {
		return 12.0
	}
	return best
}

func roundFontSize(size float64) float64 {
	return math.Round(size*2) / 2
}

// groupPDFBlocks splits lines into blocks at large vertical gaps and at
// font size changes.
func groupPDFBlocks(lines []pdfLine, bodySize float64) [][]pdfLine {
	gap := bodySize * 1.8
	var blocks [][]pdfLine
	var current []pdfLine
	for _, line := range lines {
		if len(current) > 0 {
			prev := current[len(current)-1]
			sizeChanged := math.Abs(roundFontSize(prev.fontSize)-roundFontSize(line.fontSize)) >= 0.5
			if prev.y-line.y > gap || sizeChanged {
				blocks = append(blocks, current)
				current = nil
			}
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

// pdfBlockElement renders one block as a heading or paragraph element.
// Blocks set clearly above the body size with at most three lines become
// headings.
func pdfBlockElement(block []pdfLine, bodySize float64, pageNum int) elements.Element {
	if len(block) == 0 {
		return nil
	}

	var sb strings.Builder
	size := 0.0
	x0, x1 := block[0].x0, block[0].x1
	yTop, yBottom := block[0].y, block[0].y
	for i, line := range block {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strings.TrimSpace(line.text))
		if line.fontSize > size {
			size = line.fontSize
		}
		if line.x0 < x0 {
			x0 = line.x0
		}
		if line.x1 > x1 {
			x1 = line.x1
		}
		if line.y > yTop {
			yTop = line.y
		}
		if line.y < yBottom {
			yBottom = line.y
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil
	}

	bbox := elements.NewBoundingBox(x0, yBottom, x1, yTop+size, pageNum)

	ratio := 0.0
	if bodySize > 0 {
		ratio = size / bodySize
	}
	if ratio >= 1.15 && len(block) <= 3 {
		level := 3
		switch {
		case ratio >= 1.5:
			level = 1
		case ratio >= 1.3:
			level = 2
		}
		heading := elements.NewHeadingElement(text, level)
		heading.BBox = bbox
		heading.SetConfidence(0.85)
		return heading
	}

	paragraph := elements.NewParagraphElement(text)
	paragraph.BBox = bbox
	paragraph.SetConfidence(0.9)
	return paragraph
}

