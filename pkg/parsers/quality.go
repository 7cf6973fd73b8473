package parsers

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/structdoc/structdoc/pkg/elements"
)

// QualityWeights controls the relative importance of the quality dimensions.
type QualityWeights struct {
	TextExtraction        float64
	StructurePreservation float64
	ElementDetection      float64
	MetadataCompleteness  float64
}

// DefaultQualityWeights returns balanced weights favoring text quality.
func DefaultQualityWeights() QualityWeights {
	return QualityWeights{
		TextExtraction:        0.35,
		StructurePreservation: 0.25,
		ElementDetection:      0.25,
		MetadataCompleteness:  0.15,
	}
}

// Combine folds the four dimension scores into one overall score. The
// result is normalized by the weight total and clamped to [0, 1].
func (w QualityWeights) Combine(text, structure, detection, metadata float64) float64 {
	total := w.TextExtraction + w.StructurePreservation + w.ElementDetection + w.MetadataCompleteness
	if total == 0 {
		return 0
	}

	score := (text*w.TextExtraction +
		structure*w.StructurePreservation +
		detection*w.ElementDetection +
		metadata*w.MetadataCompleteness) / total

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// AssessQuality measures a parse result across the quality dimensions and
// returns the populated quality record. The result is not modified.
func AssessQuality(result *ParseResult, weights QualityWeights) *ParseQuality {
	q := NewParseQuality()
	q.ProcessingTime = result.ProcessingTime

	q.TextExtractionScore = assessTextExtraction(result, q)
	q.StructurePreservationScore = assessStructurePreservation(result)
	q.ElementDetectionScore = assessElementDetection(result, q)
	q.MetadataCompleteness = assessMetadataCompleteness(result)

	q.OverallScore = weights.Combine(
		q.TextExtractionScore,
		q.StructurePreservationScore,
		q.ElementDetectionScore,
		q.MetadataCompleteness,
	)
	return q
}

// assessTextExtraction scores the cleanliness of the extracted text. Garbled
// output from broken encodings or bad OCR pulls the score down.
func assessTextExtraction(result *ParseResult, q *ParseQuality) float64 {
	text := result.PlainText()
	if strings.TrimSpace(text) == "" {
		q.AddIssue("no_text", SeverityWarning, "no text content was extracted")
		return 0
	}

	printable := printableRatio(text)
	wordlike := wordlikeRatio(text)

	if printable < 0.85 {
		q.AddIssue("garbled_text", SeverityWarning,
			fmt.Sprintf("printable character ratio %.2f is below 0.85", printable))
	}

	return printable*0.6 + wordlike*0.4
}

// assessStructurePreservation scores how much document structure survived
// parsing. Flat runs of plain text score low; headings, tables, lists and
// parent-child linkage score progressively higher.
func assessStructurePreservation(result *ParseResult) float64 {
	if len(result.Elements) == 0 {
		return 0
	}

	score := 0.4

	types := make(map[elements.ElementType]bool)
	linked := false
	for _, el := range result.Elements {
		types[el.Type()] = true
		if el.GetParentID() != "" || len(el.GetChildrenIDs()) > 0 {
			linked = true
		}
	}

	if types[elements.TypeHeading] {
		score += 0.2
	}
	if types[elements.TypeTable] || types[elements.TypeList] {
		score += 0.15
	}
	if linked {
		score += 0.15
	}
	if len(types) > 2 {
		score += 0.1
	}

	if score > 1 {
		return 1
	}
	return score
}

// assessElementDetection scores mean element confidence and fills the
// confidence distribution. Elements below the low bucket boundary are
// flagged as issues.
func assessElementDetection(result *ParseResult, q *ParseQuality) float64 {
	if len(result.Elements) == 0 {
		return 0
	}

	sum := 0.0
	for _, el := range result.Elements {
		confidence := el.GetMetadata().Confidence
		sum += confidence
		q.RecordConfidence(confidence)
		if confidence < 0.5 {
			page := 0
			if bbox := el.GetBBox(); bbox != nil {
				page = bbox.Page
			}
			q.AddElementIssue("low_confidence", SeverityWarning,
				fmt.Sprintf("element confidence %.2f is below 0.5", confidence),
				el.GetID(), page)
		}
	}
	return sum / float64(len(result.Elements))
}

// assessMetadataCompleteness scores how many of the core metadata fields
// were recovered from the document.
func assessMetadataCompleteness(result *ParseResult) float64 {
	if result.Document == nil || result.Document.Metadata == nil {
		return 0
	}
	meta := result.Document.Metadata

	populated := 0
	if meta.Title != "" {
		populated++
	}
	if meta.Author != "" {
		populated++
	}
	if meta.Language != "" {
		populated++
	}
	if meta.CreatedAt != nil {
		populated++
	}
	if meta.ModifiedAt != nil {
		populated++
	}
	if meta.MimeType != "" {
		populated++
	}
	if meta.PageCount > 0 {
		populated++
	}
	if meta.WordCount > 0 {
		populated++
	}
	return float64(populated) / 8.0
}

// printableRatio returns the fraction of runes that render as normal text.
// Private-use runes, replacement characters and stray control characters
// indicate broken extraction. Empty input scores 1.0.
func printableRatio(s string) float64 {
	if s == "" {
		return 1.0
	}
	total := 0
	printable := 0
	for _, r := range s {
		total++
		if !isGarbageRune(r) {
			printable++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(printable) / float64(total)
}

func isGarbageRune(r rune) bool {
	// Private use area, common in PDFs with subsetted fonts and no
	// usable ToUnicode map
	if r >= 0xE000 && r <= 0xF8FF {
		return true
	}
	if r == utf8.RuneError {
		return true
	}
	if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
		return true
	}
	return false
}

// wordlikeRatio returns the fraction of whitespace-separated tokens with a
// plausible word length. OCR noise tends to produce single-rune fragments
// and very long unbroken runs. Empty input scores 0.
func wordlikeRatio(s string) float64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	wordlike := 0
	for _, f := range fields {
		n := utf8.RuneCountInString(f)
		if n >= 2 && n <= 15 {
			wordlike++
		}
	}
	return float64(wordlike) / float64(len(fields))
}
