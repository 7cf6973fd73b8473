package parsers

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/structdoc/structdoc/pkg/elements"
)

// DocumentMetadata contains descriptive and structural facts about a
// parsed document.
type DocumentMetadata struct {
	// Basic document properties
	Title    string `json:"title,omitempty"`
	Author   string `json:"author,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Language string `json:"language,omitempty"`

	// Timestamps
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`

	// File properties
	FileSize      int64  `json:"file_size"`
	MimeType      string `json:"mime_type,omitempty"`
	FileExtension string `json:"file_extension,omitempty"`

	// Content statistics
	PageCount      int `json:"page_count,omitempty"`
	WordCount      int `json:"word_count,omitempty"`
	CharacterCount int `json:"character_count,omitempty"`

	// Additional metadata
	Keywords []string               `json:"keywords,omitempty"`
	Custom   map[string]interface{} `json:"custom,omitempty"`
}

// NewDocumentMetadata creates empty metadata with initialized collections.
func NewDocumentMetadata() *DocumentMetadata {
	return &DocumentMetadata{
		Keywords: []string{},
		Custom:   make(map[string]interface{}),
	}
}

// Document identifies one parsed source file.
type Document struct {
	// ID is a unique identifier assigned at parse time
	ID string `json:"id"`

	// FilePath is the source file location
	FilePath string `json:"file_path"`

	// Metadata describes the document, or nil when extraction was disabled
	Metadata *DocumentMetadata `json:"metadata,omitempty"`

	// ParsedAt records when parsing completed
	ParsedAt time.Time `json:"parsed_at"`
}

// NewDocument creates a document record for the given source file.
func NewDocument(filePath string) *Document {
	return &Document{
		ID:       uuid.New().String(),
		FilePath: filePath,
		ParsedAt: time.Now(),
	}
}

// Issue severity levels
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// QualityIssue describes one problem found during parsing or assessment.
type QualityIssue struct {
	// Type classifies the issue, e.g. "garbled_text" or "empty_element"
	Type string `json:"type"`

	// Severity is one of the Severity* constants
	Severity string `json:"severity"`

	// Message is the human-readable description
	Message string `json:"message"`

	// ElementID references the affected element when the issue is local
	ElementID string `json:"element_id,omitempty"`

	// Page is the affected page when known, zero otherwise
	Page int `json:"page,omitempty"`
}

// Confidence distribution buckets
const (
	ConfidenceBucketHigh   = "high"
	ConfidenceBucketMedium = "medium"
	ConfidenceBucketLow    = "low"
)

// BucketForConfidence maps a confidence value to its distribution bucket.
// Values at or above 0.8 are high, at or above 0.5 medium, below that low.
func BucketForConfidence(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return ConfidenceBucketHigh
	case confidence >= 0.5:
		return ConfidenceBucketMedium
	default:
		return ConfidenceBucketLow
	}
}

// DefaultAcceptableScore is the overall score at or above which a parse
// result is considered usable.
const DefaultAcceptableScore = 0.7

// ParseQuality aggregates quality measurements for one parse result.
type ParseQuality struct {
	// OverallScore is the weighted combination of the dimension scores
	OverallScore float64 `json:"overall_score"`

	// TextExtractionScore measures how clean the extracted text is
	TextExtractionScore float64 `json:"text_extraction_score"`

	// StructurePreservationScore measures how well document structure survived
	StructurePreservationScore float64 `json:"structure_preservation_score"`

	// ElementDetectionScore measures how confidently elements were detected
	ElementDetectionScore float64 `json:"element_detection_score"`

	// MetadataCompleteness measures how much document metadata was recovered
	MetadataCompleteness float64 `json:"metadata_completeness"`

	// ConfidenceDistribution counts elements per confidence bucket
	ConfidenceDistribution map[string]int `json:"confidence_distribution"`

	// IssuesFound lists problems discovered during parsing and assessment
	IssuesFound []QualityIssue `json:"issues_found"`

	// ProcessingTime is how long the parse took
	ProcessingTime time.Duration `json:"processing_time"`
}

// NewParseQuality creates an empty quality record.
func NewParseQuality() *ParseQuality {
	return &ParseQuality{
		ConfidenceDistribution: map[string]int{
			ConfidenceBucketHigh:   0,
			ConfidenceBucketMedium: 0,
			ConfidenceBucketLow:    0,
		},
		IssuesFound: []QualityIssue{},
	}
}

// IsAcceptable reports whether the overall score meets the framework's
// acceptance threshold.
func (q *ParseQuality) IsAcceptable() bool {
	return q.IsAcceptableAt(DefaultAcceptableScore)
}

// IsAcceptableAt reports whether the overall score meets the given threshold.
func (q *ParseQuality) IsAcceptableAt(threshold float64) bool {
	return q.OverallScore >= threshold
}

// RecordConfidence adds one element confidence value to the distribution.
func (q *ParseQuality) RecordConfidence(confidence float64) {
	if q.ConfidenceDistribution == nil {
		q.ConfidenceDistribution = make(map[string]int)
	}
	q.ConfidenceDistribution[BucketForConfidence(confidence)]++
}

// AddIssue records a quality problem.
func (q *ParseQuality) AddIssue(issueType, severity, message string) {
	q.IssuesFound = append(q.IssuesFound, QualityIssue{
		Type:     issueType,
		Severity: severity,
		Message:  message,
	})
}

// AddElementIssue records a quality problem tied to a specific element.
func (q *ParseQuality) AddElementIssue(issueType, severity, message, elementID string, page int) {
	q.IssuesFound = append(q.IssuesFound, QualityIssue{
		Type:      issueType,
		Severity:  severity,
		Message:   message,
		ElementID: elementID,
		Page:      page,
	})
}

// ParseResult is the complete outcome of parsing one document.
type ParseResult struct {
	// Success is true until the first error is recorded
	Success bool `json:"success"`

	// Document identifies the parsed source
	Document *Document `json:"document,omitempty"`

	// Elements holds the parsed content in discovery order
	Elements []elements.Element `json:"-"`

	// Metadata carries result-level facts outside the document record
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Quality holds the assessment for this parse, or nil before assessment
	Quality *ParseQuality `json:"quality,omitempty"`

	// Errors lists fatal problems. A non-empty list implies Success is false.
	Errors []string `json:"errors,omitempty"`

	// Warnings lists recoverable problems
	Warnings []string `json:"warnings,omitempty"`

	// StrategyUsed is the strategy that produced this result
	StrategyUsed ParsingStrategy `json:"strategy_used"`

	// ProcessingTime is how long the parse took
	ProcessingTime time.Duration `json:"processing_time"`
}

// NewParseResult creates an empty successful result for the given strategy.
func NewParseResult(strategy ParsingStrategy) *ParseResult {
	return &ParseResult{
		Success:      true,
		Elements:     []elements.Element{},
		Metadata:     make(map[string]interface{}),
		Errors:       []string{},
		Warnings:     []string{},
		StrategyUsed: strategy,
	}
}

// AddError records a fatal problem and marks the result failed.
func (r *ParseResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Success = false
}

// AddWarning records a recoverable problem without affecting success.
func (r *ParseResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// AddElement appends an element, assigning its discovery-order sequence
// number first so generated identifiers stay reproducible.
func (r *ParseResult) AddElement(el elements.Element) {
	if el == nil {
		return
	}
	el.AssignSequence(len(r.Elements))
	r.Elements = append(r.Elements, el)
}

// ElementByID returns the element with the given identifier, or nil.
func (r *ParseResult) ElementByID(id string) elements.Element {
	if id == "" {
		return nil
	}
	for _, el := range r.Elements {
		if el.GetID() == id {
			return el
		}
	}
	return nil
}

// ElementsByType returns all elements of the given type in discovery order.
func (r *ParseResult) ElementsByType(t elements.ElementType) []elements.Element {
	var matched []elements.Element
	for _, el := range r.Elements {
		if el.Type() == t {
			matched = append(matched, el)
		}
	}
	return matched
}

// ResolveChildren returns the child elements of the given element in
// reference order. Dangling child references are skipped.
func (r *ParseResult) ResolveChildren(el elements.Element) []elements.Element {
	if el == nil {
		return nil
	}
	var children []elements.Element
	for _, id := range el.GetChildrenIDs() {
		if child := r.ElementByID(id); child != nil {
			children = append(children, child)
		}
	}
	return children
}

// PlainText joins the text of all elements in discovery order.
func (r *ParseResult) PlainText() string {
	parts := make([]string, 0, len(r.Elements))
	for _, el := range r.Elements {
		if text := el.GetText(); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// ToMap converts the result to its serialized map form. Element payloads
// are serialized through their own ToMap and durations become seconds.
func (r *ParseResult) ToMap() map[string]interface{} {
	els := make([]map[string]interface{}, 0, len(r.Elements))
	for _, el := range r.Elements {
		els = append(els, el.ToMap())
	}
	m := map[string]interface{}{
		"success":         r.Success,
		"elements":        els,
		"metadata":        r.Metadata,
		"errors":          r.Errors,
		"warnings":        r.Warnings,
		"strategy_used":   string(r.StrategyUsed),
		"processing_time": r.ProcessingTime.Seconds(),
	}
	if r.Document != nil {
		m["document"] = map[string]interface{}{
			"id":        r.Document.ID,
			"file_path": r.Document.FilePath,
			"parsed_at": r.Document.ParsedAt.Format(time.RFC3339),
		}
	}
	if r.Quality != nil {
		m["quality"] = map[string]interface{}{
			"overall_score":                r.Quality.OverallScore,
			"text_extraction_score":        r.Quality.TextExtractionScore,
			"structure_preservation_score": r.Quality.StructurePreservationScore,
			"element_detection_score":      r.Quality.ElementDetectionScore,
			"metadata_completeness":        r.Quality.MetadataCompleteness,
			"confidence_distribution":      r.Quality.ConfidenceDistribution,
			"processing_time":              r.Quality.ProcessingTime.Seconds(),
			"is_acceptable":                r.Quality.IsAcceptable(),
		}
	}
	return m
}
