package parsers

import (
	"fmt"
	"time"
)

// ParsingStrategy identifies a document parsing backend.
type ParsingStrategy string

const (
	// StrategyAuto resolves the best available strategy for a file at parse time
	StrategyAuto ParsingStrategy = "auto"
	// StrategyPDFText extracts embedded text from PDF files without rasterization
	StrategyPDFText ParsingStrategy = "pdf_text"
	// StrategyUniversal handles text-based formats (plain text, markdown, HTML, CSV, DOCX, XLSX, JSON)
	StrategyUniversal ParsingStrategy = "universal"
	// StrategyOCR rasterizes pages and recognizes text with an OCR engine
	StrategyOCR ParsingStrategy = "ocr"
	// StrategyRemote delegates parsing to an external document service
	StrategyRemote ParsingStrategy = "remote"
)

// SupportedStrategies returns all strategies the framework knows about.
func SupportedStrategies() []ParsingStrategy {
	return []ParsingStrategy{
		StrategyAuto,
		StrategyPDFText,
		StrategyUniversal,
		StrategyOCR,
		StrategyRemote,
	}
}

// IsValidStrategy checks if the given strategy is supported.
func IsValidStrategy(strategy ParsingStrategy) bool {
	for _, s := range SupportedStrategies() {
		if s == strategy {
			return true
		}
	}
	return false
}

// ParserConfiguration controls how documents are parsed.
type ParserConfiguration struct {
	// Strategy selects the parsing backend, or StrategyAuto to resolve per file
	Strategy ParsingStrategy `json:"strategy" yaml:"strategy"`

	// EnableOCR allows OCR-capable strategies to be preferred during resolution
	EnableOCR bool `json:"enable_ocr" yaml:"enable_ocr"`

	// OCRLanguages lists tesseract language codes for OCR recognition
	OCRLanguages []string `json:"ocr_languages" yaml:"ocr_languages"`

	// ExtractTables enables table structure extraction
	ExtractTables bool `json:"extract_tables" yaml:"extract_tables"`

	// ExtractImages enables image element extraction
	ExtractImages bool `json:"extract_images" yaml:"extract_images"`

	// ExtractMetadata enables document metadata extraction
	ExtractMetadata bool `json:"extract_metadata" yaml:"extract_metadata"`

	// PreserveFormatting keeps whitespace and layout hints in extracted text
	PreserveFormatting bool `json:"preserve_formatting" yaml:"preserve_formatting"`

	// ChunkSize is the target chunk size in characters for downstream chunking
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	// OverlapSize is the overlap between consecutive chunks in characters
	OverlapSize int `json:"overlap_size" yaml:"overlap_size"`

	// QualityThreshold is the minimum acceptable quality score for results
	QualityThreshold float64 `json:"quality_threshold" yaml:"quality_threshold"`

	// TimeoutSeconds bounds a single parse operation
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`

	// MaxFileSize bounds input file size in bytes
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// CustomOptions carries strategy-specific options
	CustomOptions map[string]interface{} `json:"custom_options" yaml:"custom_options"`
}

// NewParserConfiguration returns a configuration with framework defaults.
func NewParserConfiguration() *ParserConfiguration {
	return &ParserConfiguration{
		Strategy:           StrategyAuto,
		EnableOCR:          false,
		OCRLanguages:       []string{"eng"},
		ExtractTables:      true,
		ExtractImages:      true,
		ExtractMetadata:    true,
		PreserveFormatting: true,
		ChunkSize:          1000,
		OverlapSize:        200,
		QualityThreshold:   0.8,
		TimeoutSeconds:     300,
		MaxFileSize:        100 * 1024 * 1024,
		CustomOptions:      make(map[string]interface{}),
	}
}

// Clone returns a deep copy of the configuration.
func (c *ParserConfiguration) Clone() *ParserConfiguration {
	clone := *c
	clone.OCRLanguages = append([]string(nil), c.OCRLanguages...)
	clone.CustomOptions = make(map[string]interface{}, len(c.CustomOptions))
	for k, v := range c.CustomOptions {
		clone.CustomOptions[k] = v
	}
	return &clone
}

// Merge overlays another configuration onto this one and returns the result.
// Only fields where other differs from a fresh default configuration are
// taken from other; everything else keeps the receiver's value. Neither
// input is modified.
func (c *ParserConfiguration) Merge(other *ParserConfiguration) *ParserConfiguration {
	merged := c.Clone()
	if other == nil {
		return merged
	}

	defaults := NewParserConfiguration()

	if other.Strategy != defaults.Strategy {
		merged.Strategy = other.Strategy
	}
	if other.EnableOCR != defaults.EnableOCR {
		merged.EnableOCR = other.EnableOCR
	}
	if !stringSlicesEqual(other.OCRLanguages, defaults.OCRLanguages) {
		merged.OCRLanguages = append([]string(nil), other.OCRLanguages...)
	}
	if other.ExtractTables != defaults.ExtractTables {
		merged.ExtractTables = other.ExtractTables
	}
	if other.ExtractImages != defaults.ExtractImages {
		merged.ExtractImages = other.ExtractImages
	}
	if other.ExtractMetadata != defaults.ExtractMetadata {
		merged.ExtractMetadata = other.ExtractMetadata
	}
	if other.PreserveFormatting != defaults.PreserveFormatting {
		merged.PreserveFormatting = other.PreserveFormatting
	}
	if other.ChunkSize != defaults.ChunkSize {
		merged.ChunkSize = other.ChunkSize
	}
	if other.OverlapSize != defaults.OverlapSize {
		merged.OverlapSize = other.OverlapSize
	}
	if other.QualityThreshold != defaults.QualityThreshold {
		merged.QualityThreshold = other.QualityThreshold
	}
	if other.TimeoutSeconds != defaults.TimeoutSeconds {
		merged.TimeoutSeconds = other.TimeoutSeconds
	}
	if other.MaxFileSize != defaults.MaxFileSize {
		merged.MaxFileSize = other.MaxFileSize
	}
	if len(other.CustomOptions) > 0 {
		merged.CustomOptions = make(map[string]interface{}, len(other.CustomOptions))
		for k, v := range other.CustomOptions {
			merged.CustomOptions[k] = v
		}
	}

	return merged
}

// Validate checks the configuration for invalid values.
func (c *ParserConfiguration) Validate() error {
	if !IsValidStrategy(c.Strategy) {
		return fmt.Errorf("invalid parsing strategy: %s", c.Strategy)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.OverlapSize < 0 {
		return fmt.Errorf("overlap_size cannot be negative, got %d", c.OverlapSize)
	}
	if c.OverlapSize >= c.ChunkSize {
		return fmt.Errorf("overlap_size (%d) must be smaller than chunk_size (%d)", c.OverlapSize, c.ChunkSize)
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 1 {
		return fmt.Errorf("quality_threshold must be between 0 and 1, got %f", c.QualityThreshold)
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", c.TimeoutSeconds)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive, got %d", c.MaxFileSize)
	}
	if c.EnableOCR && len(c.OCRLanguages) == 0 {
		return fmt.Errorf("ocr_languages cannot be empty when OCR is enabled")
	}
	return nil
}

// Timeout returns the parse timeout as a duration.
func (c *ParserConfiguration) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ConfigurationOverrides is a sparse set of configuration fields. Nil
// pointer fields and empty collections are not applied.
type ConfigurationOverrides struct {
	Strategy           *ParsingStrategy       `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	EnableOCR          *bool                  `json:"enable_ocr,omitempty" yaml:"enable_ocr,omitempty"`
	OCRLanguages       []string               `json:"ocr_languages,omitempty" yaml:"ocr_languages,omitempty"`
	ExtractTables      *bool                  `json:"extract_tables,omitempty" yaml:"extract_tables,omitempty"`
	ExtractImages      *bool                  `json:"extract_images,omitempty" yaml:"extract_images,omitempty"`
	ExtractMetadata    *bool                  `json:"extract_metadata,omitempty" yaml:"extract_metadata,omitempty"`
	PreserveFormatting *bool                  `json:"preserve_formatting,omitempty" yaml:"preserve_formatting,omitempty"`
	ChunkSize          *int                   `json:"chunk_size,omitempty" yaml:"chunk_size,omitempty"`
	OverlapSize        *int                   `json:"overlap_size,omitempty" yaml:"overlap_size,omitempty"`
	QualityThreshold   *float64               `json:"quality_threshold,omitempty" yaml:"quality_threshold,omitempty"`
	TimeoutSeconds     *int                   `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	MaxFileSize        *int64                 `json:"max_file_size,omitempty" yaml:"max_file_size,omitempty"`
	CustomOptions      map[string]interface{} `json:"custom_options,omitempty" yaml:"custom_options,omitempty"`
}

// Apply overlays the overrides onto a base configuration and returns the
// result. The base is not modified.
func (o *ConfigurationOverrides) Apply(base *ParserConfiguration) *ParserConfiguration {
	if base == nil {
		base = NewParserConfiguration()
	}
	result := base.Clone()
	if o == nil {
		return result
	}

	if o.Strategy != nil {
		result.Strategy = *o.Strategy
	}
	if o.EnableOCR != nil {
		result.EnableOCR = *o.EnableOCR
	}
	if len(o.OCRLanguages) > 0 {
		result.OCRLanguages = append([]string(nil), o.OCRLanguages...)
	}
	if o.ExtractTables != nil {
		result.ExtractTables = *o.ExtractTables
	}
	if o.ExtractImages != nil {
		result.ExtractImages = *o.ExtractImages
	}
	if o.ExtractMetadata != nil {
		result.ExtractMetadata = *o.ExtractMetadata
	}
	if o.PreserveFormatting != nil {
		result.PreserveFormatting = *o.PreserveFormatting
	}
	if o.ChunkSize != nil {
		result.ChunkSize = *o.ChunkSize
	}
	if o.OverlapSize != nil {
		result.OverlapSize = *o.OverlapSize
	}
	if o.QualityThreshold != nil {
		result.QualityThreshold = *o.QualityThreshold
	}
	if o.TimeoutSeconds != nil {
		result.TimeoutSeconds = *o.TimeoutSeconds
	}
	if o.MaxFileSize != nil {
		result.MaxFileSize = *o.MaxFileSize
	}
	for k, v := range o.CustomOptions {
		result.CustomOptions[k] = v
	}

	return result
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
