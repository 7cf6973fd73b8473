package parsers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/structdoc/structdoc/pkg/elements"
	"github.com/structdoc/structdoc/pkg/logger"
)

// fallbackQualityScore is reported to legacy consumers when a result
// carries no quality assessment.
const fallbackQualityScore = 0.8

// ExtractedTextElement is the flat legacy shape for text-like elements.
type ExtractedTextElement struct {
	Type       string                 `json:"type"`
	Text       string                 `json:"text"`
	Page       int                    `json:"page,omitempty"`
	BBox       []float64              `json:"bbox,omitempty"`
	Confidence float64                `json:"confidence"`
	Style      map[string]interface{} `json:"style,omitempty"`
}

// ExtractedTable is the flat legacy shape for tables.
type ExtractedTable struct {
	HTML       string    `json:"html"`
	Text       string    `json:"text"`
	PageNumber int       `json:"page_number,omitempty"`
	BBox       []float64 `json:"bbox,omitempty"`
	Confidence float64   `json:"confidence"`
	Rows       int       `json:"rows,omitempty"`
	Columns    int       `json:"columns,omitempty"`
}

// ExtractedImage is the flat legacy shape for images and figures. Data
// carries the base64-encoded payload when the element holds one.
type ExtractedImage struct {
	PageNumber int       `json:"page_number,omitempty"`
	BBox       []float64 `json:"bbox,omitempty"`
	AltText    string    `json:"alt_text,omitempty"`
	Confidence float64   `json:"confidence"`
	Data       string    `json:"data,omitempty"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
}

// ExtractedContent is the legacy bundle consumed by pre-framework callers.
type ExtractedContent struct {
	TextElements   []ExtractedTextElement `json:"text_elements"`
	Tables         []ExtractedTable       `json:"tables"`
	Images         []ExtractedImage       `json:"images"`
	Metadata       map[string]interface{} `json:"metadata"`
	ExtractionTime float64                `json:"extraction_time"`
	QualityScore   float64                `json:"quality_score"`
}

// PageAnalysis is the per-page summary record used by legacy page views.
type PageAnalysis struct {
	PageNumber   int     `json:"page_number"`
	TextElements int     `json:"text_elements"`
	TableCount   int     `json:"table_count"`
	ImageCount   int     `json:"image_count"`
	QualityScore float64 `json:"quality_score"`
}

// ServiceStats tracks integration-level parsing statistics.
type ServiceStats struct {
	TotalDocumentsParsed  int64         `json:"total_documents_parsed"`
	TotalElementsProduced int64         `json:"total_elements_produced"`
	TotalParseTime        time.Duration `json:"total_parse_time"`
	AverageParseTime      time.Duration `json:"average_parse_time"`
	ErrorCount            int64         `json:"error_count"`

	// StrategyUsage counts parses per strategy
	StrategyUsage map[string]int64 `json:"strategy_usage"`
}

// ParserIntegration bridges the typed element model and the flat shapes
// that pre-framework callers consume. Parse failures never propagate as
// panics or errors; callers get nil and a log entry.
type ParserIntegration struct {
	factory *Factory
	config  *ParserConfiguration
	logger  logger.Logger

	stats      *ServiceStats
	statsMutex sync.RWMutex
}

// NewParserIntegration creates the integration adapter. A nil factory gets
// the default registry; a nil config gets framework defaults.
func NewParserIntegration(factory *Factory, config *ParserConfiguration, log logger.Logger) *ParserIntegration {
	if log == nil {
		log = logger.New()
	}
	if factory == nil {
		factory = NewDefaultFactory(log)
	}
	if config == nil {
		config = NewParserConfiguration()
	}
	return &ParserIntegration{
		factory: factory,
		config:  config,
		logger:  log,
		stats: &ServiceStats{
			StrategyUsage: make(map[string]int64),
		},
	}
}

// Factory exposes the underlying parser factory.
func (pi *ParserIntegration) Factory() *Factory {
	return pi.factory
}

// ParseWithFramework resolves a parser for the file and runs it. Any
// failure, including a missing parser or a panicking parser, is logged and
// reported as nil.
func (pi *ParserIntegration) ParseWithFramework(ctx context.Context, filePath string) *ParseResult {
	return pi.ParseWithConfig(ctx, filePath, pi.config)
}

// ParseWithConfig is ParseWithFramework with a per-call configuration for
// callers that carry request-scoped overrides. A nil config falls back to
// the integration's own.
func (pi *ParserIntegration) ParseWithConfig(ctx context.Context, filePath string, config *ParserConfiguration) *ParseResult {
	if config == nil {
		config = pi.config
	}
	parser := pi.factory.CreateParser(filePath, config)
	if parser == nil {
		pi.logger.Warn("no parser available for file", map[string]interface{}{
			"file": filePath,
		})
		pi.updateStats(func(stats *ServiceStats) {
			stats.ErrorCount++
		})
		return nil
	}

	result, err := pi.runParser(ctx, parser, filePath)
	if err != nil || result == nil {
		pi.logger.Error("framework parse failed", err, map[string]interface{}{
			"file":     filePath,
			"strategy": string(parser.Strategy()),
		})
		pi.updateStats(func(stats *ServiceStats) {
			stats.ErrorCount++
		})
		return nil
	}

	pi.recordParse(result)
	return result
}

// runParser invokes the parser with a panic guard so a misbehaving
// implementation cannot take the caller down.
func (pi *ParserIntegration) runParser(ctx context.Context, parser DocumentParser, filePath string) (result *ParseResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("parser panicked: %v", r)
		}
	}()
	return parser.Parse(ctx, filePath)
}

// ParseBatch parses multiple files concurrently. Files that fail are
// logged and omitted from the returned map.
func (pi *ParserIntegration) ParseBatch(ctx context.Context, filePaths []string, concurrency int) map[string]*ParseResult {
	results := make(map[string]*ParseResult)
	if len(filePaths) == 0 {
		return results
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	type parseOutcome struct {
		filePath string
		result   *ParseResult
	}

	jobs := make(chan string, len(filePaths))
	outcomes := make(chan parseOutcome, len(filePaths))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for filePath := range jobs {
				outcomes <- parseOutcome{
					filePath: filePath,
					result:   pi.ParseWithFramework(ctx, filePath),
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, filePath := range filePaths {
			jobs <- filePath
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for outcome := range outcomes {
		if outcome.result == nil {
			continue
		}
		results[outcome.filePath] = outcome.result
	}
	return results
}

// ConvertToExtractedContent flattens a result into the legacy bundle.
// Elements that fail to convert are logged and skipped so one bad element
// cannot abort the whole conversion.
func (pi *ParserIntegration) ConvertToExtractedContent(result *ParseResult) *ExtractedContent {
	if result == nil {
		pi.logger.Warn("cannot convert nil parse result")
		return nil
	}

	content := &ExtractedContent{
		TextElements:   []ExtractedTextElement{},
		Tables:         []ExtractedTable{},
		Images:         []ExtractedImage{},
		Metadata:       pi.legacyMetadata(result),
		ExtractionTime: result.ProcessingTime.Seconds(),
		QualityScore:   fallbackQualityScore,
	}
	if result.Quality != nil {
		content.QualityScore = result.Quality.OverallScore
	}

	for _, el := range result.Elements {
		if el == nil {
			continue
		}
		if err := pi.convertElement(content, el); err != nil {
			pi.logger.Warn("skipping unconvertible element", map[string]interface{}{
				"element_id": el.GetID(),
				"type":       string(el.Type()),
				"error":      err.Error(),
			})
		}
	}
	return content
}

// convertElement routes one element into its legacy bucket. Panics are
// converted to errors so the caller's partial-success policy holds.
func (pi *ParserIntegration) convertElement(content *ExtractedContent, el elements.Element) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("conversion panicked: %v", r)
		}
	}()

	switch el.Type() {
	case elements.TypeText, elements.TypeHeading, elements.TypeParagraph, elements.TypeList:
		content.TextElements = append(content.TextElements, pi.convertTextElement(el))
	case elements.TypeTable:
		table, convErr := pi.convertTable(el)
		if convErr != nil {
			return convErr
		}
		content.Tables = append(content.Tables, table)
	case elements.TypeImage, elements.TypeFigure:
		image, convErr := pi.convertImage(el)
		if convErr != nil {
			return convErr
		}
		content.Images = append(content.Images, image)
	default:
		pi.logger.Debug("element type has no legacy bucket", map[string]interface{}{
			"element_id": el.GetID(),
			"type":       string(el.Type()),
		})
	}
	return nil
}

func (pi *ParserIntegration) convertTextElement(el elements.Element) ExtractedTextElement {
	meta := el.GetMetadata()
	converted := ExtractedTextElement{
		Type:       string(el.Type()),
		Text:       el.GetText(),
		BBox:       bboxTuple(el.GetBBox()),
		Confidence: meta.Confidence,
	}
	if bbox := el.GetBBox(); bbox != nil {
		converted.Page = bbox.Page
	}
	if len(meta.Style) > 0 {
		converted.Style = make(map[string]interface{}, len(meta.Style))
		for k, v := range meta.Style {
			converted.Style[k] = v
		}
	}
	return converted
}

func (pi *ParserIntegration) convertTable(el elements.Element) (ExtractedTable, error) {
	meta := el.GetMetadata()
	converted := ExtractedTable{
		Text:       el.GetText(),
		BBox:       bboxTuple(el.GetBBox()),
		Confidence: meta.Confidence,
	}
	if bbox := el.GetBBox(); bbox != nil {
		converted.PageNumber = bbox.Page
	}
	if table, ok := el.(*elements.TableElement); ok {
		converted.HTML = table.ToHTML()
		converted.Rows = table.RowCount()
		converted.Columns = table.ColumnCount()
	}
	return converted, nil
}

func (pi *ParserIntegration) convertImage(el elements.Element) (ExtractedImage, error) {
	if valid, reason := el.Validate(); !valid {
		return ExtractedImage{}, fmt.Errorf("invalid image element: %s", reason)
	}

	meta := el.GetMetadata()
	converted := ExtractedImage{
		BBox:       bboxTuple(el.GetBBox()),
		Confidence: meta.Confidence,
	}
	if bbox := el.GetBBox(); bbox != nil {
		converted.PageNumber = bbox.Page
	}

	var image *elements.ImageElement
	switch typed := el.(type) {
	case *elements.ImageElement:
		image = typed
		converted.AltText = typed.AltText
	case *elements.FigureElement:
		image = typed.Image
		converted.AltText = typed.GetText()
		if image != nil && converted.BBox == nil {
			converted.BBox = bboxTuple(image.GetBBox())
			if bbox := image.GetBBox(); bbox != nil {
				converted.PageNumber = bbox.Page
			}
		}
	default:
		return ExtractedImage{}, fmt.Errorf("unexpected image element %T", el)
	}

	if image != nil {
		converted.Width = image.Width
		converted.Height = image.Height
		if image.HasData() {
			converted.Data = image.Base64()
		}
		if converted.AltText == "" {
			converted.AltText = image.AltText
		}
	}
	return converted, nil
}

// EnhancePageAnalyses recounts per-page element types and blends each
// page's quality score with the mean element confidence on that page.
// Elements without a bounding box are excluded.
func (pi *ParserIntegration) EnhancePageAnalyses(analyses []PageAnalysis, result *ParseResult) []PageAnalysis {
	if result == nil || len(result.Elements) == 0 {
		return analyses
	}

	type pageStats struct {
		textCount  int
		tableCount int
		imageCount int
		confSum    float64
		confCount  int
	}
	byPage := make(map[int]*pageStats)

	for _, el := range result.Elements {
		if el == nil {
			continue
		}
		bbox := el.GetBBox()
		if bbox == nil {
			continue
		}
		stats := byPage[bbox.Page]
		if stats == nil {
			stats = &pageStats{}
			byPage[bbox.Page] = stats
		}
		switch el.Type() {
		case elements.TypeText, elements.TypeHeading, elements.TypeParagraph, elements.TypeList:
			stats.textCount++
		case elements.TypeTable:
			stats.tableCount++
		case elements.TypeImage, elements.TypeFigure:
			stats.imageCount++
		}
		stats.confSum += el.GetMetadata().Confidence
		stats.confCount++
	}

	for i := range analyses {
		stats := byPage[analyses[i].PageNumber]
		if stats == nil {
			continue
		}
		analyses[i].TextElements = stats.textCount
		analyses[i].TableCount = stats.tableCount
		analyses[i].ImageCount = stats.imageCount
		if stats.confCount > 0 {
			avg := stats.confSum / float64(stats.confCount)
			analyses[i].QualityScore = (analyses[i].QualityScore + avg) / 2
		}
	}
	return analyses
}

// legacyMetadata builds the flat metadata object from the document record
// and result-level facts.
func (pi *ParserIntegration) legacyMetadata(result *ParseResult) map[string]interface{} {
	metadata := make(map[string]interface{})
	metadata["strategy_used"] = string(result.StrategyUsed)

	if result.Document != nil {
		metadata["document_id"] = result.Document.ID
		metadata["file_path"] = result.Document.FilePath
		if dm := result.Document.Metadata; dm != nil {
			if dm.Title != "" {
				metadata["title"] = dm.Title
			}
			if dm.Author != "" {
				metadata["author"] = dm.Author
			}
			if dm.Subject != "" {
				metadata["subject"] = dm.Subject
			}
			if dm.Language != "" {
				metadata["language"] = dm.Language
			}
			if dm.MimeType != "" {
				metadata["mime_type"] = dm.MimeType
			}
			if dm.FileExtension != "" {
				metadata["file_extension"] = dm.FileExtension
			}
			if dm.FileSize > 0 {
				metadata["file_size"] = dm.FileSize
			}
			if dm.PageCount > 0 {
				metadata["page_count"] = dm.PageCount
			}
			if dm.WordCount > 0 {
				metadata["word_count"] = dm.WordCount
			}
			if dm.CharacterCount > 0 {
				metadata["character_count"] = dm.CharacterCount
			}
			if len(dm.Keywords) > 0 {
				metadata["keywords"] = append([]string(nil), dm.Keywords...)
			}
			if dm.CreatedAt != nil {
				metadata["created_at"] = dm.CreatedAt.Format(time.RFC3339)
			}
			if dm.ModifiedAt != nil {
				metadata["modified_at"] = dm.ModifiedAt.Format(time.RFC3339)
			}
			if len(dm.Custom) > 0 {
				custom := make(map[string]interface{}, len(dm.Custom))
				for k, v := range dm.Custom {
					custom[k] = v
				}
				metadata["custom"] = custom
			}
		}
	}
	for k, v := range result.Metadata {
		metadata[k] = v
	}
	return metadata
}

// GetStats returns a copy of the current statistics.
func (pi *ParserIntegration) GetStats() *ServiceStats {
	pi.statsMutex.RLock()
	defer pi.statsMutex.RUnlock()

	statsCopy := *pi.stats
	statsCopy.StrategyUsage = make(map[string]int64, len(pi.stats.StrategyUsage))
	for k, v := range pi.stats.StrategyUsage {
		statsCopy.StrategyUsage[k] = v
	}
	return &statsCopy
}

// ResetStats clears the statistics.
func (pi *ParserIntegration) ResetStats() {
	pi.statsMutex.Lock()
	defer pi.statsMutex.Unlock()

	pi.stats = &ServiceStats{
		StrategyUsage: make(map[string]int64),
	}
}

// updateStats applies a mutation under the stats lock.
func (pi *ParserIntegration) updateStats(updateFunc func(*ServiceStats)) {
	pi.statsMutex.Lock()
	defer pi.statsMutex.Unlock()
	updateFunc(pi.stats)
}

// recordParse folds a successful parse into the statistics.
func (pi *ParserIntegration) recordParse(result *ParseResult) {
	pi.updateStats(func(stats *ServiceStats) {
		stats.TotalDocumentsParsed++
		stats.TotalElementsProduced += int64(len(result.Elements))
		stats.TotalParseTime += result.ProcessingTime
		if stats.TotalDocumentsParsed > 0 {
			stats.AverageParseTime = stats.TotalParseTime / time.Duration(stats.TotalDocumentsParsed)
		}
		stats.StrategyUsage[string(result.StrategyUsed)]++
	})
}

// bboxTuple renders a bounding box as the legacy (x0, y0, x1, y1) tuple.
func bboxTuple(bbox *elements.BoundingBox) []float64 {
	if bbox == nil {
		return nil
	}
	return []float64{bbox.X0, bbox.Y0, bbox.X1, bbox.Y1}
}
