package parsers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structdoc/structdoc/pkg/elements"
	"github.com/structdoc/structdoc/pkg/logger"
)

func newTestIntegration(rec *logger.Recorder) *ParserIntegration {
	return NewParserIntegration(NewDefaultFactory(rec), nil, rec)
}

// twoPageResult builds a parsed document spanning two pages: a heading and
// a paragraph on page one, a two by two header table on page two.
func twoPageResult() *ParseResult {
	result := NewParseResult(StrategyPDFText)

	heading := elements.NewHeadingElement("Quarterly Report", 1)
	heading.BBox = elements.NewBoundingBox(72, 700, 400, 724, 1)
	heading.SetConfidence(0.9)
	result.AddElement(heading)

	para := elements.NewParagraphElement("Revenue grew steadily across all regions.")
	para.BBox = elements.NewBoundingBox(72, 640, 500, 690, 1)
	para.SetConfidence(0.9)
	result.AddElement(para)

	header := elements.NewTableRow()
	for col, name := range []string{"Region", "Revenue"} {
		cell := elements.NewTableCell(name, 0, col)
		cell.IsHeader = true
		header.AddCell(cell)
	}
	body := elements.NewTableRow()
	body.AddCell(elements.NewTableCell("east", 1, 0))
	body.AddCell(elements.NewTableCell("1200", 1, 1))
	table := elements.NewTableElement([]*elements.TableRow{header, body})
	table.BBox = elements.NewBoundingBox(72, 400, 500, 600, 2)
	table.SetConfidence(0.95)
	result.AddElement(table)

	result.ProcessingTime = 1500 * time.Millisecond
	return result
}

func TestConvertToExtractedContent(t *testing.T) {
	t.Run("NilResult", func(t *testing.T) {
		rec := logger.NewRecorder()
		pi := newTestIntegration(rec)

		assert.Nil(t, pi.ConvertToExtractedContent(nil))
		assert.True(t, rec.HasMessage(logger.LevelWarn, "cannot convert nil parse result"))
	})

	t.Run("TextBucket", func(t *testing.T) {
		pi := newTestIntegration(logger.NewRecorder())
		result := NewParseResult(StrategyUniversal)

		heading := elements.NewHeadingElement("Overview", 2)
		heading.BBox = elements.NewBoundingBox(10, 20, 200, 40, 3)
		heading.SetConfidence(0.85)
		heading.GetMetadata().Style = map[string]interface{}{"font_size": 18.0}
		result.AddElement(heading)
		result.AddElement(elements.NewParagraphElement("Plain body text."))
		result.AddElement(elements.NewListElement([]string{"one", "two"}, false))

		content := pi.ConvertToExtractedContent(result)
		require.NotNil(t, content)
		require.Len(t, content.TextElements, 3)
		assert.Empty(t, content.Tables)
		assert.Empty(t, content.Images)

		first := content.TextElements[0]
		assert.Equal(t, "heading", first.Type)
		assert.Equal(t, "Overview", first.Text)
		assert.Equal(t, 3, first.Page)
		assert.Equal(t, []float64{10, 20, 200, 40}, first.BBox)
		assert.Equal(t, 0.85, first.Confidence)
		assert.Equal(t, map[string]interface{}{"font_size": 18.0}, first.Style)

		second := content.TextElements[1]
		assert.Equal(t, "paragraph", second.Type)
		assert.Zero(t, second.Page)
		assert.Nil(t, second.BBox)
		assert.Nil(t, second.Style)
	})

	t.Run("TableBucket", func(t *testing.T) {
		pi := newTestIntegration(logger.NewRecorder())
		result := twoPageResult()

		content := pi.ConvertToExtractedContent(result)
		require.NotNil(t, content)
		require.Len(t, content.Tables, 1)

		table := content.Tables[0]
		assert.Contains(t, table.HTML, "<table>")
		assert.Contains(t, table.HTML, "Region")
		assert.NotEmpty(t, table.Text)
		assert.Equal(t, 2, table.PageNumber)
		assert.Equal(t, 2, table.Rows)
		assert.Equal(t, 2, table.Columns)
		assert.Equal(t, 0.95, table.Confidence)
	})

	t.Run("ImageBucket", func(t *testing.T) {
		pi := newTestIntegration(logger.NewRecorder())
		result := NewParseResult(StrategyUniversal)

		image := elements.NewImageElementFromData([]byte{0x89, 0x50, 0x4e, 0x47}, "png")
		image.AltText = "logo"
		image.Width = 64
		image.Height = 32
		image.BBox = elements.NewBoundingBox(0, 0, 64, 32, 1)
		result.AddElement(image)

		figImage := elements.NewImageElementFromPath("diagrams/arch.png", "png")
		figImage.BBox = elements.NewBoundingBox(10, 10, 300, 200, 4)
		figure := elements.NewFigureElement(figImage, "System diagram", "2")
		result.AddElement(figure)

		content := pi.ConvertToExtractedContent(result)
		require.NotNil(t, content)
		require.Len(t, content.Images, 2)

		direct := content.Images[0]
		assert.Equal(t, "logo", direct.AltText)
		assert.Equal(t, 1, direct.PageNumber)
		assert.Equal(t, 64, direct.Width)
		assert.Equal(t, 32, direct.Height)
		assert.NotEmpty(t, direct.Data)

		fig := content.Images[1]
		assert.Equal(t, "Figure 2: System diagram", fig.AltText)
		assert.Equal(t, 4, fig.PageNumber, "figure should inherit the image bbox")
		assert.Equal(t, []float64{10, 10, 300, 200}, fig.BBox)
		assert.Empty(t, fig.Data)
	})

	t.Run("CorruptImageSkippedTableSurvives", func(t *testing.T) {
		rec := logger.NewRecorder()
		pi := newTestIntegration(rec)
		result := twoPageResult()
		result.AddElement(elements.NewImageElementFromData(nil, "png"))

		content := pi.ConvertToExtractedContent(result)
		require.NotNil(t, content)
		assert.Empty(t, content.Images)
		assert.Len(t, content.Tables, 1)
		assert.Len(t, content.TextElements, 2)
		assert.True(t, rec.HasMessage(logger.LevelWarn, "skipping unconvertible element"))
	})

	t.Run("UnbucketedTypeIgnored", func(t *testing.T) {
		rec := logger.NewRecorder()
		pi := newTestIntegration(rec)
		result := NewParseResult(StrategyUniversal)
		result.AddElement(elements.NewCodeElement("make build", "sh"))

		content := pi.ConvertToExtractedContent(result)
		require.NotNil(t, content)
		assert.Empty(t, content.TextElements)
		assert.Empty(t, content.Tables)
		assert.Empty(t, content.Images)
		assert.True(t, rec.HasMessage(logger.LevelDebug, "no legacy bucket"))
	})

	t.Run("QualityScoreFallback", func(t *testing.T) {
		pi := newTestIntegration(logger.NewRecorder())

		bare := NewParseResult(StrategyUniversal)
		content := pi.ConvertToExtractedContent(bare)
		require.NotNil(t, content)
		assert.Equal(t, fallbackQualityScore, content.QualityScore)

		assessed := NewParseResult(StrategyUniversal)
		assessed.Quality = NewParseQuality()
		assessed.Quality.OverallScore = 0.93
		content = pi.ConvertToExtractedContent(assessed)
		assert.Equal(t, 0.93, content.QualityScore)
	})

	t.Run("ExtractionTimeInSeconds", func(t *testing.T) {
		pi := newTestIntegration(logger.NewRecorder())
		content := pi.ConvertToExtractedContent(twoPageResult())
		require.NotNil(t, content)
		assert.Equal(t, 1.5, content.ExtractionTime)
	})
}

func TestLegacyMetadata(t *testing.T) {
	pi := newTestIntegration(logger.NewRecorder())

	result := NewParseResult(StrategyPDFText)
	result.Document = NewDocument("/data/report.pdf")
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	meta := NewDocumentMetadata()
	meta.Title = "Annual Report"
	meta.Keywords = []string{"finance", "q4"}
	meta.CreatedAt = &created
	meta.Custom["origin"] = "upload"
	result.Document.Metadata = meta
	result.Metadata["batch_id"] = "b-17"

	content := pi.ConvertToExtractedContent(result)
	require.NotNil(t, content)

	flat := content.Metadata
	assert.Equal(t, "pdf_text", flat["strategy_used"])
	assert.Equal(t, result.Document.ID, flat["document_id"])
	assert.Equal(t, "/data/report.pdf", flat["file_path"])
	assert.Equal(t, "Annual Report", flat["title"])
	assert.Equal(t, []string{"finance", "q4"}, flat["keywords"])
	assert.Equal(t, "2024-03-01T12:00:00Z", flat["created_at"])
	assert.Equal(t, map[string]interface{}{"origin": "upload"}, flat["custom"])
	assert.Equal(t, "b-17", flat["batch_id"])

	_, hasAuthor := flat["author"]
	assert.False(t, hasAuthor, "empty fields should be omitted")
}

func TestEnhancePageAnalyses(t *testing.T) {
	t.Run("RecountsAndBlends", func(t *testing.T) {
		pi := newTestIntegration(logger.NewRecorder())
		result := twoPageResult()
		result.AddElement(elements.NewParagraphElement("floating note without location"))

		analyses := []PageAnalysis{
			{PageNumber: 1, QualityScore: 0.5},
			{PageNumber: 2, QualityScore: 0.8},
			{PageNumber: 3, QualityScore: 0.4},
		}

		enhanced := pi.EnhancePageAnalyses(analyses, result)
		require.Len(t, enhanced, 3)

		assert.Equal(t, 2, enhanced[0].TextElements)
		assert.Equal(t, 0, enhanced[0].TableCount)
		assert.InDelta(t, (0.5+0.9)/2, enhanced[0].QualityScore, 1e-9)

		assert.Equal(t, 0, enhanced[1].TextElements)
		assert.Equal(t, 1, enhanced[1].TableCount)
		assert.InDelta(t, (0.8+0.95)/2, enhanced[1].QualityScore, 1e-9)

		assert.Equal(t, 0, enhanced[2].TextElements)
		assert.Equal(t, 0.4, enhanced[2].QualityScore, "pages without elements stay untouched")
	})

	t.Run("NilResultLeavesAnalyses", func(t *testing.T) {
		pi := newTestIntegration(logger.NewRecorder())
		analyses := []PageAnalysis{{PageNumber: 1, QualityScore: 0.6}}

		enhanced := pi.EnhancePageAnalyses(analyses, nil)
		require.Len(t, enhanced, 1)
		assert.Equal(t, 0.6, enhanced[0].QualityScore)
	})
}

func TestEndToEndDocumentFlow(t *testing.T) {
	pi := newTestIntegration(logger.NewRecorder())
	result := twoPageResult()
	result.Quality = AssessQuality(result, DefaultQualityWeights())

	require.True(t, result.Success)
	require.GreaterOrEqual(t, len(result.Elements), 3)
	assert.True(t, result.Quality.IsAcceptable())
	assert.Equal(t, result.Quality.OverallScore >= DefaultAcceptableScore, result.Quality.IsAcceptable())

	content := pi.ConvertToExtractedContent(result)
	require.NotNil(t, content)
	assert.Len(t, content.TextElements, 2)
	assert.Len(t, content.Tables, 1)
	assert.Equal(t, result.Quality.OverallScore, content.QualityScore)
}

type panicParser struct {
	BaseDocumentParser
}

func (p *panicParser) Parse(ctx context.Context, filePath string) (*ParseResult, error) {
	panic("exploding parser")
}

func TestParseWithFramework(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		rec := logger.NewRecorder()
		pi := newTestIntegration(rec)
		path := writeTempFile(t, "notes.txt", "A few words of content.")

		result := pi.ParseWithFramework(context.Background(), path)
		require.NotNil(t, result)
		assert.True(t, result.Success)
		assert.NotEmpty(t, result.Elements)

		stats := pi.GetStats()
		assert.Equal(t, int64(1), stats.TotalDocumentsParsed)
		assert.Equal(t, int64(1), stats.StrategyUsage["universal"])
		assert.Positive(t, stats.TotalElementsProduced)
	})

	t.Run("NoParserAvailable", func(t *testing.T) {
		rec := logger.NewRecorder()
		pi := NewParserIntegration(NewFactory(rec), nil, rec)

		result := pi.ParseWithFramework(context.Background(), "orphan.txt")
		assert.Nil(t, result)
		assert.True(t, rec.HasMessage(logger.LevelWarn, "no parser available for file"))
		assert.Equal(t, int64(1), pi.GetStats().ErrorCount)
	})

	t.Run("PanickingParserContained", func(t *testing.T) {
		rec := logger.NewRecorder()
		factory := NewFactory(rec)
		require.NoError(t, factory.Register(func(config *ParserConfiguration, log logger.Logger) DocumentParser {
			return &panicParser{
				BaseDocumentParser: NewBaseDocumentParser(StrategyUniversal, nil, config, log),
			}
		}))
		pi := NewParserIntegration(factory, nil, rec)

		result := pi.ParseWithFramework(context.Background(), "anything.txt")
		assert.Nil(t, result)
		assert.True(t, rec.HasMessage(logger.LevelError, "framework parse failed"))
		assert.Equal(t, int64(1), pi.GetStats().ErrorCount)
	})
}

func TestParseBatch(t *testing.T) {
	t.Run("MixedOutcomes", func(t *testing.T) {
		pi := newTestIntegration(logger.NewRecorder())
		good := writeTempFile(t, "a.txt", "first document")
		alsoGood := writeTempFile(t, "b.txt", "second document")
		missing := "/nonexistent/c.txt"

		results := pi.ParseBatch(context.Background(), []string{good, alsoGood, missing}, 2)
		require.Len(t, results, 3)
		assert.True(t, results[good].Success)
		assert.True(t, results[alsoGood].Success)
		assert.False(t, results[missing].Success)

		assert.Equal(t, int64(3), pi.GetStats().TotalDocumentsParsed)
	})

	t.Run("DefaultConcurrency", func(t *testing.T) {
		pi := newTestIntegration(logger.NewRecorder())
		path := writeTempFile(t, "solo.txt", "content")

		results := pi.ParseBatch(context.Background(), []string{path}, 0)
		require.Len(t, results, 1)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		pi := newTestIntegration(logger.NewRecorder())
		assert.Empty(t, pi.ParseBatch(context.Background(), nil, 4))
	})

	t.Run("FailedFilesOmitted", func(t *testing.T) {
		rec := logger.NewRecorder()
		pi := NewParserIntegration(NewFactory(rec), nil, rec)

		results := pi.ParseBatch(context.Background(), []string{"a.txt", "b.txt"}, 2)
		assert.Empty(t, results)
	})
}

func TestIntegrationStats(t *testing.T) {
	pi := newTestIntegration(logger.NewRecorder())
	first := writeTempFile(t, "one.txt", "first file body")
	second := writeTempFile(t, "two.txt", "second file body")

	require.NotNil(t, pi.ParseWithFramework(context.Background(), first))
	require.NotNil(t, pi.ParseWithFramework(context.Background(), second))

	stats := pi.GetStats()
	assert.Equal(t, int64(2), stats.TotalDocumentsParsed)
	assert.Equal(t, int64(2), stats.StrategyUsage["universal"])
	assert.Equal(t, stats.TotalParseTime/2, stats.AverageParseTime)

	stats.StrategyUsage["universal"] = 99
	assert.Equal(t, int64(2), pi.GetStats().StrategyUsage["universal"], "returned stats are a copy")

	pi.ResetStats()
	fresh := pi.GetStats()
	assert.Zero(t, fresh.TotalDocumentsParsed)
	assert.Empty(t, fresh.StrategyUsage)
}
