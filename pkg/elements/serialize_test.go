package elements

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTrip pushes an element through its map form and back.
func roundTrip(t *testing.T, el Element) Element {
	t.Helper()
	restored, err := FromMap(el.ToMap())
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, el.GetID(), restored.GetID())
	assert.Equal(t, el.Type(), restored.Type())
	assert.Equal(t, el.GetText(), restored.GetText())
	assert.Equal(t, el.GetMetadata().ToMap(), restored.GetMetadata().ToMap())
	return restored
}

func TestRoundTripPerType(t *testing.T) {
	t.Run("Text", func(t *testing.T) {
		el := NewTextElement("plain run of text")
		el.SetConfidence(0.9)
		el.BBox = NewBoundingBox(1, 2, 3, 4, 1)
		restored := roundTrip(t, el)
		assert.Equal(t, el.GetBBox(), restored.GetBBox())
	})

	t.Run("TextLikeKindsKeepTheirType", func(t *testing.T) {
		footnote := NewTextElementWithType(TypeFootnote, "see appendix")
		restored := roundTrip(t, footnote)
		assert.Equal(t, TypeFootnote, restored.Type())

		caption := NewTextElementWithType(TypeCaption, "fig 1 caption")
		assert.Equal(t, TypeCaption, roundTrip(t, caption).Type())
	})

	t.Run("Heading", func(t *testing.T) {
		el := NewHeadingElement("Results", 3)
		restored := roundTrip(t, el).(*HeadingElement)
		assert.Equal(t, 3, restored.Level)
	})

	t.Run("Paragraph", func(t *testing.T) {
		el := NewParagraphElement("First sentence. Second one!")
		restored := roundTrip(t, el).(*ParagraphElement)
		assert.Equal(t, el.SentenceCount(), restored.SentenceCount())
		assert.Equal(t, el.WordCount(), restored.WordCount())
	})

	t.Run("List", func(t *testing.T) {
		el := NewListElement([]string{"one", "two", "three"}, true)
		restored := roundTrip(t, el).(*ListElement)
		assert.Equal(t, el.Items, restored.Items)
		assert.True(t, restored.Ordered)
	})

	t.Run("ImageWithData", func(t *testing.T) {
		el := NewImageElementFromData(pngStub, "png")
		el.Width, el.Height = 64, 48
		el.AltText = "chip logo"
		restored := roundTrip(t, el).(*ImageElement)
		assert.Equal(t, el.Data, restored.Data, "binary payload survives re-encoding")
		assert.Equal(t, el.Checksum(), restored.Checksum())
		assert.Equal(t, 64, restored.Width)
	})

	t.Run("ImageWithPath", func(t *testing.T) {
		el := NewImageElementFromPath("/data/scan.tiff", "tiff")
		restored := roundTrip(t, el).(*ImageElement)
		assert.Equal(t, "/data/scan.tiff", restored.Path)
		assert.False(t, restored.HasData())
	})

	t.Run("Figure", func(t *testing.T) {
		el := NewFigureElement(NewImageElementFromData(pngStub, "png"), "Throughput", "4.2")
		restored := roundTrip(t, el).(*FigureElement)
		require.NotNil(t, restored.Image)
		assert.Equal(t, el.Image.Checksum(), restored.Image.Checksum())
		assert.Equal(t, "4.2", restored.Number)
	})

	t.Run("Diagram", func(t *testing.T) {
		el := NewDiagramElement("sequence", map[string]interface{}{"actors": []interface{}{"ui", "core"}})
		el.Description = "login sequence"
		restored := roundTrip(t, el).(*DiagramElement)
		assert.Equal(t, "sequence", restored.DiagramType)
		assert.Equal(t, el.Data, restored.Data)
	})

	t.Run("Formula", func(t *testing.T) {
		el := NewFormulaElement(`\sum_{i=0}^n i`, FormulaLatex)
		el.DescribeVariable("n", "upper bound")
		restored := roundTrip(t, el).(*FormulaElement)
		assert.Equal(t, el.Variables, restored.Variables)
		assert.Equal(t, FormulaLatex, restored.Format)
	})

	t.Run("Code", func(t *testing.T) {
		el := NewCodeElement("print('hi')", "python")
		el.Filename = "hello.py"
		el.LineNumbers = true
		restored := roundTrip(t, el).(*CodeElement)
		assert.Equal(t, "hello.py", restored.Filename)
		assert.True(t, restored.LineNumbers)
		assert.False(t, restored.Highlight)
	})
}

func TestJSONRoundTrip(t *testing.T) {
	table := buildHeaderTable()
	data, err := ToJSON(table)
	require.NoError(t, err)

	// the wire form must be a plain JSON object with the required keys
	var probe map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &probe))
	for _, key := range []string{"id", "type", "bbox", "metadata", "parent_id", "children_ids", "rows"} {
		assert.Contains(t, probe, key)
	}

	restored, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, table.GetText(), restored.GetText())
	assert.Equal(t, table.ToHTML(), restored.(*TableElement).ToHTML())
}

func TestFromMapErrors(t *testing.T) {
	t.Run("NilMap", func(t *testing.T) {
		_, err := FromMap(nil)
		assert.Error(t, err)
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := FromMap(map[string]interface{}{"type": "hologram"})
		assert.ErrorContains(t, err, "hologram")
	})

	t.Run("StandaloneTableCell", func(t *testing.T) {
		_, err := FromMap(map[string]interface{}{"type": "table_cell"})
		assert.Error(t, err)
	})

	t.Run("CorruptImagePayload", func(t *testing.T) {
		_, err := FromMap(map[string]interface{}{
			"type":        "image",
			"id":          "image-cafecafecafecafe",
			"data_base64": "%%% not base64 %%%",
		})
		assert.Error(t, err)
	})

	t.Run("ChecksumMismatch", func(t *testing.T) {
		m := NewImageElementFromData(pngStub, "png").ToMap()
		m["checksum"] = "0000badc0ffee0000000000000000000"
		_, err := FromMap(m)
		assert.ErrorContains(t, err, "checksum")
	})
}
