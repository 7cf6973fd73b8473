package parsers

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/structdoc/structdoc/pkg/elements"
)

// extractJSON validates and pretty-prints JSON content into a code
// element. Descriptive fields of a top-level object feed the document
// metadata. Invalid JSON falls back to plain text with a warning.
func (p *UniversalParser) extractJSON(result *ParseResult, data []byte) error {
	if !json.Valid(data) {
		result.AddWarning("invalid JSON, content treated as plain text")
		return p.extractPlainText(result, data)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return fmt.Errorf("failed to format JSON: %w", err)
	}

	var top map[string]interface{}
	if err := json.Unmarshal(data, &top); err == nil {
		p.applyJSONMetadata(result, top)
	}

	code := elements.NewCodeElement(pretty.String(), "json")
	stampProvenance(code, StrategyUniversal, "structured_data")
	result.AddElement(code)
	return nil
}

// applyJSONMetadata promotes conventional descriptive fields from a
// top-level JSON object into the document metadata.
func (p *UniversalParser) applyJSONMetadata(result *ParseResult, top map[string]interface{}) {
	if !p.Config().ExtractMetadata || result.Document == nil || result.Document.Metadata == nil {
		return
	}
	meta := result.Document.Metadata

	for _, key := range []string{"title", "name"} {
		if v, ok := top[key].(string); ok && v != "" {
			meta.Title = v
			break
		}
	}
	if v, ok := top["description"].(string); ok && v != "" {
		meta.Subject = v
	}
	if v, ok := top["author"].(string); ok && v != "" {
		meta.Author = v
	}
	meta.Custom["json_keys"] = len(top)
}
