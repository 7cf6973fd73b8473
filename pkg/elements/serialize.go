package elements

import (
	"encoding/json"
	"fmt"
)

// FromMap rebuilds a concrete element from its serialized map form. The
// returned element keeps its stored identifier through re-sequencing.
func FromMap(m map[string]interface{}) (Element, error) {
	if m == nil {
		return nil, fmt.Errorf("cannot restore element from nil map")
	}
	raw := mapString(m, "type")
	t := ElementType(raw)
	if !t.IsValid() {
		return nil, fmt.Errorf("unknown element type: %q", raw)
	}

	switch t {
	case TypeText, TypeListItem, TypeFootnote, TypeHeader, TypeFooter, TypePageNumber, TypeCaption, TypeUnknown:
		return textElementFromMap(m), nil
	case TypeHeading:
		return headingElementFromMap(m), nil
	case TypeParagraph:
		return paragraphElementFromMap(m), nil
	case TypeList:
		return listElementFromMap(m), nil
	case TypeTable:
		return tableElementFromMap(m), nil
	case TypeImage:
		return imageElementFromMap(m)
	case TypeFigure:
		return figureElementFromMap(m)
	case TypeDiagram:
		return diagramElementFromMap(m)
	case TypeFormula:
		return formulaElementFromMap(m), nil
	case TypeCode:
		return codeElementFromMap(m), nil
	case TypeTableCell:
		return nil, fmt.Errorf("table cells are serialized within their owning table")
	default:
		return nil, fmt.Errorf("unhandled element type: %q", raw)
	}
}

// ToJSON serializes an element through its map form
func ToJSON(el Element) ([]byte, error) {
	if el == nil {
		return nil, fmt.Errorf("cannot serialize nil element")
	}
	return json.Marshal(el.ToMap())
}

// FromJSON rebuilds a concrete element from its JSON form
func FromJSON(data []byte) (Element, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode element JSON: %w", err)
	}
	return FromMap(m)
}

// Map accessors tolerant of the value shapes JSON decoding produces.

func mapString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func mapFloat(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func mapInt(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	}
	return 0
}

func mapBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

func mapStringSlice(m map[string]interface{}, key string) []string {
	switch v := m[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			if s, ok := entry.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func mapAny(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}
