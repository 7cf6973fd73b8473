package elements

import "strings"

// Formula notation formats
const (
	FormulaLatex     = "latex"
	FormulaMathML    = "mathml"
	FormulaASCIIMath = "asciimath"
	FormulaPlain     = "plain"
)

func knownFormulaFormat(format string) bool {
	switch format {
	case FormulaLatex, FormulaMathML, FormulaASCIIMath, FormulaPlain:
		return true
	}
	return false
}

// FormulaElement is a mathematical formula in a declared notation
type FormulaElement struct {
	BaseElement

	// Formula is the source notation string
	Formula string `json:"formula"`

	// Format is one of the Formula* notation constants
	Format string `json:"format"`

	// Rendered is an optional plain-text rendition of the formula
	Rendered string `json:"rendered,omitempty"`

	// Variables maps variable names to their descriptions
	Variables map[string]string `json:"variables,omitempty"`
}

// NewFormulaElement creates a formula element. An empty format defaults to latex.
func NewFormulaElement(formula, format string) *FormulaElement {
	if format == "" {
		format = FormulaLatex
	}
	e := &FormulaElement{
		Formula:   formula,
		Format:    format,
		Variables: make(map[string]string),
	}
	e.BaseElement = newBaseElement(TypeFormula, formula, nil)
	e.Metadata.SetAttribute("format", format)
	return e
}

// GetText returns the rendered form when present, else the source notation
func (e *FormulaElement) GetText() string {
	if e.Rendered != "" {
		return e.Rendered
	}
	return e.Formula
}

// DescribeVariable records a description for a variable name
func (e *FormulaElement) DescribeVariable(name, description string) {
	if e.Variables == nil {
		e.Variables = make(map[string]string)
	}
	e.Variables[name] = description
}

// Validate fails on an empty formula. An unrecognized notation format is a
// soft warning.
func (e *FormulaElement) Validate() (bool, string) {
	if strings.TrimSpace(e.Formula) == "" {
		return false, "formula is empty"
	}
	if !knownFormulaFormat(e.Format) {
		return true, "unrecognized formula format: " + e.Format
	}
	return true, ""
}

// ToMap converts the formula to its serialized map form
func (e *FormulaElement) ToMap() map[string]interface{} {
	variables := make(map[string]interface{}, len(e.Variables))
	for name, desc := range e.Variables {
		variables[name] = desc
	}
	m := e.baseMap()
	m["formula"] = e.Formula
	m["format"] = e.Format
	m["rendered"] = e.Rendered
	m["variables"] = variables
	return m
}

func formulaElementFromMap(m map[string]interface{}) *FormulaElement {
	e := &FormulaElement{
		BaseElement: restoredBaseElement(m),
		Formula:     mapString(m, "formula"),
		Format:      mapString(m, "format"),
		Rendered:    mapString(m, "rendered"),
		Variables:   make(map[string]string),
	}
	if raw, ok := m["variables"].(map[string]interface{}); ok {
		for name, desc := range raw {
			if s, ok := desc.(string); ok {
				e.Variables[name] = s
			}
		}
	}
	return e
}

// Code blocks beyond this size trigger a validation warning
const largeCodeBlockSize = 10000

// CodeElement is a source code block
type CodeElement struct {
	BaseElement

	// Code is the source text
	Code string `json:"code"`

	// Language is the programming language when known
	Language string `json:"language,omitempty"`

	// Filename is the originating file name when known
	Filename string `json:"filename,omitempty"`

	// LineNumbers requests line numbering on rendering
	LineNumbers bool `json:"line_numbers"`

	// Highlight requests syntax highlighting on rendering
	Highlight bool `json:"highlight"`
}

// NewCodeElement creates a code element
func NewCodeElement(code, language string) *CodeElement {
	e := &CodeElement{
		Code:     code,
		Language: language,
	}
	e.BaseElement = newBaseElement(TypeCode, code, nil)
	if language != "" {
		e.Metadata.SetAttribute("language", language)
	}
	return e
}

// GetText returns the source text
func (e *CodeElement) GetText() string {
	return e.Code
}

// LineCount returns the number of lines in the block
func (e *CodeElement) LineCount() int {
	if e.Code == "" {
		return 0
	}
	return strings.Count(e.Code, "\n") + 1
}

// Validate fails on an empty block. Very large blocks are a soft warning.
func (e *CodeElement) Validate() (bool, string) {
	if strings.TrimSpace(e.Code) == "" {
		return false, "code block is empty"
	}
	if len(e.Code) > largeCodeBlockSize {
		return true, "very large code block"
	}
	return true, ""
}

// ToMap converts the code block to its serialized map form
func (e *CodeElement) ToMap() map[string]interface{} {
	m := e.baseMap()
	m["code"] = e.Code
	m["language"] = e.Language
	m["filename"] = e.Filename
	m["line_numbers"] = e.LineNumbers
	m["highlight"] = e.Highlight
	return m
}

func codeElementFromMap(m map[string]interface{}) *CodeElement {
	return &CodeElement{
		BaseElement: restoredBaseElement(m),
		Code:        mapString(m, "code"),
		Language:    mapString(m, "language"),
		Filename:    mapString(m, "filename"),
		LineNumbers: mapBool(m, "line_numbers"),
		Highlight:   mapBool(m, "highlight"),
	}
}
