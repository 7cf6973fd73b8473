package elements

import (
	"fmt"
	"strings"
)

// TextElement is a run of plain text. It also backs the simple text-like
// kinds (list items, footnotes, headers, footers, page numbers, captions)
// that carry no payload beyond their content.
type TextElement struct {
	BaseElement
	Content string `json:"content"`
}

// NewTextElement creates a plain text element
func NewTextElement(content string) *TextElement {
	return NewTextElementWithType(TypeText, content)
}

// NewTextElementWithType creates a text element of one of the text-like kinds
func NewTextElementWithType(t ElementType, content string) *TextElement {
	return &TextElement{
		BaseElement: newBaseElement(t, content, nil),
		Content:     content,
	}
}

// GetText returns the element content
func (e *TextElement) GetText() string {
	return e.Content
}

// Validate fails when the element carries no content
func (e *TextElement) Validate() (bool, string) {
	if strings.TrimSpace(e.Content) == "" {
		return false, "text element has no content"
	}
	return true, ""
}

// ToMap converts the element to its serialized map form
func (e *TextElement) ToMap() map[string]interface{} {
	m := e.baseMap()
	m["content"] = e.Content
	return m
}

func textElementFromMap(m map[string]interface{}) *TextElement {
	return &TextElement{
		BaseElement: restoredBaseElement(m),
		Content:     mapString(m, "content"),
	}
}

// Heading levels are clamped to the HTML range
const (
	MinHeadingLevel = 1
	MaxHeadingLevel = 6
)

// HeadingElement is a section heading with an outline level
type HeadingElement struct {
	BaseElement
	Content string `json:"content"`
	Level   int    `json:"level"`
}

// NewHeadingElement creates a heading. Levels outside [1, 6] are clamped.
func NewHeadingElement(content string, level int) *HeadingElement {
	e := &HeadingElement{
		BaseElement: newBaseElement(TypeHeading, content, nil),
		Content:     content,
		Level:       clampHeadingLevel(level),
	}
	e.Metadata.SetAttribute("level", e.Level)
	return e
}

func clampHeadingLevel(level int) int {
	if level < MinHeadingLevel {
		return MinHeadingLevel
	}
	if level > MaxHeadingLevel {
		return MaxHeadingLevel
	}
	return level
}

// GetText returns the heading text
func (e *HeadingElement) GetText() string {
	return e.Content
}

// SetLevel updates the outline level, clamping to [1, 6]
func (e *HeadingElement) SetLevel(level int) {
	e.Level = clampHeadingLevel(level)
	e.Metadata.SetAttribute("level", e.Level)
}

// Validate fails when the heading carries no content
func (e *HeadingElement) Validate() (bool, string) {
	if strings.TrimSpace(e.Content) == "" {
		return false, "heading has no content"
	}
	return true, ""
}

// ToMap converts the heading to its serialized map form
func (e *HeadingElement) ToMap() map[string]interface{} {
	m := e.baseMap()
	m["content"] = e.Content
	m["level"] = e.Level
	return m
}

func headingElementFromMap(m map[string]interface{}) *HeadingElement {
	return &HeadingElement{
		BaseElement: restoredBaseElement(m),
		Content:     mapString(m, "content"),
		Level:       clampHeadingLevel(mapInt(m, "level")),
	}
}

// ParagraphElement is a block of prose text
type ParagraphElement struct {
	BaseElement
	Content string `json:"content"`
}

// NewParagraphElement creates a paragraph element
func NewParagraphElement(content string) *ParagraphElement {
	return &ParagraphElement{
		BaseElement: newBaseElement(TypeParagraph, content, nil),
		Content:     content,
	}
}

// GetText returns the paragraph content
func (e *ParagraphElement) GetText() string {
	return e.Content
}

// WordCount returns the number of whitespace-separated words
func (e *ParagraphElement) WordCount() int {
	return len(strings.Fields(e.Content))
}

// SentenceCount returns the number of sentence-terminating runs.
// A paragraph with content but no terminator counts as one sentence.
func (e *ParagraphElement) SentenceCount() int {
	trimmed := strings.TrimSpace(e.Content)
	if trimmed == "" {
		return 0
	}
	count := 0
	inTerminator := false
	for _, r := range trimmed {
		if r == '.' || r == '!' || r == '?' {
			if !inTerminator {
				count++
			}
			inTerminator = true
		} else {
			inTerminator = false
		}
	}
	if count == 0 {
		return 1
	}
	return count
}

// Validate fails when the paragraph carries no content
func (e *ParagraphElement) Validate() (bool, string) {
	if strings.TrimSpace(e.Content) == "" {
		return false, "paragraph has no content"
	}
	return true, ""
}

// ToMap converts the paragraph to its serialized map form
func (e *ParagraphElement) ToMap() map[string]interface{} {
	m := e.baseMap()
	m["content"] = e.Content
	return m
}

func paragraphElementFromMap(m map[string]interface{}) *ParagraphElement {
	return &ParagraphElement{
		BaseElement: restoredBaseElement(m),
		Content:     mapString(m, "content"),
	}
}

// ListElement is an ordered or unordered sequence of items
type ListElement struct {
	BaseElement
	Items   []string `json:"items"`
	Ordered bool     `json:"ordered"`
}

// NewListElement creates a list element
func NewListElement(items []string, ordered bool) *ListElement {
	if items == nil {
		items = []string{}
	}
	return &ListElement{
		BaseElement: newBaseElement(TypeList, strings.Join(items, "\x1f"), nil),
		Items:       items,
		Ordered:     ordered,
	}
}

// GetText renders the list one item per line with its marker
func (e *ListElement) GetText() string {
	var sb strings.Builder
	for i, item := range e.Items {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if e.Ordered {
			fmt.Fprintf(&sb, "%d. %s", i+1, item)
		} else {
			sb.WriteString("- ")
			sb.WriteString(item)
		}
	}
	return sb.String()
}

// ItemCount returns the number of list items
func (e *ListElement) ItemCount() int {
	return len(e.Items)
}

// AddItem appends an item to the list
func (e *ListElement) AddItem(item string) {
	e.Items = append(e.Items, item)
}

// Validate fails when the list has no items
func (e *ListElement) Validate() (bool, string) {
	if len(e.Items) == 0 {
		return false, "list has no items"
	}
	return true, ""
}

// ToMap converts the list to its serialized map form
func (e *ListElement) ToMap() map[string]interface{} {
	m := e.baseMap()
	m["items"] = e.Items
	m["ordered"] = e.Ordered
	return m
}

func listElementFromMap(m map[string]interface{}) *ListElement {
	items := mapStringSlice(m, "items")
	if items == nil {
		items = []string{}
	}
	return &ListElement{
		BaseElement: restoredBaseElement(m),
		Items:       items,
		Ordered:     mapBool(m, "ordered"),
	}
}
