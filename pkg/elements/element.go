// Package elements defines the typed element model produced by document parsers
package elements

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ElementType identifies the structural kind of a parsed element
type ElementType string

// Element types recognized by the framework
const (
	TypeText       ElementType = "text"
	TypeHeading    ElementType = "heading"
	TypeParagraph  ElementType = "paragraph"
	TypeList       ElementType = "list"
	TypeListItem   ElementType = "list_item"
	TypeTable      ElementType = "table"
	TypeTableCell  ElementType = "table_cell"
	TypeImage      ElementType = "image"
	TypeFigure     ElementType = "figure"
	TypeDiagram    ElementType = "diagram"
	TypeFormula    ElementType = "formula"
	TypeCode       ElementType = "code"
	TypeFootnote   ElementType = "footnote"
	TypeHeader     ElementType = "header"
	TypeFooter     ElementType = "footer"
	TypePageNumber ElementType = "page_number"
	TypeCaption    ElementType = "caption"
	TypeUnknown    ElementType = "unknown"
)

// AllElementTypes returns every element type the framework recognizes
func AllElementTypes() []ElementType {
	return []ElementType{
		TypeText, TypeHeading, TypeParagraph, TypeList, TypeListItem,
		TypeTable, TypeTableCell, TypeImage, TypeFigure, TypeDiagram,
		TypeFormula, TypeCode, TypeFootnote, TypeHeader, TypeFooter,
		TypePageNumber, TypeCaption, TypeUnknown,
	}
}

// IsValid reports whether t is one of the recognized element types
func (t ElementType) IsValid() bool {
	for _, known := range AllElementTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// String returns the serialized form of the element type
func (t ElementType) String() string {
	return string(t)
}

// ParseElementType converts a serialized type value back to an ElementType.
// Unrecognized values map to TypeUnknown.
func ParseElementType(s string) ElementType {
	t := ElementType(s)
	if t.IsValid() {
		return t
	}
	return TypeUnknown
}

// BoundingBox locates an element on a page of the source document.
// Coordinates are in the document's native coordinate space and the page
// numbering (0- or 1-based) follows the producing parser. Callers must
// guarantee x1 >= x0 and y1 >= y0; the box does not enforce it.
type BoundingBox struct {
	X0   float64 `json:"x0"`
	Y0   float64 `json:"y0"`
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	Page int     `json:"page"`
}

// NewBoundingBox creates a bounding box from corner coordinates and a page number
func NewBoundingBox(x0, y0, x1, y1 float64, page int) *BoundingBox {
	return &BoundingBox{X0: x0, Y0: y0, X1: x1, Y1: y1, Page: page}
}

// Width returns the horizontal extent of the box
func (b *BoundingBox) Width() float64 {
	return b.X1 - b.X0
}

// Height returns the vertical extent of the box
func (b *BoundingBox) Height() float64 {
	return b.Y1 - b.Y0
}

// Area returns the surface covered by the box
func (b *BoundingBox) Area() float64 {
	return b.Width() * b.Height()
}

// Contains reports whether the point (x, y) lies inside the box
func (b *BoundingBox) Contains(x, y float64) bool {
	return x >= b.X0 && x <= b.X1 && y >= b.Y0 && y <= b.Y1
}

// Intersects reports whether two boxes overlap. Boxes on different pages
// never intersect.
func (b *BoundingBox) Intersects(other *BoundingBox) bool {
	if other == nil || b.Page != other.Page {
		return false
	}
	return b.X0 <= other.X1 && b.X1 >= other.X0 && b.Y0 <= other.Y1 && b.Y1 >= other.Y0
}

// ToMap converts the box to its serialized map form
func (b *BoundingBox) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"x0":   b.X0,
		"y0":   b.Y0,
		"x1":   b.X1,
		"y1":   b.Y1,
		"page": b.Page,
	}
}

// BoundingBoxFromMap rebuilds a bounding box from its serialized map form
func BoundingBoxFromMap(m map[string]interface{}) *BoundingBox {
	if m == nil {
		return nil
	}
	return &BoundingBox{
		X0:   mapFloat(m, "x0"),
		Y0:   mapFloat(m, "y0"),
		X1:   mapFloat(m, "x1"),
		Y1:   mapFloat(m, "y1"),
		Page: mapInt(m, "page"),
	}
}

// Validation status values carried in element metadata
const (
	ValidationPending = "pending"
	ValidationPassed  = "passed"
	ValidationWarning = "warning"
	ValidationFailed  = "failed"
)

// ElementMetadata carries extraction provenance and quality hints for a
// single element. It is mutable and attached 1:1 to its owning element.
type ElementMetadata struct {
	// Confidence is the parser's certainty in [0, 1]. Clamping happens in
	// the owning element's SetConfidence, not here.
	Confidence float64 `json:"confidence"`

	// SourceParser names the parser that produced the element
	SourceParser string `json:"source_parser,omitempty"`

	// ExtractionMethod records the technique used, e.g. "native_text" or "ocr"
	ExtractionMethod string `json:"extraction_method,omitempty"`

	// Language is the detected or configured content language
	Language string `json:"language,omitempty"`

	// Encoding of the source content
	Encoding string `json:"encoding,omitempty"`

	// Style holds open presentation hints such as font or alignment
	Style map[string]interface{} `json:"style,omitempty"`

	// Attributes holds open parser-specific facts such as diagram_type or level
	Attributes map[string]interface{} `json:"attributes,omitempty"`

	// ValidationStatus is one of the Validation* constants
	ValidationStatus string `json:"validation_status,omitempty"`

	// ValidationNotes accumulates messages from validation passes in order
	ValidationNotes []string `json:"validation_notes,omitempty"`
}

// NewElementMetadata creates metadata with full confidence and pending validation
func NewElementMetadata() *ElementMetadata {
	return &ElementMetadata{
		Confidence:       1.0,
		Style:            make(map[string]interface{}),
		Attributes:       make(map[string]interface{}),
		ValidationStatus: ValidationPending,
		ValidationNotes:  []string{},
	}
}

// SetAttribute stores a parser-specific fact on the metadata
func (m *ElementMetadata) SetAttribute(key string, value interface{}) {
	if m.Attributes == nil {
		m.Attributes = make(map[string]interface{})
	}
	m.Attributes[key] = value
}

// GetAttribute returns a parser-specific fact and whether it was present
func (m *ElementMetadata) GetAttribute(key string) (interface{}, bool) {
	v, ok := m.Attributes[key]
	return v, ok
}

// AddValidationNote appends a message from a validation pass
func (m *ElementMetadata) AddValidationNote(note string) {
	m.ValidationNotes = append(m.ValidationNotes, note)
}

// ToMap converts the metadata to its serialized map form. Open maps and the
// notes list are copied so callers can mutate the result freely.
func (m *ElementMetadata) ToMap() map[string]interface{} {
	style := make(map[string]interface{}, len(m.Style))
	for k, v := range m.Style {
		style[k] = v
	}
	attributes := make(map[string]interface{}, len(m.Attributes))
	for k, v := range m.Attributes {
		attributes[k] = v
	}
	notes := make([]string, len(m.ValidationNotes))
	copy(notes, m.ValidationNotes)
	return map[string]interface{}{
		"confidence":        m.Confidence,
		"source_parser":     m.SourceParser,
		"extraction_method": m.ExtractionMethod,
		"language":          m.Language,
		"encoding":          m.Encoding,
		"style":             style,
		"attributes":        attributes,
		"validation_status": m.ValidationStatus,
		"validation_notes":  notes,
	}
}

// ElementMetadataFromMap rebuilds metadata from its serialized map form
func ElementMetadataFromMap(m map[string]interface{}) *ElementMetadata {
	if m == nil {
		return NewElementMetadata()
	}
	meta := &ElementMetadata{
		Confidence:       mapFloat(m, "confidence"),
		SourceParser:     mapString(m, "source_parser"),
		ExtractionMethod: mapString(m, "extraction_method"),
		Language:         mapString(m, "language"),
		Encoding:         mapString(m, "encoding"),
		Style:            mapAny(m, "style"),
		Attributes:       mapAny(m, "attributes"),
		ValidationStatus: mapString(m, "validation_status"),
		ValidationNotes:  mapStringSlice(m, "validation_notes"),
	}
	if meta.Style == nil {
		meta.Style = make(map[string]interface{})
	}
	if meta.Attributes == nil {
		meta.Attributes = make(map[string]interface{})
	}
	if meta.ValidationNotes == nil {
		meta.ValidationNotes = []string{}
	}
	return meta
}

// Element is the capability set shared by every parsed content unit
type Element interface {
	// GetID returns the element identifier
	GetID() string

	// Type returns the structural kind of the element
	Type() ElementType

	// GetText returns the element's text rendition
	GetText() string

	// GetBBox returns the element's location, or nil when unknown
	GetBBox() *BoundingBox

	// GetMetadata returns the element's metadata record
	GetMetadata() *ElementMetadata

	// GetParentID returns the weak reference to the parent element, or ""
	GetParentID() string

	// GetChildrenIDs returns ordered weak references to child elements
	GetChildrenIDs() []string

	// SetConfidence stores a confidence value clamped to [0, 1]
	SetConfidence(confidence float64)

	// AssignSequence folds a discovery-order sequence number into generated
	// identifiers. It is a no-op for elements restored from serialized form.
	AssignSequence(seq int)

	// Validate checks the element. A true result with a non-empty message
	// is a soft warning, not a failure.
	Validate() (bool, string)

	// ToMap converts the element to its serialized map form
	ToMap() map[string]interface{}
}

// BaseElement carries the identity, location and metadata shared by all
// concrete element types. Parent and child references are weak string
// identifiers resolved against the owning result's element list; dangling
// references are a valid state.
type BaseElement struct {
	ID          string           `json:"id"`
	ElementType ElementType      `json:"type"`
	BBox        *BoundingBox     `json:"bbox,omitempty"`
	Metadata    *ElementMetadata `json:"metadata"`
	ParentID    string           `json:"parent_id,omitempty"`
	ChildrenIDs []string         `json:"children_ids,omitempty"`

	// contentKey feeds identifier generation so equal content on equal
	// coordinates hashes equally across runs
	contentKey string
	// restored marks elements rebuilt from serialized form, whose stored
	// identifiers must survive re-sequencing
	restored bool
}

func newBaseElement(t ElementType, contentKey string, bbox *BoundingBox) BaseElement {
	return BaseElement{
		ID:          StableElementID(t, contentKey, bbox, 0),
		ElementType: t,
		BBox:        bbox,
		Metadata:    NewElementMetadata(),
		ChildrenIDs: []string{},
		contentKey:  contentKey,
	}
}

func restoredBaseElement(m map[string]interface{}) BaseElement {
	var bbox *BoundingBox
	if bm, ok := m["bbox"].(map[string]interface{}); ok {
		bbox = BoundingBoxFromMap(bm)
	}
	meta := NewElementMetadata()
	if mm, ok := m["metadata"].(map[string]interface{}); ok {
		meta = ElementMetadataFromMap(mm)
	}
	children := mapStringSlice(m, "children_ids")
	if children == nil {
		children = []string{}
	}
	return BaseElement{
		ID:          mapString(m, "id"),
		ElementType: ParseElementType(mapString(m, "type")),
		BBox:        bbox,
		Metadata:    meta,
		ParentID:    mapString(m, "parent_id"),
		ChildrenIDs: children,
		restored:    true,
	}
}

// StableElementID derives a reproducible element identifier from the element
// type, a content key, the bounding box and the discovery-order sequence
// number. No wall-clock component is mixed in, so identical parses yield
// identical identifiers.
func StableElementID(t ElementType, contentKey string, bbox *BoundingBox, seq int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|", t, contentKey)
	if bbox != nil {
		fmt.Fprintf(h, "%g,%g,%g,%g,%d", bbox.X0, bbox.Y0, bbox.X1, bbox.Y1, bbox.Page)
	}
	fmt.Fprintf(h, "|%d", seq)
	sum := h.Sum(nil)
	return fmt.Sprintf("%s-%s", t, hex.EncodeToString(sum[:8]))
}

// GetID returns the element identifier
func (e *BaseElement) GetID() string {
	return e.ID
}

// Type returns the structural kind of the element
func (e *BaseElement) Type() ElementType {
	return e.ElementType
}

// GetBBox returns the element's location, or nil when unknown
func (e *BaseElement) GetBBox() *BoundingBox {
	return e.BBox
}

// GetMetadata returns the element's metadata record
func (e *BaseElement) GetMetadata() *ElementMetadata {
	return e.Metadata
}

// GetParentID returns the weak reference to the parent element, or ""
func (e *BaseElement) GetParentID() string {
	return e.ParentID
}

// GetChildrenIDs returns ordered weak references to child elements
func (e *BaseElement) GetChildrenIDs() []string {
	return e.ChildrenIDs
}

// SetParent stores a weak reference to the parent element
func (e *BaseElement) SetParent(parentID string) {
	e.ParentID = parentID
}

// AddChildID appends a weak reference to a child element
func (e *BaseElement) AddChildID(childID string) {
	e.ChildrenIDs = append(e.ChildrenIDs, childID)
}

// SetConfidence stores a confidence value clamped to [0, 1]
func (e *BaseElement) SetConfidence(confidence float64) {
	if confidence > 1.0 {
		confidence = 1.0
	} else if confidence < 0.0 {
		confidence = 0.0
	}
	e.Metadata.Confidence = confidence
}

// AssignSequence folds a discovery-order sequence number into the generated
// identifier. Restored elements keep their stored identifier.
func (e *BaseElement) AssignSequence(seq int) {
	if e.restored {
		return
	}
	e.ID = StableElementID(e.ElementType, e.contentKey, e.BBox, seq)
}

// LinkChild wires a parent and child pair through their weak references
func (e *BaseElement) LinkChild(child Element) {
	if child == nil {
		return
	}
	if setter, ok := child.(interface{ SetParent(string) }); ok {
		setter.SetParent(e.ID)
	}
	e.ChildrenIDs = append(e.ChildrenIDs, child.GetID())
}

func (e *BaseElement) baseMap() map[string]interface{} {
	var bbox interface{}
	if e.BBox != nil {
		bbox = e.BBox.ToMap()
	}
	var parent interface{}
	if e.ParentID != "" {
		parent = e.ParentID
	}
	children := e.ChildrenIDs
	if children == nil {
		children = []string{}
	}
	return map[string]interface{}{
		"id":           e.ID,
		"type":         e.ElementType.String(),
		"bbox":         bbox,
		"metadata":     e.Metadata.ToMap(),
		"parent_id":    parent,
		"children_ids": children,
	}
}
