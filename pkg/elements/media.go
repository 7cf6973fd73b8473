package elements

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// ImageElement is an embedded or referenced image. It carries either raw
// binary data or a path reference; the serialized form never includes both.
type ImageElement struct {
	BaseElement

	// Data is the raw image payload, held in memory for the lifetime of
	// the owning result
	Data []byte `json:"-"`

	// Path references the image on disk when no binary payload is held
	Path string `json:"path,omitempty"`

	// Format is the image format, e.g. "png" or "jpeg"
	Format string `json:"format,omitempty"`

	// Width and Height in pixels when known
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	// AltText is the human-readable description
	AltText string `json:"alt_text,omitempty"`
}

// NewImageElementFromData creates an image element owning a binary payload
func NewImageElementFromData(data []byte, format string) *ImageElement {
	e := &ImageElement{
		Data:   data,
		Format: format,
	}
	e.BaseElement = newBaseElement(TypeImage, e.Checksum(), nil)
	return e
}

// NewImageElementFromPath creates an image element referencing a file on disk
func NewImageElementFromPath(path, format string) *ImageElement {
	e := &ImageElement{
		Path:   path,
		Format: format,
	}
	e.BaseElement = newBaseElement(TypeImage, path, nil)
	return e
}

// GetText returns the alt text
func (e *ImageElement) GetText() string {
	return e.AltText
}

// HasData reports whether the element owns a binary payload
func (e *ImageElement) HasData() bool {
	return len(e.Data) > 0
}

// Checksum returns the MD5 hex digest of the binary payload, or "" when the
// element only references a path
func (e *ImageElement) Checksum() string {
	if !e.HasData() {
		return ""
	}
	sum := md5.Sum(e.Data)
	return hex.EncodeToString(sum[:])
}

// Base64 returns the standard-encoded binary payload, or "" without data
func (e *ImageElement) Base64() string {
	if !e.HasData() {
		return ""
	}
	return base64.StdEncoding.EncodeToString(e.Data)
}

// DataURI renders the payload as an inline data URI, or "" without data
func (e *ImageElement) DataURI() string {
	if !e.HasData() {
		return ""
	}
	format := e.Format
	if format == "" {
		format = "png"
	}
	return fmt.Sprintf("data:image/%s;base64,%s", format, e.Base64())
}

// Validate fails when the element has neither binary data nor a path.
// Carrying both is a soft warning since serialization keeps only the data.
func (e *ImageElement) Validate() (bool, string) {
	if !e.HasData() && e.Path == "" {
		return false, "image has neither binary data nor a path reference"
	}
	if e.HasData() && e.Path != "" {
		return true, "image carries both binary data and a path reference"
	}
	return true, ""
}

// ToMap converts the image to its serialized map form. Binary payloads
// serialize as data_base64 plus an MD5 checksum, path references as path.
func (e *ImageElement) ToMap() map[string]interface{} {
	m := e.baseMap()
	m["format"] = e.Format
	m["width"] = e.Width
	m["height"] = e.Height
	m["alt_text"] = e.AltText
	if e.HasData() {
		m["data_base64"] = e.Base64()
		m["checksum"] = e.Checksum()
	} else if e.Path != "" {
		m["path"] = e.Path
	}
	return m
}

func imageElementFromMap(m map[string]interface{}) (*ImageElement, error) {
	e := &ImageElement{
		BaseElement: restoredBaseElement(m),
		Path:        mapString(m, "path"),
		Format:      mapString(m, "format"),
		Width:       mapInt(m, "width"),
		Height:      mapInt(m, "height"),
		AltText:     mapString(m, "alt_text"),
	}
	if encoded := mapString(m, "data_base64"); encoded != "" {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image data: %w", err)
		}
		e.Data = data
		if checksum := mapString(m, "checksum"); checksum != "" && checksum != e.Checksum() {
			return nil, fmt.Errorf("image checksum mismatch: stored %s", checksum)
		}
	}
	return e, nil
}

// FigureElement composes an image with its caption and figure number
type FigureElement struct {
	BaseElement

	// Image is the composed image element, linked as a child reference
	Image *ImageElement `json:"image,omitempty"`

	// Caption is the figure caption text
	Caption string `json:"caption,omitempty"`

	// Number is the figure label, e.g. "3" or "2.1"
	Number string `json:"figure_number,omitempty"`
}

// NewFigureElement creates a figure wrapping an image
func NewFigureElement(image *ImageElement, caption, number string) *FigureElement {
	e := &FigureElement{
		Image:   image,
		Caption: caption,
		Number:  number,
	}
	e.BaseElement = newBaseElement(TypeFigure, caption+"|"+number, nil)
	if image != nil {
		e.LinkChild(image)
	}
	return e
}

// GetText renders the figure label and caption
func (e *FigureElement) GetText() string {
	if e.Number != "" && e.Caption != "" {
		return fmt.Sprintf("Figure %s: %s", e.Number, e.Caption)
	}
	if e.Number != "" {
		return fmt.Sprintf("Figure %s", e.Number)
	}
	return e.Caption
}

// Validate fails when the figure has neither an image nor a caption
func (e *FigureElement) Validate() (bool, string) {
	if e.Image == nil && e.Caption == "" {
		return false, "figure has neither an image nor a caption"
	}
	return true, ""
}

// ToMap converts the figure to its serialized map form
func (e *FigureElement) ToMap() map[string]interface{} {
	m := e.baseMap()
	m["caption"] = e.Caption
	m["figure_number"] = e.Number
	if e.Image != nil {
		m["image"] = e.Image.ToMap()
	} else {
		m["image"] = nil
	}
	return m
}

func figureElementFromMap(m map[string]interface{}) (*FigureElement, error) {
	e := &FigureElement{
		BaseElement: restoredBaseElement(m),
		Caption:     mapString(m, "caption"),
		Number:      mapString(m, "figure_number"),
	}
	if im, ok := m["image"].(map[string]interface{}); ok {
		image, err := imageElementFromMap(im)
		if err != nil {
			return nil, fmt.Errorf("failed to restore figure image: %w", err)
		}
		e.Image = image
	}
	return e, nil
}

// DiagramElement is a structured diagram such as a flowchart or chart,
// optionally backed by a rendered image
type DiagramElement struct {
	BaseElement

	// DiagramType is a free-form kind, e.g. "flowchart" or "sequence"
	DiagramType string `json:"diagram_type,omitempty"`

	// Data holds the parser-specific structured representation
	Data map[string]interface{} `json:"data,omitempty"`

	// Image is an optional rendered form of the diagram
	Image *ImageElement `json:"image,omitempty"`

	// Title and Description label the diagram
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// NewDiagramElement creates a diagram element
func NewDiagramElement(diagramType string, data map[string]interface{}) *DiagramElement {
	if data == nil {
		data = make(map[string]interface{})
	}
	e := &DiagramElement{
		DiagramType: diagramType,
		Data:        data,
	}
	e.BaseElement = newBaseElement(TypeDiagram, diagramType, nil)
	e.Metadata.SetAttribute("diagram_type", diagramType)
	return e
}

// GetText returns the diagram title, falling back to its description
func (e *DiagramElement) GetText() string {
	if e.Title != "" {
		return e.Title
	}
	return e.Description
}

// Validate fails on an entirely empty diagram. A missing diagram type is a
// soft warning.
func (e *DiagramElement) Validate() (bool, string) {
	if e.Title == "" && e.Description == "" && len(e.Data) == 0 && e.Image == nil {
		return false, "diagram has no content"
	}
	if e.DiagramType == "" {
		return true, "unknown diagram type"
	}
	return true, ""
}

// ToMap converts the diagram to its serialized map form
func (e *DiagramElement) ToMap() map[string]interface{} {
	m := e.baseMap()
	m["diagram_type"] = e.DiagramType
	m["data"] = e.Data
	m["title"] = e.Title
	m["description"] = e.Description
	if e.Image != nil {
		m["image"] = e.Image.ToMap()
	} else {
		m["image"] = nil
	}
	return m
}

func diagramElementFromMap(m map[string]interface{}) (*DiagramElement, error) {
	e := &DiagramElement{
		BaseElement: restoredBaseElement(m),
		DiagramType: mapString(m, "diagram_type"),
		Data:        mapAny(m, "data"),
		Title:       mapString(m, "title"),
		Description: mapString(m, "description"),
	}
	if e.Data == nil {
		e.Data = make(map[string]interface{})
	}
	if im, ok := m["image"].(map[string]interface{}); ok {
		image, err := imageElementFromMap(im)
		if err != nil {
			return nil, fmt.Errorf("failed to restore diagram image: %w", err)
		}
		e.Image = image
	}
	return e, nil
}
