package parsers

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/structdoc/structdoc/pkg/elements"
)

// extractDOCX reads a DOCX container: body content from word/document.xml,
// document properties from docProps, embedded media from word/media.
func (p *UniversalParser) extractDOCX(result *ParseResult, filePath string) error {
	archive, err := zip.OpenReader(filePath)
	if err != nil {
		return fmt.Errorf("failed to open DOCX archive: %w", err)
	}
	defer archive.Close()

	var bodyFile, coreFile, appFile *zip.File
	var mediaFiles []*zip.File
	for _, f := range archive.File {
		switch {
		case f.Name == "word/document.xml":
			bodyFile = f
		case f.Name == "docProps/core.xml":
			coreFile = f
		case f.Name == "docProps/app.xml":
			appFile = f
		case strings.HasPrefix(f.Name, "word/media/"):
			mediaFiles = append(mediaFiles, f)
		}
	}
	if bodyFile == nil {
		return fmt.Errorf("missing word/document.xml, not a DOCX document")
	}

	if p.Config().ExtractMetadata {
		if coreFile != nil {
			p.applyDocxCoreProperties(result, coreFile)
		}
		if appFile != nil {
			p.applyDocxAppProperties(result, appFile)
		}
	}

	rc, err := bodyFile.Open()
	if err != nil {
		return fmt.Errorf("failed to open document body: %w", err)
	}
	defer rc.Close()
	if err := p.walkDocxBody(result, rc); err != nil {
		return fmt.Errorf("failed to read document body: %w", err)
	}

	if p.Config().ExtractImages {
		p.extractDocxMedia(result, mediaFiles)
	}
	return nil
}

// walkDocxBody streams the WordprocessingML token stream, emitting heading
// and paragraph elements and assembling tables row by row.
func (p *UniversalParser) walkDocxBody(result *ParseResult, r io.Reader) error {
	dec := xml.NewDecoder(r)

	var (
		paragraph   strings.Builder
		style       string
		inText      bool
		tableDepth  int
		cellText    strings.Builder
		cells       []string
		rows        [][]string
		headerFlags []bool
		rowHeader   bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
				if tableDepth == 1 {
					rows = nil
					headerFlags = nil
				}
			case "tr":
				if tableDepth == 1 {
					cells = nil
					rowHeader = false
				}
			case "tblHeader":
				if tableDepth == 1 {
					rowHeader = true
				}
			case "tc":
				if tableDepth == 1 {
					cellText.Reset()
				}
			case "p":
				paragraph.Reset()
				style = ""
			case "pStyle":
				for _, attr := range t.Attr {
					if attr.Name.Local == "val" {
						style = attr.Value
					}
				}
			case "t":
				inText = true
			case "tab":
				paragraph.WriteByte('\t')
			case "br", "cr":
				paragraph.WriteByte('\n')
			}

		case xml.CharData:
			if inText {
				paragraph.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				text := paragraph.String()
				if tableDepth > 0 {
					if strings.TrimSpace(text) != "" {
						if cellText.Len() > 0 {
							cellText.WriteByte('\n')
						}
						cellText.WriteString(text)
					}
				} else {
					p.emitDocxParagraph(result, text, style)
				}
			case "tc":
				if tableDepth == 1 {
					cells = append(cells, strings.TrimSpace(cellText.String()))
				}
			case "tr":
				if tableDepth == 1 && len(cells) > 0 {
					rows = append(rows, cells)
					headerFlags = append(headerFlags, rowHeader)
				}
			case "tbl":
				tableDepth--
				if tableDepth == 0 {
					p.emitDocxTable(result, rows, headerFlags)
				}
			}
		}
	}
	return nil
}

// emitDocxParagraph emits a heading or paragraph element for one Word
// paragraph, classified by its style.
func (p *UniversalParser) emitDocxParagraph(result *ParseResult, text, style string) {
	content := text
	if !p.Config().PreserveFormatting {
		content = strings.Join(strings.Fields(text), " ")
	} else {
		content = strings.TrimSpace(content)
	}
	if content == "" {
		return
	}

	var el elements.Element
	if level, ok := docxHeadingLevel(style); ok {
		el = elements.NewHeadingElement(content, level)
	} else {
		el = elements.NewParagraphElement(content)
	}
	stampProvenance(el, StrategyUniversal, "docx_xml")
	result.AddElement(el)
}

// emitDocxTable builds a table element from accumulated rows. Rows flagged
// with tblHeader become header rows.
func (p *UniversalParser) emitDocxTable(result *ParseResult, rows [][]string, headerFlags []bool) {
	if len(rows) == 0 || !p.Config().ExtractTables {
		return
	}
	table := elements.NewTableElement(nil)
	for rowIndex, record := range rows {
		row := elements.NewTableRow()
		for colIndex, content := range record {
			cell := elements.NewTableCell(content, rowIndex, colIndex)
			cell.IsHeader = rowIndex < len(headerFlags) && headerFlags[rowIndex]
			row.AddCell(cell)
		}
		table.AddRow(row)
	}
	if _, msg := table.Validate(); msg != "" {
		result.AddWarning(msg)
	}
	stampProvenance(table, StrategyUniversal, "docx_xml")
	result.AddElement(table)
}

// extractDocxMedia emits one image element per embedded media file.
// Unreadable entries are warnings, not failures.
func (p *UniversalParser) extractDocxMedia(result *ParseResult, mediaFiles []*zip.File) {
	for _, mf := range mediaFiles {
		rc, err := mf.Open()
		if err != nil {
			result.AddWarning(fmt.Sprintf("failed to open embedded media %s: %v", mf.Name, err))
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			result.AddWarning(fmt.Sprintf("failed to read embedded media %s: %v", mf.Name, err))
			continue
		}
		format := strings.TrimPrefix(normalizeExtension(filepath.Ext(mf.Name)), ".")
		image := elements.NewImageElementFromData(data, format)
		image.AltText = filepath.Base(mf.Name)
		stampProvenance(image, StrategyUniversal, "docx_xml")
		result.AddElement(image)
	}
}

// docxHeadingLevel maps Word paragraph styles to heading levels.
func docxHeadingLevel(style string) (int, bool) {
	switch {
	case style == "Title":
		return 1, true
	case style == "Subtitle":
		return 2, true
	case strings.HasPrefix(style, "Heading"):
		if level, err := strconv.Atoi(strings.TrimPrefix(style, "Heading")); err == nil && level >= 1 {
			return level, true
		}
	}
	return 0, false
}

type docxCoreProperties struct {
	Title       string `xml:"title"`
	Subject     string `xml:"subject"`
	Creator     string `xml:"creator"`
	Keywords    string `xml:"keywords"`
	Description string `xml:"description"`
	Language    string `xml:"language"`
	Created     string `xml:"created"`
	Modified    string `xml:"modified"`
}

type docxAppProperties struct {
	Pages int `xml:"Pages"`
	Words int `xml:"Words"`
}

// applyDocxCoreProperties copies Dublin Core document properties into the
// document metadata. Read failures are warnings.
func (p *UniversalParser) applyDocxCoreProperties(result *ParseResult, f *zip.File) {
	if result.Document == nil || result.Document.Metadata == nil {
		return
	}
	rc, err := f.Open()
	if err != nil {
		result.AddWarning(fmt.Sprintf("failed to open document properties: %v", err))
		return
	}
	defer rc.Close()

	var props docxCoreProperties
	if err := xml.NewDecoder(rc).Decode(&props); err != nil {
		result.AddWarning(fmt.Sprintf("failed to decode document properties: %v", err))
		return
	}

	meta := result.Document.Metadata
	if props.Title != "" {
		meta.Title = props.Title
	}
	if props.Subject != "" {
		meta.Subject = props.Subject
	} else if props.Description != "" {
		meta.Subject = props.Description
	}
	if props.Creator != "" {
		meta.Author = props.Creator
	}
	if props.Language != "" {
		meta.Language = props.Language
	}
	for _, kw := range strings.Split(props.Keywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			meta.Keywords = append(meta.Keywords, kw)
		}
	}
	if t, err := time.Parse(time.RFC3339, props.Created); err == nil {
		meta.CreatedAt = &t
	}
	if t, err := time.Parse(time.RFC3339, props.Modified); err == nil {
		meta.ModifiedAt = &t
	}
}

// applyDocxAppProperties copies page and word statistics from the
// application properties part.
func (p *UniversalParser) applyDocxAppProperties(result *ParseResult, f *zip.File) {
	if result.Document == nil || result.Document.Metadata == nil {
		return
	}
	rc, err := f.Open()
	if err != nil {
		return
	}
	defer rc.Close()

	var props docxAppProperties
	if err := xml.NewDecoder(rc).Decode(&props); err != nil {
		return
	}
	if props.Pages > 0 {
		result.Document.Metadata.PageCount = props.Pages
	}
	if props.Words > 0 {
		result.Document.Metadata.WordCount = props.Words
	}
}
