package parsers

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/structdoc/structdoc/pkg/elements"
)

// extractHTML walks the document DOM and emits elements for headings,
// paragraphs, lists, tables, code blocks, images and figures. Nested
// occurrences inside an already-captured container are skipped so content
// is not emitted twice.
func (p *UniversalParser) extractHTML(result *ParseResult, data []byte) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}

	p.fillHTMLMetadata(result, doc)

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	root.Find("h1, h2, h3, h4, h5, h6, p, ul, ol, table, pre, blockquote, img, figure").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("table, figure, pre, ul, ol, blockquote").Length() > 0 {
			return
		}
		el := p.htmlNodeElement(result, s)
		if el == nil {
			return
		}
		stampProvenance(el, StrategyUniversal, "html_dom")
		result.AddElement(el)
	})
	return nil
}

// htmlNodeElement converts one DOM node into its element, or nil when the
// node carries nothing extractable under the current configuration.
func (p *UniversalParser) htmlNodeElement(result *ParseResult, s *goquery.Selection) elements.Element {
	switch name := goquery.NodeName(s); name {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return nil
		}
		level := int(name[1] - '0')
		return elements.NewHeadingElement(text, level)

	case "p", "blockquote":
		text := normalizeHTMLText(s.Text(), p.Config().PreserveFormatting)
		if text == "" {
			return nil
		}
		return elements.NewParagraphElement(text)

	case "ul", "ol":
		var items []string
		s.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
			if item := normalizeHTMLText(li.Text(), false); item != "" {
				items = append(items, item)
			}
		})
		if len(items) == 0 {
			return nil
		}
		return elements.NewListElement(items, name == "ol")

	case "table":
		if !p.Config().ExtractTables {
			return nil
		}
		markup, err := goquery.OuterHtml(s)
		if err != nil {
			result.AddWarning(fmt.Sprintf("failed to serialize table markup: %v", err))
			return nil
		}
		table, err := elements.TableFromHTML(markup)
		if err != nil {
			result.AddWarning(fmt.Sprintf("failed to extract table: %v", err))
			return nil
		}
		if _, msg := table.Validate(); msg != "" {
			result.AddWarning(msg)
		}
		return table

	case "pre":
		code := s.Find("code").First()
		content := s.Text()
		language := ""
		if code.Length() > 0 {
			content = code.Text()
			language = codeLanguageFromClass(code.AttrOr("class", ""))
		}
		content = strings.Trim(content, "\n")
		if strings.TrimSpace(content) == "" {
			return nil
		}
		return elements.NewCodeElement(content, language)

	case "img":
		return p.htmlImage(s)

	case "figure":
		img := s.Find("img").First()
		if img.Length() == 0 {
			return nil
		}
		image := p.htmlImage(img)
		if image == nil {
			return nil
		}
		caption := normalizeHTMLText(s.Find("figcaption").First().Text(), false)
		return elements.NewFigureElement(image.(*elements.ImageElement), caption, "")

	default:
		return nil
	}
}

// htmlImage builds an image element referencing the source attribute.
func (p *UniversalParser) htmlImage(s *goquery.Selection) elements.Element {
	if !p.Config().ExtractImages {
		return nil
	}
	src, ok := s.Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return nil
	}
	format := strings.TrimPrefix(normalizeExtension(filepath.Ext(src)), ".")
	image := elements.NewImageElementFromPath(src, format)
	image.AltText = s.AttrOr("alt", "")
	return image
}

// fillHTMLMetadata copies the document title and standard meta tags into
// the document metadata when extraction is enabled.
func (p *UniversalParser) fillHTMLMetadata(result *ParseResult, doc *goquery.Document) {
	if result.Document == nil || result.Document.Metadata == nil {
		return
	}
	meta := result.Document.Metadata

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		meta.Title = title
	}
	if lang, ok := doc.Find("html").First().Attr("lang"); ok && lang != "" {
		meta.Language = lang
	}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}
		switch strings.ToLower(name) {
		case "author":
			meta.Author = content
		case "description":
			meta.Subject = content
		case "keywords":
			for _, kw := range strings.Split(content, ",") {
				if kw = strings.TrimSpace(kw); kw != "" {
					meta.Keywords = append(meta.Keywords, kw)
				}
			}
		}
	})
}

// normalizeHTMLText trims rendered text, optionally collapsing internal
// whitespace runs left over from markup indentation.
func normalizeHTMLText(text string, preserve bool) string {
	if preserve {
		return strings.TrimSpace(text)
	}
	return strings.Join(strings.Fields(text), " ")
}

// codeLanguageFromClass reads the conventional language-* class used by
// syntax highlighters.
func codeLanguageFromClass(class string) string {
	for _, c := range strings.Fields(class) {
		if strings.HasPrefix(c, "language-") {
			return strings.TrimPrefix(c, "language-")
		}
		if strings.HasPrefix(c, "lang-") {
			return strings.TrimPrefix(c, "lang-")
		}
	}
	return ""
}
