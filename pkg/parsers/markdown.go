package parsers

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	gtext "github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/structdoc/structdoc/pkg/elements"
)

// extractMarkdown parses markdown through the goldmark AST and emits one
// element per block node. YAML front matter feeds document metadata.
func (p *UniversalParser) extractMarkdown(result *ParseResult, data []byte) error {
	meta, body := splitFrontMatter(data)
	if meta != nil && p.Config().ExtractMetadata {
		p.applyFrontMatter(result, meta)
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.TaskList))
	root := md.Parser().Parse(gtext.NewReader(body))

	err := ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			if text := markdownNodeText(n, body); text != "" {
				p.addMarkdownElement(result, elements.NewHeadingElement(text, n.Level))
			}
			return ast.WalkContinue, nil

		case *ast.Paragraph:
			if _, inItem := n.Parent().(*ast.ListItem); inItem {
				return ast.WalkContinue, nil
			}
			if text := markdownNodeText(n, body); text != "" {
				p.addMarkdownElement(result, elements.NewParagraphElement(text))
			}
			return ast.WalkContinue, nil

		case *ast.Blockquote:
			if text := markdownNodeText(n, body); text != "" {
				p.addMarkdownElement(result, elements.NewParagraphElement(text))
			}
			return ast.WalkSkipChildren, nil

		case *ast.List:
			if el := markdownList(n, body); el != nil {
				p.addMarkdownElement(result, el)
			}
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock:
			language := string(n.Language(body))
			if code := markdownCodeLines(n, body); code != "" {
				p.addMarkdownElement(result, elements.NewCodeElement(code, language))
			}
			return ast.WalkSkipChildren, nil

		case *ast.CodeBlock:
			if code := markdownCodeLines(n, body); code != "" {
				p.addMarkdownElement(result, elements.NewCodeElement(code, ""))
			}
			return ast.WalkSkipChildren, nil

		case *east.Table:
			if p.Config().ExtractTables {
				if table := markdownTable(n, body); table != nil {
					if _, msg := table.Validate(); msg != "" {
						result.AddWarning(msg)
					}
					p.addMarkdownElement(result, table)
				}
			}
			return ast.WalkSkipChildren, nil

		case *ast.Image:
			if p.Config().ExtractImages {
				src := string(n.Destination)
				if src != "" {
					format := strings.TrimPrefix(normalizeExtension(filepath.Ext(src)), ".")
					image := elements.NewImageElementFromPath(src, format)
					image.AltText = markdownNodeText(n, body)
					p.addMarkdownElement(result, image)
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return fmt.Errorf("markdown walk failed: %w", err)
	}
	return nil
}

func (p *UniversalParser) addMarkdownElement(result *ParseResult, el elements.Element) {
	stampProvenance(el, StrategyUniversal, "markdown_ast")
	result.AddElement(el)
}

// markdownNodeText collects the raw text under a node, treating line
// breaks inside a block as spaces.
func markdownNodeText(node ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

// markdownCodeLines joins the raw source lines of a code block.
func markdownCodeLines(node ast.Node, source []byte) string {
	lines := node.Lines()
	var sb strings.Builder
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		sb.Write(segment.Value(source))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// markdownList flattens a list node into a ListElement.
func markdownList(list *ast.List, source []byte) *elements.ListElement {
	var items []string
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		if text := markdownNodeText(item, source); text != "" {
			items = append(items, text)
		}
	}
	if len(items) == 0 {
		return nil
	}
	return elements.NewListElement(items, list.IsOrdered())
}

// markdownTable converts a goldmark table node into a TableElement. The
// header row keeps row index zero; body rows follow.
func markdownTable(table *east.Table, source []byte) *elements.TableElement {
	var rows []*elements.TableRow
	rowIndex := 0
	for child := table.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.(type) {
		case *east.TableHeader, *east.TableRow:
		default:
			continue
		}
		_, isHeader := child.(*east.TableHeader)

		row := elements.NewTableRow()
		colIndex := 0
		for cellNode := child.FirstChild(); cellNode != nil; cellNode = cellNode.NextSibling() {
			cell, ok := cellNode.(*east.TableCell)
			if !ok {
				continue
			}
			tc := elements.NewTableCell(markdownNodeText(cell, source), rowIndex, colIndex)
			tc.IsHeader = isHeader
			tc.Alignment = markdownAlignment(cell.Alignment)
			row.AddCell(tc)
			colIndex++
		}
		rows = append(rows, row)
		rowIndex++
	}
	if len(rows) == 0 {
		return nil
	}
	return elements.NewTableElement(rows)
}

func markdownAlignment(a east.Alignment) string {
	switch a {
	case east.AlignLeft:
		return "left"
	case east.AlignCenter:
		return "center"
	case east.AlignRight:
		return "right"
	default:
		return ""
	}
}

// splitFrontMatter separates a leading YAML front matter block from the
// markdown body. Without a well-formed block the full input is the body.
func splitFrontMatter(data []byte) (map[string]interface{}, []byte) {
	normalized := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return nil, data
	}
	rest := normalized[4:]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return nil, data
	}
	block := rest[:end]
	body := rest[end+4:]
	if len(body) > 0 && body[0] == '\n' {
		body = body[1:]
	}

	var meta map[string]interface{}
	if err := yaml.Unmarshal(block, &meta); err != nil {
		return nil, data
	}
	return meta, body
}

// applyFrontMatter copies recognized front matter fields into the document
// metadata.
func (p *UniversalParser) applyFrontMatter(result *ParseResult, meta map[string]interface{}) {
	if result.Document == nil || result.Document.Metadata == nil {
		return
	}
	dm := result.Document.Metadata

	if v, ok := meta["title"].(string); ok && v != "" {
		dm.Title = v
	}
	if v, ok := meta["author"].(string); ok && v != "" {
		dm.Author = v
	}
	if v, ok := meta["description"].(string); ok && v != "" {
		dm.Subject = v
	}
	if v, ok := meta["subject"].(string); ok && v != "" {
		dm.Subject = v
	}
	if v, ok := meta["language"].(string); ok && v != "" {
		dm.Language = v
	}
	switch kw := meta["keywords"].(type) {
	case string:
		for _, k := range strings.Split(kw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				dm.Keywords = append(dm.Keywords, k)
			}
		}
	case []interface{}:
		for _, entry := range kw {
			if k, ok := entry.(string); ok && k != "" {
				dm.Keywords = append(dm.Keywords, k)
			}
		}
	}
	if v, ok := meta["date"].(string); ok {
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				dm.CreatedAt = &t
				break
			}
		}
	}
	if t, ok := meta["date"].(time.Time); ok {
		dm.CreatedAt = &t
	}
}
