package parsers

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/structdoc/structdoc/pkg/elements"
)

// extractPlainText splits raw text into blocks on blank lines and emits a
// heading, list or paragraph element per block.
func (p *UniversalParser) extractPlainText(result *ParseResult, data []byte) error {
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
		result.AddWarning("content contains invalid UTF-8 sequences")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	for _, block := range splitBlocks(text) {
		el := p.classifyBlock(block)
		if el == nil {
			continue
		}
		stampProvenance(el, StrategyUniversal, "native_text")
		result.AddElement(el)
	}
	return nil
}

// classifyBlock turns one text block into the element that best fits it.
func (p *UniversalParser) classifyBlock(block string) elements.Element {
	lines := strings.Split(block, "\n")

	if heading, ok := underlinedHeading(lines); ok {
		return heading
	}
	if list, ok := detectList(lines); ok {
		return list
	}
	if len(lines) == 1 && looksLikeHeading(lines[0]) {
		return elements.NewHeadingElement(strings.TrimSpace(lines[0]), 2)
	}

	content := block
	if !p.Config().PreserveFormatting {
		content = strings.Join(strings.Fields(block), " ")
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}
	return elements.NewParagraphElement(content)
}

// splitBlocks breaks text into blocks separated by one or more blank lines.
func splitBlocks(text string) []string {
	var blocks []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return blocks
}

// underlinedHeading recognizes the two-line setext style where the second
// line underlines the first with = or - characters.
func underlinedHeading(lines []string) (*elements.HeadingElement, bool) {
	if len(lines) != 2 {
		return nil, false
	}
	title := strings.TrimSpace(lines[0])
	underline := strings.TrimSpace(lines[1])
	if title == "" || len(underline) < 2 {
		return nil, false
	}
	if strings.Count(underline, "=") == len(underline) {
		return elements.NewHeadingElement(title, 1), true
	}
	if strings.Count(underline, "-") == len(underline) {
		return elements.NewHeadingElement(title, 2), true
	}
	return nil, false
}

// detectList recognizes blocks where every line carries a bullet or an
// ordinal marker.
func detectList(lines []string) (*elements.ListElement, bool) {
	if len(lines) < 2 {
		return nil, false
	}

	items := make([]string, 0, len(lines))
	ordered := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		item, isOrdered, ok := stripListMarker(trimmed)
		if !ok {
			return nil, false
		}
		if i == 0 {
			ordered = isOrdered
		} else if isOrdered != ordered {
			return nil, false
		}
		items = append(items, item)
	}
	return elements.NewListElement(items, ordered), true
}

// stripListMarker removes a leading list marker and reports its kind.
func stripListMarker(line string) (string, bool, bool) {
	for _, marker := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(line[len(marker):]), false, true
		}
	}
	digits := 0
	for _, r := range line {
		if !unicode.IsDigit(r) {
			break
		}
		digits++
	}
	if digits > 0 && digits < len(line) {
		rest := line[digits:]
		if strings.HasPrefix(rest, ". ") || strings.HasPrefix(rest, ") ") {
			return strings.TrimSpace(rest[2:]), true, true
		}
	}
	return "", false, false
}

// looksLikeHeading flags short single lines without terminal punctuation
// that are either title-cased or fully upper-case.
func looksLikeHeading(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > 80 {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	if strings.ContainsRune(".,;!?", last) {
		return false
	}
	words := strings.Fields(trimmed)
	if len(words) > 12 {
		return false
	}

	upper := trimmed == strings.ToUpper(trimmed) && strings.IndexFunc(trimmed, unicode.IsLetter) >= 0
	if upper {
		return true
	}

	capitalized := 0
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if unicode.IsUpper(r) || unicode.IsDigit(r) {
			capitalized++
		}
	}
	return capitalized == len(words)
}
