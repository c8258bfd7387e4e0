package extract

import (
	"sort"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// splitMarkdown cuts a document before every heading so each section
// starts with its heading line. Parsing the AST instead of matching
// `^#` lines means headings inside fenced code blocks do not split
// the document.
func splitMarkdown(src string) []string {
	raw := []byte(src)
	doc := markdown.Parser().Parse(gtext.NewReader(raw))

	var cuts []int
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		if n.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		// Back up from the heading text to the start of its line to
		// keep the "#" markers with the section.
		start := n.Lines().At(0).Start
		for start > 0 && raw[start-1] != '\n' {
			start--
		}
		cuts = append(cuts, start)
		return ast.WalkContinue, nil
	})
	sort.Ints(cuts)

	matches := make([][]int, len(cuts))
	for i, c := range cuts {
		matches[i] = []int{c, c}
	}
	return splitAt(src, matches)
}
