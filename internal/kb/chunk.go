package kb

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Chunk is one retrievable slice of an ingested document.
type Chunk struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Title    string `json:"title"`
	Section  string `json:"section"`
	Content  string `json:"content"`
}

// maxChunkChars bounds a single chunk; oversized sections are split.
const maxChunkChars = 1500

// ChunkMarkdown parses a markdown document and splits it into plain-text
// chunks, one per heading section, splitting further when a section
// exceeds the size cap. Markdown syntax is stripped; only text survives.
func ChunkMarkdown(docID, title string, source []byte) []Chunk {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(source))

	type section struct {
		heading string
		parts   []string
	}
	current := &section{heading: title}
	var sections []*section

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if len(current.parts) > 0 {
				sections = append(sections, current)
			}
			current = &section{heading: string(nodeText(node, source))}
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.ListItem, *ast.Blockquote:
			txt := strings.TrimSpace(string(nodeText(n, source)))
			if txt != "" {
				current.parts = append(current.parts, txt)
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			var b strings.Builder
			for i := 0; i < node.Lines().Len(); i++ {
				line := node.Lines().At(i)
				b.Write(line.Value(source))
			}
			if txt := strings.TrimSpace(b.String()); txt != "" {
				current.parts = append(current.parts, txt)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if len(current.parts) > 0 {
		sections = append(sections, current)
	}

	var chunks []Chunk
	for _, sec := range sections {
		for i, content := range splitBySize(sec.parts, maxChunkChars) {
			id := fmt.Sprintf("%s#%s", docID, slugify(sec.heading))
			if i > 0 {
				id = fmt.Sprintf("%s.%d", id, i)
			}
			chunks = append(chunks, Chunk{
				ID:      id,
				Title:   title,
				Section: sec.heading,
				Content: content,
			})
		}
	}
	return chunks
}

// nodeText collects the raw text beneath a node.
func nodeText(n ast.Node, source []byte) []byte {
	var b strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := child.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return []byte(b.String())
}

// splitBySize packs parts into strings not exceeding the limit, splitting a
// single oversized part hard when needed.
func splitBySize(parts []string, limit int) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	for _, part := range parts {
		for len(part) > limit {
			flush()
			out = append(out, part[:limit])
			part = part[limit:]
		}
		if b.Len() > 0 && b.Len()+len(part)+1 > limit {
			flush()
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(part)
	}
	flush()
	return out
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "section"
	}
	return b.String()
}
