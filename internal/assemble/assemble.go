// Package assemble builds the final outbound message from a handler draft:
// source attribution, length truncation at a sentence boundary, and required
// disclaimers. Tone and behavioral restrictions are applied at prompt time
// (see PersonaPreamble); this stage never rewrites the draft's wording.
package assemble

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ziadkadry99/shoptalk/internal/grounding"
	"github.com/ziadkadry99/shoptalk/internal/tenant"
)

// Input is one draft reply plus everything needed to finish it.
type Input struct {
	Draft    string
	Snap     *tenant.Snapshot
	Facts    []grounding.SourceFact
	Grounded bool
}

// Finalize produces the outbound text. Disclaimers are exempt from
// truncation but still count against the tenant limit, so the body gives up
// the room they need.
func Finalize(in Input) string {
	text := strings.TrimSpace(in.Draft)

	if in.Grounded && in.Snap.Attribution && len(in.Facts) > 0 {
		text += "\n\n" + citationSection(in.Facts)
	}

	suffix := disclaimerSection(in.Snap.Persona.Disclaimers)
	if limit := in.Snap.MaxResponseLength; limit > 0 {
		bodyLimit := limit - len(suffix)
		if bodyLimit <= 0 {
			return strings.TrimSpace(suffix)
		}
		text = Truncate(text, bodyLimit)
	}
	return text + suffix
}

// disclaimerSection renders the required disclaimers, each on its own
// paragraph, with the leading separator included.
func disclaimerSection(disclaimers []string) string {
	var b strings.Builder
	for _, d := range disclaimers {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(d)
	}
	return b.String()
}

// citationSection maps the reply back to its source origins.
func citationSection(facts []grounding.SourceFact) string {
	var b strings.Builder
	b.WriteString("Sources:")
	seen := map[string]bool{}
	for _, f := range facts {
		if f.Origin == "" || seen[f.Origin] {
			continue
		}
		seen[f.Origin] = true
		b.WriteString("\n- ")
		if f.Title != "" {
			b.WriteString(f.Title)
			b.WriteString(" (")
			b.WriteString(f.Origin)
			b.WriteString(")")
		} else {
			b.WriteString(f.Origin)
		}
	}
	return b.String()
}

// Truncate cuts text to at most limit characters, preferring the last
// sentence boundary. When no boundary lands past half the limit, it cuts at
// a word boundary and marks the cut with an ellipsis.
func Truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}

	cut := text[:limit]
	if idx := lastSentenceEnd(cut); idx >= limit/2 {
		return strings.TrimSpace(cut[:idx+1])
	}

	const ellipsis = "…"
	if limit > len(ellipsis) {
		cut = text[:limit-len(ellipsis)]
	}
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	// The byte slice may have split a multi-byte rune; drop the partial one.
	for len(cut) > 0 {
		r, size := utf8.DecodeLastRuneInString(cut)
		if r != utf8.RuneError || size > 1 {
			break
		}
		cut = cut[:len(cut)-1]
	}
	return strings.TrimSpace(cut) + ellipsis
}

func lastSentenceEnd(s string) int {
	return max(strings.LastIndexByte(s, '.'),
		strings.LastIndexByte(s, '!'),
		strings.LastIndexByte(s, '?'))
}

// PersonaPreamble renders the tenant persona as system-prompt instructions
// for model-drafted replies.
func PersonaPreamble(snap *tenant.Snapshot) string {
	var b strings.Builder
	p := snap.Persona
	name := p.Name
	if name == "" {
		name = "Assistant"
	}
	fmt.Fprintf(&b, "Your name is %s.", name)
	if p.Tone != "" {
		fmt.Fprintf(&b, " Answer in a %s tone.", p.Tone)
	}
	for _, r := range p.Restrictions {
		r = strings.TrimSpace(r)
		if r != "" {
			b.WriteString("\n- ")
			b.WriteString(r)
		}
	}
	return b.String()
}
