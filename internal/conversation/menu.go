package conversation

import (
	"strconv"
	"strings"
)

// MatchMenu resolves an inbound text against a presented menu. A match is a
// 1-based numeric index, a case-insensitive exact label, or an interactive
// reply payload. Returns nil when nothing matches.
func MatchMenu(menu []MenuOption, text string) *MenuOption {
	if len(menu) == 0 {
		return nil
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if idx, err := strconv.Atoi(trimmed); err == nil {
		if idx >= 1 && idx <= len(menu) {
			return &menu[idx-1]
		}
		return nil
	}

	folded := strings.ToLower(trimmed)
	for i := range menu {
		if strings.ToLower(strings.TrimSpace(menu[i].Label)) == folded {
			return &menu[i]
		}
	}
	for i := range menu {
		if menu[i].Payload != "" && menu[i].Payload == trimmed {
			return &menu[i]
		}
	}
	return nil
}

// RenderMenu formats a menu as numbered lines for a plain-text channel.
func RenderMenu(menu []MenuOption) string {
	var b strings.Builder
	for i, opt := range menu {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(opt.Label)
	}
	return b.String()
}
