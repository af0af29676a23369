package telegram

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/edgard/aishitbot/internal/platform"
)

// MaxMessageLength is the Telegram limit on message text, in characters.
const MaxMessageLength = 4096

// RenderNodes formats nodes as HTML messages, one block per node:
//
//	<b>nickname</b> (<code>id</code>)
//	content
//
// Blocks are packed into as few messages as fit under limit. A block that
// is too long on its own has its content truncated.
func RenderNodes(nodes []platform.Node, limit int) []string {
	var (
		messages []string
		current  strings.Builder
	)

	for _, n := range nodes {
		block := renderNode(n, limit)

		sep := 0
		if current.Len() > 0 {
			sep = 2
		}
		if current.Len() > 0 && runeLen(current.String())+sep+runeLen(block) > limit {
			messages = append(messages, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(block)
	}

	if current.Len() > 0 {
		messages = append(messages, current.String())
	}
	return messages
}

func renderNode(n platform.Node, limit int) string {
	header := fmt.Sprintf("<b>%s</b> (<code>%d</code>)\n", html.EscapeString(n.Nickname), n.UserID)
	budget := limit - runeLen(header)

	var b strings.Builder
	b.WriteString(header)
	used := 0
	for _, r := range n.Content {
		esc := html.EscapeString(string(r))
		if used+runeLen(esc) > budget {
			break
		}
		b.WriteString(esc)
		used += runeLen(esc)
	}
	return b.String()
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
