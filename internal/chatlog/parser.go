// Package chatlog generates fake chat logs with a language model and parses
// them into attributed segments.
package chatlog

import (
	"strconv"
	"strings"
	"unicode"
)

// Delimiter separates utterances in a generated chat log.
const Delimiter = "|"

// Segment is one `id content` utterance of a generated chat log. ID is kept
// as generated and may hold non-ASCII decimal digits such as "１２３".
type Segment struct {
	ID      string
	Content string
}

// UserID returns ID as a sender id. Non-ASCII decimal digits count by their
// value; an id that overflows int64 is an error.
func (s Segment) UserID() (int64, error) {
	var b strings.Builder
	b.Grow(len(s.ID))
	for _, r := range s.ID {
		b.WriteByte(byte('0' + digitValue(r)))
	}
	return strconv.ParseInt(b.String(), 10, 64)
}

// Parse splits a completion into segments. A piece is accepted only when the
// text before its first space is a non-empty run of decimal digits (any
// script); everything else, including empty pieces, is dropped. Order is
// preserved.
func Parse(completion string) []Segment {
	var segments []Segment
	for _, piece := range strings.Split(strings.TrimSpace(completion), Delimiter) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}

		id, rest, found := strings.Cut(piece, " ")
		if !found || !isDigits(id) {
			continue
		}

		content := strings.TrimSpace(rest)
		if content == "" {
			continue
		}
		segments = append(segments, Segment{ID: id, Content: content})
	}
	return segments
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// digitValue returns the value of a decimal digit rune. Unicode lays every
// decimal digit set out as ten consecutive code points starting at zero.
func digitValue(r rune) int {
	if r >= '0' && r <= '9' {
		return int(r - '0')
	}
	n := 0
	for unicode.IsDigit(r - rune(n+1)) {
		n++
	}
	return n % 10
}
