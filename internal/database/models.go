package database

import "time"

// Generation is one fake chat log produced for a command invocation.
type Generation struct {
	ID           string    `db:"id"`
	Platform     string    `db:"platform"`
	ChatID       string    `db:"chat_id"`
	RequestedBy  int64     `db:"requested_by"`
	Completion   string    `db:"completion"`
	SegmentCount int       `db:"segment_count"`
	CreatedAt    time.Time `db:"created_at"`

	Nodes []GenerationNode `db:"-"`
}

// GenerationNode is one delivered message of a Generation, in display order.
type GenerationNode struct {
	GenerationID string `db:"generation_id"`
	Position     int    `db:"position"`
	UserID       int64  `db:"user_id"`
	Nickname     string `db:"nickname"`
	Content      string `db:"content"`
}
