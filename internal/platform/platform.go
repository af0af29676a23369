// Package platform defines the capability a chat platform adapter offers to
// command handlers: command registration and replies that are either plain
// text or a grouped list of attributed nodes.
package platform

import (
	"context"
	"errors"
)

var (
	// ErrNotConnected is returned by a Replier whose transport is down.
	ErrNotConnected = errors.New("platform not connected")
	// ErrUnsupportedChat is returned when a reply target cannot be addressed.
	ErrUnsupportedChat = errors.New("unsupported chat target")
)

// Node is one message of a grouped (forwarded) reply.
type Node struct {
	UserID   int64
	Nickname string
	Content  string
}

// Request describes the message that triggered a command.
type Request struct {
	Platform string
	ChatID   string
	UserID   int64
	Text     string
}

// Replier sends replies back to the chat a Request came from.
type Replier interface {
	Text(ctx context.Context, text string) error
	Nodes(ctx context.Context, nodes []Node) error
}

// CommandFunc handles one invocation of a registered command.
type CommandFunc func(ctx context.Context, req Request, reply Replier)

// Host is a chat platform adapter.
type Host interface {
	Name() string
	// OnCommand registers fn for the command name (no leading slash).
	// It must be called before Run.
	OnCommand(name string, fn CommandFunc)
	// Run blocks until ctx is cancelled or the host fails.
	Run(ctx context.Context) error
}
