package onebot

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/edgard/aishitbot/internal/platform"
)

// OneBot v11 actions used by the host.
const (
	actionSendGroupMsg          = "send_group_msg"
	actionSendPrivateMsg        = "send_private_msg"
	actionSendGroupForwardMsg   = "send_group_forward_msg"
	actionSendPrivateForwardMsg = "send_private_forward_msg"
)

const (
	messageTypeGroup   = "group"
	messageTypePrivate = "private"
)

var cqCodePattern = regexp.MustCompile(`\[CQ:[^\]]*\]`)

// rawEvent covers both pushed events and action responses; responses carry an echo.
type rawEvent struct {
	PostType      string `json:"post_type"`
	MessageType   string `json:"message_type"`
	MetaEventType string `json:"meta_event_type"`
	UserID        int64  `json:"user_id"`
	GroupID       int64  `json:"group_id"`
	SelfID        int64  `json:"self_id"`
	RawMessage    string `json:"raw_message"`
	Echo          string `json:"echo"`
}

type apiRequest struct {
	Action string `json:"action"`
	Params any    `json:"params"`
	Echo   string `json:"echo"`
}

type apiResponse struct {
	Status  string `json:"status"`
	RetCode int64  `json:"retcode"`
	Message string `json:"message"`
	Wording string `json:"wording"`
	Echo    string `json:"echo"`
}

// Plain text replies are sent with auto_escape so brackets are never read as CQ codes.
type sendGroupMsgParams struct {
	GroupID    int64  `json:"group_id"`
	Message    string `json:"message"`
	AutoEscape bool   `json:"auto_escape"`
}

type sendPrivateMsgParams struct {
	UserID     int64  `json:"user_id"`
	Message    string `json:"message"`
	AutoEscape bool   `json:"auto_escape"`
}

type sendGroupForwardParams struct {
	GroupID  int64         `json:"group_id"`
	Messages []nodeSegment `json:"messages"`
}

type sendPrivateForwardParams struct {
	UserID   int64         `json:"user_id"`
	Messages []nodeSegment `json:"messages"`
}

type nodeSegment struct {
	Type string   `json:"type"`
	Data nodeData `json:"data"`
}

type nodeData struct {
	UserID   string        `json:"user_id"`
	Nickname string        `json:"nickname"`
	Content  []textSegment `json:"content"`
}

type textSegment struct {
	Type string   `json:"type"`
	Data textData `json:"data"`
}

type textData struct {
	Text string `json:"text"`
}

// buildNodes converts platform nodes into forward-message node segments.
func buildNodes(nodes []platform.Node) []nodeSegment {
	out := make([]nodeSegment, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeSegment{
			Type: "node",
			Data: nodeData{
				UserID:   strconv.FormatInt(n.UserID, 10),
				Nickname: n.Nickname,
				Content:  []textSegment{{Type: "text", Data: textData{Text: n.Content}}},
			},
		})
	}
	return out
}

// matchCommand reports whether message invokes command. CQ codes such as
// mentions are ignored and a single leading slash is optional. Anything after
// the command must be separated by whitespace.
func matchCommand(message, command string) bool {
	text := strings.TrimSpace(cqCodePattern.ReplaceAllString(message, ""))
	text = strings.TrimPrefix(text, "/")
	rest, ok := strings.CutPrefix(text, command)
	if !ok {
		return false
	}
	return rest == "" || strings.TrimLeft(rest, " \t\r\n") != rest
}

// chatID formats the addressable chat of a message event.
func chatID(ev rawEvent) (string, bool) {
	switch ev.MessageType {
	case messageTypeGroup:
		return messageTypeGroup + ":" + strconv.FormatInt(ev.GroupID, 10), true
	case messageTypePrivate:
		return messageTypePrivate + ":" + strconv.FormatInt(ev.UserID, 10), true
	default:
		return "", false
	}
}
