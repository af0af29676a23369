// Package onebot implements a platform.Host over a OneBot v11 forward
// websocket, as exposed by QQ protocol implementations such as NapCat or
// Lagrange.
package onebot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/edgard/aishitbot/internal/config"
	"github.com/edgard/aishitbot/internal/platform"
)

// Name is the platform name reported in requests.
const Name = "onebot"

const (
	minReconnectInterval = 5 * time.Second
	handshakeTimeout     = 10 * time.Second
)

// Host is a OneBot v11 client. It dials the implementation, dispatches
// matching message events to registered commands and reconnects until its
// context is cancelled.
type Host struct {
	cfg config.OneBotConfig
	log *slog.Logger

	commands map[string]platform.CommandFunc

	mu       sync.Mutex
	conn     *websocket.Conn
	connDone chan struct{}

	writeMu sync.Mutex
	echoSeq atomic.Int64

	waitMu  sync.Mutex
	waiters map[string]chan apiResponse

	handlers sync.WaitGroup
}

// NewHost creates a Host from its configuration.
func NewHost(cfg config.OneBotConfig, log *slog.Logger) *Host {
	return &Host{
		cfg:      cfg,
		log:      log.With("component", "onebot"),
		commands: make(map[string]platform.CommandFunc),
		waiters:  make(map[string]chan apiResponse),
	}
}

// Name implements platform.Host.
func (h *Host) Name() string { return Name }

// OnCommand implements platform.Host.
func (h *Host) OnCommand(name string, fn platform.CommandFunc) {
	h.commands[name] = fn
}

// Run connects and serves events until ctx is cancelled. Connection failures
// are logged and retried; Run only returns nil.
func (h *Host) Run(ctx context.Context) error {
	h.log.InfoContext(ctx, "Starting OneBot host", "ws_url", h.cfg.WSURL, "commands", len(h.commands))

	delay := h.cfg.ReconnectInterval
	if delay < minReconnectInterval {
		delay = minReconnectInterval
	}

	for {
		err := h.serve(ctx)
		if ctx.Err() != nil {
			break
		}
		h.log.ErrorContext(ctx, "OneBot connection lost", "error", err, "retry_in", delay)
		if !sleep(ctx, delay) {
			break
		}
	}

	h.handlers.Wait()
	h.log.InfoContext(ctx, "OneBot host stopped")
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// serve runs one connection until it fails or ctx ends.
func (h *Host) serve(ctx context.Context) error {
	header := http.Header{}
	if h.cfg.AccessToken != "" {
		header.Set("Authorization", "Bearer "+h.cfg.AccessToken)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, h.cfg.WSURL, header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	done := make(chan struct{})
	h.mu.Lock()
	h.conn, h.connDone = conn, done
	h.mu.Unlock()
	h.log.InfoContext(ctx, "OneBot websocket connected")

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		h.mu.Lock()
		h.conn, h.connDone = nil, nil
		h.mu.Unlock()
		close(done)
		_ = conn.Close()
	}()

	return h.listen(ctx, conn)
}

func (h *Host) listen(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}

		var ev rawEvent
		if err := sonic.Unmarshal(payload, &ev); err != nil {
			h.log.WarnContext(ctx, "Failed to decode OneBot payload", "error", err)
			continue
		}

		if ev.Echo != "" {
			h.dispatchResponse(ctx, payload, ev.Echo)
			continue
		}

		switch ev.PostType {
		case "message":
			h.handleMessage(ctx, ev)
		case "meta_event":
			h.log.DebugContext(ctx, "OneBot meta event", "type", ev.MetaEventType, "self_id", ev.SelfID)
		default:
			h.log.DebugContext(ctx, "Ignoring OneBot event", "post_type", ev.PostType)
		}
	}
}

func (h *Host) dispatchResponse(ctx context.Context, payload []byte, echo string) {
	var resp apiResponse
	if err := sonic.Unmarshal(payload, &resp); err != nil {
		h.log.WarnContext(ctx, "Failed to decode OneBot action response", "echo", echo, "error", err)
		return
	}

	h.waitMu.Lock()
	waiter, ok := h.waiters[echo]
	h.waitMu.Unlock()
	if !ok {
		h.log.DebugContext(ctx, "Dropping unexpected action response", "echo", echo)
		return
	}
	select {
	case waiter <- resp:
	default:
	}
}

func (h *Host) handleMessage(ctx context.Context, ev rawEvent) {
	chat, ok := chatID(ev)
	if !ok {
		return
	}

	for name, fn := range h.commands {
		if !matchCommand(ev.RawMessage, name) {
			continue
		}

		h.log.InfoContext(ctx, "Command received", "command", name, "chat_id", chat, "user_id", ev.UserID)
		req := platform.Request{
			Platform: Name,
			ChatID:   chat,
			UserID:   ev.UserID,
			Text:     ev.RawMessage,
		}
		reply := &replier{host: h, event: ev}

		h.handlers.Add(1)
		go func() {
			defer h.handlers.Done()
			fn(ctx, req, reply)
		}()
		return
	}
}

// call sends one action and waits for its response. A non-zero retcode is an error.
func (h *Host) call(ctx context.Context, action string, params any) error {
	h.mu.Lock()
	conn, done := h.conn, h.connDone
	h.mu.Unlock()
	if conn == nil {
		return platform.ErrNotConnected
	}

	echo := action + "_" + strconv.FormatInt(h.echoSeq.Add(1), 10)
	waiter := make(chan apiResponse, 1)

	h.waitMu.Lock()
	h.waiters[echo] = waiter
	h.waitMu.Unlock()
	defer func() {
		h.waitMu.Lock()
		delete(h.waiters, echo)
		h.waitMu.Unlock()
	}()

	payload, err := sonic.Marshal(apiRequest{Action: action, Params: params, Echo: echo})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", action, err)
	}

	h.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, payload)
	h.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send %s request: %w", action, err)
	}

	timer := time.NewTimer(h.cfg.APITimeout)
	defer timer.Stop()

	select {
	case resp := <-waiter:
		if resp.RetCode != 0 {
			return &ActionError{Action: action, RetCode: resp.RetCode, Message: resp.describe()}
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%s request timed out after %s", action, h.cfg.APITimeout)
	case <-done:
		return platform.ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActionError reports an action the implementation rejected.
type ActionError struct {
	Action  string
	RetCode int64
	Message string
}

func (e *ActionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed with retcode %d", e.Action, e.RetCode)
	}
	return fmt.Sprintf("%s failed with retcode %d: %s", e.Action, e.RetCode, e.Message)
}

func (r apiResponse) describe() string {
	if r.Wording != "" {
		return r.Wording
	}
	return r.Message
}

// replier answers in the chat an event came from.
type replier struct {
	host  *Host
	event rawEvent
}

func (r *replier) Text(ctx context.Context, text string) error {
	var err error
	switch r.event.MessageType {
	case messageTypeGroup:
		err = r.host.call(ctx, actionSendGroupMsg, sendGroupMsgParams{GroupID: r.event.GroupID, Message: text, AutoEscape: true})
	case messageTypePrivate:
		err = r.host.call(ctx, actionSendPrivateMsg, sendPrivateMsgParams{UserID: r.event.UserID, Message: text, AutoEscape: true})
	default:
		err = platform.ErrUnsupportedChat
	}
	return err
}

func (r *replier) Nodes(ctx context.Context, nodes []platform.Node) error {
	messages := buildNodes(nodes)
	var err error
	switch r.event.MessageType {
	case messageTypeGroup:
		err = r.host.call(ctx, actionSendGroupForwardMsg, sendGroupForwardParams{GroupID: r.event.GroupID, Messages: messages})
	case messageTypePrivate:
		err = r.host.call(ctx, actionSendPrivateForwardMsg, sendPrivateForwardParams{UserID: r.event.UserID, Messages: messages})
	default:
		err = platform.ErrUnsupportedChat
	}
	return err
}
