package onebot_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/edgard/aishitbot/internal/config"
	"github.com/edgard/aishitbot/internal/logger"
	"github.com/edgard/aishitbot/internal/onebot"
	"github.com/edgard/aishitbot/internal/platform"
)

const testToken = "secret"

// implementation is a fake OneBot implementation accepting one websocket client.
type implementation struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
}

func newImplementation(t *testing.T) *implementation {
	t.Helper()
	impl := &implementation{conns: make(chan *websocket.Conn, 1)}
	upgrader := websocket.Upgrader{}
	impl.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer "+testToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		impl.conns <- conn
	}))
	t.Cleanup(impl.srv.Close)
	return impl
}

func (i *implementation) wsURL() string {
	return "ws" + strings.TrimPrefix(i.srv.URL, "http")
}

func (i *implementation) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-i.conns:
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("host did not connect")
		return nil
	}
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := sonic.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readAction(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read action: %v", err)
	}
	var req map[string]any
	if err := sonic.Unmarshal(data, &req); err != nil {
		t.Fatalf("unmarshal action: %v", err)
	}
	return req
}

func respond(t *testing.T, conn *websocket.Conn, req map[string]any, retcode int) {
	t.Helper()
	status := "ok"
	if retcode != 0 {
		status = "failed"
	}
	send(t, conn, map[string]any{
		"status":  status,
		"retcode": retcode,
		"message": "",
		"wording": "",
		"echo":    req["echo"],
		"data":    map[string]any{"message_id": 1},
	})
}

func startHost(t *testing.T, impl *implementation, fn platform.CommandFunc) (cancel func()) {
	t.Helper()
	host := onebot.NewHost(config.OneBotConfig{
		Enabled:           true,
		WSURL:             impl.wsURL(),
		AccessToken:       testToken,
		ReconnectInterval: 5 * time.Second,
		APITimeout:        5 * time.Second,
	}, logger.Discard())
	host.OnCommand("ai造屎", fn)

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- host.Run(ctx) }()

	return func() {
		stop()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Run() did not return after cancel")
		}
	}
}

func groupMessage(text string) map[string]any {
	return map[string]any{
		"post_type":    "message",
		"message_type": "group",
		"self_id":      999,
		"user_id":      12345,
		"group_id":     42,
		"raw_message":  text,
	}
}

func TestHost_GroupCommandRepliesWithTextAndForward(t *testing.T) {
	t.Parallel()

	impl := newImplementation(t)
	results := make(chan error, 2)
	requests := make(chan platform.Request, 1)

	stop := startHost(t, impl, func(ctx context.Context, req platform.Request, reply platform.Replier) {
		requests <- req
		results <- reply.Text(ctx, "正在生成新鲜的屎，请稍候...")
		results <- reply.Nodes(ctx, []platform.Node{
			{UserID: 10001, Nickname: "小明", Content: "今天吃了吗"},
			{UserID: 10002, Nickname: "用户10002", Content: "吃了，你呢"},
		})
	})
	defer stop()

	conn := impl.accept(t)
	send(t, conn, groupMessage("/ai造屎"))

	textReq := readAction(t, conn)
	if textReq["action"] != "send_group_msg" {
		t.Fatalf("first action = %v, want send_group_msg", textReq["action"])
	}
	params := textReq["params"].(map[string]any)
	if params["group_id"] != float64(42) || params["message"] != "正在生成新鲜的屎，请稍候..." || params["auto_escape"] != true {
		t.Errorf("send_group_msg params = %v", params)
	}
	respond(t, conn, textReq, 0)

	fwdReq := readAction(t, conn)
	if fwdReq["action"] != "send_group_forward_msg" {
		t.Fatalf("second action = %v, want send_group_forward_msg", fwdReq["action"])
	}
	messages := fwdReq["params"].(map[string]any)["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("forward nodes = %d, want 2", len(messages))
	}
	first := messages[0].(map[string]any)
	if first["type"] != "node" {
		t.Errorf("node type = %v", first["type"])
	}
	data := first["data"].(map[string]any)
	if data["user_id"] != "10001" || data["nickname"] != "小明" {
		t.Errorf("node data = %v", data)
	}
	content := data["content"].([]any)[0].(map[string]any)
	if content["type"] != "text" || content["data"].(map[string]any)["text"] != "今天吃了吗" {
		t.Errorf("node content = %v", content)
	}
	respond(t, conn, fwdReq, 0)

	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			if err != nil {
				t.Errorf("reply %d error = %v", i, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("reply did not complete")
		}
	}

	req := <-requests
	if req.Platform != onebot.Name || req.ChatID != "group:42" || req.UserID != 12345 {
		t.Errorf("request = %+v", req)
	}
}

func TestHost_ActionFailureIsReturned(t *testing.T) {
	t.Parallel()

	impl := newImplementation(t)
	results := make(chan error, 1)

	stop := startHost(t, impl, func(ctx context.Context, _ platform.Request, reply platform.Replier) {
		results <- reply.Nodes(ctx, []platform.Node{{UserID: 1, Nickname: "a", Content: "b"}})
	})
	defer stop()

	conn := impl.accept(t)
	send(t, conn, map[string]any{
		"post_type":    "message",
		"message_type": "private",
		"user_id":      777,
		"raw_message":  "ai造屎",
	})

	req := readAction(t, conn)
	if req["action"] != "send_private_forward_msg" {
		t.Fatalf("action = %v, want send_private_forward_msg", req["action"])
	}
	if req["params"].(map[string]any)["user_id"] != float64(777) {
		t.Errorf("params = %v", req["params"])
	}
	respond(t, conn, req, 1200)

	select {
	case err := <-results:
		var ae *onebot.ActionError
		if !errors.As(err, &ae) || ae.RetCode != 1200 {
			t.Errorf("Nodes() error = %v, want ActionError with retcode 1200", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reply did not complete")
	}
}

func TestHost_IgnoresOtherMessages(t *testing.T) {
	t.Parallel()

	impl := newImplementation(t)
	called := make(chan struct{}, 1)

	stop := startHost(t, impl, func(context.Context, platform.Request, platform.Replier) {
		called <- struct{}{}
	})
	defer stop()

	conn := impl.accept(t)
	send(t, conn, groupMessage("hello"))
	send(t, conn, groupMessage("ai造屎啊"))
	send(t, conn, map[string]any{"post_type": "meta_event", "meta_event_type": "heartbeat"})

	select {
	case <-called:
		t.Fatal("command dispatched for a non-matching message")
	case <-time.After(200 * time.Millisecond):
	}
}
