package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edgard/aishitbot/internal/bot/handlers"
	"github.com/edgard/aishitbot/internal/config"
	"github.com/edgard/aishitbot/internal/database"
	"github.com/edgard/aishitbot/internal/logger"
	"github.com/edgard/aishitbot/internal/nickname"
	"github.com/edgard/aishitbot/internal/platform"
)

type fakeGenerator struct {
	text  string
	err   error
	panic any
	block bool
}

func (g fakeGenerator) Generate(ctx context.Context) (string, error) {
	if g.panic != nil {
		panic(g.panic)
	}
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return g.text, g.err
}

type mapResolver struct {
	mu    sync.Mutex
	names map[string]string
	delay map[string]time.Duration
	calls []string
}

func (r *mapResolver) Resolve(_ context.Context, id string) string {
	r.mu.Lock()
	r.calls = append(r.calls, id)
	d := r.delay[id]
	r.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
	if name, ok := r.names[id]; ok {
		return name
	}
	return nickname.Fallback(id)
}

type recordingReplier struct {
	mu      sync.Mutex
	texts   []string
	nodes   [][]platform.Node
	nodeErr error
	// failTexts makes the first n Text calls fail without recording them.
	failTexts int
}

func (r *recordingReplier) Text(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failTexts > 0 {
		r.failTexts--
		return errors.New("send_group_msg failed with retcode 100")
	}
	r.texts = append(r.texts, text)
	return nil
}

func (r *recordingReplier) Nodes(_ context.Context, nodes []platform.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nodeErr != nil {
		return r.nodeErr
	}
	r.nodes = append(r.nodes, nodes)
	return nil
}

type fakeStore struct {
	database.Store
	mu    sync.Mutex
	saved []*database.Generation
	err   error
}

func (s *fakeStore) SaveGeneration(_ context.Context, gen *database.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	gen.ID = "generated-id"
	s.saved = append(s.saved, gen)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Bot:      config.BotConfig{Command: "ai造屎", CommandTimeout: time.Minute},
		Nickname: config.NicknameConfig{Concurrency: 4},
		Messages: config.DefaultMessages,
	}
}

func testDeps(gen handlers.Generator, resolver handlers.NicknameResolver, store database.Store) handlers.HandlerDeps {
	return handlers.HandlerDeps{
		Logger:    logger.Discard(),
		Config:    testConfig(),
		Generator: gen,
		Resolver:  resolver,
		Store:     store,
	}
}

var testRequest = platform.Request{Platform: "onebot", ChatID: "group:42", UserID: 12345, Text: "/ai造屎"}

func TestFakeChatHandler_DeliversNodesInOrder(t *testing.T) {
	t.Parallel()

	resolver := &mapResolver{names: map[string]string{"10001": "小明", "10002": "小红"}}
	store := &fakeStore{}
	reply := &recordingReplier{}

	h := handlers.NewFakeChatHandler(testDeps(fakeGenerator{text: "10001 今天吃了吗 | 10002 吃了，你呢"}, resolver, store))
	h(context.Background(), testRequest, reply)

	if len(reply.texts) != 1 || reply.texts[0] != config.DefaultMessages.Generating {
		t.Errorf("texts = %q, want only the progress message", reply.texts)
	}
	if len(reply.nodes) != 1 {
		t.Fatalf("node replies = %d, want 1", len(reply.nodes))
	}
	want := []platform.Node{
		{UserID: 10001, Nickname: "小明", Content: "今天吃了吗"},
		{UserID: 10002, Nickname: "小红", Content: "吃了，你呢"},
	}
	for i, n := range reply.nodes[0] {
		if n != want[i] {
			t.Errorf("node %d = %+v, want %+v", i, n, want[i])
		}
	}

	if len(store.saved) != 1 {
		t.Fatalf("archived %d generations, want 1", len(store.saved))
	}
	saved := store.saved[0]
	if saved.Platform != "onebot" || saved.ChatID != "group:42" || saved.RequestedBy != 12345 || saved.SegmentCount != 2 || len(saved.Nodes) != 2 {
		t.Errorf("archived generation = %+v", saved)
	}
}

func TestFakeChatHandler_ReplyTexts(t *testing.T) {
	t.Parallel()

	msgs := config.DefaultMessages
	tests := []struct {
		name string
		gen  fakeGenerator
		want string
	}{
		{name: "no digit-prefixed segments", gen: fakeGenerator{text: "hello world"}, want: msgs.ParseEmpty},
		{name: "id glued to letters", gen: fakeGenerator{text: "10001abc not a valid split"}, want: msgs.ParseEmpty},
		{name: "llm failure sentinel", gen: fakeGenerator{text: msgs.LLMFailure}, want: msgs.ParseEmpty},
		{name: "id overflows sender id", gen: fakeGenerator{text: "99999999999999999999 hi"}, want: msgs.NoNodes},
		{name: "generator error", gen: fakeGenerator{err: errors.New("quota exceeded")}, want: msgs.FailurePrefix + "quota exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &fakeStore{}
			reply := &recordingReplier{}
			h := handlers.NewFakeChatHandler(testDeps(tt.gen, &mapResolver{}, store))
			h(context.Background(), testRequest, reply)

			if len(reply.nodes) != 0 {
				t.Errorf("unexpected node reply %+v", reply.nodes)
			}
			if len(reply.texts) != 2 || reply.texts[0] != msgs.Generating || reply.texts[1] != tt.want {
				t.Errorf("texts = %q, want [%q %q]", reply.texts, msgs.Generating, tt.want)
			}
			if len(store.saved) != 0 {
				t.Errorf("archived %d generations, want none", len(store.saved))
			}
		})
	}
}

func TestFakeChatHandler_NicknameTimeoutFallsBack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get(nickname.QueryParam) == "10002" {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
			return
		}
		_, _ = w.Write([]byte(`{"code":200,"data":{"name":"小明"}}`))
	}))
	defer srv.Close()

	resolver, err := nickname.NewResolver(srv.URL, 100*time.Millisecond, logger.Discard())
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	reply := &recordingReplier{}
	h := handlers.NewFakeChatHandler(testDeps(fakeGenerator{text: "10001 在吗 | 10002 在"}, resolver, nil))
	h(context.Background(), testRequest, reply)

	if len(reply.nodes) != 1 || len(reply.nodes[0]) != 2 {
		t.Fatalf("nodes = %+v, want one reply with two nodes", reply.nodes)
	}
	if got := reply.nodes[0][0].Nickname; got != "小明" {
		t.Errorf("first nickname = %q, want 小明", got)
	}
	if got := reply.nodes[0][1].Nickname; got != "用户10002" {
		t.Errorf("second nickname = %q, want fallback", got)
	}
}

func TestFakeChatHandler_ConcurrentLookupsKeepInputOrder(t *testing.T) {
	t.Parallel()

	ids := []string{"1000001", "1000002", "1000003", "1000001", "1000005"}
	resolver := &mapResolver{
		names: map[string]string{"1000001": "a", "1000002": "b", "1000003": "c", "1000005": "e"},
		delay: map[string]time.Duration{"1000001": 60 * time.Millisecond, "1000002": 30 * time.Millisecond},
	}

	pieces := make([]string, len(ids))
	for i, id := range ids {
		pieces[i] = id + " msg" + id
	}

	reply := &recordingReplier{}
	h := handlers.NewFakeChatHandler(testDeps(fakeGenerator{text: strings.Join(pieces, " | ")}, resolver, nil))
	h(context.Background(), testRequest, reply)

	if len(reply.nodes) != 1 || len(reply.nodes[0]) != len(ids) {
		t.Fatalf("nodes = %+v", reply.nodes)
	}
	wantNames := []string{"a", "b", "c", "a", "e"}
	for i, n := range reply.nodes[0] {
		if n.Content != "msg"+ids[i] || n.Nickname != wantNames[i] {
			t.Errorf("node %d = %+v, want id %s nickname %s", i, n, ids[i], wantNames[i])
		}
	}
	if len(resolver.calls) != len(ids) {
		t.Errorf("lookups = %d, want %d (duplicates are not cached)", len(resolver.calls), len(ids))
	}
}

func TestFakeChatHandler_DeliveryFailureIsReported(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	reply := &recordingReplier{nodeErr: errors.New("retcode 1200")}
	h := handlers.NewFakeChatHandler(testDeps(fakeGenerator{text: "10001 hi"}, &mapResolver{}, store))
	h(context.Background(), testRequest, reply)

	if len(reply.texts) != 2 || !strings.HasPrefix(reply.texts[1], config.DefaultMessages.FailurePrefix) ||
		!strings.Contains(reply.texts[1], "retcode 1200") {
		t.Errorf("texts = %q, want failure report", reply.texts)
	}
	if len(store.saved) != 0 {
		t.Error("undelivered generation was archived")
	}
}

func TestFakeChatHandler_ArchiveFailureIsIgnored(t *testing.T) {
	t.Parallel()

	reply := &recordingReplier{}
	store := &fakeStore{err: errors.New("disk full")}
	h := handlers.NewFakeChatHandler(testDeps(fakeGenerator{text: "10001 hi"}, &mapResolver{}, store))
	h(context.Background(), testRequest, reply)

	if len(reply.nodes) != 1 || len(reply.texts) != 1 {
		t.Errorf("texts = %q nodes = %d, want a normal delivery", reply.texts, len(reply.nodes))
	}
}

func TestFakeChatHandler_ProgressFailureDoesNotStopGeneration(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	reply := &recordingReplier{failTexts: 1}
	h := handlers.NewFakeChatHandler(testDeps(fakeGenerator{text: "10001 hi"}, &mapResolver{names: map[string]string{"10001": "小明"}}, store))
	h(context.Background(), testRequest, reply)

	if len(reply.texts) != 0 {
		t.Errorf("texts = %q, want none", reply.texts)
	}
	if len(reply.nodes) != 1 || len(reply.nodes[0]) != 1 || reply.nodes[0][0].Nickname != "小明" {
		t.Fatalf("nodes = %+v, want one delivered node", reply.nodes)
	}
	if len(store.saved) != 1 {
		t.Errorf("archived %d generations, want 1", len(store.saved))
	}
}

func TestFakeChatHandler_FullwidthIDs(t *testing.T) {
	t.Parallel()

	resolver := &mapResolver{names: map[string]string{"１２３４５６７": "小明"}}
	reply := &recordingReplier{}
	h := handlers.NewFakeChatHandler(testDeps(fakeGenerator{text: "１２３４５６７ 在吗"}, resolver, nil))
	h(context.Background(), testRequest, reply)

	want := platform.Node{UserID: 1234567, Nickname: "小明", Content: "在吗"}
	if len(reply.nodes) != 1 || len(reply.nodes[0]) != 1 || reply.nodes[0][0] != want {
		t.Fatalf("nodes = %+v, want [%+v]", reply.nodes, want)
	}
	if len(resolver.calls) != 1 || resolver.calls[0] != "１２３４５６７" {
		t.Errorf("lookups = %q, want the id as generated", resolver.calls)
	}
}
