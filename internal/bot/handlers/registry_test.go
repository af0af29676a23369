package handlers_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/edgard/aishitbot/internal/bot/handlers"
	"github.com/edgard/aishitbot/internal/config"
	"github.com/edgard/aishitbot/internal/logger"
	"github.com/edgard/aishitbot/internal/platform"
)

type captureHost struct {
	name     string
	commands map[string]platform.CommandFunc
}

func (h *captureHost) Name() string { return h.name }

func (h *captureHost) OnCommand(name string, fn platform.CommandFunc) {
	h.commands[name] = fn
}

func (h *captureHost) Run(context.Context) error { return nil }

func register(t *testing.T, deps handlers.HandlerDeps) platform.CommandFunc {
	t.Helper()
	hosts := []platform.Host{
		&captureHost{name: "a", commands: map[string]platform.CommandFunc{}},
		&captureHost{name: "b", commands: map[string]platform.CommandFunc{}},
	}
	handlers.RegisterHandlers(hosts, handlers.RegisterAllCommands(deps), logger.Discard())

	for _, h := range hosts {
		if _, ok := h.(*captureHost).commands["ai造屎"]; !ok {
			t.Fatalf("host %s has no ai造屎 command", h.Name())
		}
	}
	return hosts[0].(*captureHost).commands["ai造屎"]
}

func TestRegisteredCommand_RecoversPanics(t *testing.T) {
	t.Parallel()

	fn := register(t, testDeps(fakeGenerator{panic: "boom"}, &mapResolver{}, nil))

	reply := &recordingReplier{}
	fn(context.Background(), testRequest, reply)

	want := config.DefaultMessages.FailurePrefix + "boom"
	if len(reply.texts) != 2 || reply.texts[1] != want {
		t.Errorf("texts = %q, want failure report %q", reply.texts, want)
	}
}

func TestRegisteredCommand_Timeout(t *testing.T) {
	t.Parallel()

	deps := testDeps(fakeGenerator{block: true}, &mapResolver{}, nil)
	deps.Config.Bot.CommandTimeout = 50 * time.Millisecond
	fn := register(t, deps)

	reply := &recordingReplier{}
	done := make(chan struct{})
	go func() {
		fn(context.Background(), testRequest, reply)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("command did not honour its timeout")
	}

	if len(reply.texts) != 2 || !strings.HasPrefix(reply.texts[1], config.DefaultMessages.FailurePrefix) ||
		!strings.Contains(reply.texts[1], "deadline exceeded") {
		t.Errorf("texts = %q, want deadline failure report", reply.texts)
	}
}

func TestRegisterHandlers_Empty(t *testing.T) {
	t.Parallel()

	host := &captureHost{name: "a", commands: map[string]platform.CommandFunc{}}
	handlers.RegisterHandlers([]platform.Host{host}, nil, logger.Discard())
	if len(host.commands) != 0 {
		t.Errorf("commands = %v, want none", host.commands)
	}
}
