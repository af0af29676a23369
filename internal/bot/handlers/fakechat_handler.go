package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/aishitbot/internal/chatlog"
	"github.com/edgard/aishitbot/internal/database"
	"github.com/edgard/aishitbot/internal/platform"
)

// NewFakeChatHandler returns the handler that generates a fake chat log and
// replies with it as grouped nodes.
func NewFakeChatHandler(deps HandlerDeps) platform.CommandFunc {
	return fakeChatHandler{deps}.Handle
}

type fakeChatHandler struct {
	deps HandlerDeps
}

// sender is a segment whose id fits a sender id.
type sender struct {
	userID  int64
	segment chatlog.Segment
}

func (h fakeChatHandler) Handle(ctx context.Context, req platform.Request, reply platform.Replier) {
	log := h.deps.Logger.With("handler", "fake_chat", "platform", req.Platform, "chat_id", req.ChatID)
	log.InfoContext(ctx, "Handling fake chat command", "user_id", req.UserID)

	if err := h.run(ctx, log, req, reply); err != nil {
		log.ErrorContext(ctx, "Fake chat command failed", "error", err)
		replyDetached(ctx, log, reply, h.deps.Config.Messages.FailurePrefix+err.Error())
	}
}

// run returns only unclassified failures; parse and match failures are
// answered in place.
func (h fakeChatHandler) run(ctx context.Context, log *slog.Logger, req platform.Request, reply platform.Replier) error {
	msgs := h.deps.Config.Messages

	// The progress notice is best effort; generation goes on without it.
	if err := reply.Text(ctx, msgs.Generating); err != nil {
		log.WarnContext(ctx, "Failed to send progress message", "error", err)
	}

	completion, err := h.deps.Generator.Generate(ctx)
	if err != nil {
		return err
	}

	segments := chatlog.Parse(completion)
	if len(segments) == 0 {
		log.WarnContext(ctx, "Completion has no valid segments", "completion", completion)
		return reply.Text(ctx, msgs.ParseEmpty)
	}

	senders := lo.FilterMap(segments, func(seg chatlog.Segment, _ int) (sender, bool) {
		id, err := seg.UserID()
		if err != nil {
			log.WarnContext(ctx, "Dropping segment with unusable sender id", "id", seg.ID, "error", err)
			return sender{}, false
		}
		return sender{userID: id, segment: seg}, true
	})
	if len(senders) == 0 {
		return reply.Text(ctx, msgs.NoNodes)
	}

	names := h.resolveNicknames(ctx, senders)
	nodes := lo.Map(senders, func(s sender, i int) platform.Node {
		return platform.Node{UserID: s.userID, Nickname: names[i], Content: s.segment.Content}
	})

	if err := reply.Nodes(ctx, nodes); err != nil {
		return fmt.Errorf("failed to send chat log: %w", err)
	}
	log.InfoContext(ctx, "Fake chat log delivered", "segments", len(segments), "nodes", len(nodes))

	h.archive(ctx, log, req, completion, len(segments), nodes)
	return nil
}

// resolveNicknames looks up every sender with at most nickname.concurrency
// requests in flight. names[i] belongs to senders[i].
func (h fakeChatHandler) resolveNicknames(ctx context.Context, senders []sender) []string {
	names := make([]string, len(senders))

	var g errgroup.Group
	g.SetLimit(max(h.deps.Config.Nickname.Concurrency, 1))
	for i, s := range senders {
		g.Go(func() error {
			names[i] = h.deps.Resolver.Resolve(ctx, s.segment.ID)
			return nil
		})
	}
	_ = g.Wait()

	return names
}

func (h fakeChatHandler) archive(ctx context.Context, log *slog.Logger, req platform.Request, completion string, segments int, nodes []platform.Node) {
	if h.deps.Store == nil {
		return
	}

	gen := &database.Generation{
		Platform:     req.Platform,
		ChatID:       req.ChatID,
		RequestedBy:  req.UserID,
		Completion:   completion,
		SegmentCount: segments,
		Nodes: lo.Map(nodes, func(n platform.Node, _ int) database.GenerationNode {
			return database.GenerationNode{UserID: n.UserID, Nickname: n.Nickname, Content: n.Content}
		}),
	}
	if err := h.deps.Store.SaveGeneration(ctx, gen); err != nil {
		log.WarnContext(ctx, "Failed to archive generation", "error", err)
		return
	}
	log.DebugContext(ctx, "Generation archived", "generation_id", gen.ID)
}
