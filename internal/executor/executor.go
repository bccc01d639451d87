package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/eco-queue/internal/chat"
	"github.com/phrazzld/eco-queue/internal/platform/logger"
	"github.com/phrazzld/eco-queue/internal/task"
)

// Handler executes one decoded payload.
type Handler func(ctx context.Context, p task.Payload) error

// Provisioner creates a complete ecosystem for a create_chat task.
type Provisioner interface {
	Provision(ctx context.Context, req *task.CreateChat) error
}

// PeerResolver turns a stored chat id into a usable peer.
type PeerResolver interface {
	Resolve(ctx context.Context, chatID int64) (chat.Peer, error)
}

// PromoConfig is the fixed content of a create_promo task.
type PromoConfig struct {
	Topic  string
	Text   string
	Button string
}

// Registry routes tasks to their handlers.
type Registry struct {
	client      chat.Client
	resolver    PeerResolver
	provisioner Provisioner
	promo       PromoConfig
	handlers    map[task.Type]Handler
	logger      *slog.Logger
}

// NewRegistry wires a handler for every task type.
func NewRegistry(
	client chat.Client,
	resolver PeerResolver,
	provisioner Provisioner,
	promo PromoConfig,
	logger *slog.Logger,
) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		client:      client,
		resolver:    resolver,
		provisioner: provisioner,
		promo:       promo,
		logger:      logger.With(slog.String("component", "executor")),
	}
	r.handlers = map[task.Type]Handler{
		task.TypeCreateChat:        r.createChat,
		task.TypeCreatePromo:       r.createPromo,
		task.TypeSendMessage:       r.sendMessage,
		task.TypeCreatePoll:        r.createPoll,
		task.TypeCloseTopic:        r.closeTopic,
		task.TypeOpenTopic:         r.openTopic,
		task.TypeRenameTopic:       r.renameTopic,
		task.TypeUpdatePermissions: r.updatePermissions,
	}
	return r
}

// Execute decodes t's payload and runs the matching handler.
func (r *Registry) Execute(ctx context.Context, t *task.Task) error {
	log := logger.FromContextOrDefault(ctx, r.logger)

	h, ok := r.handlers[t.Type]
	if !ok {
		return fmt.Errorf("%w: %q", task.ErrUnknownType, string(t.Type))
	}
	p, err := task.Decode(t.Type, t.Payload)
	if err != nil {
		return err
	}

	log.Debug("executing task",
		slog.Int64("task_id", t.ID),
		slog.String("task_type", string(t.Type)))
	return h(ctx, p)
}
