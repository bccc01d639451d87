package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/phrazzld/eco-queue/internal/chat"
	"github.com/phrazzld/eco-queue/internal/config"
	"github.com/phrazzld/eco-queue/internal/domain"
	"github.com/phrazzld/eco-queue/internal/platform/logger"
	"github.com/phrazzld/eco-queue/internal/redact"
	"github.com/phrazzld/eco-queue/internal/store"
	"github.com/phrazzld/eco-queue/internal/task"
)

// ErrEmptyTitle is returned when an address yields no usable title.
var ErrEmptyTitle = errors.New("address does not yield a title")

// DefaultPermissions is the member policy of a new ecosystem: members may
// talk and invite but not change group info or pin.
var DefaultPermissions = chat.Permissions{
	SendMessages: true,
	SendMedia:    true,
	SendPolls:    true,
	ChangeInfo:   false,
	InviteUsers:  true,
	PinMessages:  false,
	ManageTopics: false,
}

// Registry persists ecosystems.
type Registry interface {
	// FindByTitle returns store.ErrEcosystemNotFound when no ecosystem has title.
	FindByTitle(ctx context.Context, title string) (*domain.Ecosystem, error)
	// Record upserts e and, when link is non-nil, its short link, atomically.
	Record(ctx context.Context, e *domain.Ecosystem, link *domain.ShortLink) error
}

// Enqueuer accepts deferred follow-up tasks.
type Enqueuer interface {
	Enqueue(ctx context.Context, typ task.Type, payload []byte, scheduledAt time.Time) (int64, error)
}

// Provisioner runs the ecosystem creation saga.
type Provisioner struct {
	client   chat.Client
	registry Registry
	tasks    Enqueuer
	cfg      config.ProvisionConfig
	logger   *slog.Logger
}

// New creates a Provisioner.
func New(
	client chat.Client,
	registry Registry,
	tasks Enqueuer,
	cfg config.ProvisionConfig,
	logger *slog.Logger,
) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{
		client:   client,
		registry: registry,
		tasks:    tasks,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "provisioner")),
	}
}

// Provision creates the ecosystem described by req. An ecosystem that already
// exists under the derived title fails with domain.ErrDuplicateEcosystem
// before any platform call is made.
func (p *Provisioner) Provision(ctx context.Context, req *task.CreateChat) error {
	log := logger.FromContextOrDefault(ctx, p.logger)

	title := DeriveTitle(req.Address)
	if title == "" {
		return fmt.Errorf("%w: %q", ErrEmptyTitle, req.Address)
	}

	existing, err := p.registry.FindByTitle(ctx, title)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %q is chat %d", domain.ErrDuplicateEcosystem, title, existing.ChatID)
	case !errors.Is(err, store.ErrEcosystemNotFound):
		return fmt.Errorf("duplicate check: %w", err)
	}

	peer, err := p.client.CreateGroup(ctx, title, req.District)
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	log = log.With(slog.Int64("chat_id", peer.ID), slog.String("title", title))
	log.Info("group created")

	eco, err := domain.NewEcosystem(peer.ID, title, req.District)
	if err != nil {
		return err
	}
	if err := p.registry.Record(ctx, eco, nil); err != nil {
		return fmt.Errorf("record ecosystem: %w", err)
	}

	link, err := p.build(ctx, peer, eco, req.ShortCode)
	if err == nil {
		eco.MarkReady()
		err = p.registry.Record(ctx, eco, link)
		if err != nil {
			err = fmt.Errorf("record ecosystem: %w", err)
		}
	}
	if err == nil {
		err = p.enqueueFollowUps(ctx, eco)
	}
	if err != nil {
		eco.MarkIncomplete(redact.ErrorText(err))
		if recErr := p.registry.Record(ctx, eco, nil); recErr != nil {
			log.Error("failed to record incomplete ecosystem",
				slog.String("error", recErr.Error()))
		}
		log.Warn("ecosystem provisioning stopped part way", slog.String("error", err.Error()))
		return err
	}

	log.Info("ecosystem provisioned",
		slog.Int("marketplace_topic_id", eco.MarketplaceTopicID),
		slog.Int("admin_topic_id", eco.AdminTopicID))
	return nil
}

// build performs the platform steps after group creation and fills in eco.
func (p *Provisioner) build(ctx context.Context, peer chat.Peer, eco *domain.Ecosystem, shortCode string) (*domain.ShortLink, error) {
	if err := p.client.ToggleForum(ctx, peer, true); err != nil && !chat.IsAlreadyDone(err) {
		return nil, fmt.Errorf("enable forum: %w", err)
	}
	if err := p.client.SetDefaultPermissions(ctx, peer, DefaultPermissions); err != nil && !chat.IsAlreadyDone(err) {
		return nil, fmt.Errorf("set default permissions: %w", err)
	}

	ids := make([]int, len(p.cfg.Topics))
	for i, name := range p.cfg.Topics {
		id, err := p.client.CreateTopic(ctx, peer, name)
		if err != nil {
			return nil, fmt.Errorf("create topic %q: %w", name, err)
		}
		ids[i] = id
	}
	eco.MarketplaceTopicID = ids[p.cfg.MarketplaceTopic]
	eco.AdminTopicID = ids[p.cfg.AdminTopic]

	for _, bot := range p.companions() {
		if err := p.client.InviteMember(ctx, peer, bot); err != nil && !chat.IsAlreadyDone(err) {
			return nil, fmt.Errorf("invite %s: %w", bot, err)
		}
	}
	if p.cfg.ReadOnlyBot != "" {
		if err := p.client.RestrictMember(ctx, peer, p.cfg.ReadOnlyBot, chat.ReadOnly); err != nil && !chat.IsAlreadyDone(err) {
			return nil, fmt.Errorf("restrict %s: %w", p.cfg.ReadOnlyBot, err)
		}
	}

	inviteLink, err := p.client.ExportInviteLink(ctx, peer)
	if err != nil {
		return nil, fmt.Errorf("export invite link: %w", err)
	}
	eco.InviteLink = inviteLink

	if shortCode == "" {
		return nil, nil
	}
	return &domain.ShortLink{Code: shortCode, ChatID: eco.ChatID, InviteLink: inviteLink}, nil
}

// companions lists the bots to invite, including the read-only bot once.
func (p *Provisioner) companions() []string {
	bots := append([]string(nil), p.cfg.Bots...)
	if p.cfg.ReadOnlyBot != "" && !slices.Contains(bots, p.cfg.ReadOnlyBot) {
		bots = append(bots, p.cfg.ReadOnlyBot)
	}
	return bots
}

// enqueueFollowUps defers the welcome message and the election poll to the
// admin topic.
func (p *Provisioner) enqueueFollowUps(ctx context.Context, eco *domain.Ecosystem) error {
	admin := task.TopicRef{TopicID: eco.AdminTopicID}

	followUps := []task.Payload{
		task.SendMessage{ChatID: eco.ChatID, TopicRef: admin, Text: p.cfg.WelcomeText, Pin: p.cfg.PinWelcome},
		task.CreatePoll{ChatID: eco.ChatID, TopicRef: admin, Question: p.cfg.PollQuestion, Options: p.cfg.PollOptions},
	}
	for _, f := range followUps {
		raw, err := task.Encode(f)
		if err != nil {
			return err
		}
		if _, err := p.tasks.Enqueue(ctx, f.TaskType(), raw, time.Time{}); err != nil {
			return fmt.Errorf("enqueue %s: %w", f.TaskType(), err)
		}
	}
	return nil
}
