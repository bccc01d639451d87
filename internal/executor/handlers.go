package executor

import (
	"context"
	"fmt"

	"github.com/phrazzld/eco-queue/internal/chat"
	"github.com/phrazzld/eco-queue/internal/task"
)

func (r *Registry) createChat(ctx context.Context, p task.Payload) error {
	req := p.(*task.CreateChat)
	if r.provisioner == nil {
		return fmt.Errorf("create_chat: no provisioner configured")
	}
	return r.provisioner.Provision(ctx, req)
}

// createPromo reuses an existing promo topic so a retried task does not
// create a second one.
func (r *Registry) createPromo(ctx context.Context, p task.Payload) error {
	req := p.(*task.CreatePromo)
	peer, err := r.resolver.Resolve(ctx, req.ChatID)
	if err != nil {
		return err
	}

	topicID, err := FindTopic(ctx, r.client, peer, r.promo.Topic)
	if err != nil && !isTopicNotFound(err) {
		return err
	}
	if topicID == 0 {
		topicID, err = r.client.CreateTopic(ctx, peer, r.promo.Topic)
		if err != nil {
			return fmt.Errorf("create promo topic: %w", err)
		}
	}

	_, err = r.client.SendMessage(ctx, peer, chat.Message{
		TopicID: topicID,
		Text:    r.promo.Text,
		Buttons: []chat.URLButton{{Text: r.promo.Button, URL: req.URL}},
	})
	if err != nil {
		return fmt.Errorf("send promo message: %w", err)
	}
	return nil
}

func (r *Registry) sendMessage(ctx context.Context, p task.Payload) error {
	req := p.(*task.SendMessage)
	peer, topicID, err := r.target(ctx, req.ChatID, req.TopicRef)
	if err != nil {
		return err
	}

	msgID, err := r.client.SendMessage(ctx, peer, chat.Message{TopicID: topicID, Text: req.Text})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if req.Pin {
		if err := r.client.PinMessage(ctx, peer, msgID); err != nil {
			return fmt.Errorf("pin message %d: %w", msgID, err)
		}
	}
	return nil
}

func (r *Registry) createPoll(ctx context.Context, p task.Payload) error {
	req := p.(*task.CreatePoll)
	peer, topicID, err := r.target(ctx, req.ChatID, req.TopicRef)
	if err != nil {
		return err
	}

	_, err = r.client.SendPoll(ctx, peer, chat.Poll{
		TopicID:        topicID,
		Question:       req.Question,
		Options:        req.Options,
		Quiz:           false,
		MultipleChoice: false,
		PublicVoters:   true,
	})
	if err != nil {
		return fmt.Errorf("send poll: %w", err)
	}
	return nil
}

func (r *Registry) closeTopic(ctx context.Context, p task.Payload) error {
	req := p.(*task.CloseTopic)
	return r.editTopic(ctx, req.ChatID, req.TopicRef, chat.TopicEdit{Closed: boolPtr(true)})
}

func (r *Registry) openTopic(ctx context.Context, p task.Payload) error {
	req := p.(*task.OpenTopic)
	return r.editTopic(ctx, req.ChatID, req.TopicRef, chat.TopicEdit{Closed: boolPtr(false)})
}

func (r *Registry) renameTopic(ctx context.Context, p task.Payload) error {
	req := p.(*task.RenameTopic)
	title := req.NewTitle
	return r.editTopic(ctx, req.ChatID, req.TopicRef, chat.TopicEdit{Title: &title})
}

func (r *Registry) updatePermissions(ctx context.Context, p task.Payload) error {
	req := p.(*task.UpdatePermissions)
	peer, err := r.resolver.Resolve(ctx, req.ChatID)
	if err != nil {
		return err
	}
	if err := r.client.SetDefaultPermissions(ctx, peer, req.Permissions); err != nil {
		return fmt.Errorf("update permissions: %w", err)
	}
	return nil
}

func (r *Registry) editTopic(ctx context.Context, chatID int64, ref task.TopicRef, edit chat.TopicEdit) error {
	peer, topicID, err := r.target(ctx, chatID, ref)
	if err != nil {
		return err
	}
	if err := r.client.EditTopic(ctx, peer, topicID, edit); err != nil {
		return fmt.Errorf("edit topic %d: %w", topicID, err)
	}
	return nil
}

// target resolves the chat and the topic a payload addresses.
func (r *Registry) target(ctx context.Context, chatID int64, ref task.TopicRef) (chat.Peer, int, error) {
	peer, err := r.resolver.Resolve(ctx, chatID)
	if err != nil {
		return chat.Peer{}, 0, err
	}
	if ref.TopicID > 0 {
		return peer, ref.TopicID, nil
	}
	topicID, err := FindTopic(ctx, r.client, peer, ref.TopicName)
	if err != nil {
		return chat.Peer{}, 0, err
	}
	return peer, topicID, nil
}

func boolPtr(b bool) *bool { return &b }
