package executor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/eco-queue/internal/chat"
	"github.com/phrazzld/eco-queue/internal/executor"
	"github.com/phrazzld/eco-queue/internal/mocks"
	"github.com/phrazzld/eco-queue/internal/task"
)

const groupID int64 = -1001234567890

var promo = executor.PromoConfig{Topic: "Bonuses", Text: "Grab your bonus", Button: "Open app"}

type provisionerFunc func(ctx context.Context, req *task.CreateChat) error

func (f provisionerFunc) Provision(ctx context.Context, req *task.CreateChat) error { return f(ctx, req) }

func setup(t *testing.T, provisioner executor.Provisioner) (*mocks.FakeChatClient, *executor.Registry) {
	t.Helper()
	client := mocks.NewFakeChatClient()
	client.AddChat(groupID, "Lenina, 10", true,
		chat.Topic{ID: 11, Title: "General"},
		chat.Topic{ID: 12, Title: "Marketplace"},
		chat.Topic{ID: 13, Title: "Elections"},
	)
	return client, executor.NewRegistry(client, chat.NewResolver(client, 0), provisioner, promo, nil)
}

func newTask(t *testing.T, p task.Payload) *task.Task {
	t.Helper()
	raw, err := task.Encode(p)
	require.NoError(t, err)
	return &task.Task{ID: 1, Type: p.TaskType(), Payload: raw}
}

func TestExecute_SendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("by topic id with pin", func(t *testing.T) {
		client, reg := setup(t, nil)
		err := reg.Execute(ctx, newTask(t, task.SendMessage{
			ChatID:   groupID,
			TopicRef: task.TopicRef{TopicID: 13},
			Text:     "Welcome",
			Pin:      true,
		}))
		require.NoError(t, err)

		group := client.Chat(groupID)
		require.Len(t, group.Messages, 1)
		assert.Equal(t, 13, group.Messages[0].TopicID)
		assert.Len(t, group.Pinned, 1)
	})

	t.Run("by exact topic name", func(t *testing.T) {
		client, reg := setup(t, nil)
		err := reg.Execute(ctx, newTask(t, task.SendMessage{
			ChatID:   groupID,
			TopicRef: task.TopicRef{TopicName: "Marketplace"},
			Text:     "For sale: bicycle",
		}))
		require.NoError(t, err)

		group := client.Chat(groupID)
		require.Len(t, group.Messages, 1)
		assert.Equal(t, 12, group.Messages[0].TopicID)
		assert.Empty(t, group.Pinned)
	})

	t.Run("unknown topic name fails hard", func(t *testing.T) {
		client, reg := setup(t, nil)
		err := reg.Execute(ctx, newTask(t, task.SendMessage{
			ChatID:   groupID,
			TopicRef: task.TopicRef{TopicName: "marketplace"},
			Text:     "hi",
		}))
		assert.ErrorIs(t, err, chat.ErrTopicNotFound)
		assert.Equal(t, executor.KindFailed, executor.Classify(err).Kind)
		assert.Zero(t, client.Calls("SendMessage"))
	})

	t.Run("unknown chat fails hard after one refresh", func(t *testing.T) {
		client, reg := setup(t, nil)
		err := reg.Execute(ctx, newTask(t, task.SendMessage{
			ChatID:   -1009999999999,
			TopicRef: task.TopicRef{TopicID: 1},
			Text:     "hi",
		}))
		assert.ErrorIs(t, err, chat.ErrEntityNotFound)
		assert.Equal(t, 1, client.Calls("RecentDialogs"))
		assert.Equal(t, executor.KindFailed, executor.Classify(err).Kind)
	})

	t.Run("flood wait is reported", func(t *testing.T) {
		client, reg := setup(t, nil)
		client.FailNext("SendMessage", &chat.FloodWaitError{Seconds: 45})
		err := reg.Execute(ctx, newTask(t, task.SendMessage{
			ChatID:   groupID,
			TopicRef: task.TopicRef{TopicID: 11},
			Text:     "hi",
		}))
		c := executor.Classify(err)
		assert.Equal(t, executor.KindRateLimited, c.Kind)
		assert.Equal(t, 45, c.Wait)
	})
}

func TestExecute_CreatePoll(t *testing.T) {
	client, reg := setup(t, nil)

	err := reg.Execute(context.Background(), newTask(t, task.CreatePoll{
		ChatID:   groupID,
		TopicRef: task.TopicRef{TopicName: "Elections"},
		Question: "Who will be the house admin?",
		Options:  []string{"Me", "Someone else"},
	}))
	require.NoError(t, err)

	group := client.Chat(groupID)
	require.Len(t, group.Polls, 1)
	poll := group.Polls[0]
	assert.Equal(t, 13, poll.TopicID)
	assert.False(t, poll.Quiz)
	assert.False(t, poll.MultipleChoice)
	assert.True(t, poll.PublicVoters)
	assert.Equal(t, []string{"Me", "Someone else"}, poll.Options)
}

func TestExecute_TopicEdits(t *testing.T) {
	ctx := context.Background()
	client, reg := setup(t, nil)

	ref := task.TopicRef{TopicName: "General"}

	require.NoError(t, reg.Execute(ctx, newTask(t, task.CloseTopic{ChatID: groupID, TopicRef: ref})))
	assert.True(t, client.Chat(groupID).Topics[0].Closed)

	err := reg.Execute(ctx, newTask(t, task.CloseTopic{ChatID: groupID, TopicRef: ref}))
	require.Error(t, err)
	assert.Equal(t, executor.KindSkipped, executor.Classify(err).Kind, "closing a closed topic is already done")

	require.NoError(t, reg.Execute(ctx, newTask(t, task.OpenTopic{ChatID: groupID, TopicRef: task.TopicRef{TopicID: 11}})))
	assert.False(t, client.Chat(groupID).Topics[0].Closed)

	require.NoError(t, reg.Execute(ctx, newTask(t, task.RenameTopic{
		ChatID:   groupID,
		TopicRef: task.TopicRef{TopicID: 12},
		NewTitle: "Flea market",
	})))
	assert.Equal(t, "Flea market", client.Chat(groupID).Topics[1].Title)
}

func TestExecute_UpdatePermissions(t *testing.T) {
	client, reg := setup(t, nil)
	perms := chat.Permissions{SendMessages: true, InviteUsers: true}

	require.NoError(t, reg.Execute(context.Background(), newTask(t, task.UpdatePermissions{
		ChatID:      groupID,
		Permissions: perms,
	})))
	assert.Equal(t, perms, client.Chat(groupID).Permissions)

	err := reg.Execute(context.Background(), newTask(t, task.UpdatePermissions{ChatID: groupID, Permissions: perms}))
	assert.Equal(t, executor.KindSkipped, executor.Classify(err).Kind)
}

func TestExecute_CreatePromo(t *testing.T) {
	ctx := context.Background()
	client, reg := setup(t, nil)
	req := task.CreatePromo{ChatID: groupID, URL: "https://app.example.com/promo?ref=lenina10"}

	require.NoError(t, reg.Execute(ctx, newTask(t, req)))
	require.NoError(t, reg.Execute(ctx, newTask(t, req)))

	assert.Equal(t, 1, client.Calls("CreateTopic"), "promo topic is created once and reused")

	group := client.Chat(groupID)
	require.Len(t, group.Topics, 4)
	promoTopic := group.Topics[3]
	assert.Equal(t, "Bonuses", promoTopic.Title)

	require.Len(t, group.Messages, 2)
	msg := group.Messages[0]
	assert.Equal(t, promoTopic.ID, msg.TopicID)
	assert.Equal(t, "Grab your bonus", msg.Text)
	require.Len(t, msg.Buttons, 1)
	assert.Equal(t, chat.URLButton{Text: "Open app", URL: req.URL}, msg.Buttons[0])
}

func TestExecute_CreateChat(t *testing.T) {
	var got *task.CreateChat
	_, reg := setup(t, provisionerFunc(func(_ context.Context, req *task.CreateChat) error {
		got = req
		return nil
	}))

	require.NoError(t, reg.Execute(context.Background(), newTask(t, task.CreateChat{Address: "Lenina, 10", District: "Central"})))
	require.NotNil(t, got)
	assert.Equal(t, "Lenina, 10", got.Address)

	_, bare := setup(t, nil)
	assert.Error(t, bare.Execute(context.Background(), newTask(t, task.CreateChat{Address: "Lenina, 10"})))
}

func TestExecute_BadTasks(t *testing.T) {
	_, reg := setup(t, nil)
	ctx := context.Background()

	err := reg.Execute(ctx, &task.Task{ID: 1, Type: "launch_rocket", Payload: []byte(`{}`)})
	assert.ErrorIs(t, err, task.ErrUnknownType)

	err = reg.Execute(ctx, &task.Task{ID: 2, Type: task.TypeSendMessage, Payload: []byte(`{"chat_id": 1}`)})
	assert.ErrorIs(t, err, task.ErrInvalidPayload)
	assert.Equal(t, executor.KindFailed, executor.Classify(err).Kind)
}
