package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/eco-queue/internal/chat"
	"github.com/phrazzld/eco-queue/internal/config"
	"github.com/phrazzld/eco-queue/internal/executor"
	"github.com/phrazzld/eco-queue/internal/mocks"
	"github.com/phrazzld/eco-queue/internal/provision"
	"github.com/phrazzld/eco-queue/internal/task"
)

func TestProcessOne_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		execErr    error
		wantStatus task.Status
		wantKind   executor.Kind
		checkError func(t *testing.T, text string)
	}{
		{
			name:       "completed",
			wantStatus: task.StatusCompleted,
			wantKind:   executor.KindCompleted,
			checkError: func(t *testing.T, text string) { assert.Empty(t, text) },
		},
		{
			name:       "already done is skipped",
			execErr:    &chat.APIError{Code: "TOPIC_NOT_MODIFIED", Message: "topic not modified"},
			wantStatus: task.StatusCompleted,
			wantKind:   executor.KindSkipped,
			checkError: func(t *testing.T, text string) {
				assert.True(t, strings.HasPrefix(text, task.SkippedPrefix), text)
			},
		},
		{
			name:       "hard failure keeps the error text",
			execErr:    errors.New("CHAT_ADMIN_REQUIRED"),
			wantStatus: task.StatusFailed,
			wantKind:   executor.KindFailed,
			checkError: func(t *testing.T, text string) { assert.Equal(t, "CHAT_ADMIN_REQUIRED", text) },
		},
		{
			name:       "unresolvable chat fails",
			execErr:    chat.ErrEntityNotFound,
			wantStatus: task.StatusFailed,
			wantKind:   executor.KindFailed,
			checkError: func(t *testing.T, text string) { assert.Contains(t, text, "entity not found") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			id := h.enqueue(t, welcome, 0)
			if tt.execErr != nil {
				h.exec.errs = []error{tt.execErr}
			}

			res, err := h.d.ProcessOne(context.Background(), "", false)
			require.NoError(t, err)
			assert.Equal(t, StatusProcessed, res.Status)
			assert.Equal(t, id, res.TaskID)
			assert.Equal(t, tt.wantKind, res.Outcome)

			got := h.get(t, id)
			assert.Equal(t, tt.wantStatus, got.Status)
			tt.checkError(t, got.Error)

			wait, err := h.governor.WaitSeconds(context.Background())
			require.NoError(t, err)
			assert.Zero(t, wait)
		})
	}
}

func TestProcessOne_FloodWait(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.enqueue(t, welcome, 0)
	h.exec.errs = []error{&chat.FloodWaitError{Seconds: 45}}

	res, err := h.d.ProcessOne(ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, executor.KindRateLimited, res.Outcome)
	assert.Equal(t, 45, res.WaitSeconds)

	got := h.get(t, id)
	assert.Equal(t, task.StatusPending, got.Status)
	assert.Equal(t, h.clock.Now().Add(45*time.Second), got.ScheduledAt)
	assert.Equal(t, "FloodWait: 45s", got.Error)
	assert.Empty(t, got.ClaimedBy)

	wait, err := h.governor.WaitSeconds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 45, wait)

	counts, err := h.tasks.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Postponed)
}

func TestProcessOne_GovernorBlocksClaim(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.enqueue(t, welcome, 0)
	require.NoError(t, h.governor.SetWait(ctx, 60))

	res, err := h.d.ProcessOne(ctx, "", true)
	require.NoError(t, err)
	assert.Equal(t, StatusRateLimited, res.Status)
	assert.Equal(t, 60, res.WaitSeconds)
	assert.Empty(t, h.exec.Ran())
	assert.Equal(t, task.StatusPending, h.get(t, id).Status)

	h.clock.Advance(61 * time.Second)
	res, err = h.d.ProcessOne(ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, res.Status)
}

func TestProcessOne_IdleAndQueueFilter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.d.ProcessOne(ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, res.Status)

	h.enqueue(t, closing, 0)
	res, err = h.d.ProcessOne(ctx, task.QueueMessages, false)
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, res.Status)

	res, err = h.d.ProcessOne(ctx, task.QueueTopics, false)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, res.Status)
	assert.Equal(t, task.TypeCloseTopic, res.TaskType)
	require.Len(t, h.exec.Ran(), 1)
	assert.True(t, strings.HasPrefix(h.exec.Ran()[0].ClaimedBy, h.d.Owner()+"/"))
}

func TestProcessOne_ForceIgnoresSchedule(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, welcome, time.Hour)

	res, err := h.d.ProcessOne(context.Background(), "", false)
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, res.Status)

	res, err = h.d.ProcessOne(context.Background(), "", true)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, res.Status)
}

func TestProcessOne_DuplicateCreateChatIsSkipped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	client := mocks.NewFakeChatClient()
	provisioner := provision.New(client, mocks.NewEcosystemRegistry(), h.tasks, config.ProvisionConfig{
		Topics:           []string{"General", "Marketplace", "Elections", "Repairs"},
		MarketplaceTopic: 1,
		AdminTopic:       2,
		WelcomeText:      "Welcome, neighbours!",
		PollQuestion:     "Who will be the house admin?",
		PollOptions:      []string{"Me", "Someone else"},
	}, nil)
	registry := executor.NewRegistry(client, chat.NewResolver(client, 0), provisioner, executor.PromoConfig{
		Topic:  "Marketplace",
		Text:   "Shop local",
		Button: "Open",
	}, nil)
	d := NewDispatcher(h.tasks, h.governor, registry, nil)
	d.Now = h.clock.Now

	first := h.enqueue(t, newChat, 0)
	second := h.enqueue(t, newChat, 0)

	res, err := d.ProcessOne(ctx, task.QueueChats, false)
	require.NoError(t, err)
	require.Equal(t, first, res.TaskID)
	assert.Equal(t, executor.KindCompleted, res.Outcome)

	res, err = d.ProcessOne(ctx, task.QueueChats, false)
	require.NoError(t, err)
	require.Equal(t, second, res.TaskID)
	assert.Equal(t, executor.KindSkipped, res.Outcome)

	assert.Equal(t, 1, client.Calls("CreateGroup"))
	assert.Equal(t, task.StatusCompleted, h.get(t, first).Status)
	assert.Empty(t, h.get(t, first).Error)

	dup := h.get(t, second)
	assert.Equal(t, task.StatusCompleted, dup.Status)
	assert.True(t, strings.HasPrefix(dup.Error, task.SkippedPrefix), dup.Error)
	assert.Contains(t, dup.Error, "duplicate ecosystem")
}

func TestProcessOne_ReclaimedTaskKeepsNewHolder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.enqueue(t, welcome, 0)

	h.exec.onRun = func(*task.Task) {
		h.clock.Advance(time.Hour)
		n, err := h.tasks.ResetStuck(ctx, time.Minute)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
		_, err = h.tasks.ClaimNext(ctx, task.ClaimOptions{Owner: "other/1"})
		require.NoError(t, err)
	}
	h.exec.errs = []error{errors.New("CHAT_ADMIN_REQUIRED")}

	res, err := h.d.ProcessOne(ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, id, res.TaskID)

	got := h.get(t, id)
	assert.Equal(t, task.StatusProcessing, got.Status)
	assert.Equal(t, "other/1", got.ClaimedBy)
	assert.NotContains(t, got.Error, "CHAT_ADMIN_REQUIRED")
}
