package chatgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/phrazzld/eco-queue/internal/chat"
	"github.com/phrazzld/eco-queue/internal/platform/logger"
)

// maxResponseBytes bounds how much of a bridge response is read.
const maxResponseBytes = 4 << 20

const codeNotCached = "NOT_CACHED"

// Client is a chat.Client talking to the gateway bridge.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a Client. A nil httpClient uses one with the given timeout.
func New(baseURL, token string, timeout time.Duration, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
		logger:  logger.With(slog.String("component", "chat_gateway")),
	}
}

var _ chat.Client = (*Client)(nil)

type envelope struct {
	OK         bool            `json:"ok"`
	Result     json.RawMessage `json:"result"`
	Error      string          `json:"error"`
	Code       string          `json:"code"`
	RetryAfter int             `json:"retry_after"`
}

// call posts body to method and decodes the result into out when non-nil.
func (c *Client) call(ctx context.Context, method string, body any, out any) error {
	log := logger.FromContextOrDefault(ctx, c.logger)

	payload, err := sonic.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", method, err)
	}
	log.Debug("gateway call",
		slog.String("method", method),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	var env envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &chat.APIError{Code: http.StatusText(resp.StatusCode), Message: method}
		}
		return fmt.Errorf("%s: decode response: %w", method, err)
	}

	if env.RetryAfter > 0 || resp.StatusCode == http.StatusTooManyRequests {
		seconds := env.RetryAfter
		if seconds <= 0 {
			seconds = retryAfterHeader(resp.Header)
		}
		return &chat.FloodWaitError{Seconds: seconds, Op: method}
	}
	if !env.OK || resp.StatusCode >= http.StatusBadRequest {
		if env.Code == codeNotCached {
			return chat.ErrNotCached
		}
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &chat.APIError{Code: env.Code, Message: msg}
	}

	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

func retryAfterHeader(h http.Header) int {
	var seconds int
	if _, err := fmt.Sscanf(h.Get("Retry-After"), "%d", &seconds); err != nil || seconds < 1 {
		return 1
	}
	return seconds
}

func (c *Client) CreateGroup(ctx context.Context, title, about string) (chat.Peer, error) {
	var peer chat.Peer
	err := c.call(ctx, "createGroup", map[string]any{"title": title, "about": about}, &peer)
	return peer, err
}

func (c *Client) ToggleForum(ctx context.Context, peer chat.Peer, enabled bool) error {
	return c.call(ctx, "toggleForum", map[string]any{"peer": peer, "enabled": enabled}, nil)
}

func (c *Client) SetDefaultPermissions(ctx context.Context, peer chat.Peer, perms chat.Permissions) error {
	return c.call(ctx, "setDefaultPermissions", map[string]any{"peer": peer, "permissions": perms}, nil)
}

func (c *Client) CreateTopic(ctx context.Context, peer chat.Peer, title string) (int, error) {
	var out struct {
		TopicID int `json:"topic_id"`
	}
	err := c.call(ctx, "createTopic", map[string]any{"peer": peer, "title": title}, &out)
	return out.TopicID, err
}

func (c *Client) EditTopic(ctx context.Context, peer chat.Peer, topicID int, edit chat.TopicEdit) error {
	return c.call(ctx, "editTopic", map[string]any{"peer": peer, "topic_id": topicID, "edit": edit}, nil)
}

func (c *Client) ListTopics(ctx context.Context, peer chat.Peer) ([]chat.Topic, error) {
	var topics []chat.Topic
	err := c.call(ctx, "listTopics", map[string]any{"peer": peer}, &topics)
	return topics, err
}

func (c *Client) SendMessage(ctx context.Context, peer chat.Peer, msg chat.Message) (int, error) {
	var out struct {
		MessageID int `json:"message_id"`
	}
	err := c.call(ctx, "sendMessage", map[string]any{"peer": peer, "message": msg}, &out)
	return out.MessageID, err
}

func (c *Client) PinMessage(ctx context.Context, peer chat.Peer, messageID int) error {
	return c.call(ctx, "pinMessage", map[string]any{"peer": peer, "message_id": messageID}, nil)
}

func (c *Client) SendPoll(ctx context.Context, peer chat.Peer, poll chat.Poll) (int, error) {
	var out struct {
		MessageID int `json:"message_id"`
	}
	err := c.call(ctx, "sendPoll", map[string]any{"peer": peer, "poll": poll}, &out)
	return out.MessageID, err
}

func (c *Client) InviteMember(ctx context.Context, peer chat.Peer, username string) error {
	return c.call(ctx, "inviteMember", map[string]any{"peer": peer, "username": username}, nil)
}

func (c *Client) RestrictMember(ctx context.Context, peer chat.Peer, username string, perms chat.Permissions) error {
	return c.call(ctx, "restrictMember", map[string]any{
		"peer":        peer,
		"username":    username,
		"permissions": perms,
	}, nil)
}

func (c *Client) ExportInviteLink(ctx context.Context, peer chat.Peer) (string, error) {
	var out struct {
		Link string `json:"link"`
	}
	err := c.call(ctx, "exportInviteLink", map[string]any{"peer": peer}, &out)
	return out.Link, err
}

func (c *Client) ResolvePeer(ctx context.Context, chatID int64) (chat.Peer, error) {
	var peer chat.Peer
	err := c.call(ctx, "resolvePeer", map[string]any{"chat_id": chatID}, &peer)
	return peer, err
}

func (c *Client) RecentDialogs(ctx context.Context, limit int) ([]chat.Peer, error) {
	var peers []chat.Peer
	err := c.call(ctx, "recentDialogs", map[string]any{"limit": limit}, &peers)
	return peers, err
}
