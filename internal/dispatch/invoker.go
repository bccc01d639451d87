package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/phrazzld/eco-queue/internal/task"
)

// TokenIssuer signs the bearer token sent with a trigger call.
type TokenIssuer interface {
	Issue(ctx context.Context, queue string) (string, error)
}

// HTTPInvoker is a Scheduler that calls the dispatch trigger endpoint over
// HTTP when a continuation falls due. Timers live in this process; if it
// exits first, the durable continuation is picked up by the next kick.
type HTTPInvoker struct {
	triggerURL string
	tokens     TokenIssuer
	client     *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer

	// AfterFunc is injectable for tests.
	AfterFunc func(d time.Duration, f func()) *time.Timer
}

// NewHTTPInvoker creates an HTTPInvoker posting to triggerURL. A nil client
// uses one with a 30 second timeout.
func NewHTTPInvoker(triggerURL string, tokens TokenIssuer, client *http.Client, logger *slog.Logger) *HTTPInvoker {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPInvoker{
		triggerURL: triggerURL,
		tokens:     tokens,
		client:     client,
		logger:     logger.With(slog.String("component", "dispatch_invoker")),
		timers:     make(map[string]*time.Timer),
		AfterFunc:  time.AfterFunc,
	}
}

var _ Scheduler = (*HTTPInvoker)(nil)

// Schedule arms a timer for c. A newer continuation for the same queue
// replaces an armed one, so at most one call per queue is outstanding.
func (h *HTTPInvoker) Schedule(_ context.Context, c Continuation) error {
	delay := time.Until(c.RunAt)
	if delay < 0 {
		delay = 0
	}
	key := string(c.Queue)

	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.timers[key]; ok {
		t.Stop()
	}
	h.timers[key] = h.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.client.Timeout+5*time.Second)
		defer cancel()
		if err := h.Invoke(ctx, c.Queue); err != nil {
			h.logger.Error("dispatch trigger call failed",
				slog.String("queue", key),
				slog.String("error", err.Error()))
		}
	})
	return nil
}

// Invoke calls the trigger endpoint for queue now.
func (h *HTTPInvoker) Invoke(ctx context.Context, queue task.Queue) error {
	target, err := url.Parse(h.triggerURL)
	if err != nil {
		return fmt.Errorf("invalid trigger url: %w", err)
	}
	q := target.Query()
	if queue != "" {
		q.Set("queue", string(queue))
	}
	target.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build trigger request: %w", err)
	}
	if h.tokens != nil {
		token, err := h.tokens.Issue(ctx, string(queue))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("trigger request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("trigger returned status %d", resp.StatusCode)
	}
	h.logger.Debug("dispatch trigger called", slog.String("queue", string(queue)))
	return nil
}

// Stop cancels every armed timer.
func (h *HTTPInvoker) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, t := range h.timers {
		t.Stop()
		delete(h.timers, key)
	}
}
