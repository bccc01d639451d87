package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/eco-queue/internal/ratelimit"
)

// DefaultKey is the key holding the deadline when none is configured.
const DefaultKey = "ecoq:rate_limit:wait_until"

// raiseDeadlineScript stores ARGV[1] (unix ms) only if it is later than the
// current value, so concurrent writers can never shorten a deadline. The key
// expires shortly after the deadline passes.
var raiseDeadlineScript = goredis.NewScript(`
local key = KEYS[1]
local candidate = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])
local current = tonumber(redis.call('GET', key) or '0')
if candidate > current then
  redis.call('SET', key, ARGV[1], 'PX', ttl)
  return 1
end
return 0
`)

// Governor implements ratelimit.Governor on a single Redis key.
type Governor struct {
	rdb    goredis.UniversalClient
	key    string
	logger *slog.Logger

	// Now is the clock used to compute deadlines.
	Now func() time.Time
}

var _ ratelimit.Governor = (*Governor)(nil)

// NewGovernor creates a Redis-backed governor. An empty key uses DefaultKey.
func NewGovernor(rdb goredis.UniversalClient, key string, logger *slog.Logger) *Governor {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Governor{
		rdb:    rdb,
		key:    key,
		logger: logger.With(slog.String("component", "redis_governor")),
		Now:    time.Now,
	}
}

func (g *Governor) WaitSeconds(ctx context.Context) (int, error) {
	raw, err := g.rdb.Get(ctx, g.key).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rate limit deadline: %w", err)
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		g.logger.Warn("ignoring malformed rate limit deadline",
			slog.String("key", g.key),
			slog.String("value", raw))
		return 0, nil
	}
	return ratelimit.Remaining(time.UnixMilli(ms), g.Now()), nil
}

func (g *Governor) SetWait(ctx context.Context, seconds int) error {
	if seconds < 0 {
		return ratelimit.ErrNegativeWait
	}
	if seconds == 0 {
		return nil
	}

	deadline := g.Now().Add(time.Duration(seconds) * time.Second)
	ttl := time.Duration(seconds)*time.Second + time.Minute

	raised, err := raiseDeadlineScript.Run(ctx, g.rdb, []string{g.key},
		deadline.UnixMilli(), ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to store rate limit deadline: %w", err)
	}

	g.logger.Debug("rate limit deadline updated",
		slog.Int("seconds", seconds),
		slog.Bool("raised", raised == 1))
	return nil
}
