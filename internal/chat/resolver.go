package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/phrazzld/eco-queue/internal/platform/logger"
)

// DefaultDialogsLimit is how many recent dialogs a refresh fetches.
const DefaultDialogsLimit = 200

// channelPrefix is the decimal prefix the platform puts in front of
// supergroup ids in their "marked" form (-100xxxxxxxxxx).
const channelPrefix = "100"

// Resolver turns chat ids into peers. It keeps the peers it has seen in a
// local dialog cache and falls back to one dialog refresh per miss.
type Resolver struct {
	client Client
	limit  int

	mu    sync.RWMutex
	cache map[int64]Peer
}

// NewResolver creates a Resolver over client. A non-positive limit uses
// DefaultDialogsLimit.
func NewResolver(client Client, limit int) *Resolver {
	if limit <= 0 {
		limit = DefaultDialogsLimit
	}
	return &Resolver{
		client: client,
		limit:  limit,
		cache:  make(map[int64]Peer),
	}
}

// Resolve returns the peer for chatID. It asks the client cache first; on
// ErrNotCached it refreshes the recent dialogs exactly once and matches the id
// with or without the -100 prefix. Returns ErrEntityNotFound when that fails.
func (r *Resolver) Resolve(ctx context.Context, chatID int64) (Peer, error) {
	key := BareID(chatID)

	r.mu.RLock()
	peer, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return peer, nil
	}

	peer, err := r.client.ResolvePeer(ctx, chatID)
	if err == nil {
		r.remember(peer)
		return peer, nil
	}
	if !errors.Is(err, ErrNotCached) {
		return Peer{}, fmt.Errorf("resolve chat %d: %w", chatID, err)
	}

	log := logger.FromContext(ctx)
	log.Debug("chat not in client cache, refreshing dialogs",
		"chat_id", chatID,
		"limit", r.limit)

	dialogs, err := r.client.RecentDialogs(ctx, r.limit)
	if err != nil {
		return Peer{}, fmt.Errorf("refresh dialogs for chat %d: %w", chatID, err)
	}

	var found *Peer
	for i := range dialogs {
		r.remember(dialogs[i])
		if found == nil && BareID(dialogs[i].ID) == key {
			found = &dialogs[i]
		}
	}
	if found == nil {
		log.Warn("chat not found after dialog refresh",
			"chat_id", chatID,
			"dialogs", len(dialogs))
		return Peer{}, fmt.Errorf("%w: %d", ErrEntityNotFound, chatID)
	}
	return *found, nil
}

// Forget drops chatID from the local cache.
func (r *Resolver) Forget(chatID int64) {
	r.mu.Lock()
	delete(r.cache, BareID(chatID))
	r.mu.Unlock()
}

func (r *Resolver) remember(peer Peer) {
	r.mu.Lock()
	r.cache[BareID(peer.ID)] = peer
	r.mu.Unlock()
}

// BareID strips the sign and the -100 supergroup marker from a chat id, so
// -1001234567890, 1001234567890 and 1234567890 all compare equal.
func BareID(id int64) int64 {
	if id < 0 {
		id = -id
	}
	s := strconv.FormatInt(id, 10)
	if len(s) >= 13 && strings.HasPrefix(s, channelPrefix) {
		if bare, err := strconv.ParseInt(s[len(channelPrefix):], 10, 64); err == nil {
			return bare
		}
	}
	return id
}
