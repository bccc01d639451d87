package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrazzld/eco-queue/internal/chat"
)

// FindTopic returns the id of the first topic in peer whose title equals
// title exactly. It returns chat.ErrTopicNotFound when none does.
func FindTopic(ctx context.Context, client chat.Client, peer chat.Peer, title string) (int, error) {
	topics, err := client.ListTopics(ctx, peer)
	if err != nil {
		return 0, fmt.Errorf("list topics: %w", err)
	}
	for _, t := range topics {
		if t.Title == title {
			return t.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", chat.ErrTopicNotFound, title)
}

func isTopicNotFound(err error) bool {
	return errors.Is(err, chat.ErrTopicNotFound)
}
