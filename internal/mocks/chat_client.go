package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/phrazzld/eco-queue/internal/chat"
)

// FakeChat is the state the FakeChatClient keeps for one group.
type FakeChat struct {
	Peer        chat.Peer
	Forum       bool
	Permissions chat.Permissions
	Topics      []chat.Topic
	Messages    []chat.Message
	Pinned      []int
	Polls       []chat.Poll
	Members     map[string]chat.Permissions
	InviteLink  string
}

// FakeChatClient is an in-memory chat.Client. It behaves like the platform for
// the calls the queue makes: ids are issued in marked (-100) form, repeated
// invites and no-op topic edits fail with the platform's "already" errors, and
// entities only resolve from cache once they were created or listed.
type FakeChatClient struct {
	mu      sync.Mutex
	nextID  int64
	nextMsg int

	Chats  map[int64]*FakeChat
	cached map[int64]bool
	calls  map[string]int
	fail   map[string][]error
}

// NewFakeChatClient creates an empty fake platform.
func NewFakeChatClient() *FakeChatClient {
	return &FakeChatClient{
		nextID: 1001000000000,
		Chats:  make(map[int64]*FakeChat),
		cached: make(map[int64]bool),
		calls:  make(map[string]int),
		fail:   make(map[string][]error),
	}
}

var _ chat.Client = (*FakeChatClient)(nil)

// AddChat registers an existing group. When cached is false the group is only
// discoverable through RecentDialogs.
func (c *FakeChatClient) AddChat(id int64, title string, cached bool, topics ...chat.Topic) *FakeChat {
	c.mu.Lock()
	defer c.mu.Unlock()
	fc := &FakeChat{
		Peer:    chat.Peer{ID: id, AccessHash: id * 7, Title: title},
		Forum:   len(topics) > 0,
		Topics:  append([]chat.Topic(nil), topics...),
		Members: make(map[string]chat.Permissions),
	}
	c.Chats[id] = fc
	c.cached[id] = cached
	return fc
}

// FailNext queues err to be returned by the next call to method.
func (c *FakeChatClient) FailNext(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail[method] = append(c.fail[method], err)
}

// Calls returns how many times method was invoked, including failed calls.
func (c *FakeChatClient) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// Chat returns a snapshot pointer to the state of id, or nil.
func (c *FakeChatClient) Chat(id int64) *FakeChat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Chats[id]
}

// enter records the call and pops an injected failure. Caller holds c.mu.
func (c *FakeChatClient) enter(method string) error {
	c.calls[method]++
	if queued := c.fail[method]; len(queued) > 0 {
		c.fail[method] = queued[1:]
		return queued[0]
	}
	return nil
}

func (c *FakeChatClient) lookup(peer chat.Peer) (*FakeChat, error) {
	fc, ok := c.Chats[peer.ID]
	if !ok {
		return nil, &chat.APIError{Code: "CHANNEL_INVALID", Message: fmt.Sprintf("chat %d", peer.ID)}
	}
	return fc, nil
}

func (c *FakeChatClient) CreateGroup(_ context.Context, title, _ string) (chat.Peer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("CreateGroup"); err != nil {
		return chat.Peer{}, err
	}
	c.nextID++
	id := -c.nextID
	fc := &FakeChat{
		Peer:    chat.Peer{ID: id, AccessHash: c.nextID * 7, Title: title},
		Members: make(map[string]chat.Permissions),
	}
	c.Chats[id] = fc
	c.cached[id] = true
	return fc.Peer, nil
}

func (c *FakeChatClient) ToggleForum(_ context.Context, peer chat.Peer, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("ToggleForum"); err != nil {
		return err
	}
	fc, err := c.lookup(peer)
	if err != nil {
		return err
	}
	fc.Forum = enabled
	return nil
}

func (c *FakeChatClient) SetDefaultPermissions(_ context.Context, peer chat.Peer, perms chat.Permissions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SetDefaultPermissions"); err != nil {
		return err
	}
	fc, err := c.lookup(peer)
	if err != nil {
		return err
	}
	if fc.Permissions == perms {
		return &chat.APIError{Code: "CHAT_NOT_MODIFIED", Message: "chat not modified"}
	}
	fc.Permissions = perms
	return nil
}

func (c *FakeChatClient) CreateTopic(_ context.Context, peer chat.Peer, title string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("CreateTopic"); err != nil {
		return 0, err
	}
	fc, err := c.lookup(peer)
	if err != nil {
		return 0, err
	}
	if !fc.Forum {
		return 0, &chat.APIError{Code: "CHANNEL_FORUM_MISSING", Message: "forum mode is disabled"}
	}
	c.nextMsg++
	id := c.nextMsg
	fc.Topics = append(fc.Topics, chat.Topic{ID: id, Title: title})
	return id, nil
}

func (c *FakeChatClient) EditTopic(_ context.Context, peer chat.Peer, topicID int, edit chat.TopicEdit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("EditTopic"); err != nil {
		return err
	}
	fc, err := c.lookup(peer)
	if err != nil {
		return err
	}
	for i := range fc.Topics {
		if fc.Topics[i].ID != topicID {
			continue
		}
		t := &fc.Topics[i]
		changed := false
		if edit.Title != nil && *edit.Title != t.Title {
			t.Title = *edit.Title
			changed = true
		}
		if edit.Closed != nil && *edit.Closed != t.Closed {
			t.Closed = *edit.Closed
			changed = true
		}
		if !changed {
			return &chat.APIError{Code: "TOPIC_NOT_MODIFIED", Message: "topic not modified"}
		}
		return nil
	}
	return &chat.APIError{Code: "TOPIC_ID_INVALID", Message: fmt.Sprintf("topic %d", topicID)}
}

func (c *FakeChatClient) ListTopics(_ context.Context, peer chat.Peer) ([]chat.Topic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("ListTopics"); err != nil {
		return nil, err
	}
	fc, err := c.lookup(peer)
	if err != nil {
		return nil, err
	}
	return append([]chat.Topic(nil), fc.Topics...), nil
}

func (c *FakeChatClient) SendMessage(_ context.Context, peer chat.Peer, msg chat.Message) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SendMessage"); err != nil {
		return 0, err
	}
	fc, err := c.lookup(peer)
	if err != nil {
		return 0, err
	}
	c.nextMsg++
	fc.Messages = append(fc.Messages, msg)
	return c.nextMsg, nil
}

func (c *FakeChatClient) PinMessage(_ context.Context, peer chat.Peer, messageID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("PinMessage"); err != nil {
		return err
	}
	fc, err := c.lookup(peer)
	if err != nil {
		return err
	}
	fc.Pinned = append(fc.Pinned, messageID)
	return nil
}

func (c *FakeChatClient) SendPoll(_ context.Context, peer chat.Peer, poll chat.Poll) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SendPoll"); err != nil {
		return 0, err
	}
	fc, err := c.lookup(peer)
	if err != nil {
		return 0, err
	}
	c.nextMsg++
	fc.Polls = append(fc.Polls, poll)
	return c.nextMsg, nil
}

func (c *FakeChatClient) InviteMember(_ context.Context, peer chat.Peer, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("InviteMember"); err != nil {
		return err
	}
	fc, err := c.lookup(peer)
	if err != nil {
		return err
	}
	if _, ok := fc.Members[username]; ok {
		return &chat.APIError{Code: "USER_ALREADY_PARTICIPANT", Message: username}
	}
	fc.Members[username] = fc.Permissions
	return nil
}

func (c *FakeChatClient) RestrictMember(_ context.Context, peer chat.Peer, username string, perms chat.Permissions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("RestrictMember"); err != nil {
		return err
	}
	fc, err := c.lookup(peer)
	if err != nil {
		return err
	}
	if _, ok := fc.Members[username]; !ok {
		return &chat.APIError{Code: "USER_NOT_PARTICIPANT", Message: username}
	}
	fc.Members[username] = perms
	return nil
}

func (c *FakeChatClient) ExportInviteLink(_ context.Context, peer chat.Peer) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("ExportInviteLink"); err != nil {
		return "", err
	}
	fc, err := c.lookup(peer)
	if err != nil {
		return "", err
	}
	fc.InviteLink = fmt.Sprintf("https://t.me/+fake%d", chat.BareID(peer.ID))
	return fc.InviteLink, nil
}

func (c *FakeChatClient) ResolvePeer(_ context.Context, chatID int64) (chat.Peer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("ResolvePeer"); err != nil {
		return chat.Peer{}, err
	}
	fc, ok := c.Chats[chatID]
	if !ok || !c.cached[chatID] {
		return chat.Peer{}, chat.ErrNotCached
	}
	return fc.Peer, nil
}

func (c *FakeChatClient) RecentDialogs(_ context.Context, limit int) ([]chat.Peer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("RecentDialogs"); err != nil {
		return nil, err
	}
	peers := make([]chat.Peer, 0, len(c.Chats))
	for id, fc := range c.Chats {
		if len(peers) == limit {
			break
		}
		c.cached[id] = true
		peers = append(peers, fc.Peer)
	}
	return peers, nil
}
