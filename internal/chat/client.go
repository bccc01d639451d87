package chat

import "context"

// Peer is a resolved handle for a chat on the platform.
type Peer struct {
	ID         int64  `json:"id"`
	AccessHash int64  `json:"access_hash,omitempty"`
	Title      string `json:"title,omitempty"`
}

// Topic is a forum topic inside a group.
type Topic struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Closed bool   `json:"closed"`
}

// Permissions is a default (chat-level) or per-member rights policy.
// A true field means the action is allowed.
type Permissions struct {
	SendMessages bool `json:"send_messages"`
	SendMedia    bool `json:"send_media"`
	SendPolls    bool `json:"send_polls"`
	ChangeInfo   bool `json:"change_info"`
	InviteUsers  bool `json:"invite_users"`
	PinMessages  bool `json:"pin_messages"`
	ManageTopics bool `json:"manage_topics"`
}

// ReadOnly denies every action.
var ReadOnly = Permissions{}

// TopicEdit changes a topic's title or closed state. Nil fields are left as is.
type TopicEdit struct {
	Title  *string `json:"title,omitempty"`
	Closed *bool   `json:"closed,omitempty"`
}

// URLButton is an inline button opening an external link.
type URLButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Message is an outbound message. TopicID zero posts to the general thread.
type Message struct {
	TopicID int         `json:"topic_id,omitempty"`
	Text    string      `json:"text"`
	Buttons []URLButton `json:"buttons,omitempty"`
}

// Poll is an outbound poll.
type Poll struct {
	TopicID        int      `json:"topic_id,omitempty"`
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	Quiz           bool     `json:"quiz"`
	MultipleChoice bool     `json:"multiple_choice"`
	PublicVoters   bool     `json:"public_voters"`
}

// Client is the chat platform. Implementations report rate limiting as
// *FloodWaitError and a cache miss in ResolvePeer as ErrNotCached.
type Client interface {
	CreateGroup(ctx context.Context, title, about string) (Peer, error)
	ToggleForum(ctx context.Context, peer Peer, enabled bool) error
	SetDefaultPermissions(ctx context.Context, peer Peer, perms Permissions) error

	CreateTopic(ctx context.Context, peer Peer, title string) (int, error)
	EditTopic(ctx context.Context, peer Peer, topicID int, edit TopicEdit) error
	ListTopics(ctx context.Context, peer Peer) ([]Topic, error)

	SendMessage(ctx context.Context, peer Peer, msg Message) (int, error)
	PinMessage(ctx context.Context, peer Peer, messageID int) error
	SendPoll(ctx context.Context, peer Peer, poll Poll) (int, error)

	InviteMember(ctx context.Context, peer Peer, username string) error
	RestrictMember(ctx context.Context, peer Peer, username string, perms Permissions) error
	ExportInviteLink(ctx context.Context, peer Peer) (string, error)

	// ResolvePeer looks chatID up in the client's own entity cache only.
	ResolvePeer(ctx context.Context, chatID int64) (Peer, error)
	// RecentDialogs lists recent conversations, refreshing the client's cache.
	RecentDialogs(ctx context.Context, limit int) ([]Peer, error)
}
