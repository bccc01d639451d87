package task

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/eco-queue/internal/chat"
)

// Type selects the executor for a task.
type Type string

// Task types
const (
	TypeCreateChat        Type = "create_chat"
	TypeCreatePromo       Type = "create_promo"
	TypeSendMessage       Type = "send_message"
	TypeCreatePoll        Type = "create_poll"
	TypeCloseTopic        Type = "close_topic"
	TypeOpenTopic         Type = "open_topic"
	TypeRenameTopic       Type = "rename_topic"
	TypeUpdatePermissions Type = "update_permissions"
)

// AllTypes lists every known task type.
var AllTypes = []Type{
	TypeCreateChat,
	TypeCreatePromo,
	TypeSendMessage,
	TypeCreatePoll,
	TypeCloseTopic,
	TypeOpenTopic,
	TypeRenameTopic,
	TypeUpdatePermissions,
}

// Queue returns the physical queue tasks of this type are drained from.
func (t Type) Queue() (Queue, error) {
	switch t {
	case TypeCreateChat, TypeCreatePromo:
		return QueueChats, nil
	case TypeCloseTopic, TypeOpenTopic, TypeRenameTopic, TypeUpdatePermissions:
		return QueueTopics, nil
	case TypeSendMessage, TypeCreatePoll:
		return QueueMessages, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, string(t))
}

// Payload is implemented by every task payload schema.
type Payload interface {
	TaskType() Type
}

// TopicRef addresses a topic by id or, when ID is zero, by exact title.
type TopicRef struct {
	TopicID   int    `json:"topic_id,omitempty"   validate:"gte=0"`
	TopicName string `json:"topic_name,omitempty" validate:"required_without=TopicID"`
}

// CreateChat provisions a new ecosystem for a street address.
type CreateChat struct {
	Address   string `json:"address"              validate:"required"`
	District  string `json:"district,omitempty"`
	ShortCode string `json:"short_code,omitempty" validate:"omitempty,alphanum,max=32"`
}

// CreatePromo creates the promo topic in an existing chat and posts the promo
// message with a deep-link button.
type CreatePromo struct {
	ChatID int64  `json:"chat_id" validate:"required"`
	URL    string `json:"url"     validate:"required,url"`
}

// SendMessage posts text into a topic, optionally pinning it.
type SendMessage struct {
	ChatID int64 `json:"chat_id" validate:"required"`
	TopicRef
	Text string `json:"text" validate:"required"`
	Pin  bool   `json:"pin,omitempty"`
}

// CreatePoll posts a single-choice public poll into a topic.
type CreatePoll struct {
	ChatID int64 `json:"chat_id" validate:"required"`
	TopicRef
	Question string   `json:"question" validate:"required"`
	Options  []string `json:"options"  validate:"required,min=1,dive,required"`
}

// CloseTopic closes a topic for new messages.
type CloseTopic struct {
	ChatID int64 `json:"chat_id" validate:"required"`
	TopicRef
}

// OpenTopic reopens a closed topic.
type OpenTopic struct {
	ChatID int64 `json:"chat_id" validate:"required"`
	TopicRef
}

// RenameTopic changes a topic's title.
type RenameTopic struct {
	ChatID int64 `json:"chat_id" validate:"required"`
	TopicRef
	NewTitle string `json:"new_title" validate:"required,max=128"`
}

// UpdatePermissions replaces the chat's default member permissions.
type UpdatePermissions struct {
	ChatID      int64            `json:"chat_id" validate:"required"`
	Permissions chat.Permissions `json:"permissions"`
}

func (CreateChat) TaskType() Type        { return TypeCreateChat }
func (CreatePromo) TaskType() Type       { return TypeCreatePromo }
func (SendMessage) TaskType() Type       { return TypeSendMessage }
func (CreatePoll) TaskType() Type        { return TypeCreatePoll }
func (CloseTopic) TaskType() Type        { return TypeCloseTopic }
func (OpenTopic) TaskType() Type         { return TypeOpenTopic }
func (RenameTopic) TaskType() Type       { return TypeRenameTopic }
func (UpdatePermissions) TaskType() Type { return TypeUpdatePermissions }

var validate = validator.New()

// Encode serializes a payload for storage.
func Encode(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", p.TaskType(), err)
	}
	return data, nil
}

// Decode parses raw into the payload schema for typ and validates it.
func Decode(typ Type, raw []byte) (Payload, error) {
	var p Payload
	switch typ {
	case TypeCreateChat:
		p = &CreateChat{}
	case TypeCreatePromo:
		p = &CreatePromo{}
	case TypeSendMessage:
		p = &SendMessage{}
	case TypeCreatePoll:
		p = &CreatePoll{}
	case TypeCloseTopic:
		p = &CloseTopic{}
	case TypeOpenTopic:
		p = &OpenTopic{}
	case TypeRenameTopic:
		p = &RenameTopic{}
	case TypeUpdatePermissions:
		p = &UpdatePermissions{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, string(typ))
	}

	if err := sonic.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, typ, err)
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPayload, typ, err)
	}
	return p, nil
}
