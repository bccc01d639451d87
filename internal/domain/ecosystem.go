package domain

import (
	"errors"
	"strings"
	"time"
)

// EcosystemStatus represents the lifecycle state of a provisioned group.
type EcosystemStatus string

// Possible ecosystem status values
const (
	EcosystemStatusProvisioning EcosystemStatus = "provisioning"
	EcosystemStatusNotConnected EcosystemStatus = "not_connected"
	EcosystemStatusConnected    EcosystemStatus = "connected"
	EcosystemStatusIncomplete   EcosystemStatus = "incomplete"
)

// Common validation errors for Ecosystem
var (
	ErrEmptyEcosystemChatID   = errors.New("ecosystem chat ID cannot be empty")
	ErrEmptyEcosystemTitle    = errors.New("ecosystem title cannot be empty")
	ErrInvalidEcosystemStatus = errors.New("invalid ecosystem status")
	ErrEmptyShortCode         = errors.New("short link code cannot be empty")
	ErrEmptyInviteLink        = errors.New("short link invite link cannot be empty")
)

// Ecosystem is a provisioned forum group with its fixed topics, keyed by the
// platform chat id.
type Ecosystem struct {
	ChatID             int64           `json:"chat_id"`
	Title              string          `json:"title"`
	District           string          `json:"district,omitempty"`
	MarketplaceTopicID int             `json:"marketplace_topic_id,omitempty"`
	AdminTopicID       int             `json:"admin_topic_id,omitempty"`
	InviteLink         string          `json:"invite_link,omitempty"`
	Status             EcosystemStatus `json:"status"`
	MemberCount        int             `json:"member_count"`
	LastError          string          `json:"last_error,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// NewEcosystem creates an Ecosystem in the provisioning state.
func NewEcosystem(chatID int64, title, district string) (*Ecosystem, error) {
	now := time.Now().UTC()
	e := &Ecosystem{
		ChatID:    chatID,
		Title:     strings.TrimSpace(title),
		District:  district,
		Status:    EcosystemStatusProvisioning,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate checks if the Ecosystem has valid data.
func (e *Ecosystem) Validate() error {
	if e.ChatID == 0 {
		return ErrEmptyEcosystemChatID
	}
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyEcosystemTitle
	}
	if !isValidEcosystemStatus(e.Status) {
		return ErrInvalidEcosystemStatus
	}
	return nil
}

// MarkReady records a fully provisioned ecosystem. It stays not_connected
// until the companion service reports it connected.
func (e *Ecosystem) MarkReady() {
	e.Status = EcosystemStatusNotConnected
	e.LastError = ""
	e.UpdatedAt = time.Now().UTC()
}

// MarkIncomplete records a provisioning run that stopped part way.
func (e *Ecosystem) MarkIncomplete(reason string) {
	e.Status = EcosystemStatusIncomplete
	e.LastError = reason
	e.UpdatedAt = time.Now().UTC()
}

func isValidEcosystemStatus(status EcosystemStatus) bool {
	switch status {
	case EcosystemStatusProvisioning, EcosystemStatusNotConnected,
		EcosystemStatusConnected, EcosystemStatusIncomplete:
		return true
	default:
		return false
	}
}

// ShortLink maps a short code to an ecosystem's invite link.
type ShortLink struct {
	Code       string    `json:"code"`
	ChatID     int64     `json:"chat_id"`
	InviteLink string    `json:"invite_link"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate checks if the ShortLink has valid data.
func (s *ShortLink) Validate() error {
	if strings.TrimSpace(s.Code) == "" {
		return ErrEmptyShortCode
	}
	if s.ChatID == 0 {
		return ErrEmptyEcosystemChatID
	}
	if s.InviteLink == "" {
		return ErrEmptyInviteLink
	}
	return nil
}
