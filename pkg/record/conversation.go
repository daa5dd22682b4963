package record

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks messages written by the user.
	RoleUser Role = "user"

	// RoleAssistant marks messages written by the agent.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single conversational turn.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is an ordered, append-only exchange with a session topic.
//
// Messages are only ever appended; UpdatedAt never moves backwards and is
// bumped by every append.
type Conversation struct {
	// ID is the conversation id.
	ID string `json:"conversation_id"`

	// Context is free text describing the session topic.
	Context string `json:"context"`

	// Messages holds the turns in insertion order.
	Messages []Message `json:"messages"`

	// Metadata contains additional caller supplied attributes.
	Metadata Metadata `json:"metadata,omitempty"`

	// CreatedAt is when the conversation started.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the conversation last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation starts a conversation about topic with a fresh UUID.
func NewConversation(topic string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        uuid.New().String(),
		Context:   topic,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RecordID implements Record.
func (c *Conversation) RecordID() string { return c.ID }

// RecordKind implements Record.
func (c *Conversation) RecordKind() Kind { return KindConversation }

// RecordTime implements Record. Conversations age from their last activity.
func (c *Conversation) RecordTime() time.Time { return c.UpdatedAt }

// RecordMetadata implements Record.
func (c *Conversation) RecordMetadata() Metadata { return c.Metadata }

// Topic returns the normalized context used as the conversation index key.
func (c *Conversation) Topic() string {
	return strings.ToLower(strings.TrimSpace(c.Context))
}

// Append adds a message at the end of the conversation.
// UpdatedAt is bumped to at unless it is already later.
func (c *Conversation) Append(role Role, content string, at time.Time) error {
	if !role.Valid() {
		return invalid("conversation %s: unknown role %q", c.ID, role)
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	c.Messages = append(c.Messages, Message{Role: role, Content: content, Timestamp: at})
	if at.After(c.UpdatedAt) {
		c.UpdatedAt = at
	}
	return nil
}

// Normalize fills zero timestamps and restores the CreatedAt <= UpdatedAt ordering.
func (c *Conversation) Normalize(now time.Time) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.Before(c.CreatedAt) {
		c.UpdatedAt = c.CreatedAt
	}
	for _, m := range c.Messages {
		if m.Timestamp.After(c.UpdatedAt) {
			c.UpdatedAt = m.Timestamp
		}
	}
}

// Validate checks the conversation invariants.
func (c *Conversation) Validate() error {
	if c.ID == "" {
		return invalid("conversation: empty id")
	}
	for i, m := range c.Messages {
		if !m.Role.Valid() {
			return invalid("conversation %s: message %d has unknown role %q", c.ID, i, m.Role)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Messages = append([]Message(nil), c.Messages...)
	cp.Metadata = c.Metadata.Clone()
	return &cp
}
