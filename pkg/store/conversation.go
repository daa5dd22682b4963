package store

import (
	"context"
	"strings"
	"time"

	"github.com/oceanbase/finmem-go/pkg/record"
	"github.com/oceanbase/finmem-go/pkg/storage"
)

// ConversationTable is the backend table holding conversations.
const ConversationTable = "conversations"

// ConversationStore stores conversations indexed by topic.
//
// A conversation's timestamp for ordering and retention is its UpdatedAt, so
// an active conversation is never expired while it keeps receiving messages.
type ConversationStore struct {
	*base[*record.Conversation]
}

func topicKey(topic string) string { return "topic:" + topic }

func normTopic(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

var conversationAdapter = adapter[*record.Conversation]{
	kind:  record.KindConversation,
	table: ConversationTable,

	isNil:    func(c *record.Conversation) bool { return c == nil },
	setID:    func(c *record.Conversation, id string) { c.ID = id },
	prepare:  func(c *record.Conversation, now time.Time) { c.Normalize(now) },
	validate: func(c *record.Conversation) error { return c.Validate() },
	clone:    func(c *record.Conversation) *record.Conversation { return c.Clone() },
	alloc:    func() *record.Conversation { return &record.Conversation{} },

	fields:     func(c *record.Conversation) (string, string) { return c.Topic(), "" },
	normKey:    normTopic,
	primaryKey: topicKey,
	indexKeys: func(c *record.Conversation) []string {
		if t := c.Topic(); t != "" {
			return []string{topicKey(t)}
		}
		return nil
	},
	score: func(w *Weights, c *record.Conversation, term string) (float64, bool) {
		return w.scoreConversation(c, term)
	},
}

// NewConversationStore opens the conversation store on provider.
// A nil provider gives a cache-only store.
func NewConversationStore(ctx context.Context, provider storage.Provider, opts *Options) (*ConversationStore, error) {
	b, err := newBase(ctx, provider, conversationAdapter, opts)
	if err != nil {
		return nil, err
	}
	return &ConversationStore{base: b}, nil
}

// AppendMessage appends a message to an existing conversation and persists it.
// found is false when the conversation does not exist.
func (s *ConversationStore) AppendMessage(ctx context.Context, id string, role record.Role, content string) (*record.Conversation, bool, error) {
	return s.mutate(ctx, "AppendMessage", id, func(c *record.Conversation) error {
		return c.Append(role, content, s.now())
	})
}

// IDsByTopic returns the ids of the conversations about topic.
func (s *ConversationStore) IDsByTopic(topic string) []string {
	return s.lookup(topicKey(normTopic(topic)))
}
