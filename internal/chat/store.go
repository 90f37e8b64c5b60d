package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/castrolabs/osbot/internal/whatsapp"
)

// ErrUserNotFound signals a legitimate miss on user lookup.
var ErrUserNotFound = errors.New("chat: user not found")

// User is one WhatsApp account talking to the assistant.
type User struct {
	ID        uuid.UUID `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation groups messages for one (user, chat) pair.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ChatID    string    `json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one persisted transcript entry. FromMe marks assistant
// turns so history hydration can tag roles.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Content        string    `json:"content"`
	FromMe         bool      `json:"from_me"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists users, conversations and transcripts.
type Store interface {
	ResolveUser(ctx context.Context, phone, name string) (*User, error)
	FindUserByPhone(ctx context.Context, phone string) (*User, error)
	ResolveConversation(ctx context.Context, userID uuid.UUID, chatID string) (*Conversation, error)
	SaveMessage(ctx context.Context, conversationID uuid.UUID, content string, fromMe bool) (*Message, error)
	RecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*Message, error)
}

// InMemoryStore keeps the chat graph in maps, for tests and degraded mode.
type InMemoryStore struct {
	mu            sync.RWMutex
	usersByPhone  map[string]*User
	conversations map[string]*Conversation
	messages      map[uuid.UUID][]*Message
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		usersByPhone:  make(map[string]*User),
		conversations: make(map[string]*Conversation),
		messages:      make(map[uuid.UUID][]*Message),
	}
}

// ResolveUser finds or creates the user for the phone. A non-empty name
// fills in a blank stored name but never overwrites one.
func (s *InMemoryStore) ResolveUser(ctx context.Context, phone, name string) (*User, error) {
	phone = whatsapp.NormalizePhone(phone)
	if phone == "" {
		return nil, errors.New("chat: phone required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.usersByPhone[phone]; ok {
		if user.Name == "" && name != "" {
			user.Name = name
		}
		cp := *user
		return &cp, nil
	}
	user := &User{ID: uuid.New(), Phone: phone, Name: name, CreatedAt: time.Now().UTC()}
	s.usersByPhone[phone] = user
	cp := *user
	return &cp, nil
}

func (s *InMemoryStore) FindUserByPhone(ctx context.Context, phone string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.usersByPhone[whatsapp.NormalizePhone(phone)]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *InMemoryStore) ResolveConversation(ctx context.Context, userID uuid.UUID, chatID string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := userID.String() + "|" + chatID
	if conv, ok := s.conversations[k]; ok {
		cp := *conv
		return &cp, nil
	}
	conv := &Conversation{ID: uuid.New(), UserID: userID, ChatID: chatID, CreatedAt: time.Now().UTC()}
	s.conversations[k] = conv
	cp := *conv
	return &cp, nil
}

func (s *InMemoryStore) SaveMessage(ctx context.Context, conversationID uuid.UUID, content string, fromMe bool) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := &Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Content:        content,
		FromMe:         fromMe,
		CreatedAt:      time.Now().UTC(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	cp := *msg
	return &cp, nil
}

// RecentMessages returns the last N messages in chronological order.
func (s *InMemoryStore) RecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*Message, 0, len(msgs))
	for _, m := range msgs {
		cp := *m
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
