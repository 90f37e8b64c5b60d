package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/castrolabs/osbot/internal/whatsapp"
)

// PgxPool is the subset of pgxpool.Pool the store needs.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists the chat graph in the relational database.
type PostgresStore struct {
	pool PgxPool
}

// NewPostgresStore initializes a store backed by pgx.
func NewPostgresStore(pool PgxPool) *PostgresStore {
	if pool == nil {
		panic("chat: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) ResolveUser(ctx context.Context, phone, name string) (*User, error) {
	phone = whatsapp.NormalizePhone(phone)
	if phone == "" {
		return nil, errors.New("chat: phone required")
	}
	query := `
		INSERT INTO users (id, phone, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE SET
			name = CASE WHEN users.name = '' AND EXCLUDED.name <> '' THEN EXCLUDED.name ELSE users.name END
		RETURNING id, phone, name, created_at`
	var user User
	if err := s.pool.QueryRow(ctx, query, uuid.New(), phone, name).
		Scan(&user.ID, &user.Phone, &user.Name, &user.CreatedAt); err != nil {
		return nil, fmt.Errorf("chat: resolve user: %w", err)
	}
	return &user, nil
}

func (s *PostgresStore) FindUserByPhone(ctx context.Context, phone string) (*User, error) {
	var user User
	err := s.pool.QueryRow(ctx,
		`SELECT id, phone, name, created_at FROM users WHERE phone = $1`,
		whatsapp.NormalizePhone(phone),
	).Scan(&user.ID, &user.Phone, &user.Name, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("chat: find user: %w", err)
	}
	return &user, nil
}

func (s *PostgresStore) ResolveConversation(ctx context.Context, userID uuid.UUID, chatID string) (*Conversation, error) {
	query := `
		INSERT INTO conversations (id, user_id, chat_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, chat_id) DO UPDATE SET chat_id = EXCLUDED.chat_id
		RETURNING id, user_id, chat_id, created_at`
	var conv Conversation
	if err := s.pool.QueryRow(ctx, query, uuid.New(), userID, chatID).
		Scan(&conv.ID, &conv.UserID, &conv.ChatID, &conv.CreatedAt); err != nil {
		return nil, fmt.Errorf("chat: resolve conversation: %w", err)
	}
	return &conv, nil
}

func (s *PostgresStore) SaveMessage(ctx context.Context, conversationID uuid.UUID, content string, fromMe bool) (*Message, error) {
	query := `
		INSERT INTO messages (id, conversation_id, content, from_me)
		VALUES ($1, $2, $3, $4)
		RETURNING id, conversation_id, content, from_me, created_at`
	var msg Message
	if err := s.pool.QueryRow(ctx, query, uuid.New(), conversationID, content, fromMe).
		Scan(&msg.ID, &msg.ConversationID, &msg.Content, &msg.FromMe, &msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("chat: save message: %w", err)
	}
	return &msg, nil
}

// RecentMessages returns the last N messages in chronological order.
func (s *PostgresStore) RecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT id, conversation_id, content, from_me, created_at
		FROM (
			SELECT id, conversation_id, content, from_me, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("chat: recent messages: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Content, &msg.FromMe, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("chat: scan message: %w", err)
		}
		out = append(out, &msg)
	}
	return out, rows.Err()
}
