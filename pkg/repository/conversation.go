package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/raulbalestra/helovox/pkg/domain"
)

type conversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *conversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Save(ctx context.Context, rec domain.ConversationRecord) error {
	const query = `
		INSERT INTO conversations (chat_id, author, user_message, media_type, bot_reply, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ChatID, rec.Author, rec.UserMessage, string(rec.MediaType), rec.BotReply, rec.Timestamp)
	if err != nil {
		return &domain.StoreError{Op: "save", Err: err}
	}

	return nil
}

// RecentByChatID returns up to limit records for the chat, newest first.
func (r *conversationRepository) RecentByChatID(ctx context.Context, chatID string, limit int) ([]domain.ConversationRecord, error) {
	const query = `
		SELECT id, chat_id, author, user_message, media_type, bot_reply, created_at
		FROM conversations
		WHERE chat_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, &domain.StoreError{Op: "recent", Err: err}
	}
	defer rows.Close()

	var records []domain.ConversationRecord
	for rows.Next() {
		var rec domain.ConversationRecord
		var mediaType string
		if err := rows.Scan(&rec.ID, &rec.ChatID, &rec.Author, &rec.UserMessage,
			&mediaType, &rec.BotReply, &rec.Timestamp); err != nil {
			return nil, &domain.StoreError{Op: "recent", Err: err}
		}
		rec.MediaType = domain.MediaKind(mediaType)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "recent", Err: err}
	}

	return records, nil
}

// LastImageDescription returns the bot reply of the newest image record
// for the chat, or ok=false when the chat never had an image described.
func (r *conversationRepository) LastImageDescription(ctx context.Context, chatID string) (string, bool, error) {
	const query = `
		SELECT bot_reply
		FROM conversations
		WHERE chat_id = $1 AND media_type = $2 AND bot_reply IS NOT NULL
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var description string
	err := r.db.QueryRowContext(ctx, query, chatID, string(domain.MediaKindImage)).Scan(&description)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &domain.StoreError{Op: "last_image_description", Err: err}
	}

	return description, true, nil
}
