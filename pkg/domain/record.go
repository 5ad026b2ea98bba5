package domain

import "time"

// ConversationRecord is one archived exchange. Records are append-only:
// BotReply is set at creation time or never.
type ConversationRecord struct {
	ID          int64
	ChatID      string
	Author      string
	UserMessage string
	MediaType   MediaKind
	BotReply    *string
	Timestamp   time.Time
}
