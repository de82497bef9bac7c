package chatstream

import (
	"context"
	"time"
)

// HistoryEntry is one persisted exchange between the user and the bot.
type HistoryEntry struct {
	ID          string    `json:"id"`
	UserMessage string    `json:"user_message"`
	BotResponse string    `json:"bot_response"`
	DocumentIDs []string  `json:"document_ids,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryFetcher loads the most recent exchanges, newest first.
type HistoryFetcher interface {
	History(ctx context.Context, limit int) ([]HistoryEntry, error)
}
