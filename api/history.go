package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fwojciec/chatstream"
	"go.uber.org/zap"
)

type historyResponse struct {
	Messages []historyMessage `json:"messages"`
}

type historyMessage struct {
	ID          string   `json:"id"`
	UserMessage string   `json:"user_message"`
	BotResponse string   `json:"bot_response"`
	DocumentIDs []string `json:"document_ids"`
	CreatedAt   string   `json:"created_at"`
}

// The backend may omit the zone offset, in which case UTC is assumed.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func convertHistory(msgs []historyMessage) ([]chatstream.HistoryEntry, error) {
	entries := make([]chatstream.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		e := chatstream.HistoryEntry{
			ID:          m.ID,
			UserMessage: m.UserMessage,
			BotResponse: m.BotResponse,
			DocumentIDs: m.DocumentIDs,
		}
		if m.CreatedAt != "" {
			t, err := parseTime(m.CreatedAt)
			if err != nil {
				return nil, fmt.Errorf("entry %s: created_at: %w", m.ID, err)
			}
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// History fetches the most recent chat exchanges. Network failures and 5xx
// responses are retried; other responses are final.
func (c *Client) History(ctx context.Context, limit int) ([]chatstream.HistoryEntry, error) {
	attempts := c.retryAttempts
	if attempts < 1 {
		attempts = 1
	}
	try := 0
	op := func() ([]chatstream.HistoryEntry, error) {
		try++
		entries, err := c.fetchHistory(ctx, limit)
		if err == nil {
			return entries, nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return nil, backoff.Permanent(err)
		}
		c.logger.Warn("history fetch failed", zap.Int("attempt", try), zap.Error(err))
		return nil, err
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.retryDelay)),
		backoff.WithMaxTries(uint(attempts)),
	)
}

func (c *Client) fetchHistory(ctx context.Context, limit int) ([]chatstream.HistoryEntry, error) {
	path := historyPath
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp)
	}

	var hr historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("api: decode history: %w", err))
	}
	entries, err := convertHistory(hr.Messages)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("api: decode history: %w", err))
	}
	return entries, nil
}
