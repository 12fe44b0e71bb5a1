package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"optdesk/internal/pkg/retry"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// Telegram pushes messages to one chat through the Bot API.
type Telegram struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Client   *http.Client
	Policy   retry.Policy
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		BotToken: botToken,
		ChatID:   chatID,
		BaseURL:  defaultTelegramBaseURL,
		Client:   &http.Client{Timeout: 15 * time.Second},
		Policy:   retry.Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 3 * time.Second},
	}
}

// SendText posts text as Markdown. 4xx answers are not retried.
func (t *Telegram) SendText(ctx context.Context, text string) error {
	if t.BotToken == "" || t.ChatID == "" {
		return fmt.Errorf("telegram bot token and chat id are required")
	}
	base := strings.TrimRight(t.BaseURL, "/")
	if base == "" {
		base = defaultTelegramBaseURL
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", base, t.BotToken)
	body, err := json.Marshal(map[string]any{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return err
	}
	return retry.Do(ctx, t.Policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := t.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode/100 == 2 {
			return nil
		}
		err = fmt.Errorf("telegram status=%d", resp.StatusCode)
		if resp.StatusCode/100 == 4 && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Permanent(err)
		}
		return err
	})
}
