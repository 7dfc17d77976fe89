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

	"gridbot/internal/logger"
	"gridbot/internal/scheduler"

	"github.com/tidwall/gjson"
)

const defaultTelegramAPI = "https://api.telegram.org"

// Telegram 通过 Bot API 推送消息。
type Telegram struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Client   *http.Client
	Retries  int
	Backoff  time.Duration
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		BotToken: botToken,
		ChatID:   chatID,
		BaseURL:  defaultTelegramAPI,
		Client:   &http.Client{Timeout: 15 * time.Second},
		Retries:  3,
		Backoff:  time.Second,
	}
}

// SendText 发送 Markdown 文本，失败最多重试 Retries 次；Bot API 返回 ok=false 时同样重试。
func (t *Telegram) SendText(ctx context.Context, text string) error {
	if t.BotToken == "" || t.ChatID == "" {
		return fmt.Errorf("telegram bot_token/chat_id not configured")
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.BaseURL, "/"), t.BotToken)
	body, err := json.Marshal(map[string]any{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return err
	}
	attempts := t.Retries
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 && !scheduler.Sleep(ctx, time.Duration(i)*t.Backoff) {
			return ctx.Err()
		}
		lastErr = t.post(ctx, endpoint, body)
		if lastErr == nil {
			return nil
		}
		logger.Warnf("telegram send attempt %d/%d failed: %v", i+1, attempts, lastErr)
	}
	return lastErr
}

func (t *Telegram) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return err
	}
	res := gjson.ParseBytes(raw)
	if resp.StatusCode/100 == 2 && res.Get("ok").Bool() {
		return nil
	}
	if desc := res.Get("description").String(); desc != "" {
		return fmt.Errorf("telegram status=%d: %s", resp.StatusCode, desc)
	}
	return fmt.Errorf("telegram status=%d", resp.StatusCode)
}
