package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTelegramBase = "https://api.telegram.org"
	senderTimeout       = 10 * time.Second
)

// Telegram envía mensajes HTML a un chat vía Bot API.
type Telegram struct {
	base   string
	token  string
	chatID string
	client *http.Client
}

// NewTelegram devuelve nil si falta el token o el chat.
func NewTelegram(token, chatID string) *Telegram {
	if token == "" || chatID == "" {
		return nil
	}
	return &Telegram{
		base:   defaultTelegramBase,
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: senderTimeout},
	}
}

// WithBaseURL cambia el host de la Bot API (tests).
func (t *Telegram) WithBaseURL(base string) *Telegram {
	t.base = base
	return t
}

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// Send publica text con parse_mode HTML.
func (t *Telegram) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(telegramMessage{
		ChatID:                t.chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.base, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// El error de net/http incluye la URL, y con ella el token.
		return fmt.Errorf("telegram: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

// Name implementa Sender.
func (t *Telegram) Name() string {
	return "telegram"
}
