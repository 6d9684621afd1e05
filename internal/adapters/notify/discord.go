package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// discordMarkup traduce el subconjunto HTML de los informes a markdown.
var discordMarkup = strings.NewReplacer("<b>", "**", "</b>", "**", "<i>", "_", "</i>", "_")

// Discord publica mensajes en un webhook.
type Discord struct {
	webhookURL string
	client     *http.Client
}

// NewDiscord devuelve nil si no hay webhook.
func NewDiscord(webhookURL string) *Discord {
	if webhookURL == "" {
		return nil
	}
	return &Discord{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: senderTimeout},
	}
}

// Send publica text en el webhook.
func (d *Discord) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"content": discordMarkup.Replace(text)})
	if err != nil {
		return fmt.Errorf("discord: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: request failed")
	}
	defer resp.Body.Close()

	// Discord responde 204 No Content.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

// Name implementa Sender.
func (d *Discord) Name() string {
	return "discord"
}
