// Package notify delivers outbound reminder text to chat users.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ivandudin29/tg-notes-bot/internal/domain"
	"github.com/ivandudin29/tg-notes-bot/internal/hub"
	"github.com/ivandudin29/tg-notes-bot/internal/protocol"
)

// Notifier sends one text message to a user.
type Notifier interface {
	Send(ctx context.Context, ownerID, text string) error
}

// HubNotifier pushes reminder messages to the user's websocket connections.
type HubNotifier struct {
	hub *hub.Hub
	now func() time.Time
}

// NewHubNotifier creates a notifier backed by the websocket hub.
func NewHubNotifier(h *hub.Hub) *HubNotifier {
	return &HubNotifier{hub: h, now: time.Now}
}

// Send queues a reminder on every connection bound to ownerID.
func (n *HubNotifier) Send(_ context.Context, ownerID, text string) error {
	if !n.hub.HasActiveConnections(ownerID) {
		return fmt.Errorf("user %s has no open connection: %w", ownerID, domain.ErrNotDelivered)
	}
	msg := protocol.ReminderMessage{
		BaseMessage: protocol.BaseMessage{
			Type:   protocol.TypeReminder,
			Ts:     n.now().UnixMilli(),
			UserID: ownerID,
		},
		Text: text,
	}
	delivered, err := n.hub.SendJSONToUser(ownerID, msg)
	if err != nil {
		return fmt.Errorf("failed to encode reminder: %w", err)
	}
	if delivered == 0 {
		return fmt.Errorf("user %s has no open connection: %w", ownerID, domain.ErrNotDelivered)
	}
	return nil
}

// WebhookRequest is the JSON body posted to the relay.
type WebhookRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// WebhookNotifier posts messages to an HTTP relay, typically a bot API bridge.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
}

// NewWebhookNotifier creates a webhook notifier. A nil client gets a 10s timeout.
func NewWebhookNotifier(url string, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{url: url, httpClient: client}
}

// Send posts the message; any non-2xx response is an error.
func (n *WebhookNotifier) Send(ctx context.Context, ownerID, text string) error {
	body, err := json.Marshal(WebhookRequest{UserID: ownerID, Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("relay returned status %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(b)), domain.ErrNotDelivered)
	}
	return nil
}

// Multi fans a message out to several notifiers.
type Multi []Notifier

// Send tries every notifier and succeeds if at least one did.
func (m Multi) Send(ctx context.Context, ownerID, text string) error {
	if len(m) == 0 {
		return domain.ErrNotDelivered
	}
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, ownerID, text); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) < len(m) {
		return nil
	}
	return errors.Join(errs...)
}
