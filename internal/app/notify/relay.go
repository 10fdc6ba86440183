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

// RelaySink posts messages as JSON to an HTTP mail relay.
type RelaySink struct {
	url    string
	from   string
	client *http.Client
}

type relayPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html,omitempty"`
}

// NewRelaySink uses a client with a 10 second timeout when client is nil.
func NewRelaySink(url, from string, client *http.Client) *RelaySink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RelaySink{url: url, from: from, client: client}
}

func (s *RelaySink) Name() string    { return "relay" }
func (s *RelaySink) Addressed() bool { return true }

func (s *RelaySink) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(relayPayload{
		From: s.from, To: msg.To, Subject: msg.Subject, Text: msg.Text, HTML: msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("marshal relay payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("relay returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
