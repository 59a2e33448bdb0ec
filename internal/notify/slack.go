package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Slack struct {
	Webhook string
	Client  *http.Client
}

// NewSlack returns nil when webhook is empty.
func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type slackPayload struct {
	Text string `json:"text"`
}

func (s *Slack) Send(ctx context.Context, title, text string) error {
	if s == nil || s.Webhook == "" {
		return fmt.Errorf("slack disabled")
	}
	body, err := json.Marshal(slackPayload{Text: "*" + title + "*\n" + text})
	if err != nil {
		return fmt.Errorf("slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("slack responded %d", resp.StatusCode)
	}
	return nil
}
