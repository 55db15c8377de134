package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// pushPlusURL is the PushPlus message endpoint.
const pushPlusURL = "https://www.pushplus.plus/send"

// PushPlusNotifier sends alerts via the PushPlus push service.
type PushPlusNotifier struct {
	token  string
	url    string
	client *http.Client
}

// NewPushPlusNotifier creates a PushPlus notifier.
// token: the user token from pushplus.plus.
func NewPushPlusNotifier(token string) *PushPlusNotifier {
	return &PushPlusNotifier{
		token: token,
		url:   pushPlusURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (p *PushPlusNotifier) Name() string { return "pushplus" }

func (p *PushPlusNotifier) Send(ctx context.Context, alert Alert) error {
	prefix := ""
	switch alert.Level {
	case AlertWarning:
		prefix = "[WARN] "
	case AlertCritical:
		prefix = "[CRIT] "
	}

	body, _ := json.Marshal(map[string]interface{}{
		"token":    p.token,
		"title":    prefix + alert.Title,
		"content":  alert.Message,
		"template": "markdown",
	})

	req, err := http.NewRequestWithContext(ctx, "POST", p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("pushplus: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pushplus: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pushplus: unexpected status %d", resp.StatusCode)
	}

	// The API reports failures (bad token, quota) with HTTP 200 and a
	// non-200 body code.
	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("pushplus: decode response: %w", err)
	}
	if result.Code != 200 {
		return fmt.Errorf("pushplus: delivery rejected: code %d: %s", result.Code, result.Msg)
	}

	log.Printf("[pushplus] sent alert: %s", alert.Title)
	return nil
}
