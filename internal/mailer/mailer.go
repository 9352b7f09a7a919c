// Package mailer invokes the external email-sending endpoint. Delivery
// itself is the relay's job; this client only posts the ticket payload
// and surfaces the result.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/malekai-gauntlet/gymdesk/internal/repository"
)

// Email types.
const (
	TypeNotification = "notification"
	TypeReply        = "reply"
)

// Email is the relay payload: the full ticket plus the message kind
// and, for replies, the reply body.
type Email struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	CreatedBy   string `json:"created_by"`
	MemberEmail string `json:"member_email"`
	Type        string `json:"type"`
	ReplyText   string `json:"reply_text,omitempty"`
}

type Sender interface {
	Send(ctx context.Context, e Email) error
}

type Client struct {
	url  string
	key  string
	http *http.Client
}

func New(url, key string) *Client {
	return &Client{
		url:  url,
		key:  key,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type relayResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *Client) Send(ctx context.Context, e Email) error {
	if e.MemberEmail == "" {
		return fmt.Errorf("%w: member_email is required", repository.ErrValidation)
	}
	if e.Type == "" {
		e.Type = TypeNotification
	}

	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: send email: %v", repository.ErrRemote, err)
	}
	defer resp.Body.Close()

	var out relayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		out = relayResponse{}
	}
	if resp.StatusCode >= 300 || out.Error != "" {
		msg := out.Error
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("%w: send email: %s", repository.ErrRemote, msg)
	}
	return nil
}
