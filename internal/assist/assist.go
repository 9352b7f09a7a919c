// Package assist drafts agent replies through an OpenAI-compatible
// chat-completions endpoint. Optional: callers should skip it when no
// key is configured.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/malekai-gauntlet/gymdesk/internal/models"
	"github.com/malekai-gauntlet/gymdesk/internal/repository"
)

type Client struct {
	url   string
	key   string
	model string
	http  *http.Client
}

func New(url, key string) *Client {
	return &Client{
		url:   url,
		key:   key,
		model: "gpt-4",
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Enabled() bool { return c.key != "" }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// DraftReply asks the model for a reply body addressed to the member.
func (c *Client) DraftReply(ctx context.Context, t models.Ticket, agentName string) (string, error) {
	prompt := fmt.Sprintf(`Please write a professional and helpful response to this support ticket. Write the response as if you are directly replying to the customer's email - do not include any subject line or email headers, just the message body:

Title: %s
Customer Name: %s
Customer Request: %s
Agent Name: %s

Start with "Hi %s" if a name is provided, otherwise use an appropriate greeting, and end with a signature from the GymDesk team.`,
		t.Title, t.FirstName, t.Description, agentName, t.FirstName)

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: draft reply: %v", repository.ErrRemote, err)
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: draft reply: %v", repository.ErrRemote, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("%w: draft reply: %s", repository.ErrRemote, out.Error.Message)
	}
	if resp.StatusCode >= 300 || len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: draft reply: %s", repository.ErrRemote, resp.Status)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
