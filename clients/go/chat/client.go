// Package chat is a Go client for the ChattingApp HTTP API and push
// transport.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Arjunan-lab/ChattingApp/internal/models"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8080"

// Client is a ChattingApp API client. It satisfies reconcile.Fetcher.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.HTTPClient = hc }
}

// NewClient creates a client authenticated with token.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api error %d: %s", e.StatusCode, e.Message)
}

// doRequest performs an HTTP request and decodes a JSON response into out.
func (c *Client) doRequest(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		if errResp.Error == "" {
			errResp.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

type sendRequest struct {
	To      string `json:"to,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
	Content string `json:"content"`
}

// Send posts a direct message to userID.
func (c *Client) Send(ctx context.Context, userID, content string) (*models.Message, error) {
	var msg models.Message
	if err := c.doRequest(ctx, "POST", "/api/messages", sendRequest{To: userID, Content: content}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendToRoom posts a message to a room.
func (c *Client) SendToRoom(ctx context.Context, roomID, content string) (*models.Message, error) {
	var msg models.Message
	if err := c.doRequest(ctx, "POST", "/api/messages", sendRequest{RoomID: roomID, Content: content}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

type messageList struct {
	Messages []models.Message `json:"messages"`
}

// Conversation returns the full history with peerID, oldest first.
func (c *Client) Conversation(ctx context.Context, peerID string) ([]models.Message, error) {
	var resp messageList
	if err := c.doRequest(ctx, "GET", "/api/messages/"+url.PathEscape(peerID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// RoomMessages returns a room's history, oldest first.
func (c *Client) RoomMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	var resp messageList
	if err := c.doRequest(ctx, "GET", "/api/rooms/"+url.PathEscape(roomID)+"/messages", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// User is a roster entry.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	Online   bool   `json:"online"`
	JoinedAt string `json:"joinedAt"`
}

// Users returns the roster sorted by name.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var resp struct {
		Users []User `json:"users"`
	}
	if err := c.doRequest(ctx, "GET", "/api/users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// User returns one roster entry.
func (c *Client) User(ctx context.Context, id string) (*User, error) {
	var u User
	if err := c.doRequest(ctx, "GET", "/api/users/"+url.PathEscape(id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// HealthResponse is the server's health report.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Checks  map[string]struct {
		Status  string `json:"status"`
		Latency string `json:"latency,omitempty"`
	} `json:"checks"`
}

// Health checks server health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doRequest(ctx, "GET", "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
