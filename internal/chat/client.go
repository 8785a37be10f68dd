package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
)

// APIError is a non-2xx answer of the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// Thread is a conversation with its history.
type Thread struct {
	Conversation domain.Conversation `json:"conversation"`
	Messages     []domain.Message     `json:"messages"`
}

// Client talks to the /v1 conversation endpoints with a session token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a client for baseURL. A nil httpClient means
// http.DefaultClient; streams need a client without a global timeout.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, http.MethodGet, "/v1/me", nil, &u); err != nil {
		return nil, fmt.Errorf("chat.Client.Me: %w", err)
	}
	return &u, nil
}

func (c *Client) Conversations(ctx context.Context) ([]domain.ConversationSummary, error) {
	var out []domain.ConversationSummary
	if err := c.do(ctx, http.MethodGet, "/v1/conversations", nil, &out); err != nil {
		return nil, fmt.Errorf("chat.Client.Conversations: %w", err)
	}
	return out, nil
}

// Open fetches the thread. The server marks it read as a side effect.
func (c *Client) Open(ctx context.Context, conversationID uuid.UUID) (*Thread, error) {
	var th Thread
	if err := c.do(ctx, http.MethodGet, "/v1/conversations/"+conversationID.String(), nil, &th); err != nil {
		return nil, fmt.Errorf("chat.Client.Open: %w", err)
	}
	return &th, nil
}

func (c *Client) Send(ctx context.Context, conversationID uuid.UUID, content string) (*domain.Message, error) {
	var m domain.Message
	path := "/v1/conversations/" + conversationID.String() + "/messages"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"content": content}, &m); err != nil {
		return nil, fmt.Errorf("chat.Client.Send: %w", err)
	}
	return &m, nil
}

// Stream subscribes to new messages of a conversation and calls fn for
// each until ctx is done or the server closes the stream. ready is called
// once the server confirmed the subscription.
func (c *Client) Stream(
	ctx context.Context,
	conversationID uuid.UUID,
	ready func(),
	fn func(domain.Message),
) error {
	const op = "chat.Client.Stream"

	u := c.baseURL + "/v1/conversations/" + conversationID.String() + "/stream"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.authorize(req)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %w", op, readAPIError(resp))
	}

	err = readEvents(resp.Body, func(ev event) error {
		switch ev.Name {
		case "ready":
			if ready != nil {
				ready()
			}
		case "message":
			var env struct {
				New domain.Message `json:"new"`
			}
			if err := json.Unmarshal([]byte(ev.Data), &env); err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			fn(env.New)
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	c.authorize(req)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			return ue.Err
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readAPIError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	return &APIError{Status: resp.StatusCode, Message: body.Error}
}
