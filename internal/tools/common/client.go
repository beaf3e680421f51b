package common

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
	"time"

	"github.com/gorilla/websocket"
)

// Client talks to a running hub over its public HTTP and websocket API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 20 * time.Second},
	}
}

// StatusError carries a non-2xx reply.
type StatusError struct {
	Status int
	Code   string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("http %d", e.Status)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Do sends body as JSON and decodes the envelope's data into out when out is
// non-nil. It returns the response status even on error.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	var env envelope
	_ = json.Unmarshal(raw, &env)
	if resp.StatusCode >= 400 {
		se := &StatusError{Status: resp.StatusCode, Body: string(raw)}
		if env.Error != nil {
			se.Code = env.Error.Code
		}
		return resp.StatusCode, se
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

type loginReply struct {
	Token string `json:"token"`
	User  struct {
		ID uint `json:"id"`
	} `json:"user"`
}

// Login registers name when it does not exist yet, then logs in and keeps the
// issued token on the client. It returns the user id.
func (c *Client) Login(ctx context.Context, name, password string) (uint, error) {
	creds := map[string]string{"name": name, "password": password}
	var reply loginReply
	_, err := c.Do(ctx, http.MethodPost, "/api/v1/auth/login", creds, &reply)
	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		if _, err := c.Do(ctx, http.MethodPost, "/api/v1/auth/register", creds, nil); err != nil {
			return 0, fmt.Errorf("register %s: %w", name, err)
		}
		_, err = c.Do(ctx, http.MethodPost, "/api/v1/auth/login", creds, &reply)
	}
	if err != nil {
		return 0, fmt.Errorf("login %s: %w", name, err)
	}
	c.Token = reply.Token
	return reply.User.ID, nil
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil)
	if err == nil {
		c.Token = ""
	}
	return err
}

// DialWS opens the realtime socket with the client's token.
func (c *Client) DialWS(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.BaseURL + "/api/v1/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("token", c.Token)
	u.RawQuery = q.Encode()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	return conn, nil
}
