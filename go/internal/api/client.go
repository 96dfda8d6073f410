// Package api is the client of the collaboration server's HTTP endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mcdev12/roomsync/go/internal/protocol"
	"github.com/mcdev12/roomsync/go/internal/usercache"
)

const (
	loginEndpoint  = "/login"
	roomsEndpoint  = "/api/rooms"
	usersEndpoint  = "/api/users/"
	healthEndpoint = "/health"
)

var _ usercache.Lookup = (*Client)(nil)

type loginRequest struct {
	Username string `json:"username"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// Client calls /login, /api/rooms and /api/users/{id}
type Client struct {
	*BaseClient
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string) *Client {
	c := &Client{BaseClient: NewBaseClient(baseURL)}
	c.SetHeader("Accept", "application/json")
	return c
}

// Login exchanges a username for a credential
func (c *Client) Login(ctx context.Context, username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", ErrEmptyUsername
	}

	body, err := json.Marshal(loginRequest{Username: username})
	if err != nil {
		return "", fmt.Errorf("failed to marshal login request: %w", err)
	}
	data, err := c.Post(ctx, loginEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	var resp loginResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal login response: %w", err)
	}
	if resp.Token == "" {
		return "", ErrNoToken
	}
	return resp.Token, nil
}

// ListRooms returns the active rooms
func (c *Client) ListRooms(ctx context.Context) ([]protocol.Room, error) {
	data, err := c.Get(ctx, roomsEndpoint)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	var rooms []protocol.Room
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rooms response: %w", err)
	}
	if rooms == nil {
		rooms = []protocol.Room{}
	}
	return rooms, nil
}

// GetUser fetches the public metadata of a user. A 404 maps to usercache.ErrUserNotFound.
func (c *Client) GetUser(ctx context.Context, id string) (*protocol.User, error) {
	data, err := c.Get(ctx, usersEndpoint+url.PathEscape(id))
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("get user %s: %w", id, usercache.ErrUserNotFound)
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	var user protocol.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user response: %w", err)
	}
	return &user, nil
}

// Health checks that the server is up
func (c *Client) Health(ctx context.Context) error {
	data, err := c.Get(ctx, healthEndpoint)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}
	var resp healthResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("failed to unmarshal health response: %w", err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("server status %q", resp.Status)
	}
	return nil
}
