package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

func (c *Client) Register(ctx context.Context, r RegisterRequest) (*User, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("register: failed to encode request: %w", err)
	}

	var user User
	err = c.do(ctx, request{
		op:          "register",
		method:      http.MethodPost,
		path:        "/api/auth/register",
		body:        bytes.NewReader(body),
		contentType: "application/json",
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Login runs the OAuth2 password flow and returns the bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	err := c.do(ctx, request{
		op:          "login",
		method:      http.MethodPost,
		path:        "/api/auth/login",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}, &token)
	if err != nil {
		return "", err
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("login: response did not include an access token")
	}
	return token.AccessToken, nil
}

func (c *Client) CurrentUser(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	var user User
	if err := c.get(ctx, "current user", "/api/auth/me", nil, token, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListBookmarks(ctx context.Context, token string) ([]NewsItem, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	var items []NewsItem
	if err := c.get(ctx, "list bookmarks", "/api/auth/bookmarks", nil, token, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []NewsItem{}
	}
	return items, nil
}

func (c *Client) AddBookmark(ctx context.Context, newsID int, token string) error {
	return c.mutateBookmark(ctx, "add bookmark", http.MethodPost, newsID, token)
}

func (c *Client) RemoveBookmark(ctx context.Context, newsID int, token string) error {
	return c.mutateBookmark(ctx, "remove bookmark", http.MethodDelete, newsID, token)
}

func (c *Client) mutateBookmark(ctx context.Context, op, method string, newsID int, token string) error {
	if token == "" {
		return ErrMissingToken
	}

	return c.do(ctx, request{
		op:     op,
		method: method,
		path:   fmt.Sprintf("/api/auth/bookmarks/%d", newsID),
		token:  token,
	}, nil)
}
