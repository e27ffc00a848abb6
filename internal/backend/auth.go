package backend

import (
	"context"
	"errors"
	"net/http"

	"efakture/internal/core"
)

// ErrNoSessionCookie is returned when login or registration succeeds but the
// backend did not set its session cookie.
var ErrNoSessionCookie = errors.New("backend: response carried no session cookie")

type userEnvelope struct {
	User core.User `json:"user"`
}

// RegisterRequest is the body of POST /api/auth/register.
// PIB is required for company accounts.
type RegisterRequest struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Role     core.Role `json:"role,omitempty"`
	PIB      string    `json:"pib,omitempty"`
}

// Login authenticates and returns the user together with an authenticated client.
func (c *Client) Login(ctx context.Context, email, password string) (*core.User, *Client, error) {
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, "/api/auth/login", body)
}

// Register creates an account. Company accounts start unverified.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*core.User, *Client, error) {
	return c.authenticate(ctx, "/api/auth/register", req)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*core.User, *Client, error) {
	var env userEnvelope
	resp, err := c.do(ctx, http.MethodPost, path, body, &env)
	if err != nil {
		return nil, nil, err
	}
	token := c.sessionCookie(resp)
	if token == "" {
		return nil, nil, ErrNoSessionCookie
	}
	return &env.User, c.WithToken(token), nil
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	return err
}

// Me returns the profile of the signed-in user.
func (c *Client) Me(ctx context.Context) (*core.User, error) {
	var env userEnvelope
	if _, err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &env); err != nil {
		return nil, err
	}
	return &env.User, nil
}
