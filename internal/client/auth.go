package client

import (
	"context"
	"net/http"

	"unimarket/internal/domain/entity"
)

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResult struct {
	User         entity.User `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var result AuthResult
	input := LoginInput{Email: email, Password: password}
	if err := c.call(ctx, http.MethodPost, "/v1/auth/login", nil, input, &result, false); err != nil {
		return nil, err
	}
	if err := c.checkInbound(&result.User); err != nil {
		return nil, err
	}
	return &result, nil
}

// Me validates the current access token and returns the authoritative
// profile. On an expired token the transport performs its single silent
// refresh before giving up.
func (c *Client) Me(ctx context.Context) (*entity.User, error) {
	var user entity.User
	if err := c.call(ctx, http.MethodGet, "/v1/auth/me", nil, nil, &user, true); err != nil {
		return nil, err
	}
	if err := c.checkInbound(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

type refreshInput struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges the refresh token for a new pair. Unauthenticated by
// design: it must not recurse into the refresh-and-retry path.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair TokenPair
	input := refreshInput{RefreshToken: refreshToken}
	if err := c.call(ctx, http.MethodPost, "/v1/auth/refresh", nil, input, &pair, false); err != nil {
		return nil, err
	}
	return &pair, nil
}

// Logout tells the backend to revoke the refresh token. Best effort: local
// credential purge happens regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/v1/auth/logout", nil, nil, nil, true)
}
