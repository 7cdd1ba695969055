// Package client is the outbound REST adapter for the UniMarket backend.
// Every call carries the session's bearer token; a 401 triggers at most one
// silent refresh before the request is retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "unimarket/pkg/errors"
	"unimarket/pkg/logger"
	"unimarket/pkg/response"
)

// TokenProvider supplies the current access token. An empty token means the
// user must re-authenticate; the request is then sent unauthenticated and
// the backend answers 401.
type TokenProvider interface {
	AccessToken() string
}

// Refresher exchanges the refresh token for a new pair. Called at most once
// per request, on the first 401.
type Refresher interface {
	RefreshSession(ctx context.Context) error
}

type Client struct {
	baseURL   string
	http      *http.Client
	tokens    TokenProvider
	refresher Refresher
	validate  *validator.Validate
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		validate: validator.New(),
	}
}

func (c *Client) SetTokenProvider(tokens TokenProvider) {
	c.tokens = tokens
}

func (c *Client) SetRefresher(refresher Refresher) {
	c.refresher = refresher
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, contentType string, payload []byte, authed bool) (*http.Response, error) {
	build := func() (*http.Request, error) {
		target := c.baseURL + path
		if len(query) > 0 {
			target += "?" + query.Encode()
		}
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if authed && c.tokens != nil {
			if token := c.tokens.AccessToken(); token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}
		return req, nil
	}

	req, err := build()
	if err != nil {
		return nil, apperrors.Internal("failed to build request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Network("could not reach the server", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && authed && c.refresher != nil {
		resp.Body.Close()
		logger.Debug("401 on %s %s, attempting silent refresh", method, path)

		if err := c.refresher.RefreshSession(ctx); err != nil {
			return nil, apperrors.Unauthorized("session expired, please sign in again", err)
		}

		req, err = build()
		if err != nil {
			return nil, apperrors.Internal("failed to build request", err)
		}
		resp, err = c.http.Do(req)
		if err != nil {
			return nil, apperrors.Network("could not reach the server", err)
		}
	}

	return resp, nil
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out interface{}, authed bool) error {
	var payload []byte
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.Internal("failed to encode request body", err)
		}
		payload = data
		contentType = "application/json"
	}

	resp, err := c.roundTrip(ctx, method, path, query, contentType, payload, authed)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return response.Decode(resp.StatusCode, resp.Body, out)
}

func (c *Client) callPaginated(ctx context.Context, path string, query url.Values, itemsOut interface{}) (response.PageInfo, error) {
	resp, err := c.roundTrip(ctx, http.MethodGet, path, query, "", nil, true)
	if err != nil {
		return response.PageInfo{}, err
	}
	defer resp.Body.Close()

	return response.DecodePaginated(resp.StatusCode, resp.Body, itemsOut)
}

// checkInbound validates a decoded payload before it is allowed into any
// cache. Payloads failing validation never leave the boundary.
func (c *Client) checkInbound(v interface{}) error {
	if err := c.validate.Struct(v); err != nil {
		return apperrors.Internal("server returned an invalid payload", err)
	}
	return nil
}

func pageQuery(page, limit int) url.Values {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))
	return query
}
