package response

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "unimarket/pkg/errors"
)

// Response is the envelope every UniMarket backend endpoint answers with.
type Response struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *ErrorInfo      `json:"error,omitempty"`
	Timestamp string          `json:"timestamp"`
}

type ErrorInfo struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type PaginatedResponse struct {
	Items      json.RawMessage `json:"items"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
}

// PageInfo carries the pagination cursor fields of a paginated envelope.
type PageInfo struct {
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
}

func (p PageInfo) HasMore() bool {
	return p.Page < p.TotalPages
}

// Decode reads an envelope from body and unmarshals its data payload into
// out. A failure envelope or a non-2xx status is mapped onto the error
// taxonomy. out may be nil when the caller only cares about success.
func Decode(status int, body io.Reader, out interface{}) error {
	var envelope Response
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		// Proxies answer with HTML error pages; the status still tells us
		// what went wrong.
		if status >= http.StatusBadRequest {
			return envelopeError(status, nil)
		}
		return apperrors.Internal("malformed response from server", err)
	}

	if !envelope.Success || status >= http.StatusBadRequest {
		return envelopeError(status, envelope.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return apperrors.Internal("unexpected response payload from server", err)
	}
	return nil
}

// DecodePaginated is Decode for list endpoints: items go into itemsOut and
// the cursor fields are returned alongside.
func DecodePaginated(status int, body io.Reader, itemsOut interface{}) (PageInfo, error) {
	var envelope Response
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		if status >= http.StatusBadRequest {
			return PageInfo{}, envelopeError(status, nil)
		}
		return PageInfo{}, apperrors.Internal("malformed response from server", err)
	}

	if !envelope.Success || status >= http.StatusBadRequest {
		return PageInfo{}, envelopeError(status, envelope.Error)
	}

	var page PaginatedResponse
	if err := json.Unmarshal(envelope.Data, &page); err != nil {
		return PageInfo{}, apperrors.Internal("unexpected list payload from server", err)
	}
	if err := json.Unmarshal(page.Items, itemsOut); err != nil {
		return PageInfo{}, apperrors.Internal("unexpected list items from server", err)
	}

	return PageInfo{
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}, nil
}

func envelopeError(status int, info *ErrorInfo) error {
	code := ""
	message := ""
	if info != nil {
		code = info.Code
		message = info.Message
	}

	switch {
	case status == http.StatusUnauthorized:
		if message == "" {
			message = "authentication required"
		}
		return apperrors.Unauthorized(message, nil)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(message, nil)
	case status == http.StatusNotFound:
		return apperrors.NotFound(message, nil)
	case status == http.StatusConflict:
		return apperrors.Conflict(message)
	case status == http.StatusTooManyRequests:
		return apperrors.TooManyRequests(message, 0)
	case status >= http.StatusInternalServerError:
		if message == "" {
			message = "the server could not complete the request"
		}
		return apperrors.Internal(message, nil)
	case status >= http.StatusBadRequest:
		if message == "" {
			message = "invalid request"
		}
		return apperrors.BadRequest(message, nil)
	}

	if code == "" {
		code = "UNEXPECTED_FAILURE"
	}
	return apperrors.New(code, fmt.Sprintf("request failed: %s", message), status, nil)
}
