package client

import (
	"context"
	"net/http"

	"unimarket/internal/domain/entity"
	apperrors "unimarket/pkg/errors"
	"unimarket/pkg/response"
)

// ListConversations fetches one page of conversation previews, most recent
// first.
func (c *Client) ListConversations(ctx context.Context, page, limit int) ([]entity.Conversation, response.PageInfo, error) {
	var items []entity.Conversation
	info, err := c.callPaginated(ctx, "/v1/chats", pageQuery(page, limit), &items)
	if err != nil {
		return nil, response.PageInfo{}, err
	}
	for i := range items {
		if err := c.checkInbound(&items[i]); err != nil {
			return nil, response.PageInfo{}, err
		}
	}
	return items, info, nil
}

// ListMessages fetches one page of history with the given counterpart,
// ordered by server timestamp ascending within the page.
func (c *Client) ListMessages(ctx context.Context, counterpartID string, page, limit int) ([]entity.Message, response.PageInfo, error) {
	if counterpartID == "" {
		return nil, response.PageInfo{}, apperrors.BadRequest("counterpart id is required", nil)
	}

	var items []entity.Message
	path := "/v1/chats/" + counterpartID + "/messages"
	info, err := c.callPaginated(ctx, path, pageQuery(page, limit), &items)
	if err != nil {
		return nil, response.PageInfo{}, err
	}
	for i := range items {
		if err := c.checkInbound(&items[i]); err != nil {
			return nil, response.PageInfo{}, err
		}
	}
	return items, info, nil
}

type SendMessageInput struct {
	TempID        string `json:"temp_id"`
	Content       string `json:"content"`
	Type          string `json:"type"`
	AttachmentURL string `json:"attachment_url,omitempty"`
}

// SendMessage posts a message to the counterpart's conversation. The echoed
// TempID lets the caller reconcile its optimistic entry.
func (c *Client) SendMessage(ctx context.Context, counterpartID string, input SendMessageInput) (*entity.Message, error) {
	if counterpartID == "" {
		return nil, apperrors.BadRequest("counterpart id is required", nil)
	}

	var message entity.Message
	path := "/v1/chats/" + counterpartID + "/messages"
	if err := c.call(ctx, http.MethodPost, path, nil, input, &message, true); err != nil {
		return nil, err
	}
	if err := c.checkInbound(&message); err != nil {
		return nil, err
	}
	return &message, nil
}

// MarkRead resets the unread counter of the conversation on the server.
func (c *Client) MarkRead(ctx context.Context, counterpartID string) error {
	if counterpartID == "" {
		return apperrors.BadRequest("counterpart id is required", nil)
	}
	return c.call(ctx, http.MethodPost, "/v1/chats/"+counterpartID+"/read", nil, nil, nil, true)
}
