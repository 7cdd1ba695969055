package client

import (
	"context"
	"net/http"

	"unimarket/internal/domain/entity"
	apperrors "unimarket/pkg/errors"
)

type CreateTransactionInput struct {
	ProductID string `json:"product_id"`
	Notes     string `json:"notes,omitempty"`
}

// CreateTransaction registers purchase intent on a product and opens the
// linked conversation with the seller.
func (c *Client) CreateTransaction(ctx context.Context, input CreateTransactionInput) (*entity.Transaction, error) {
	if input.ProductID == "" {
		return nil, apperrors.BadRequest("product id is required", nil)
	}

	var tx entity.Transaction
	if err := c.call(ctx, http.MethodPost, "/v1/transactions", nil, input, &tx, true); err != nil {
		return nil, err
	}
	if err := c.checkInbound(&tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) GetTransaction(ctx context.Context, id string) (*entity.Transaction, error) {
	if id == "" {
		return nil, apperrors.BadRequest("transaction id is required", nil)
	}

	var tx entity.Transaction
	if err := c.call(ctx, http.MethodGet, "/v1/transactions/"+id, nil, nil, &tx, true); err != nil {
		return nil, err
	}
	if err := c.checkInbound(&tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

type confirmInput struct {
	Milestone entity.TransactionStatus `json:"milestone"`
}

// ConfirmMilestone records the caller's confirmation for the given
// milestone. The backend remains the final authority on the transition.
func (c *Client) ConfirmMilestone(ctx context.Context, id string, milestone entity.TransactionStatus) (*entity.Transaction, error) {
	if id == "" {
		return nil, apperrors.BadRequest("transaction id is required", nil)
	}

	var tx entity.Transaction
	path := "/v1/transactions/" + id + "/confirm"
	if err := c.call(ctx, http.MethodPost, path, nil, confirmInput{Milestone: milestone}, &tx, true); err != nil {
		return nil, err
	}
	if err := c.checkInbound(&tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) CancelTransaction(ctx context.Context, id string) (*entity.Transaction, error) {
	if id == "" {
		return nil, apperrors.BadRequest("transaction id is required", nil)
	}

	var tx entity.Transaction
	if err := c.call(ctx, http.MethodPost, "/v1/transactions/"+id+"/cancel", nil, nil, &tx, true); err != nil {
		return nil, err
	}
	if err := c.checkInbound(&tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

type SubmitReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// SubmitReview rates a received transaction; server side this moves the
// transaction into its terminal rated state.
func (c *Client) SubmitReview(ctx context.Context, transactionID string, input SubmitReviewInput) (*entity.Transaction, error) {
	if transactionID == "" {
		return nil, apperrors.BadRequest("transaction id is required", nil)
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, apperrors.BadRequest("rating must be between 1 and 5", nil)
	}

	var tx entity.Transaction
	path := "/v1/transactions/" + transactionID + "/review"
	if err := c.call(ctx, http.MethodPost, path, nil, input, &tx, true); err != nil {
		return nil, err
	}
	if err := c.checkInbound(&tx); err != nil {
		return nil, err
	}
	return &tx, nil
}
