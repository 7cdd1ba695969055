package client

import (
	"context"
	"net/http"

	"unimarket/internal/domain/entity"
	apperrors "unimarket/pkg/errors"
	"unimarket/pkg/response"
)

// SearchProducts lists active products, optionally filtered by a free-text
// query and category.
func (c *Client) SearchProducts(ctx context.Context, query, category string, page, limit int) ([]entity.Product, response.PageInfo, error) {
	params := pageQuery(page, limit)
	if query != "" {
		params.Set("q", query)
	}
	if category != "" {
		params.Set("category", category)
	}

	var items []entity.Product
	info, err := c.callPaginated(ctx, "/v1/products", params, &items)
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

func (c *Client) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	if id == "" {
		return nil, apperrors.BadRequest("product id is required", nil)
	}

	var product entity.Product
	if err := c.call(ctx, http.MethodGet, "/v1/products/"+id, nil, nil, &product, true); err != nil {
		return nil, err
	}
	if err := c.checkInbound(&product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) ListFavorites(ctx context.Context, page, limit int) ([]entity.Product, response.PageInfo, error) {
	var items []entity.Product
	info, err := c.callPaginated(ctx, "/v1/favorites", pageQuery(page, limit), &items)
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

func (c *Client) AddFavorite(ctx context.Context, productID string) error {
	if productID == "" {
		return apperrors.BadRequest("product id is required", nil)
	}
	return c.call(ctx, http.MethodPost, "/v1/favorites/"+productID, nil, nil, nil, true)
}

func (c *Client) RemoveFavorite(ctx context.Context, productID string) error {
	if productID == "" {
		return apperrors.BadRequest("product id is required", nil)
	}
	return c.call(ctx, http.MethodDelete, "/v1/favorites/"+productID, nil, nil, nil, true)
}

// ListSellerReviews lists the ratings other buyers left for a seller.
func (c *Client) ListSellerReviews(ctx context.Context, sellerID string, page, limit int) ([]entity.Review, response.PageInfo, error) {
	if sellerID == "" {
		return nil, response.PageInfo{}, apperrors.BadRequest("seller id is required", nil)
	}

	var items []entity.Review
	info, err := c.callPaginated(ctx, "/v1/sellers/"+sellerID+"/reviews", pageQuery(page, limit), &items)
	if err != nil {
		return nil, response.PageInfo{}, err
	}
	return items, info, nil
}
