package upstream

import (
	"context"
	"fmt"
	"net/http"

	"storefront-gateway/internal/models"
)

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

// GetCart fetches the caller's authoritative cart
func (c *Client) GetCart(ctx context.Context, token string) (*models.Cart, error) {
	if err := c.authed(token); err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := c.do(ctx, "get_cart", http.MethodGet, "/api/cart", token, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddItem adds a product to the caller's cart
func (c *Client) AddItem(ctx context.Context, token string, productID int64, quantity int) error {
	if err := c.authed(token); err != nil {
		return err
	}

	req := addItemRequest{ProductID: productID, Quantity: quantity}
	return c.do(ctx, "add_item", http.MethodPost, "/api/cart/add", token, req, nil)
}

// UpdateItemQuantity sets the quantity of a cart item
func (c *Client) UpdateItemQuantity(ctx context.Context, token string, itemID int64, quantity int) error {
	if err := c.authed(token); err != nil {
		return err
	}

	req := updateItemRequest{Quantity: quantity}
	path := fmt.Sprintf("/api/cart/items/%d", itemID)
	return c.do(ctx, "update_item", http.MethodPut, path, token, req, nil)
}

// RemoveItem deletes a cart item
func (c *Client) RemoveItem(ctx context.Context, token string, itemID int64) error {
	if err := c.authed(token); err != nil {
		return err
	}

	path := fmt.Sprintf("/api/cart/items/%d", itemID)
	return c.do(ctx, "remove_item", http.MethodDelete, path, token, nil, nil)
}

// ClearCart removes every item from the caller's cart
func (c *Client) ClearCart(ctx context.Context, token string) error {
	if err := c.authed(token); err != nil {
		return err
	}

	return c.do(ctx, "clear_cart", http.MethodDelete, "/api/cart/clear", token, nil, nil)
}
