package nyx

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Iotic-Labs/nyx-sdk/internal/dataset"
)

const endpointTransactions = "purchases/transactions"

// Subscribe records a purchase transaction for d with its creator.
func (c *Client) Subscribe(ctx context.Context, d *dataset.Dataset) error {
	return c.SubscribeByName(ctx, d.Name(), d.Creator())
}

// SubscribeByName subscribes to the dataset name published by creator.
func (c *Client) SubscribeByName(ctx context.Context, name, creator string) error {
	req, err := newRequest(http.MethodPost, endpointTransactions).withJSON(map[string]string{
		"product_name": name,
		"seller_org":   creator,
	})
	if err != nil {
		return err
	}
	if err := c.call(ctx, req, nil); err != nil {
		return fmt.Errorf("subscribe %s/%s: %w", creator, name, err)
	}
	return nil
}

// Unsubscribe removes the purchase transaction for d.
func (c *Client) Unsubscribe(ctx context.Context, d *dataset.Dataset) error {
	return c.UnsubscribeByName(ctx, d.Name(), d.Creator())
}

// UnsubscribeByName removes the subscription to name published by creator.
func (c *Client) UnsubscribeByName(ctx context.Context, name, creator string) error {
	endpoint := endpointTransactions + "/" + encodeCreator(creator) + "/" + url.PathEscape(name)
	if err := c.call(ctx, newRequest(http.MethodDelete, endpoint), nil); err != nil {
		return fmt.Errorf("unsubscribe %s/%s: %w", creator, name, err)
	}
	return nil
}

// encodeCreator query-escapes the organization twice. The portal decodes
// one layer before routing, so a single layer would let a "/" in a
// community-mode org split the path.
func encodeCreator(creator string) string {
	return url.QueryEscape(url.QueryEscape(creator))
}
