package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// Broker channels. One channel per domain-event category; the router
// subscribes to all of them.
const (
	CartEventsChannel     = "cart-events"
	ProductEventsChannel  = "product-events"
	CheckoutEventsChannel = "checkout-events"
)

func EventChannels() []string {
	return []string{CartEventsChannel, ProductEventsChannel, CheckoutEventsChannel}
}
