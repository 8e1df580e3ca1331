// Package events carries view refresh notifications over NATS so running API
// instances can drop their caches once the aggregate views change.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"lca_wages/internal/logging"
)

// DefaultSubject is the subject refresh notifications are published on.
const DefaultSubject = "lca.views.refreshed"

// ViewsRefreshed is published after the aggregate views were rebuilt.
type ViewsRefreshed struct {
	RefreshedAt time.Time `json:"refreshed_at"`
	Views       []string  `json:"views"`
}

// Client wraps a NATS connection bound to one subject.
type Client struct {
	nc      *nats.Conn
	subject string

	mu   sync.Mutex
	subs []*nats.Subscription
}

// Connect dials NATS. The connection retries in the background when the server
// is not reachable yet.
func Connect(url, subject string) (*Client, error) {
	if url == "" {
		return nil, errors.New("nats url is empty")
	}
	if subject == "" {
		subject = DefaultSubject
	}

	log := logging.WithComponent("events")
	nc, err := nats.Connect(url,
		nats.Name("lca-wages"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Client{nc: nc, subject: subject}, nil
}

// Subject returns the subject this client publishes and subscribes on.
func (c *Client) Subject() string {
	return c.subject
}

// PublishViewsRefreshed announces a completed view refresh and waits for the
// server to acknowledge the flush.
func (c *Client) PublishViewsRefreshed(ctx context.Context, ev ViewsRefreshed) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode refresh event: %w", err)
	}
	if err := c.nc.Publish(c.subject, data); err != nil {
		return fmt.Errorf("publish refresh event: %w", err)
	}
	if err := c.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush refresh event: %w", err)
	}
	return nil
}

// SubscribeViewsRefreshed calls handler for every refresh notification.
// Malformed payloads are logged and dropped.
func (c *Client) SubscribeViewsRefreshed(handler func(ViewsRefreshed)) error {
	log := logging.WithComponent("events")

	sub, err := c.nc.Subscribe(c.subject, func(msg *nats.Msg) {
		var ev ViewsRefreshed
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping malformed refresh event")
			return
		}
		handler(ev)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.subject, err)
	}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return nil
}

// Close drains subscriptions and closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.subs = nil
	c.mu.Unlock()
	c.nc.Close()
}
