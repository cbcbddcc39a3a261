package client

import (
	"context"
)

// WithClient connects a client, runs fn, and always disconnects, also when
// fn panics (the panic continues after cleanup).
//
//	err := client.WithClient(ctx, cfg, func(c *client.Client) error {
//	    out, err := c.CallTool(ctx, "query_topics_by_status", map[string]any{"status": "Backlog"})
//	    ...
//	})
func WithClient(ctx context.Context, cfg Config, fn func(*Client) error, opts ...Option) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c := New(cfg, opts...)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Disconnect(ctx)

	return fn(c)
}
