// Package noop provides a transport that discards all items.
// Useful for testing and for disabling delivery.
package noop

import (
	"context"

	"github.com/strongdm/go-rollnotify/pkg/rollnotify"
)

type transport struct{}

// New creates a transport that accepts and discards every batch.
func New() rollnotify.Transport {
	return &transport{}
}

// PostItems discards items and reports success.
func (t *transport) PostItems(context.Context, string, []*rollnotify.Item) (*rollnotify.Response, error) {
	return &rollnotify.Response{}, nil
}

func (t *transport) Close() error {
	return nil
}
