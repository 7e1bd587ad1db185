// Package multi provides a transport that fans out to multiple transports.
// Every transport receives every batch; errors are aggregated.
package multi

import (
	"context"
	"errors"

	"github.com/strongdm/go-rollnotify/pkg/rollnotify"
)

type transport struct {
	transports []rollnotify.Transport
}

// New creates a transport that posts each batch to all of transports.
func New(transports ...rollnotify.Transport) rollnotify.Transport {
	return &transport{transports: transports}
}

// PostItems posts to every transport even if some fail. The response is
// the one from the first transport that succeeded; the error joins all
// failures and is nil only when every transport succeeded.
func (t *transport) PostItems(ctx context.Context, accessToken string, items []*rollnotify.Item) (*rollnotify.Response, error) {
	var (
		first *rollnotify.Response
		errs  []error
	)
	for _, tr := range t.transports {
		resp, err := tr.PostItems(ctx, accessToken, items)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if first == nil {
			first = resp
		}
	}
	if len(errs) > 0 {
		return first, &rollnotify.Error{Op: "multi post", Kind: rollnotify.KindTransport, Err: errors.Join(errs...)}
	}
	if first == nil {
		first = &rollnotify.Response{}
	}
	return first, nil
}

// Close closes every transport, collecting errors.
func (t *transport) Close() error {
	var errs []error
	for _, tr := range t.transports {
		if err := tr.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
