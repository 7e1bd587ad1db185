// transport.go defines the Transport boundary used by the notifier.

package rollnotify

import (
	"context"
	"encoding/json"
)

// Transport delivers a batch of items in one call.
type Transport interface {
	// PostItems sends items and returns the parsed API response. A non-nil
	// error means the whole batch failed; it is not retried.
	PostItems(ctx context.Context, accessToken string, items []*Item) (*Response, error)

	// Close releases resources held by the transport.
	Close() error
}

// Response is the ingestion API reply.
type Response struct {
	Err     int             `json:"err"`
	Message string          `json:"message,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// EncodePayload builds the request body for items: data is a single item
// for one item and an array otherwise. When standard encoding fails the
// free-form parts of each item are sanitized and encoding is retried.
func EncodePayload(accessToken string, items []*Item) ([]byte, error) {
	body, err := json.Marshal(payloadEnvelope(accessToken, items))
	if err == nil {
		return body, nil
	}

	safe := make([]*Item, len(items))
	for i, item := range items {
		safe[i] = item.sanitized()
	}
	body, err = json.Marshal(payloadEnvelope(accessToken, safe))
	if err != nil {
		return nil, &Error{Op: "encode payload", Kind: KindSerialization, Err: err}
	}
	return body, nil
}

func payloadEnvelope(accessToken string, items []*Item) map[string]any {
	var data any = items
	if len(items) == 1 {
		data = items[0]
	}
	return map[string]any{
		"access_token": accessToken,
		"data":         data,
	}
}

// sanitized returns a copy of i whose caller-supplied maps are safe to encode.
func (i *Item) sanitized() *Item {
	if i == nil {
		return nil
	}
	cp := *i
	cp.Custom = sanitizeMap(i.Custom)
	cp.Extra = sanitizeMap(i.Extra)
	if i.Request != nil {
		req := *i.Request
		req.GET = sanitizeMap(i.Request.GET)
		req.Params = sanitizeMap(i.Request.Params)
		cp.Request = &req
	}
	return &cp
}

func sanitizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := sanitize(m).(map[string]any)
	return out
}
