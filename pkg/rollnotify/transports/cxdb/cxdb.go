// Package cxdb provides a transport that persists items to cxdb as
// SystemMessage turns.
package cxdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	cxdbclient "github.com/strongdm/ai-cxdb/clients/go"
	cxdtypes "github.com/strongdm/ai-cxdb/clients/go/types"
	"github.com/strongdm/go-rollnotify/pkg/rollnotify"
)

// CXDBClient is the minimal interface for cxdb client operations.
// The real *cxdb.Client satisfies this interface.
type CXDBClient interface {
	CreateContext(ctx context.Context, baseTurnID uint64) (*cxdbclient.ContextHead, error)
	AppendTurn(ctx context.Context, req *cxdbclient.AppendRequest) (*cxdbclient.AppendResult, error)
}

// Option configures the cxdb transport.
type Option func(*config)

type config struct {
	orphanLabels []string
	clientTag    string
}

// WithOrphanLabels sets labels for contexts created for items that carry no
// context ID.
func WithOrphanLabels(labels []string) Option {
	return func(c *config) {
		c.orphanLabels = labels
	}
}

// WithClientTag sets the client tag for orphan contexts.
func WithClientTag(tag string) Option {
	return func(c *config) {
		c.clientTag = tag
	}
}

// Transport appends each item to its cxdb context.
type Transport struct {
	client       CXDBClient
	orphanLabels []string
	clientTag    string
}

// New creates a transport writing to client.
func New(client CXDBClient, opts ...Option) *Transport {
	cfg := &config{
		orphanLabels: []string{"error", "unlinked"},
		clientTag:    rollnotify.NotifierName,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Transport{
		client:       client,
		orphanLabels: cfg.orphanLabels,
		clientTag:    cfg.clientTag,
	}
}

// turnResult is one entry of the Response.Result array.
type turnResult struct {
	UUID      string `json:"uuid"`
	ContextID uint64 `json:"context_id"`
	TurnID    uint64 `json:"turn_id"`
}

// PostItems appends every item and reports the resulting turns. Items after
// a failed append are still attempted; the returned error joins all failures.
func (t *Transport) PostItems(ctx context.Context, _ string, items []*rollnotify.Item) (*rollnotify.Response, error) {
	var (
		results []turnResult
		errs    []error
	)
	for _, item := range items {
		res, err := t.write(ctx, item)
		if err != nil {
			errs = append(errs, fmt.Errorf("item %s: %w", item.UUID, err))
			continue
		}
		results = append(results, res)
	}

	resp := &rollnotify.Response{}
	if raw, err := json.Marshal(results); err == nil {
		resp.Result = raw
	}
	if len(errs) > 0 {
		resp.Err = 1
		return resp, &rollnotify.Error{Op: "cxdb append", Kind: rollnotify.KindTransport, Err: errors.Join(errs...)}
	}
	return resp, nil
}

func (t *Transport) write(ctx context.Context, item *rollnotify.Item) (turnResult, error) {
	var contextID uint64
	isOrphan := false

	if item.ContextID != nil {
		contextID = *item.ContextID
	} else {
		head, err := t.client.CreateContext(ctx, 0)
		if err != nil {
			return turnResult{}, fmt.Errorf("create orphan context: %w", err)
		}
		contextID = head.ContextID
		isOrphan = true
	}

	conv, err := t.buildConversationItem(item, isOrphan)
	if err != nil {
		return turnResult{}, err
	}
	payload, err := cxdbclient.EncodeMsgpack(conv)
	if err != nil {
		return turnResult{}, fmt.Errorf("encode payload: %w", err)
	}

	appended, err := t.client.AppendTurn(ctx, &cxdbclient.AppendRequest{
		ContextID:      contextID,
		ParentTurnID:   0,
		TypeID:         cxdtypes.TypeIDConversationItem,
		TypeVersion:    cxdtypes.TypeVersionConversationItem,
		Payload:        payload,
		IdempotencyKey: item.UUID,
	})
	if err != nil {
		return turnResult{}, fmt.Errorf("append turn: %w", err)
	}
	return turnResult{UUID: item.UUID, ContextID: contextID, TurnID: appended.TurnID}, nil
}

func (t *Transport) buildConversationItem(item *rollnotify.Item, isOrphan bool) (*cxdtypes.ConversationItem, error) {
	content, err := json.Marshal(item)
	if err != nil {
		return nil, &rollnotify.Error{Op: "cxdb encode", Kind: rollnotify.KindSerialization, Err: err}
	}

	conv := &cxdtypes.ConversationItem{
		ItemType:  cxdtypes.ItemTypeSystem,
		Status:    cxdtypes.ItemStatusComplete,
		Timestamp: item.Timestamp * 1000,
		ID:        item.UUID,
		System: &cxdtypes.SystemMessage{
			Kind:    cxdtypes.SystemKindError,
			Title:   Title(item),
			Content: string(content),
		},
	}

	// cxdb expects context metadata on the first turn.
	if isOrphan {
		conv.ContextMetadata = &cxdtypes.ContextMetadata{
			Labels:    t.orphanLabels,
			ClientTag: t.clientTag,
		}
	}
	return conv, nil
}

// Title renders "class: message" for traces and the message text otherwise,
// bounded to 100 characters.
func Title(item *rollnotify.Item) string {
	const maxMsgLen = 80
	const maxTitleLen = 100

	title := item.Title
	if title == "" {
		switch {
		case item.Body.Trace != nil:
			title = traceTitle(*item.Body.Trace, maxMsgLen)
		case len(item.Body.TraceChain) > 0:
			title = traceTitle(item.Body.TraceChain[0], maxMsgLen)
		case item.Body.Message != nil:
			title = truncate(item.Body.Message.Body, maxMsgLen)
		}
	}
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > maxTitleLen {
		title = truncate(title, maxTitleLen-3)
	}
	return title
}

func traceTitle(t rollnotify.Trace, maxMsgLen int) string {
	if t.Exception.Message == "" {
		return t.Exception.Class
	}
	return t.Exception.Class + ": " + truncate(t.Exception.Message, maxMsgLen)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// Close is a no-op; the caller owns the cxdb client.
func (t *Transport) Close() error {
	return nil
}
