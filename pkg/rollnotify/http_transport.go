// http_transport.go delivers items to the ingestion API over HTTP.

package rollnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// AccessTokenHeader carries the access token on every request.
const AccessTokenHeader = "X-Rollbar-Access-Token"

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*httpConfig)

type httpConfig struct {
	timeout time.Duration
	client  *http.Client
	logger  *zap.Logger
}

// WithHTTPTimeout sets the per-request timeout (default: 10s).
func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(c *httpConfig) { c.timeout = d }
}

// WithHTTPClient sets the underlying http.Client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *httpConfig) { c.client = client }
}

// WithHTTPLogger sets the transport logger.
func WithHTTPLogger(logger *zap.Logger) HTTPOption {
	return func(c *httpConfig) { c.logger = logger }
}

// HTTPTransport posts items to {endpoint}/item/ or {endpoint}/item_batch/.
type HTTPTransport struct {
	client   *resty.Client
	endpoint string
	logger   *zap.Logger
	gate     *retryGate
	now      func() time.Time
}

// NewHTTPTransport creates a transport for the API at endpoint.
func NewHTTPTransport(endpoint string, opts ...HTTPOption) *HTTPTransport {
	cfg := &httpConfig{timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	var client *resty.Client
	if cfg.client != nil {
		client = resty.NewWithClient(cfg.client)
	} else {
		client = resty.New()
	}
	client.SetTimeout(cfg.timeout)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("User-Agent", NotifierName+"/"+Version)

	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &HTTPTransport{
		client:   client,
		endpoint: strings.TrimRight(endpoint, "/"),
		logger:   cfg.logger,
		gate:     newRetryGate(cfg.logger),
		now:      time.Now,
	}
}

// PostItems sends one round trip for the whole batch.
func (t *HTTPTransport) PostItems(ctx context.Context, accessToken string, items []*Item) (*Response, error) {
	const op = "post items"
	if len(items) == 0 {
		return &Response{}, nil
	}
	if until, blocked := t.gate.blocked(t.now()); blocked {
		return nil, &Error{Op: op, Kind: KindTransport, Err: fmt.Errorf("%w until %s", ErrRateLimited, until.Format(time.RFC3339))}
	}

	body, err := EncodePayload(accessToken, items)
	if err != nil {
		return nil, err
	}

	path := "/item/"
	if len(items) > 1 {
		path = "/item_batch/"
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader(AccessTokenHeader, accessToken).
		SetBody(body).
		Post(t.endpoint + path)
	if err != nil {
		t.logger.Warn("item delivery failed", zap.Int("items", len(items)), zap.Error(err))
		return nil, &Error{Op: op, Kind: KindTransport, Err: err}
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		t.gate.apply(resp.Header().Get("Retry-After"), t.now())
	}

	var parsed Response
	if jsonErr := json.Unmarshal(resp.Body(), &parsed); jsonErr != nil {
		if resp.IsSuccess() {
			return nil, &Error{Op: op, Kind: KindTransport, Err: fmt.Errorf("decode response: %w", jsonErr)}
		}
		return nil, &Error{Op: op, Kind: KindTransport, Err: fmt.Errorf("unexpected status %d", resp.StatusCode())}
	}
	if parsed.Err != 0 {
		t.logger.Warn("ingestion API rejected items",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("message", parsed.Message))
		return &parsed, &Error{Op: op, Kind: KindAPI, Err: fmt.Errorf("api error: %s", parsed.Message)}
	}
	if !resp.IsSuccess() {
		return &parsed, &Error{Op: op, Kind: KindTransport, Err: fmt.Errorf("unexpected status %d", resp.StatusCode())}
	}

	t.logger.Debug("items delivered", zap.Int("items", len(items)), zap.Int("status_code", resp.StatusCode()))
	return &parsed, nil
}

// Close releases idle connections.
func (t *HTTPTransport) Close() error {
	t.client.GetClient().CloseIdleConnections()
	return nil
}
