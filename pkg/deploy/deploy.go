// Package deploy records and queries deploys through the deploy API.
package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/strongdm/go-rollnotify/pkg/rollnotify"
)

var (
	// ErrMissingEnvironment is returned by CreateDeploy without an environment.
	ErrMissingEnvironment = errors.New("Missing 'environment'")
	// ErrMissingRevision is returned by CreateDeploy without a revision.
	ErrMissingRevision = errors.New("Missing 'revision'")
)

// Deploy is one deploy of a revision to an environment.
type Deploy struct {
	ID              int64  `json:"id,omitempty"`
	ProjectID       int64  `json:"project_id,omitempty"`
	Environment     string `json:"environment"`
	Revision        string `json:"revision"`
	LocalUsername   string `json:"local_username,omitempty"`
	RollbarUsername string `json:"rollbar_username,omitempty"`
	Comment         string `json:"comment,omitempty"`
	StartTime       int64  `json:"start_time,omitempty"`
	FinishTime      int64  `json:"finish_time,omitempty"`
}

// Page is one page of ListDeploys.
type Page struct {
	Deploys []Deploy `json:"deploys"`
	Page    int      `json:"page"`
}

// envelope is the API reply shared by all deploy endpoints.
type envelope struct {
	Err     int             `json:"err"`
	Message string          `json:"message,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Option configures a Client.
type Option func(*config)

type config struct {
	timeout time.Duration
	client  *http.Client
	logger  *zap.Logger
}

// WithTimeout sets the per-request timeout (default: 10s).
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithHTTPClient sets the underlying http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.client = client }
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// Client calls the deploy API. Write calls need a post_server_item token,
// reads need a read token.
type Client struct {
	client   *resty.Client
	endpoint string
	logger   *zap.Logger
}

// New creates a client for the API at endpoint. An empty endpoint selects
// rollnotify.DefaultEndpoint.
func New(endpoint string, opts ...Option) *Client {
	cfg := &config{timeout: 10 * time.Second}
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
	client.SetHeader("User-Agent", rollnotify.NotifierName+"/"+rollnotify.Version)

	if endpoint == "" {
		endpoint = rollnotify.DefaultEndpoint
	}
	return &Client{
		client:   client,
		endpoint: strings.TrimRight(endpoint, "/"),
		logger:   cfg.logger,
	}
}

// Validate reports every missing required field at once.
func (d Deploy) Validate() error {
	var errs []error
	if d.Environment == "" {
		errs = append(errs, ErrMissingEnvironment)
	}
	if d.Revision == "" {
		errs = append(errs, ErrMissingRevision)
	}
	if len(errs) == 0 {
		return nil
	}
	return &rollnotify.Error{Op: "create deploy", Kind: rollnotify.KindValidation, Err: errors.Join(errs...)}
}

// CreateDeploy records a deploy and returns its ID. Invalid deploys are
// rejected without a request.
func (c *Client) CreateDeploy(ctx context.Context, accessToken string, d Deploy) (int64, error) {
	const op = "create deploy"
	if err := d.Validate(); err != nil {
		return 0, err
	}

	body := map[string]any{
		"access_token": accessToken,
		"environment":  d.Environment,
		"revision":     d.Revision,
	}
	for k, v := range map[string]string{
		"local_username":   d.LocalUsername,
		"rollbar_username": d.RollbarUsername,
		"comment":          d.Comment,
	} {
		if v != "" {
			body[k] = v
		}
	}

	env, err := c.do(ctx, op, c.client.R().
		SetHeader("Content-Type", "application/json").
		SetHeader(rollnotify.AccessTokenHeader, accessToken).
		SetBody(body), http.MethodPost, "/deploy/")
	if err != nil {
		return 0, err
	}

	var data struct {
		DeployID int64 `json:"deploy_id"`
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return 0, &rollnotify.Error{Op: op, Kind: rollnotify.KindSerialization, Err: err}
		}
	}
	c.logger.Info("deploy recorded",
		zap.String("environment", d.Environment),
		zap.String("revision", d.Revision),
		zap.Int64("deploy_id", data.DeployID))
	return data.DeployID, nil
}

// GetDeploy fetches one deploy.
func (c *Client) GetDeploy(ctx context.Context, accessToken string, id int64) (*Deploy, error) {
	const op = "get deploy"
	env, err := c.do(ctx, op, c.client.R().
		SetHeader(rollnotify.AccessTokenHeader, accessToken).
		SetQueryParam("access_token", accessToken), http.MethodGet, "/deploy/"+strconv.FormatInt(id, 10))
	if err != nil {
		return nil, err
	}
	var d Deploy
	if err := json.Unmarshal(env.Result, &d); err != nil {
		return nil, &rollnotify.Error{Op: op, Kind: rollnotify.KindSerialization, Err: err}
	}
	return &d, nil
}

// ListDeploys fetches one page of deploys, newest first. Pages start at 1.
func (c *Client) ListDeploys(ctx context.Context, accessToken string, page int) (*Page, error) {
	const op = "list deploys"
	if page < 1 {
		page = 1
	}
	env, err := c.do(ctx, op, c.client.R().
		SetHeader(rollnotify.AccessTokenHeader, accessToken).
		SetQueryParams(map[string]string{
			"access_token": accessToken,
			"page":         strconv.Itoa(page),
		}), http.MethodGet, "/deploys/")
	if err != nil {
		return nil, err
	}
	p := Page{Page: page}
	if err := json.Unmarshal(env.Result, &p); err != nil {
		return nil, &rollnotify.Error{Op: op, Kind: rollnotify.KindSerialization, Err: err}
	}
	return &p, nil
}

func (c *Client) do(ctx context.Context, op string, req *resty.Request, method, path string) (*envelope, error) {
	resp, err := req.SetContext(ctx).Execute(method, c.endpoint+path)
	if err != nil {
		c.logger.Warn("deploy API request failed", zap.String("op", op), zap.Error(err))
		return nil, &rollnotify.Error{Op: op, Kind: rollnotify.KindTransport, Err: err}
	}

	var env envelope
	if jsonErr := json.Unmarshal(resp.Body(), &env); jsonErr != nil {
		if resp.IsSuccess() {
			return nil, &rollnotify.Error{Op: op, Kind: rollnotify.KindSerialization, Err: fmt.Errorf("decode response: %w", jsonErr)}
		}
		return nil, &rollnotify.Error{Op: op, Kind: rollnotify.KindTransport, Err: fmt.Errorf("unexpected status %d", resp.StatusCode())}
	}
	if env.Err != 0 {
		return &env, &rollnotify.Error{Op: op, Kind: rollnotify.KindAPI, Err: fmt.Errorf("api error: %s", env.Message)}
	}
	if !resp.IsSuccess() {
		return &env, &rollnotify.Error{Op: op, Kind: rollnotify.KindTransport, Err: fmt.Errorf("unexpected status %d", resp.StatusCode())}
	}
	return &env, nil
}
