// Package client implements the outbound JSON-RPC client (C4): three URL
// pools (sequencers, full nodes, provers), two dispatch strategies
// (Sequential with per-URL retry, Race fan-out), used by every component
// that needs to reach another process over RPC.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/0xkanth/mojave-sequencer/internal/mjerr"
	"github.com/0xkanth/mojave-sequencer/pkg/jsonrpc"
)

// Strategy selects how a request is dispatched across a URL Pool.
type Strategy int

const (
	// Sequential tries each URL in order with per-URL retry; returns the
	// first success or the last error.
	Sequential Strategy = iota
	// Race issues every URL in parallel and returns the first success,
	// cancelling the rest.
	Race
)

// RetryConfig controls the Sequential strategy's per-URL retry loop.
// Only timeout errors are retried; transport/protocol errors fail fast.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
}

// DefaultRetryConfig mirrors the source's constants.rs defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    1,
		InitialDelay:  100 * time.Millisecond,
		BackoffFactor: 2,
		MaxDelay:      30 * time.Second,
	}
}

// DefaultTimeout is the per-call HTTP timeout.
const DefaultTimeout = 10 * time.Second

// Client is the outbound JSON-RPC client.
type Client struct {
	httpClient    *http.Client
	sequencerURLs []string
	fullNodeURLs  []string
	proverURLs    []string
	retry         RetryConfig
}

// Option configures a Client at construction time.
type Option func(*Client)

func WithSequencerURLs(urls ...string) Option { return func(c *Client) { c.sequencerURLs = urls } }
func WithFullNodeURLs(urls ...string) Option  { return func(c *Client) { c.fullNodeURLs = urls } }
func WithProverURLs(urls ...string) Option    { return func(c *Client) { c.proverURLs = urls } }
func WithRetryConfig(rc RetryConfig) Option   { return func(c *Client) { c.retry = rc } }
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New constructs a Client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		retry:      DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pool names a URL pool the client can dispatch against.
type Pool int

const (
	PoolSequencers Pool = iota
	PoolFullNodes
	PoolProvers
)

func (c *Client) urlsFor(p Pool) []string {
	switch p {
	case PoolSequencers:
		return c.sequencerURLs
	case PoolFullNodes:
		return c.fullNodeURLs
	case PoolProvers:
		return c.proverURLs
	default:
		return nil
	}
}

// Call dispatches method/params to the given Pool under the given
// strategy and decodes the JSON-RPC result into out.
func (c *Client) Call(ctx context.Context, p Pool, strategy Strategy, method string, params any, out any) error {
	urls := c.urlsFor(p)
	if len(urls) == 0 {
		return mjerr.Internal(nil, "no RPC URLs configured for Pool")
	}

	rawParams, err := json.Marshal(params)
	if err != nil {
		return mjerr.Internal(err, "encode request params")
	}

	switch strategy {
	case Sequential:
		return c.callSequential(ctx, urls, method, rawParams, out)
	case Race:
		return c.callRace(ctx, urls, method, rawParams, out)
	default:
		return mjerr.Internal(nil, "unknown dispatch strategy")
	}
}

func (c *Client) callSequential(ctx context.Context, urls []string, method string, params json.RawMessage, out any) error {
	var lastErr error
	for _, url := range urls {
		delay := c.retry.InitialDelay
		for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
			err := c.callOne(ctx, url, method, params, out)
			if err == nil {
				return nil
			}
			lastErr = err

			mjErr, ok := mjerr.As(err)
			if !ok || !mjErr.Retryable() {
				break
			}
			if attempt == c.retry.MaxRetries {
				break
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay = time.Duration(float64(delay) * c.retry.BackoffFactor)
			if delay > c.retry.MaxDelay {
				delay = c.retry.MaxDelay
			}
		}
	}
	if lastErr == nil {
		lastErr = mjerr.Internal(nil, "no URLs to try")
	}
	return fmt.Errorf("all sequential attempts failed: %w", lastErr)
}

func (c *Client) callRace(ctx context.Context, urls []string, method string, params json.RawMessage, out any) error {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(raceCtx)
	type winner struct {
		raw json.RawMessage
	}
	results := make(chan winner, 1)

	for _, url := range urls {
		url := url
		g.Go(func() error {
			var raw json.RawMessage
			if err := c.callOneRaw(gctx, url, method, params, &raw); err != nil {
				return err
			}
			select {
			case results <- winner{raw: raw}:
				cancel()
			default:
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case w := <-results:
		if out != nil {
			return json.Unmarshal(w.raw, out)
		}
		return nil
	case err := <-done:
		select {
		case w := <-results:
			if out != nil {
				return json.Unmarshal(w.raw, out)
			}
			return nil
		default:
		}
		if err != nil {
			return fmt.Errorf("all race attempts failed: %w", err)
		}
		return mjerr.Internal(nil, "race strategy: no URLs configured")
	}
}

// CallURL dispatches directly to a single URL (no pool, no strategy),
// used when the caller already knows exactly which peer to reach (e.g.
// a prover replying to the sequencer that submitted the job).
func (c *Client) CallURL(ctx context.Context, url, method string, params any, out any) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return mjerr.Internal(err, "encode request params")
	}
	return c.callOne(ctx, url, method, rawParams, out)
}

func (c *Client) callOne(ctx context.Context, url, method string, params json.RawMessage, out any) error {
	var raw json.RawMessage
	if err := c.callOneRaw(ctx, url, method, params, &raw); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) callOneRaw(ctx context.Context, url, method string, params json.RawMessage, out *json.RawMessage) error {
	reqBody, err := json.Marshal(jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		ID:      json.RawMessage("1"),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return mjerr.Internal(err, "encode JSON-RPC request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return mjerr.Internal(err, "build HTTP request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return mjerr.Timeout(err)
		}
		if isTimeoutErr(err) {
			return mjerr.Timeout(err)
		}
		return mjerr.Internal(err, "transport error calling %s", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return mjerr.Internal(err, "read response body")
	}

	var rpcResp jsonrpc.Response
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return mjerr.Internal(err, "decode JSON-RPC response")
	}
	if rpcResp.Error != nil {
		return mjerr.Internal(nil, "rpc error from %s: %s", url, rpcResp.Error.Message)
	}

	*out = rpcResp.Result
	return nil
}

func isTimeoutErr(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
