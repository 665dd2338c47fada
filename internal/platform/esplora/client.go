// Package esplora is a REST client for Esplora-compatible block explorers
// (blockstream.info, mempool.space and self-hosted instances).
package esplora

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/cjtrace/internal/domain"
	"github.com/alanyoungcy/cjtrace/internal/metrics"
)

// maxBodySize caps how much of a response the client will read.
const maxBodySize = 16 << 20

const (
	endpointOutspends = "outspends"
	endpointTx        = "tx"
)

// ClientConfig holds the connection parameters for an explorer.
type ClientConfig struct {
	// BaseURL is the API root, e.g. "https://blockstream.info/api".
	BaseURL string

	// Timeout bounds each request. Zero means 30s.
	Timeout time.Duration

	// RequestsPerSecond throttles outgoing requests. Zero disables throttling.
	RequestsPerSecond float64
	Burst             int

	UserAgent string

	// Shared, when set, meters requests against a quota shared with other
	// processes in addition to the local limiter.
	Shared domain.RateLimiter

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client implements domain.TxSource against an Esplora REST API.
type Client struct {
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	shared     domain.RateLimiter
	sharedKey  string
	httpClient *http.Client
}

// NewClient creates a new explorer client.
func NewClient(cfg ClientConfig) *Client {
	metrics.Init()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	sharedKey := "explorer"
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		sharedKey = "explorer:" + u.Host
	}

	return &Client{
		baseURL:   baseURL,
		userAgent: cfg.UserAgent,
		limiter:   limiter,
		shared:    cfg.Shared,
		sharedKey: sharedKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: cfg.Transport,
		},
	}
}

// Outspends returns the spend status of every output of txid, in output
// order.
func (c *Client) Outspends(ctx context.Context, txid domain.Txid) ([]domain.Outspend, error) {
	body, err := c.get(ctx, endpointOutspends, fmt.Sprintf("/tx/%s/outspends", txid))
	if err != nil {
		return nil, fmt.Errorf("esplora: get outspends %s: %w", txid.Short(), err)
	}

	var raw []outspendJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("esplora: decode outspends %s: %w: %v", txid.Short(), domain.ErrMalformedResponse, err)
	}
	// Every transaction has at least one output, so null or [] is never a
	// valid answer.
	if len(raw) == 0 {
		return nil, fmt.Errorf("esplora: outspends %s: %w: empty response", txid.Short(), domain.ErrMalformedResponse)
	}

	out := make([]domain.Outspend, 0, len(raw))
	for i, o := range raw {
		if !o.Spent {
			out = append(out, domain.Outspend{})
			continue
		}
		if o.Txid == nil {
			return nil, fmt.Errorf("esplora: outspend %d of %s is spent without a txid: %w", i, txid.Short(), domain.ErrMalformedResponse)
		}
		spender, err := domain.ParseTxid(*o.Txid)
		if err != nil {
			return nil, fmt.Errorf("esplora: outspend %d of %s: %w: %v", i, txid.Short(), domain.ErrMalformedResponse, err)
		}
		spend := domain.Outspend{Spent: true, Txid: spender}
		if o.Vin != nil {
			spend.Vin = *o.Vin
		}
		out = append(out, spend)
	}

	return out, nil
}

// Transaction returns the inputs (with their previous outputs) and outputs of
// txid.
func (c *Client) Transaction(ctx context.Context, txid domain.Txid) (*domain.Transaction, error) {
	body, err := c.get(ctx, endpointTx, fmt.Sprintf("/tx/%s", txid))
	if err != nil {
		return nil, fmt.Errorf("esplora: get tx %s: %w", txid.Short(), err)
	}

	var raw txJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("esplora: decode tx %s: %w: %v", txid.Short(), domain.ErrMalformedResponse, err)
	}

	tx, err := toTransaction(txid, raw)
	if err != nil {
		return nil, fmt.Errorf("esplora: tx %s: %w", txid.Short(), err)
	}
	return tx, nil
}

// toTransaction converts the wire shape to the domain type. A missing
// address is not an error here; the analysis decides what to do with it.
func toTransaction(txid domain.Txid, raw txJSON) (*domain.Transaction, error) {
	if raw.Txid == "" {
		return nil, fmt.Errorf("%w: response has no txid", domain.ErrMalformedResponse)
	}
	if !strings.EqualFold(raw.Txid, string(txid)) {
		return nil, fmt.Errorf("%w: response is for %s", domain.ErrMalformedResponse, raw.Txid)
	}
	if len(raw.Vin) == 0 || len(raw.Vout) == 0 {
		return nil, fmt.Errorf("%w: %d inputs and %d outputs", domain.ErrMalformedResponse, len(raw.Vin), len(raw.Vout))
	}

	tx := &domain.Transaction{
		Txid:    txid,
		Inputs:  make([]domain.TxInput, 0, len(raw.Vin)),
		Outputs: make([]domain.TxOutput, 0, len(raw.Vout)),
	}

	for i, v := range raw.Vout {
		if v.Value == nil || *v.Value < 0 {
			return nil, fmt.Errorf("%w: output %d has no valid value", domain.ErrMalformedResponse, i)
		}
		out := domain.TxOutput{
			Index:      i,
			Value:      domain.Amount(*v.Value),
			ScriptType: v.ScriptPubKeyType,
		}
		if v.ScriptPubKeyAddress != nil {
			out.Address = domain.Address(*v.ScriptPubKeyAddress)
		}
		tx.Outputs = append(tx.Outputs, out)
	}

	for _, v := range raw.Vin {
		in := domain.TxInput{
			PrevTxid: domain.Txid(v.Txid),
			PrevVout: v.Vout,
			Coinbase: v.IsCoinbase,
		}
		if v.Prevout != nil {
			if v.Prevout.ScriptPubKeyAddress != nil {
				in.Address = domain.Address(*v.Prevout.ScriptPubKeyAddress)
			}
			if v.Prevout.Value != nil {
				in.Value = domain.Amount(*v.Prevout.Value)
			}
		}
		tx.Inputs = append(tx.Inputs, in)
	}

	return tx, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// get performs a throttled GET against the explorer and returns the body of
// a 2xx response.
func (c *Client) get(ctx context.Context, endpoint, path string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}
	if c.shared != nil {
		if err := c.shared.Wait(ctx, c.sharedKey); err != nil {
			return nil, fmt.Errorf("shared rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ExplorerDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExplorerRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		metrics.ExplorerRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkStatus(resp.StatusCode, body); err != nil {
		result := "error"
		if errors.Is(err, domain.ErrNotFound) {
			result = "not_found"
		}
		metrics.ExplorerRequests.WithLabelValues(endpoint, result).Inc()
		return nil, err
	}

	metrics.ExplorerRequests.WithLabelValues(endpoint, "ok").Inc()
	return body, nil
}

// checkStatus maps non-2xx HTTP status codes to errors. Esplora answers
// errors with a short plain-text body.
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("bad request: %s", msg)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, msg)
	}
}

// Compile-time interface check.
var _ domain.TxSource = (*Client)(nil)
