package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/circuitbreaker"
	"github.com/fd1az/spread-monitor/internal/httpclient"
	"github.com/fd1az/spread-monitor/internal/logger"
	"github.com/fd1az/spread-monitor/internal/ratelimit"
)

const tracerName = "solana"

// Default configuration values.
const (
	DefaultTimeout           = 10 * time.Second
	DefaultRequestsPerSecond = 10
	DefaultCommitment        = "confirmed"
)

// Config configures the RPC client.
type Config struct {
	Endpoint          string
	Timeout           time.Duration
	RequestsPerSecond float64
	Commitment        string
}

// Client is a Solana JSON-RPC 2.0 client over HTTP. Calls are rate limited
// and pass through a circuit breaker that opens on transport failures.
type Client struct {
	endpoint   string
	commitment string
	http       httpclient.Client
	limiter    *ratelimit.Limiter
	cb         *circuitbreaker.CircuitBreaker[json.RawMessage]
	tracer     trace.Tracer
	logger     logger.LoggerInterface
	requestID  atomic.Uint64
}

// NewClient creates a client for cfg.Endpoint.
func NewClient(cfg Config, log logger.LoggerInterface) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("solana rpc endpoint is required"))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Commitment == "" {
		cfg.Commitment = DefaultCommitment
	}

	hc, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("solana-rpc"),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithHeaders(map[string]string{"Content-Type": "application/json"}),
	)
	if err != nil {
		return nil, fmt.Errorf("init http client: %w", err)
	}

	c := &Client{
		endpoint:   cfg.Endpoint,
		commitment: cfg.Commitment,
		http:       hc,
		limiter:    ratelimit.NewPerSecond(cfg.RequestsPerSecond, 0),
		tracer:     otel.Tracer(tracerName),
		logger:     log,
	}

	cbCfg := circuitbreaker.DefaultConfig("solana-rpc")
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	c.cb = circuitbreaker.New[json.RawMessage](cbCfg)

	return c, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// call performs one JSON-RPC request. Node-level errors are returned
// without counting against the breaker.
func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	ctx, span := c.tracer.Start(ctx, "solana."+method, trace.WithAttributes(
		attribute.String("rpc.method", method),
	))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		return apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err), apperror.WithContext(method))
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	var rpcErr *RPCError
	raw, err := c.cb.Execute(func() (json.RawMessage, error) {
		var resp rpcResponse
		_, err := c.http.NewRequest(httpclient.WithResponseErrorHandler(statusError)).
			SetBody(req).
			SetResult(&resp).
			Post(ctx, c.endpoint)
		if err != nil {
			return nil, err
		}
		if resp.Error != nil {
			rpcErr = resp.Error
			return nil, nil
		}
		return resp.Result, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		span.SetStatus(codes.Error, "circuit open")
		return apperror.External(apperror.CodeCircuitOpen, method, err)
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return apperror.External(apperror.CodeSolanaRPCError, method, err)
	case rpcErr != nil:
		span.SetStatus(codes.Error, rpcErr.Message)
		return apperror.External(apperror.CodeSolanaRPCError, method, rpcErr)
	}

	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return apperror.New(apperror.CodeInvalidFormat, apperror.WithCause(err), apperror.WithContext(method))
		}
	}
	return nil
}

func statusError(status int, body []byte) error {
	if status == http.StatusOK {
		return nil
	}
	if status == http.StatusTooManyRequests {
		return apperror.New(apperror.CodeRateLimitExceeded, apperror.WithContext("rpc returned 429"))
	}
	return fmt.Errorf("unexpected status %d: %s", status, body[:min(len(body), 200)])
}

func (c *Client) accountOpts() map[string]any {
	return map[string]any{
		"encoding":   "base64",
		"commitment": c.commitment,
	}
}

// GetAccountInfo fetches one account. A missing account is reported as
// CodeSolanaAccountMissing.
func (c *Client) GetAccountInfo(ctx context.Context, key PublicKey) (*Account, error) {
	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", []any{key.String(), c.accountOpts()}, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, apperror.NotFound(apperror.CodeSolanaAccountMissing, key.String())
	}
	return result.Value.decode()
}

// GetMultipleAccounts fetches accounts in one request. The returned slice
// matches keys by index; missing accounts are nil.
func (c *Client) GetMultipleAccounts(ctx context.Context, keys []PublicKey) ([]*Account, error) {
	addrs := make([]string, len(keys))
	for i, k := range keys {
		addrs[i] = k.String()
	}

	var result getMultipleAccountsResult
	if err := c.call(ctx, "getMultipleAccounts", []any{addrs, c.accountOpts()}, &result); err != nil {
		return nil, err
	}
	if len(result.Value) != len(keys) {
		return nil, apperror.New(apperror.CodeInvalidFormat,
			apperror.WithContext(fmt.Sprintf("getMultipleAccounts returned %d of %d accounts", len(result.Value), len(keys))))
	}

	accounts := make([]*Account, len(keys))
	for i, v := range result.Value {
		if v == nil {
			continue
		}
		acc, err := v.decode()
		if err != nil {
			return nil, err
		}
		accounts[i] = acc
	}
	return accounts, nil
}
