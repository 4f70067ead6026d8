package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/emperorhan/terra-sync/internal/chain/ratelimit"
	"github.com/emperorhan/terra-sync/internal/circuitbreaker"
)

// RPCClient is the subset of the Ethereum JSON-RPC API the contract binding uses.
type RPCClient interface {
	BlockNumber(ctx context.Context) (int64, error)
	Call(ctx context.Context, msg CallMsg) ([]byte, error)
	CallBatch(ctx context.Context, msgs []CallMsg) ([]CallResult, error)
	GetLogs(ctx context.Context, filter LogFilter) ([]*Log, error)
	GetTransactionReceipt(ctx context.Context, hash string) (*TransactionReceipt, error)
}

type Client struct {
	httpClient *http.Client
	rpcURL     string
	label      string
	requestID  atomic.Int64
	logger     *slog.Logger
	limiter    *ratelimit.Limiter
	breaker    *circuitbreaker.Breaker
}

var _ RPCClient = (*Client)(nil)

func NewClient(rpcURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		rpcURL:     rpcURL,
		label:      "evm",
		logger:     logger,
	}
}

// SetRateLimiter sets the RPC rate limiter for this client.
func (c *Client) SetRateLimiter(l *ratelimit.Limiter) {
	c.limiter = l
}

// SetCircuitBreaker makes transport failures trip b; while open every call
// fails fast with circuitbreaker.ErrCircuitOpen.
func (c *Client) SetCircuitBreaker(b *circuitbreaker.Breaker) {
	c.breaker = b
}

// SetLabel sets the network label used on RPC metrics.
func (c *Client) SetLabel(label string) {
	c.label = label
}

func (c *Client) call(ctx context.Context, method string, params []interface{}) (result json.RawMessage, err error) {
	defer func() { ratelimit.RecordRPCCall(c.label, method, err) }()

	req := c.newRequest(method, params)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}

	var rpcResp Response
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

// callBatch sends all requests in one HTTP round trip. Responses are matched
// to requests by id; nodes may answer in any order.
func (c *Client) callBatch(ctx context.Context, requests []Request) (responses []Response, err error) {
	if len(requests) == 0 {
		return []Response{}, nil
	}
	defer func() { ratelimit.RecordRPCCall(c.label, "batch:"+requests[0].Method, err) }()

	body, err := json.Marshal(requests)
	if err != nil {
		return nil, fmt.Errorf("marshal batch request: %w", err)
	}

	respBody, err := c.post(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}

	var rpcResps []Response
	if err := json.Unmarshal(respBody, &rpcResps); err != nil {
		return nil, fmt.Errorf("unmarshal batch response: %w", err)
	}

	responseByID := make(map[int]Response, len(rpcResps))
	for _, rpcResp := range rpcResps {
		responseByID[rpcResp.ID] = rpcResp
	}

	ordered := make([]Response, len(requests))
	for i, req := range requests {
		rpcResp, ok := responseByID[req.ID]
		if !ok {
			return nil, fmt.Errorf("missing batch response id=%d method=%s", req.ID, req.Method)
		}
		ordered[i] = rpcResp
	}

	return ordered, nil
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}
	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			return nil, err
		}
	}

	respBody, err := c.doPost(ctx, body)
	if c.breaker != nil {
		if err != nil {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
	}
	return respBody, err
}

func (c *Client) doPost(ctx context.Context, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func (c *Client) newRequest(method string, params []interface{}) Request {
	id := int(c.requestID.Add(1))
	return Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}
}
