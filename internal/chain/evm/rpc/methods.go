package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const blockTagLatest = "latest"

func (c *Client) BlockNumber(ctx context.Context) (int64, error) {
	result, err := c.call(ctx, "eth_blockNumber", []interface{}{})
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}

	var hexNum string
	if err := json.Unmarshal(result, &hexNum); err != nil {
		return 0, fmt.Errorf("unmarshal block number: %w", err)
	}

	blockNumber, err := ParseHexInt64(hexNum)
	if err != nil {
		return 0, fmt.Errorf("parse block number: %w", err)
	}
	return blockNumber, nil
}

// Call executes eth_call against the latest block and returns the raw return data.
func (c *Client) Call(ctx context.Context, msg CallMsg) ([]byte, error) {
	result, err := c.call(ctx, "eth_call", []interface{}{msg, blockTagLatest})
	if err != nil {
		return nil, fmt.Errorf("eth_call(%s): %w", msg.To, err)
	}
	return decodeCallResult(result)
}

// CallBatch executes all calls in one round trip. A per-call error is reported
// in the matching CallResult; only transport failures fail the whole batch.
func (c *Client) CallBatch(ctx context.Context, msgs []CallMsg) ([]CallResult, error) {
	if len(msgs) == 0 {
		return []CallResult{}, nil
	}

	requests := make([]Request, len(msgs))
	for i, msg := range msgs {
		requests[i] = c.newRequest("eth_call", []interface{}{msg, blockTagLatest})
	}

	responses, err := c.callBatch(ctx, requests)
	if err != nil {
		return nil, fmt.Errorf("eth_call batch: %w", err)
	}

	results := make([]CallResult, len(msgs))
	for i, resp := range responses {
		if resp.Error != nil {
			results[i].Err = resp.Error
			continue
		}
		data, err := decodeCallResult(resp.Result)
		if err != nil {
			results[i].Err = err
			continue
		}
		results[i].Data = data
	}
	return results, nil
}

func (c *Client) GetLogs(ctx context.Context, filter LogFilter) ([]*Log, error) {
	result, err := c.call(ctx, "eth_getLogs", []interface{}{filter})
	if err != nil {
		return nil, fmt.Errorf("eth_getLogs(%s): %w", filter, err)
	}

	var logs []*Log
	if err := json.Unmarshal(result, &logs); err != nil {
		return nil, fmt.Errorf("unmarshal logs: %w", err)
	}

	return logs, nil
}

// GetTransactionReceipt returns nil, nil while the transaction is not mined.
func (c *Client) GetTransactionReceipt(ctx context.Context, hash string) (*TransactionReceipt, error) {
	result, err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{hash})
	if err != nil {
		return nil, fmt.Errorf("eth_getTransactionReceipt(%s): %w", hash, err)
	}
	if string(result) == "null" {
		return nil, nil
	}

	var receipt TransactionReceipt
	if err := json.Unmarshal(result, &receipt); err != nil {
		return nil, fmt.Errorf("unmarshal transaction receipt: %w", err)
	}

	return &receipt, nil
}

func decodeCallResult(raw json.RawMessage) ([]byte, error) {
	var hexData string
	if err := json.Unmarshal(raw, &hexData); err != nil {
		return nil, fmt.Errorf("unmarshal call result: %w", err)
	}
	data, err := hexutil.Decode(hexData)
	if err != nil {
		return nil, fmt.Errorf("decode call result: %w", err)
	}
	return data, nil
}

func ParseHexInt64(value string) (int64, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 0, fmt.Errorf("empty hex value")
	}
	raw = strings.TrimPrefix(strings.ToLower(raw), "0x")
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(raw, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex %q: %w", value, err)
	}
	return int64(parsed), nil
}

func formatHexInt64(value int64) string {
	return fmt.Sprintf("0x%x", value)
}
