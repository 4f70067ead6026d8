package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func methodTestClient(handler func(*http.Request) (*http.Response, error)) *Client {
	client := NewClient("http://rpc.local", nil)
	client.httpClient = &http.Client{
		Transport: roundTripFunc(handler),
	}
	return client
}

func singleResult(t *testing.T, method string, result string, check func(Request)) func(*http.Request) (*http.Response, error) {
	return func(r *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req Request
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, method, req.Method)
		if check != nil {
			check(req)
		}

		rawResp, err := json.Marshal(Response{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(result)})
		require.NoError(t, err)
		return jsonHTTPResponse(http.StatusOK, string(rawResp)), nil
	}
}

func TestBlockNumber(t *testing.T) {
	client := methodTestClient(singleResult(t, "eth_blockNumber", `"0x10"`, nil))

	block, err := client.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(16), block)
}

func TestCall(t *testing.T) {
	client := methodTestClient(singleResult(t, "eth_call", `"0x0000002a"`, func(req Request) {
		require.Len(t, req.Params, 2)
		msg, ok := req.Params[0].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "0xcontract", msg["to"])
		assert.Equal(t, "0x18160ddd", msg["data"])
		assert.NotContains(t, msg, "from")
		assert.Equal(t, "latest", req.Params[1])
	}))

	data, err := client.Call(context.Background(), CallMsg{To: "0xcontract", Data: "0x18160ddd"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0x2a}, data)
}

func TestCallBatch_PerCallErrors(t *testing.T) {
	client := methodTestClient(func(r *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var reqs []Request
		require.NoError(t, json.Unmarshal(body, &reqs))
		require.Len(t, reqs, 3)

		resp := []Response{
			{JSONRPC: "2.0", ID: reqs[2].ID, Result: json.RawMessage(`"not-hex"`)},
			{JSONRPC: "2.0", ID: reqs[0].ID, Result: json.RawMessage(`"0x01"`)},
			{JSONRPC: "2.0", ID: reqs[1].ID, Error: &RPCError{Code: 3, Message: "execution reverted"}},
		}
		rawResp, err := json.Marshal(resp)
		require.NoError(t, err)
		return jsonHTTPResponse(http.StatusOK, string(rawResp)), nil
	})

	results, err := client.CallBatch(context.Background(), []CallMsg{
		{To: "0xc", Data: "0x01"},
		{To: "0xc", Data: "0x02"},
		{To: "0xc", Data: "0x03"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	assert.Equal(t, []byte{1}, results[0].Data)
	assert.EqualError(t, results[1].Err, "execution reverted")
	assert.Error(t, results[2].Err)
}

func TestCallBatch_Empty(t *testing.T) {
	client := methodTestClient(func(r *http.Request) (*http.Response, error) {
		t.Fatal("empty batch must not hit the network")
		return nil, nil
	})

	results, err := client.CallBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetLogs(t *testing.T) {
	client := methodTestClient(singleResult(t, "eth_getLogs", `[
		{"address":"0xc","topics":["0xt0","0x07"],"data":"0x","blockNumber":"0x5","transactionHash":"0xtx","logIndex":"0x0","removed":false}
	]`, func(req Request) {
		filter, ok := req.Params[0].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "0x5", filter["fromBlock"])
		assert.Equal(t, "0x9", filter["toBlock"])
		assert.Equal(t, "0xc", filter["address"])
	}))

	logs, err := client.GetLogs(context.Background(), NewLogFilter("0xc", 5, 9, []string{"0xt0"}))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "0xtx", logs[0].TransactionHash)
	assert.Equal(t, []string{"0xt0", "0x07"}, logs[0].Topics)
}

func TestGetTransactionReceipt(t *testing.T) {
	client := methodTestClient(singleResult(t, "eth_getTransactionReceipt", `{"transactionHash":"0xabc","blockNumber":"0x2","status":"0x1"}`, nil))

	receipt, err := client.GetTransactionReceipt(context.Background(), "0xabc")
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.True(t, receipt.Succeeded())

	pending := methodTestClient(singleResult(t, "eth_getTransactionReceipt", `null`, nil))
	receipt, err = pending.GetTransactionReceipt(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Nil(t, receipt)
}

func TestParseHexInt64(t *testing.T) {
	value, err := ParseHexInt64("0x2a")
	require.NoError(t, err)
	assert.Equal(t, int64(42), value)

	zero, err := ParseHexInt64("0x")
	require.NoError(t, err)
	assert.Zero(t, zero)

	_, err = ParseHexInt64("nope")
	require.Error(t, err)

	_, err = ParseHexInt64("")
	require.Error(t, err)
}
