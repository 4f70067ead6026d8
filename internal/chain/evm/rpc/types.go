package rpc

import (
	"encoding/json"
	"fmt"
)

type Request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object. Data carries the revert payload for
// execution errors (code 3 on geth-compatible nodes).
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// RevertData returns the hex-encoded revert payload attached to the error, if any.
func (e *RPCError) RevertData() (string, bool) {
	if len(e.Data) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return "", false
	}
	return s, s != ""
}

// CallMsg is the transaction object of eth_call.
type CallMsg struct {
	From  string `json:"from,omitempty"`
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value,omitempty"`
}

// CallResult is one eth_call outcome inside a batch.
type CallResult struct {
	Data []byte
	Err  error
}

type TransactionReceipt struct {
	TransactionHash string `json:"transactionHash"`
	BlockNumber     string `json:"blockNumber"`
	Status          string `json:"status"`
	From            string `json:"from"`
	To              string `json:"to"`
	Logs            []*Log `json:"logs"`
}

// Succeeded reports whether the receipt status is 0x1.
func (r *TransactionReceipt) Succeeded() bool {
	return r.Status == "0x1"
}

type Log struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	TransactionHash string   `json:"transactionHash"`
	LogIndex        string   `json:"logIndex"`
	Removed         bool     `json:"removed"`
}

// LogFilter is the eth_getLogs filter object. Topics is position-wise; each
// position is an OR-list of topic hashes.
type LogFilter struct {
	FromBlock string     `json:"fromBlock"`
	ToBlock   string     `json:"toBlock"`
	Address   string     `json:"address"`
	Topics    [][]string `json:"topics,omitempty"`
}

func NewLogFilter(address string, from, to int64, topic0 []string) LogFilter {
	f := LogFilter{
		FromBlock: formatHexInt64(from),
		ToBlock:   formatHexInt64(to),
		Address:   address,
	}
	if len(topic0) > 0 {
		f.Topics = [][]string{topic0}
	}
	return f
}

func (f LogFilter) String() string {
	return fmt.Sprintf("%s[%s..%s]", f.Address, f.FromBlock, f.ToBlock)
}
