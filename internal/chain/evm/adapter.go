package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/emperorhan/terra-sync/internal/cache"
	"github.com/emperorhan/terra-sync/internal/chain"
	"github.com/emperorhan/terra-sync/internal/chain/evm/rpc"
	"github.com/emperorhan/terra-sync/internal/domain/model"
	"github.com/emperorhan/terra-sync/internal/metrics"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	adminCacheCapacity = 1024
	adminCacheTTL      = time.Minute
)

// ErrReverted matches every RevertError.
var ErrReverted = errors.New("execution reverted")

// RevertError carries the decoded Error(string) reason of a failed eth_call.
// Reason is empty when the node returned no decodable payload.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return ErrReverted.Error()
	}
	return ErrReverted.Error() + ": " + e.Reason
}

func (e *RevertError) Is(target error) bool {
	return target == ErrReverted
}

// Adapter binds the terra contract to a JSON-RPC client.
type Adapter struct {
	client   rpc.RPCClient
	contract common.Address
	network  model.Network
	logger   *slog.Logger

	roleMu    sync.Mutex
	adminRole *[32]byte
	admins    *cache.LRU[string, bool]
}

var (
	_ chain.TerraReader   = (*Adapter)(nil)
	_ chain.ReceiptReader = (*Adapter)(nil)
	_ chain.RoleReader    = (*Adapter)(nil)
	_ chain.Simulator     = (*Adapter)(nil)
)

func NewAdapter(client rpc.RPCClient, contract string, network model.Network, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		client:   client,
		contract: common.HexToAddress(contract),
		network:  network,
		logger:   logger.With("component", "chain_reader", "network", network.String()),
		admins:   cache.NewLRU[string, bool](adminCacheCapacity, adminCacheTTL),
	}
}

func (a *Adapter) callMsg(data []byte) rpc.CallMsg {
	return rpc.CallMsg{
		To:   a.contract.Hex(),
		Data: hexutil.Encode(data),
	}
}

func (a *Adapter) TotalSupply(ctx context.Context) (uint64, error) {
	data, err := terraABI.Pack("totalSupply")
	if err != nil {
		return 0, fmt.Errorf("pack totalSupply: %w", err)
	}
	out, err := a.client.Call(ctx, a.callMsg(data))
	if err != nil {
		return 0, fmt.Errorf("totalSupply: %w", err)
	}
	supply, err := unpackUint("totalSupply", out)
	if err != nil {
		return 0, err
	}
	if !supply.IsUint64() {
		return 0, fmt.Errorf("totalSupply %s overflows uint64", supply)
	}
	return supply.Uint64(), nil
}

// ReadTerras issues getTerra(i) and ownerOf(i) for every id in a single
// JSON-RPC batch. No retries: a failed id is left for the next refresh.
func (a *Adapter) ReadTerras(ctx context.Context, count uint64) ([]chain.TerraResult, error) {
	if count == 0 {
		return []chain.TerraResult{}, nil
	}

	msgs := make([]rpc.CallMsg, 0, count*2)
	for i := uint64(0); i < count; i++ {
		id := model.TokenID(i)
		getData, err := packGetTerra(id)
		if err != nil {
			return nil, fmt.Errorf("pack getTerra(%d): %w", id, err)
		}
		ownerData, err := packOwnerOf(id)
		if err != nil {
			return nil, fmt.Errorf("pack ownerOf(%d): %w", id, err)
		}
		msgs = append(msgs, a.callMsg(getData), a.callMsg(ownerData))
	}

	results, err := a.client.CallBatch(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("read terras count=%d: %w", count, err)
	}
	if len(results) != len(msgs) {
		return nil, fmt.Errorf("read terras: got %d results for %d calls", len(results), len(msgs))
	}

	out := make([]chain.TerraResult, count)
	failed := 0
	for i := uint64(0); i < count; i++ {
		id := model.TokenID(i)
		terra, err := decodePair(id, results[2*i], results[2*i+1])
		out[i] = chain.TerraResult{TokenID: id, Terra: terra, Err: err}
		if err != nil {
			failed++
			a.logger.Warn("parcel read failed; skipping", "token_id", id, "error", err)
		}
	}
	if failed > 0 {
		metrics.ChainReadFailures.WithLabelValues(a.network.String()).Add(float64(failed))
	}
	return out, nil
}

func (a *Adapter) ReadTerra(ctx context.Context, id model.TokenID) (*model.ChainTerra, error) {
	getData, err := packGetTerra(id)
	if err != nil {
		return nil, fmt.Errorf("pack getTerra(%d): %w", id, err)
	}
	ownerData, err := packOwnerOf(id)
	if err != nil {
		return nil, fmt.Errorf("pack ownerOf(%d): %w", id, err)
	}

	results, err := a.client.CallBatch(ctx, []rpc.CallMsg{a.callMsg(getData), a.callMsg(ownerData)})
	if err != nil {
		return nil, fmt.Errorf("read terra %d: %w", id, err)
	}
	if len(results) != 2 {
		return nil, fmt.Errorf("read terra %d: got %d results", id, len(results))
	}
	return decodePair(id, results[0], results[1])
}

func decodePair(id model.TokenID, terraRes, ownerRes rpc.CallResult) (*model.ChainTerra, error) {
	if terraRes.Err != nil {
		return nil, fmt.Errorf("getTerra(%d): %w", id, terraRes.Err)
	}
	if ownerRes.Err != nil {
		return nil, fmt.Errorf("ownerOf(%d): %w", id, ownerRes.Err)
	}
	tuple, err := unpackTerra(terraRes.Data)
	if err != nil {
		return nil, fmt.Errorf("token %d: %w", id, err)
	}
	owner, err := unpackOwner(ownerRes.Data)
	if err != nil {
		return nil, fmt.Errorf("token %d: %w", id, err)
	}
	return toChainTerra(id, tuple, owner), nil
}

// IsAdmin checks hasRole(ADMIN_ROLE(), address). Answers are cached briefly.
func (a *Adapter) IsAdmin(ctx context.Context, address string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, fmt.Errorf("invalid address %q", address)
	}
	key := model.NormalizeAddress(address)
	if v, ok := a.admins.Get(key); ok {
		return v, nil
	}

	role, err := a.adminRoleID(ctx)
	if err != nil {
		return false, err
	}
	data, err := terraABI.Pack("hasRole", role, common.HexToAddress(address))
	if err != nil {
		return false, fmt.Errorf("pack hasRole: %w", err)
	}
	out, err := a.client.Call(ctx, a.callMsg(data))
	if err != nil {
		return false, fmt.Errorf("hasRole: %w", err)
	}
	isAdmin, err := unpackBool("hasRole", out)
	if err != nil {
		return false, err
	}
	a.admins.Put(key, isAdmin)
	return isAdmin, nil
}

func (a *Adapter) adminRoleID(ctx context.Context) ([32]byte, error) {
	a.roleMu.Lock()
	defer a.roleMu.Unlock()
	if a.adminRole != nil {
		return *a.adminRole, nil
	}

	data, err := terraABI.Pack("ADMIN_ROLE")
	if err != nil {
		return [32]byte{}, fmt.Errorf("pack ADMIN_ROLE: %w", err)
	}
	out, err := a.client.Call(ctx, a.callMsg(data))
	if err != nil {
		return [32]byte{}, fmt.Errorf("ADMIN_ROLE: %w", err)
	}
	role, err := unpackBytes32("ADMIN_ROLE", out)
	if err != nil {
		return [32]byte{}, err
	}
	a.adminRole = &role
	return role, nil
}

// Simulate dry-runs the action as req.From. A contract revert is returned as
// *RevertError; any other error means the simulation itself could not run.
func (a *Adapter) Simulate(ctx context.Context, req chain.SimulateRequest) error {
	if !common.IsHexAddress(req.From) {
		return fmt.Errorf("invalid sender %q", req.From)
	}

	var (
		data  []byte
		value string
		err   error
	)
	switch req.Action {
	case model.ActionBuy:
		data, err = terraABI.Pack("buy", tokenArg(req.TokenID))
		if req.PriceWei != nil {
			value = hexutil.EncodeBig(req.PriceWei)
		}
	case model.ActionList:
		price := req.PriceWei
		if price == nil {
			price = new(big.Int)
		}
		data, err = terraABI.Pack("list", tokenArg(req.TokenID), price)
	case model.ActionDelist:
		data, err = terraABI.Pack("delist", tokenArg(req.TokenID))
	default:
		return fmt.Errorf("unsupported action %q", req.Action)
	}
	if err != nil {
		return fmt.Errorf("pack %s: %w", req.Action, err)
	}

	msg := a.callMsg(data)
	msg.From = common.HexToAddress(req.From).Hex()
	msg.Value = value

	if _, err := a.client.Call(ctx, msg); err != nil {
		if revert := asRevert(err); revert != nil {
			return revert
		}
		return fmt.Errorf("simulate %s %d: %w", req.Action, req.TokenID, err)
	}
	return nil
}

// asRevert extracts a revert from a JSON-RPC error. Nodes differ: some put
// the ABI-encoded reason in error.data, others only in the message.
func asRevert(err error) *RevertError {
	var rpcErr *rpc.RPCError
	if !errors.As(err, &rpcErr) {
		return nil
	}
	if payload, ok := rpcErr.RevertData(); ok {
		if raw, decodeErr := hexutil.Decode(payload); decodeErr == nil {
			if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
				return &RevertError{Reason: reason}
			}
		}
		return &RevertError{}
	}
	msg := rpcErr.Message
	if rpcErr.Code == 3 || strings.Contains(strings.ToLower(msg), "execution reverted") {
		_, reason, _ := strings.Cut(msg, "execution reverted: ")
		return &RevertError{Reason: strings.TrimSpace(reason)}
	}
	return nil
}

func (a *Adapter) Receipt(ctx context.Context, txHash string) (*chain.Receipt, error) {
	r, err := a.client.GetTransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}
	block, err := rpc.ParseHexInt64(r.BlockNumber)
	if err != nil {
		// Some nodes return a receipt with a null block while the tx is pending.
		return nil, nil
	}
	return &chain.Receipt{
		TxHash:      r.TransactionHash,
		BlockNumber: block,
		Succeeded:   r.Succeeded(),
	}, nil
}
