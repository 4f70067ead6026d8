package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/emperorhan/terra-sync/internal/chain/evm/rpc"
	"github.com/emperorhan/terra-sync/internal/domain/model"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// fakeContract answers eth_call by decoding the selector against the terra
// ABI, so tests exercise the real pack/unpack paths.
type fakeContract struct {
	mu sync.Mutex

	supply    uint64
	terras    map[model.TokenID]terraTuple
	owners    map[model.TokenID]common.Address
	failIDs   map[model.TokenID]error
	adminRole [32]byte
	admins    map[common.Address]bool
	revert    *rpc.RPCError
	batchErr  error

	head      int64
	headErr   error
	headCalls int
	logs      []*rpc.Log
	logsFn    func(filter rpc.LogFilter) ([]*rpc.Log, error)
	receipts  map[string]*rpc.TransactionReceipt

	calls      []rpc.CallMsg
	batchSizes []int
	filters    []rpc.LogFilter
}

func newFakeContract() *fakeContract {
	return &fakeContract{
		terras:   map[model.TokenID]terraTuple{},
		owners:   map[model.TokenID]common.Address{},
		failIDs:  map[model.TokenID]error{},
		admins:   map[common.Address]bool{},
		receipts: map[string]*rpc.TransactionReceipt{},
	}
}

func (f *fakeContract) mint(id model.TokenID, owner string, listed bool, price int64) {
	f.terras[id] = terraTuple{
		Lat:      -1_234_567,
		Lng:      76_543_210,
		WidthCm:  10_000,
		HeightCm: 5_000,
		Listed:   listed,
		Price:    big.NewInt(price),
	}
	f.owners[id] = common.HexToAddress(owner)
	if uint64(id)+1 > f.supply {
		f.supply = uint64(id) + 1
	}
}

func (f *fakeContract) BlockNumber(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headCalls++
	return f.head, f.headErr
}

func (f *fakeContract) Call(_ context.Context, msg rpc.CallMsg) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	return f.execute(msg)
}

func (f *fakeContract) CallBatch(_ context.Context, msgs []rpc.CallMsg) ([]rpc.CallResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchSizes = append(f.batchSizes, len(msgs))
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([]rpc.CallResult, len(msgs))
	for i, msg := range msgs {
		data, err := f.execute(msg)
		out[i] = rpc.CallResult{Data: data, Err: err}
	}
	return out, nil
}

func (f *fakeContract) GetLogs(_ context.Context, filter rpc.LogFilter) ([]*rpc.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.logsFn != nil {
		return f.logsFn(filter)
	}
	return f.logs, nil
}

func (f *fakeContract) GetTransactionReceipt(_ context.Context, hash string) (*rpc.TransactionReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receipts[hash], nil
}

func (f *fakeContract) execute(msg rpc.CallMsg) ([]byte, error) {
	raw, err := hexutil.Decode(msg.Data)
	if err != nil || len(raw) < 4 {
		return nil, fmt.Errorf("bad calldata %q", msg.Data)
	}
	method, err := terraABI.MethodById(raw[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(raw[4:])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "totalSupply":
		return method.Outputs.Pack(new(big.Int).SetUint64(f.supply))
	case "getTerra", "ownerOf":
		id := model.TokenID(args[0].(*big.Int).Int64())
		if failErr, ok := f.failIDs[id]; ok {
			return nil, failErr
		}
		if method.Name == "getTerra" {
			tuple, ok := f.terras[id]
			if !ok {
				return nil, &rpc.RPCError{Code: 3, Message: "execution reverted: nonexistent token"}
			}
			return method.Outputs.Pack(tuple)
		}
		return method.Outputs.Pack(f.owners[id])
	case "ADMIN_ROLE":
		return method.Outputs.Pack(f.adminRole)
	case "hasRole":
		role := args[0].([32]byte)
		account := args[1].(common.Address)
		return method.Outputs.Pack(role == f.adminRole && f.admins[account])
	case "buy", "list", "delist", "mint":
		if f.revert != nil {
			return nil, f.revert
		}
		return []byte{}, nil
	}
	return nil, errors.New("unhandled method " + method.Name)
}

func revertPayload(reason string) string {
	stringTy, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: stringTy}}.Pack(reason)
	return hexutil.Encode(append([]byte{0x08, 0xc3, 0x79, 0xa0}, packed...))
}
