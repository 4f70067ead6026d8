package evm

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"testing"

	"github.com/emperorhan/terra-sync/internal/chain"
	"github.com/emperorhan/terra-sync/internal/chain/evm/rpc"
	"github.com/emperorhan/terra-sync/internal/domain/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	alice        = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	bob          = "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
)

func newTestAdapter(f *fakeContract) *Adapter {
	return NewAdapter(f, testContract, model.NetworkFoundry, slog.Default())
}

func TestTotalSupply(t *testing.T) {
	f := newFakeContract()
	f.mint(0, alice, false, 0)
	f.mint(1, bob, true, 5)

	supply, err := newTestAdapter(f).TotalSupply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), supply)
	require.Len(t, f.calls, 1)
	assert.Equal(t, common.HexToAddress(testContract).Hex(), f.calls[0].To)
}

func TestReadTerras_OneBatchRoundTrip(t *testing.T) {
	f := newFakeContract()
	f.mint(0, alice, false, 0)
	f.mint(1, bob, true, 1_500_000_000_000_000_000)
	f.mint(2, alice, true, 42)

	results, err := newTestAdapter(f).ReadTerras(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []int{6}, f.batchSizes, "2N calls in exactly one batch")

	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, model.TokenID(i), r.TokenID)
		assert.Equal(t, model.TokenID(i), r.Terra.TokenID)
	}

	second := results[1].Terra
	assert.Equal(t, model.NormalizeAddress(bob), second.Owner)
	assert.True(t, second.Listed)
	assert.Equal(t, "1500000000000000000", second.Price.String())
	assert.Equal(t, int32(-1_234_567), second.Lat)
	assert.Equal(t, int32(76_543_210), second.Lng)
	assert.Equal(t, uint32(10_000), second.WidthCm)
	assert.Equal(t, uint32(5_000), second.HeightCm)
}

func TestReadTerras_FailSoftPerID(t *testing.T) {
	f := newFakeContract()
	f.mint(0, alice, false, 0)
	f.mint(1, bob, false, 0)
	f.mint(2, alice, false, 0)
	f.failIDs[1] = &rpc.RPCError{Code: -32000, Message: "header not found"}

	results, err := newTestAdapter(f).ReadTerras(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Terra)
	assert.NoError(t, results[2].Err)
}

func TestReadTerras_TransportFailureFailsCall(t *testing.T) {
	f := newFakeContract()
	f.mint(0, alice, false, 0)
	f.batchErr = errors.New("connection refused")

	_, err := newTestAdapter(f).ReadTerras(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestReadTerras_Empty(t *testing.T) {
	f := newFakeContract()

	results, err := newTestAdapter(f).ReadTerras(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, f.batchSizes)
}

func TestReadTerra(t *testing.T) {
	f := newFakeContract()
	f.mint(7, alice, true, 99)

	terra, err := newTestAdapter(f).ReadTerra(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, model.TokenID(7), terra.TokenID)
	assert.Equal(t, model.NormalizeAddress(alice), terra.Owner)
	assert.Equal(t, int64(99), terra.Price.Int64())
	assert.Equal(t, []int{2}, f.batchSizes)

	_, err = newTestAdapter(f).ReadTerra(context.Background(), 8)
	require.Error(t, err)
}

func TestIsAdmin_CachesAnswer(t *testing.T) {
	f := newFakeContract()
	f.adminRole = common.HexToHash("0xa49807205ce4d355092ef5a8a18f56e8913cf4a201fbe287825b095693c21775")
	f.admins[common.HexToAddress(alice)] = true
	a := newTestAdapter(f)

	isAdmin, err := a.IsAdmin(context.Background(), alice)
	require.NoError(t, err)
	assert.True(t, isAdmin)
	callsAfterFirst := len(f.calls)
	assert.Equal(t, 2, callsAfterFirst, "ADMIN_ROLE then hasRole")

	isAdmin, err = a.IsAdmin(context.Background(), model.NormalizeAddress(alice))
	require.NoError(t, err)
	assert.True(t, isAdmin)
	assert.Equal(t, callsAfterFirst, len(f.calls), "second answer comes from cache")

	isAdmin, err = a.IsAdmin(context.Background(), bob)
	require.NoError(t, err)
	assert.False(t, isAdmin)
	assert.Equal(t, callsAfterFirst+1, len(f.calls), "role id is read once")

	_, err = a.IsAdmin(context.Background(), "not-an-address")
	require.Error(t, err)
}

func TestSimulate_Success(t *testing.T) {
	f := newFakeContract()
	a := newTestAdapter(f)

	err := a.Simulate(context.Background(), chain.SimulateRequest{
		Action:   model.ActionBuy,
		TokenID:  3,
		From:     alice,
		PriceWei: big.NewInt(1000),
	})
	require.NoError(t, err)
	require.Len(t, f.calls, 1)
	assert.Equal(t, common.HexToAddress(alice).Hex(), f.calls[0].From)
	assert.Equal(t, "0x3e8", f.calls[0].Value)

	err = a.Simulate(context.Background(), chain.SimulateRequest{Action: model.ActionDelist, TokenID: 3, From: alice})
	require.NoError(t, err)
	assert.Empty(t, f.calls[1].Value)
}

func TestSimulate_RevertReasonDecoded(t *testing.T) {
	f := newFakeContract()
	f.revert = &rpc.RPCError{
		Code:    3,
		Message: "execution reverted",
		Data:    []byte(`"` + revertPayload("Not the owner") + `"`),
	}

	err := newTestAdapter(f).Simulate(context.Background(), chain.SimulateRequest{
		Action:   model.ActionList,
		TokenID:  1,
		From:     bob,
		PriceWei: big.NewInt(10),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReverted)

	var revert *RevertError
	require.True(t, errors.As(err, &revert))
	assert.Equal(t, "Not the owner", revert.Reason)
	assert.Equal(t, "execution reverted: Not the owner", err.Error())
}

func TestSimulate_RevertMessageOnly(t *testing.T) {
	f := newFakeContract()
	f.revert = &rpc.RPCError{Code: -32000, Message: "execution reverted: Not listed"}

	err := newTestAdapter(f).Simulate(context.Background(), chain.SimulateRequest{Action: model.ActionBuy, TokenID: 1, From: bob})

	var revert *RevertError
	require.True(t, errors.As(err, &revert))
	assert.Equal(t, "Not listed", revert.Reason)
}

func TestSimulate_NonRevertError(t *testing.T) {
	f := newFakeContract()
	f.revert = &rpc.RPCError{Code: -32602, Message: "invalid params"}

	err := newTestAdapter(f).Simulate(context.Background(), chain.SimulateRequest{Action: model.ActionDelist, TokenID: 1, From: bob})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrReverted)
}

func TestSimulate_Validation(t *testing.T) {
	a := newTestAdapter(newFakeContract())

	err := a.Simulate(context.Background(), chain.SimulateRequest{Action: model.ActionBuy, From: "0xnope"})
	assert.ErrorContains(t, err, "invalid sender")

	err = a.Simulate(context.Background(), chain.SimulateRequest{Action: "burn", From: alice})
	assert.ErrorContains(t, err, "unsupported action")
}

func TestReceipt(t *testing.T) {
	f := newFakeContract()
	f.receipts["0xok"] = &rpc.TransactionReceipt{TransactionHash: "0xok", BlockNumber: "0x10", Status: "0x1"}
	f.receipts["0xfail"] = &rpc.TransactionReceipt{TransactionHash: "0xfail", BlockNumber: "0x11", Status: "0x0"}
	a := newTestAdapter(f)

	r, err := a.Receipt(context.Background(), "0xpending")
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = a.Receipt(context.Background(), "0xok")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.True(t, r.Succeeded)
	assert.Equal(t, int64(16), r.BlockNumber)

	r, err = a.Receipt(context.Background(), "0xfail")
	require.NoError(t, err)
	assert.False(t, r.Succeeded)
}
