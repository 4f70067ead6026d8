package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/emperorhan/terra-sync/internal/chain"
	"github.com/emperorhan/terra-sync/internal/domain/model"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const terraABIJSON = `[
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getTerra","stateMutability":"view",
	 "inputs":[{"name":"tokenId","type":"uint256"}],
	 "outputs":[{"name":"","type":"tuple","components":[
		{"name":"lat","type":"int32"},
		{"name":"lng","type":"int32"},
		{"name":"widthCm","type":"uint32"},
		{"name":"heightCm","type":"uint32"},
		{"name":"listed","type":"bool"},
		{"name":"price","type":"uint256"}]}]},
	{"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"mint","stateMutability":"nonpayable",
	 "inputs":[{"name":"lat","type":"int32"},{"name":"lng","type":"int32"},{"name":"widthCm","type":"uint32"},{"name":"heightCm","type":"uint32"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"buy","stateMutability":"payable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"list","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"},{"name":"price","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"delist","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"ADMIN_ROLE","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"hasRole","stateMutability":"view","inputs":[{"name":"role","type":"bytes32"},{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"event","name":"TerraCreated","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"lat","type":"int32","indexed":false},
		{"name":"lng","type":"int32","indexed":false},
		{"name":"widthCm","type":"uint32","indexed":false},
		{"name":"heightCm","type":"uint32","indexed":false}]},
	{"type":"event","name":"TerraBought","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"buyer","type":"address","indexed":true},
		{"name":"price","type":"uint256","indexed":false}]},
	{"type":"event","name":"Listed","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"price","type":"uint256","indexed":false}]},
	{"type":"event","name":"Delisted","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true}]}
]`

// terraTuple mirrors the getTerra return struct.
type terraTuple struct {
	Lat      int32
	Lng      int32
	WidthCm  uint32
	HeightCm uint32
	Listed   bool
	Price    *big.Int
}

var (
	terraABI    = mustParseABI(terraABIJSON)
	eventByName = map[string]chain.EventKind{
		"TerraCreated": chain.EventTerraCreated,
		"TerraBought":  chain.EventTerraBought,
		"Listed":       chain.EventListed,
		"Delisted":     chain.EventDelisted,
	}
	eventByTopic = buildEventTopics()
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse terra abi: %v", err))
	}
	return parsed
}

func buildEventTopics() map[common.Hash]chain.EventKind {
	topics := make(map[common.Hash]chain.EventKind, len(eventByName))
	for name, kind := range eventByName {
		topics[terraABI.Events[name].ID] = kind
	}
	return topics
}

var watchedEvents = []string{"TerraCreated", "TerraBought", "Listed", "Delisted"}

// EventTopics returns the topic0 hashes of every watched event.
func EventTopics() []string {
	out := make([]string, 0, len(watchedEvents))
	for _, name := range watchedEvents {
		out = append(out, terraABI.Events[name].ID.Hex())
	}
	return out
}

func tokenArg(id model.TokenID) *big.Int {
	return big.NewInt(int64(id))
}

func packGetTerra(id model.TokenID) ([]byte, error) {
	return terraABI.Pack("getTerra", tokenArg(id))
}

func packOwnerOf(id model.TokenID) ([]byte, error) {
	return terraABI.Pack("ownerOf", tokenArg(id))
}

func unpackTerra(data []byte) (terraTuple, error) {
	out, err := terraABI.Unpack("getTerra", data)
	if err != nil {
		return terraTuple{}, fmt.Errorf("unpack getTerra: %w", err)
	}
	if len(out) != 1 {
		return terraTuple{}, fmt.Errorf("unpack getTerra: got %d values", len(out))
	}
	tuple := *abi.ConvertType(out[0], new(terraTuple)).(*terraTuple)
	return tuple, nil
}

func unpackOwner(data []byte) (string, error) {
	out, err := terraABI.Unpack("ownerOf", data)
	if err != nil {
		return "", fmt.Errorf("unpack ownerOf: %w", err)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return "", fmt.Errorf("unpack ownerOf: unexpected type %T", out[0])
	}
	return model.NormalizeAddress(addr.Hex()), nil
}

func unpackUint(method string, data []byte) (*big.Int, error) {
	out, err := terraABI.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected type %T", method, out[0])
	}
	return v, nil
}

func unpackBool(method string, data []byte) (bool, error) {
	out, err := terraABI.Unpack(method, data)
	if err != nil {
		return false, fmt.Errorf("unpack %s: %w", method, err)
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unpack %s: unexpected type %T", method, out[0])
	}
	return v, nil
}

func unpackBytes32(method string, data []byte) ([32]byte, error) {
	out, err := terraABI.Unpack(method, data)
	if err != nil {
		return [32]byte{}, fmt.Errorf("unpack %s: %w", method, err)
	}
	v, ok := out[0].([32]byte)
	if !ok {
		return [32]byte{}, fmt.Errorf("unpack %s: unexpected type %T", method, out[0])
	}
	return v, nil
}

func toChainTerra(id model.TokenID, tuple terraTuple, owner string) *model.ChainTerra {
	price := tuple.Price
	if price == nil {
		price = new(big.Int)
	}
	return &model.ChainTerra{
		TokenID:  id,
		Lat:      tuple.Lat,
		Lng:      tuple.Lng,
		WidthCm:  tuple.WidthCm,
		HeightCm: tuple.HeightCm,
		Listed:   tuple.Listed,
		Price:    price,
		Owner:    owner,
	}
}
