package model

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetwork_ChainIDAndRPC(t *testing.T) {
	assert.Equal(t, int64(31337), NetworkFoundry.ChainID())
	assert.Equal(t, int64(11155111), NetworkSepolia.ChainID())
	assert.Equal(t, int64(1), NetworkMainnet.ChainID())
	assert.Zero(t, Network("goerli").ChainID())

	assert.Equal(t, "http://127.0.0.1:8545", NetworkFoundry.DefaultRPCURL())
	assert.Empty(t, Network("goerli").DefaultRPCURL())
}

func TestParseAction(t *testing.T) {
	for _, raw := range []string{"buy", "list", "delist"} {
		a, err := ParseAction(raw)
		require.NoError(t, err)
		assert.Equal(t, Action(raw), a)
	}

	_, err := ParseAction("sell")
	assert.Error(t, err)
	_, err = ParseAction("")
	assert.Error(t, err)
}

func TestChainTerra_State(t *testing.T) {
	price, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)

	terra := &ChainTerra{TokenID: 4, Owner: "0xabc", Listed: true, Price: price}
	st := terra.State()

	assert.Equal(t, TokenID(4), st.TokenID)
	assert.Equal(t, "0xabc", st.Owner)
	assert.True(t, st.Listed)
	assert.Equal(t, "123456789012345678901234567890", st.PriceString())
	assert.Equal(t, "0", ChainState{}.PriceString())
}

func TestMetadataDefaults_Cycle(t *testing.T) {
	d := BuiltinMetadataDefaults()

	assert.Equal(t, "Forest", d.Terrain(0))
	assert.Equal(t, "Forest", d.Terrain(5))
	assert.Equal(t, "Plateau", d.Terrain(4))
	assert.Equal(t, []string{"Cacao", "Plantain", "Corn"}, d.Crops(5))
	assert.Equal(t, []string{"Arabica Coffee", "Plantain"}, d.Crops(6))

	crops := d.Crops(0)
	crops[0] = "mutated"
	assert.Equal(t, "Arabica Coffee", d.Crops(0)[0])

	empty := MetadataDefaults{}
	assert.Empty(t, empty.Terrain(3))
	assert.NotNil(t, empty.Crops(3))
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0xabcdef", NormalizeAddress("  0xAbCdEf "))
}

func TestParseNetwork(t *testing.T) {
	n, ok := ParseNetwork(" Sepolia ")
	require.True(t, ok)
	assert.Equal(t, NetworkSepolia, n)

	_, ok = ParseNetwork("ropsten")
	assert.False(t, ok)
}
