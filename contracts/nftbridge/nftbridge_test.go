package nftbridge

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseABI(t *testing.T) {
	native, err := ParseABI(Native)
	require.NoError(t, err)
	receiver, err := ParseABI(Receiver)
	require.NoError(t, err)

	assert.Len(t, native.Methods["bridgeReceive"].Inputs, 2)
	assert.Len(t, receiver.Methods["bridgeReceive"].Inputs, 3)

	for _, parsed := range []struct {
		name string
		ids  map[string]common.Hash
	}{
		{"native", map[string]common.Hash{
			"NFTLocked":   native.Events["NFTLocked"].ID,
			"Validated":   native.Events["Validated"].ID,
			"NFTUnlocked": native.Events["NFTUnlocked"].ID,
		}},
		{"receiver", map[string]common.Hash{
			"NFTLocked":   receiver.Events["NFTLocked"].ID,
			"Validated":   receiver.Events["Validated"].ID,
			"NFTUnlocked": receiver.Events["NFTUnlocked"].ID,
		}},
	} {
		assert.Equal(t, NFTLockedSignatureHash, parsed.ids["NFTLocked"], parsed.name)
		assert.Equal(t, ValidatedSignatureHash, parsed.ids["Validated"], parsed.name)
		assert.Equal(t, NFTUnlockedSignatureHash, parsed.ids["NFTUnlocked"], parsed.name)
	}

	_, err = ParseABI(Side("sidechain"))
	assert.ErrorIs(t, err, ErrUnknownSide)
}

func TestPackBridgeReceive(t *testing.T) {
	native, err := NewNFTBridge(Native, common.Address{}, nil)
	require.NoError(t, err)
	receiver, err := NewNFTBridge(Receiver, common.Address{}, nil)
	require.NoError(t, err)

	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	_, err = native.Pack("bridgeReceive", big.NewInt(7), to)
	assert.NoError(t, err)
	_, err = native.Pack("bridgeReceive", big.NewInt(7), to, "aW1hZ2U=")
	assert.Error(t, err)

	_, err = receiver.Pack("bridgeReceive", big.NewInt(7), to, "aW1hZ2U=")
	assert.NoError(t, err)
	_, err = receiver.Pack("bridgeReceive", big.NewInt(7), to)
	assert.Error(t, err)
}
