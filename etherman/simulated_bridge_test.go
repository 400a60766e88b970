package etherman

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/TEENet-io/bridge-validator/agreement"
	"github.com/TEENet-io/bridge-validator/contracts/nftbridge"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStubEtherman(t *testing.T, side nftbridge.Side) (*SimulatedChain, *Etherman, []common.Address) {
	sim := NewSimulatedChain()
	t.Cleanup(func() { sim.Backend.Close() })

	authorities := []common.Address{sim.Accounts[0].From, sim.Accounts[1].From}
	addr, err := sim.DeployBridgeStub(context.Background(), 3, authorities)
	require.NoError(t, err)

	etherman, err := sim.NewEtherman("eth", side, addr, 0)
	require.NoError(t, err)
	return sim, etherman, authorities
}

// sendAndMine sends call and commits a block only after WaitConfirmed has
// started polling, so the first lookups see a tx that is still in the pool.
func sendAndMine(t *testing.T, sim *SimulatedChain, etherman *Etherman, call *agreement.ContractCall) *agreement.Receipt {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	gasPrice, err := etherman.SuggestGasPrice(ctx)
	require.NoError(t, err)
	gasLimit, err := etherman.EstimateGas(ctx, call)
	require.NoError(t, err)

	txHash, err := etherman.SendCall(ctx, call, gasPrice, gasLimit)
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		sim.Backend.Commit()
	}()

	receipt, err := etherman.WaitConfirmed(ctx, txHash, 1)
	require.NoError(t, err)
	require.Equal(t, txHash, receipt.TxHash)
	require.False(t, receipt.Reverted)
	return receipt
}

func TestBridgeStubReads(t *testing.T) {
	_, etherman, authorities := newStubEtherman(t, nftbridge.Native)
	ctx := context.Background()

	list, err := etherman.Authorities(ctx)
	require.NoError(t, err)
	assert.Equal(t, authorities, list)

	locked, err := etherman.IsLocked(ctx, big.NewInt(7))
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestSendCallWaitBeforeCommit(t *testing.T) {
	sim, etherman, _ := newStubEtherman(t, nftbridge.Native)
	ctx := context.Background()
	receiver := sim.Accounts[2].From

	call := agreement.NewValidateCall(big.NewInt(7), receiver)
	receipt := sendAndMine(t, sim, etherman, call)

	input, err := etherman.TransactionInput(ctx, receipt.TxHash)
	require.NoError(t, err)
	expected, err := etherman.PackCall(call)
	require.NoError(t, err)
	assert.Equal(t, expected, input)

	events, err := etherman.GetEventLogs(ctx, receipt.BlockNumber, receipt.BlockNumber)
	require.NoError(t, err)
	require.Equal(t, 1, events.Len())
	require.Len(t, events.Validated, 1)

	ev := events.Validated[0]
	assert.Equal(t, 0, big.NewInt(7).Cmp(ev.TokenId))
	assert.Equal(t, receiver, ev.Receiver)
	assert.Equal(t, etherman.Identity(), ev.PrevValidator)
	assert.Equal(t, receipt.TxHash, ev.TxHash)
	assert.Equal(t, receipt.BlockNumber, ev.BlockNumber)

	// the deployment block carries no bridge events
	events, err = etherman.GetEventLogs(ctx, 0, receipt.BlockNumber-1)
	require.NoError(t, err)
	assert.Zero(t, events.Len())
}

func TestBridgeReceiveEmitsUnlocked(t *testing.T) {
	for _, side := range []nftbridge.Side{nftbridge.Native, nftbridge.Receiver} {
		t.Run(string(side), func(t *testing.T) {
			sim, etherman, _ := newStubEtherman(t, side)
			recipient := sim.Accounts[2].From

			var payload *string
			if side == nftbridge.Receiver {
				image := "aW1hZ2U="
				payload = &image
			}
			receipt := sendAndMine(t, sim, etherman, agreement.NewBridgeReceiveCall(big.NewInt(9), recipient, payload))

			events, err := etherman.GetEventLogs(context.Background(), receipt.BlockNumber, receipt.BlockNumber)
			require.NoError(t, err)
			require.Len(t, events.Unlocked, 1)
			assert.Equal(t, 0, big.NewInt(9).Cmp(events.Unlocked[0].TokenId))
			assert.Equal(t, recipient, events.Unlocked[0].Recipient)
			assert.Empty(t, events.Validated)
		})
	}
}

func TestEVMAssembler(t *testing.T) {
	a := newEVMAssembler()
	a.pushLabel("end")
	a.jumpdest("end")
	code, err := a.assemble()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x61, 0x00, 0x03, 0x5b}, code)

	a = newEVMAssembler()
	a.pushLabel("missing")
	_, err = a.assemble()
	assert.Error(t, err)

	runtime, err := bridgeStubRuntime(nil)
	require.NoError(t, err)
	assert.NotEqual(t, byte(0xef), runtime[0])
}
