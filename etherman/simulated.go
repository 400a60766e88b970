package etherman

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/TEENet-io/bridge-validator/contracts/nftbridge"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
)

var (
	simulatedChainID = big.NewInt(1337)
	blockGasLimit    = uint64(999999999999999999)
)

// SimulatedChain is an in-process ledger with funded accounts, used by tests
// that need a real node behind an Etherman.
type SimulatedChain struct {
	Backend  *simulated.Backend
	Accounts []*bind.TransactOpts
	Keys     []*ecdsa.PrivateKey
}

func NewSimulatedChain() *SimulatedChain {
	nAccount := 4
	accounts := make([]*bind.TransactOpts, nAccount)
	keys := make([]*ecdsa.PrivateKey, nAccount)
	for i := 0; i < nAccount; i++ {
		keys[i], accounts[i] = newAuth()
	}

	genesisAlloc := map[common.Address]types.Account{}
	for _, account := range accounts {
		balance, _ := new(big.Int).SetString("100000000000000000000", 10)
		genesisAlloc[account.From] = types.Account{
			Balance: balance,
		}
	}

	backend := simulated.NewBackend(genesisAlloc, simulated.WithBlockGasLimit(blockGasLimit))

	return &SimulatedChain{
		Backend:  backend,
		Accounts: accounts,
		Keys:     keys,
	}
}

// NewEtherman returns an Etherman on the simulated chain signing with account i.
func (chain *SimulatedChain) NewEtherman(name string, side nftbridge.Side, bridge common.Address, i int) (*Etherman, error) {
	cfg := &Config{
		Name:                  name,
		Side:                  side,
		BridgeContractAddress: bridge,
		ReceiptPollInterval:   10 * time.Millisecond,
	}
	return NewEthermanWithClient(cfg, chain.Backend.Client(), chain.Keys[i])
}

// Transfer sends a plain value transfer from account i to account j without
// committing a block.
func (chain *SimulatedChain) Transfer(ctx context.Context, i, j int, value *big.Int) (common.Hash, error) {
	client := chain.Backend.Client()

	nonce, err := client.PendingNonceAt(ctx, chain.Accounts[i].From)
	if err != nil {
		return common.Hash{}, err
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	tx := types.NewTransaction(nonce, chain.Accounts[j].From, value, 21000, gasPrice, nil)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(simulatedChainID), chain.Keys[i])
	if err != nil {
		return common.Hash{}, err
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}

func newAuth() (*ecdsa.PrivateKey, *bind.TransactOpts) {
	sk, _ := crypto.GenerateKey()
	auth, _ := bind.NewKeyedTransactorWithChainID(sk, simulatedChainID)
	return sk, auth
}
