package agreement

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AuthorityReader reads the ordered validator list of a ledger.
// Implementations must not cache: membership changes out-of-band.
type AuthorityReader interface {
	Authorities(ctx context.Context) ([]common.Address, error)
}

// TxSender is everything the submission pipeline needs from a ledger.
type TxSender interface {
	Name() string

	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	// EstimateGas returns the gas limit for the call sent from our identity.
	EstimateGas(ctx context.Context, call *ContractCall) (uint64, error)

	// SendCall signs and broadcasts the call, returning the tx hash.
	SendCall(ctx context.Context, call *ContractCall, gasPrice *big.Int, gasLimit uint64) (common.Hash, error)

	// WaitConfirmed blocks until the tx is mined and buried under depth-1 blocks.
	WaitConfirmed(ctx context.Context, txHash common.Hash, depth uint64) (*Receipt, error)

	// PackCall returns the call data the ledger would send for the call.
	PackCall(call *ContractCall) ([]byte, error)

	// TransactionInput returns the call data of a transaction already on chain.
	TransactionInput(ctx context.Context, txHash common.Hash) ([]byte, error)
}

// Ledger is the gateway to one of the two bridged chains, bound to the
// bridge contract deployed there and to this process's signing key.
type Ledger interface {
	AuthorityReader
	TxSender

	// Identity is the address derived from the signing key held for this ledger.
	Identity() common.Address

	// IsLocked reads the locked flag of a token on this ledger's contract.
	IsLocked(ctx context.Context, tokenId *big.Int) (bool, error)
}
