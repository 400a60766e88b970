package etherman

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/TEENet-io/bridge-validator/agreement"
	"github.com/TEENet-io/bridge-validator/contracts/nftbridge"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	logger "github.com/sirupsen/logrus"
)

// Receipt lookups failing with these messages are retried. The second one
// is returned while the node's tx indexer lags behind the head.
var (
	ErrMsgNotFound   = "not found"
	ErrMsgTxIndexing = "transaction indexing is in progress"

	ErrNilSigningKey = errors.New("signing key is nil")
)

type ethereumClient interface {
	bind.ContractBackend

	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, txHash ethcommon.Hash) (*types.Transaction, bool, error)
}

// Etherman is the gateway to one EVM ledger. It is bound to the bridge
// contract deployed there and signs with the key this process holds for
// that ledger.
type Etherman struct {
	cfg       *Config
	ethClient ethereumClient
	chainID   *big.Int
	key       *ecdsa.PrivateKey
	identity  ethcommon.Address
	bridge    *nftbridge.NFTBridge
}

var _ agreement.Ledger = (*Etherman)(nil)

func NewEtherman(cfg *Config, key *ecdsa.PrivateKey) (*Etherman, error) {
	client, err := ethclient.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	return NewEthermanWithClient(cfg, client, key)
}

// NewEthermanWithClient builds an Etherman over an existing client, such as
// the simulated backend in tests.
func NewEthermanWithClient(cfg *Config, client ethereumClient, key *ecdsa.PrivateKey) (*Etherman, error) {
	if key == nil {
		return nil, ErrNilSigningKey
	}

	chainID, err := client.ChainID(context.Background())
	if err != nil {
		logger.WithField("ledger", cfg.Name).Errorf("failed to get chain id: %v", err)
		return nil, err
	}

	bridge, err := nftbridge.NewNFTBridge(cfg.Side, cfg.BridgeContractAddress, client)
	if err != nil {
		return nil, err
	}

	c := *cfg
	if c.ReceiptPollInterval <= 0 {
		c.ReceiptPollInterval = DefaultReceiptPollInterval
	}

	return &Etherman{
		cfg:       &c,
		ethClient: client,
		chainID:   chainID,
		key:       key,
		identity:  crypto.PubkeyToAddress(key.PublicKey),
		bridge:    bridge,
	}, nil
}

func (etherman *Etherman) Name() string {
	return etherman.cfg.Name
}

func (etherman *Etherman) Identity() ethcommon.Address {
	return etherman.identity
}

func (etherman *Etherman) ChainID() *big.Int {
	return new(big.Int).Set(etherman.chainID)
}

func (etherman *Etherman) BridgeAddress() ethcommon.Address {
	return etherman.bridge.Address
}

func (etherman *Etherman) Client() ethereumClient {
	return etherman.ethClient
}

func (etherman *Etherman) Authorities(ctx context.Context) ([]ethcommon.Address, error) {
	return etherman.bridge.GetAuthorities(&bind.CallOpts{Context: ctx})
}

func (etherman *Etherman) IsLocked(ctx context.Context, tokenId *big.Int) (bool, error) {
	return etherman.bridge.LockedNFTs(&bind.CallOpts{Context: ctx}, tokenId)
}

func (etherman *Etherman) HeadBlockNumber(ctx context.Context) (uint64, error) {
	return etherman.ethClient.BlockNumber(ctx)
}

func (etherman *Etherman) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return etherman.ethClient.SuggestGasPrice(ctx)
}

func (etherman *Etherman) PackCall(call *agreement.ContractCall) ([]byte, error) {
	data, err := etherman.bridge.Pack(call.Method, call.Args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s on %s: %w", call.Method, etherman.cfg.Name, err)
	}
	return data, nil
}

func (etherman *Etherman) EstimateGas(ctx context.Context, call *agreement.ContractCall) (uint64, error) {
	data, err := etherman.PackCall(call)
	if err != nil {
		return 0, err
	}

	to := etherman.bridge.Address
	return etherman.ethClient.EstimateGas(ctx, ethereum.CallMsg{
		From: etherman.identity,
		To:   &to,
		Data: data,
	})
}

func (etherman *Etherman) SendCall(
	ctx context.Context,
	call *agreement.ContractCall,
	gasPrice *big.Int,
	gasLimit uint64,
) (ethcommon.Hash, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(etherman.key, etherman.chainID)
	if err != nil {
		return ethcommon.Hash{}, err
	}
	auth.Context = ctx
	auth.GasPrice = gasPrice
	auth.GasLimit = gasLimit

	tx, err := etherman.bridge.Transact(auth, call.Method, call.Args...)
	if err != nil {
		return ethcommon.Hash{}, err
	}

	return tx.Hash(), nil
}

func (etherman *Etherman) TransactionInput(ctx context.Context, txHash ethcommon.Hash) ([]byte, error) {
	tx, _, err := etherman.ethClient.TransactionByHash(ctx, txHash)
	if err != nil {
		return nil, err
	}
	return tx.Data(), nil
}

// WaitConfirmed polls until the tx has a receipt and at least depth blocks
// (the mining block included) sit on top of the chain. A depth of 0 is
// treated as 1. A receipt that is not found or not indexed yet is polled
// again; it only returns early on other RPC errors or when ctx is done.
func (etherman *Etherman) WaitConfirmed(
	ctx context.Context,
	txHash ethcommon.Hash,
	depth uint64,
) (*agreement.Receipt, error) {
	if depth == 0 {
		depth = 1
	}

	newLogger := logger.WithFields(logger.Fields{
		"ledger": etherman.cfg.Name,
		"txHash": txHash.String(),
		"depth":  depth,
	})

	for {
		receipt, err := etherman.ethClient.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil && receipt != nil && receipt.BlockNumber != nil:
			head, err := etherman.ethClient.BlockNumber(ctx)
			if err != nil {
				return nil, err
			}

			mined := receipt.BlockNumber.Uint64()
			var confirmations uint64
			if head >= mined {
				confirmations = head - mined + 1
			}
			if confirmations >= depth {
				newLogger.WithField("confirmations", confirmations).Debug("tx confirmed")
				return &agreement.Receipt{
					TxHash:        txHash,
					BlockNumber:   mined,
					Confirmations: confirmations,
					Reverted:      receipt.Status == types.ReceiptStatusFailed,
				}, nil
			}
		case err != nil && !isReceiptPending(err):
			return nil, err
		case err != nil:
			newLogger.Tracef("receipt not available yet: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(etherman.cfg.ReceiptPollInterval):
		}
	}
}

// isReceiptPending tells the errors meaning "ask again later" apart from
// real failures.
func isReceiptPending(err error) bool {
	return errors.Is(err, ethereum.NotFound) ||
		err.Error() == ErrMsgNotFound ||
		strings.Contains(err.Error(), ErrMsgTxIndexing)
}
