// Package nftbridge binds the NFT bridge contracts deployed on the native
// and the receiver ledger. Both contracts share the authority registry,
// the lock bookkeeping and the validate() co-signature; they only differ
// in the signature of bridgeReceive().
package nftbridge

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Which side of the bridge a contract lives on.
type Side string

const (
	Native   Side = "native"
	Receiver Side = "receiver"
)

var (
	NFTLockedSignatureHash   = crypto.Keccak256Hash([]byte("NFTLocked(uint256,address)"))
	ValidatedSignatureHash   = crypto.Keccak256Hash([]byte("Validated(uint256,address,address)"))
	NFTUnlockedSignatureHash = crypto.Keccak256Hash([]byte("NFTUnlocked(uint256,address)"))

	ErrUnknownSide = errors.New("unknown bridge side")
)

const commonABI = `
	{"inputs":[],"name":"getAuthorities","outputs":[{"internalType":"address[]","name":"","type":"address[]"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"","type":"uint256"}],"name":"authorities","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"","type":"uint256"}],"name":"lockedNFTs","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"},{"internalType":"address","name":"receiver","type":"address"}],"name":"validate","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":false,"internalType":"uint256","name":"tokenId","type":"uint256"},{"indexed":false,"internalType":"address","name":"owner","type":"address"}],"name":"NFTLocked","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":false,"internalType":"uint256","name":"tokenId","type":"uint256"},{"indexed":false,"internalType":"address","name":"receiver","type":"address"},{"indexed":false,"internalType":"address","name":"prevValidator","type":"address"}],"name":"Validated","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":false,"internalType":"uint256","name":"tokenId","type":"uint256"},{"indexed":false,"internalType":"address","name":"recipient","type":"address"}],"name":"NFTUnlocked","type":"event"}`

// NativeBridgeABI is the bridge contract on the ledger the NFT originates from.
// bridgeReceive releases the escrowed token.
var NativeBridgeABI = "[" + commonABI + `,
	{"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"},{"internalType":"address","name":"receiver","type":"address"}],"name":"bridgeReceive","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// ReceiverBridgeABI is the bridge contract on the ledger the NFT is recreated on.
// bridgeReceive mints the token together with its encoded image.
var ReceiverBridgeABI = "[" + commonABI + `,
	{"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"},{"internalType":"address","name":"receiver","type":"address"},{"internalType":"string","name":"image","type":"string"}],"name":"bridgeReceive","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// NFTLocked is the decoded NFTLocked event.
type NFTLocked struct {
	TokenId *big.Int
	Owner   common.Address
	Raw     types.Log
}

// Validated is the decoded Validated event.
type Validated struct {
	TokenId       *big.Int
	Receiver      common.Address
	PrevValidator common.Address
	Raw           types.Log
}

// NFTUnlocked is the decoded NFTUnlocked event.
type NFTUnlocked struct {
	TokenId   *big.Int
	Recipient common.Address
	Raw       types.Log
}

// NFTBridge is a bound bridge contract.
type NFTBridge struct {
	Address common.Address
	ABI     abi.ABI

	contract *bind.BoundContract
}

// ParseABI returns the parsed ABI for one side of the bridge.
func ParseABI(side Side) (abi.ABI, error) {
	switch side {
	case Native:
		return abi.JSON(strings.NewReader(NativeBridgeABI))
	case Receiver:
		return abi.JSON(strings.NewReader(ReceiverBridgeABI))
	default:
		return abi.ABI{}, ErrUnknownSide
	}
}

func NewNFTBridge(side Side, address common.Address, backend bind.ContractBackend) (*NFTBridge, error) {
	parsed, err := ParseABI(side)
	if err != nil {
		return nil, err
	}

	return &NFTBridge{
		Address:  address,
		ABI:      parsed,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

// GetAuthorities calls getAuthorities().
func (b *NFTBridge) GetAuthorities(opts *bind.CallOpts) ([]common.Address, error) {
	var out []interface{}
	err := b.contract.Call(opts, &out, "getAuthorities")
	if err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

// LockedNFTs calls lockedNFTs(tokenId).
func (b *NFTBridge) LockedNFTs(opts *bind.CallOpts, tokenId *big.Int) (bool, error) {
	var out []interface{}
	err := b.contract.Call(opts, &out, "lockedNFTs", tokenId)
	if err != nil {
		return false, err
	}

	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// Transact invokes a state-changing method with positional arguments.
func (b *NFTBridge) Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error) {
	return b.contract.Transact(opts, method, params...)
}

// Pack returns the call data of method(params...).
func (b *NFTBridge) Pack(method string, params ...interface{}) ([]byte, error) {
	return b.ABI.Pack(method, params...)
}

// UnpackLog decodes a raw log of the named event into out.
func (b *NFTBridge) UnpackLog(out interface{}, event string, log types.Log) error {
	return b.contract.UnpackLog(out, event, log)
}
