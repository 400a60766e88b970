// Global agreement on the types shared by the validator packages.

package agreement

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind names the three bridge events a ledger can emit.
type EventKind string

const (
	Locked    EventKind = "NFTLocked"
	Validated EventKind = "Validated"
	Unlocked  EventKind = "NFTUnlocked"
)

// LockedEvent is emitted on the origin ledger when an owner
// escrows a token and starts a transfer.
type LockedEvent struct {
	TxHash      common.Hash // tx that emitted the event, used for confirmation waiting
	BlockNumber uint64
	TokenId     *big.Int
	Owner       common.Address
}

func (ev *LockedEvent) String() string {
	return fmt.Sprintf("%+v", *ev)
}

// ValidatedEvent is emitted on the destination ledger every time an
// authority co-signs the transfer. PrevValidator is the signer.
type ValidatedEvent struct {
	TxHash        common.Hash
	BlockNumber   uint64
	TokenId       *big.Int
	Receiver      common.Address
	PrevValidator common.Address
}

func (ev *ValidatedEvent) String() string {
	return fmt.Sprintf("%+v", *ev)
}

// UnlockedEvent marks the end of a transfer on the destination ledger.
type UnlockedEvent struct {
	TxHash      common.Hash
	BlockNumber uint64
	TokenId     *big.Int
	Recipient   common.Address
}

func (ev *UnlockedEvent) String() string {
	return fmt.Sprintf("%+v", *ev)
}

// Contract methods a validator may call.
const (
	MethodValidate      = "validate"
	MethodBridgeReceive = "bridgeReceive"
)

// ContractCall is a bridge contract method plus its positional arguments,
// in the exact order the ABI expects them.
type ContractCall struct {
	Method string
	Args   []interface{}
}

func NewValidateCall(tokenId *big.Int, receiver common.Address) *ContractCall {
	return &ContractCall{
		Method: MethodValidate,
		Args:   []interface{}{new(big.Int).Set(tokenId), receiver},
	}
}

// NewBridgeReceiveCall builds the terminal mint/release call. payload is
// only attached for the direction that recreates the asset; pass nil otherwise.
func NewBridgeReceiveCall(tokenId *big.Int, receiver common.Address, payload *string) *ContractCall {
	args := []interface{}{new(big.Int).Set(tokenId), receiver}
	if payload != nil {
		args = append(args, *payload)
	}
	return &ContractCall{
		Method: MethodBridgeReceive,
		Args:   args,
	}
}

// TokenId returns the first argument when it is a token id, nil otherwise.
func (c *ContractCall) TokenId() *big.Int {
	if len(c.Args) == 0 {
		return nil
	}
	id, ok := c.Args[0].(*big.Int)
	if !ok {
		return nil
	}
	return id
}

func (c *ContractCall) String() string {
	return fmt.Sprintf("%s%v", c.Method, c.Args)
}

// Receipt is the part of a mined transaction receipt the validator cares about.
type Receipt struct {
	TxHash        common.Hash
	BlockNumber   uint64
	Confirmations uint64
	Reverted      bool
}
