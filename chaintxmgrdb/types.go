package chaintxmgrdb

import (
	"math/big"
)

// SubmittedTx is one transaction this validator sent to a ledger.
type SubmittedTx struct {
	TxHash           []byte            // primary key, no duplication allowed
	Ledger           string            // ledger the tx was sent to
	Direction        string            // bridging direction, e.g. ETH2BASE
	Method           string            // validate or bridgeReceive
	TokenId          *big.Int          // NFT being bridged
	SentAt           int64             // unix seconds
	FoundBlockNumber *big.Int          // default nil (unknown), block the tx was mined in
	TxStatus         MonitoredTxStatus // see below
}

// Enum for the status of the tx submitted to the blockchain.
type MonitoredTxStatus string

const (
	Pending  MonitoredTxStatus = "pending"  // sent, waiting for confirmations
	Success  MonitoredTxStatus = "success"  // confirmed and executed
	Reverted MonitoredTxStatus = "reverted" // confirmed but execution failed
	Limbo    MonitoredTxStatus = "limbo"    // sent, but confirmation could not be observed
	Mismatch MonitoredTxStatus = "mismatch" // the mined call data differs from what was sent
)

// Defines what the journal should do
// regardless of the underlying implementation.
// It is write-mostly and never consulted when deciding what to submit.
type ChainTxMgrDB interface {
	// Release the resource that db occupies.
	Close() error

	// error = 1) duplicate insertion (same TxHash), 2) database error, etc ...
	InsertSubmittedTx(tx *SubmittedTx) error

	// result can be nil (if not found)
	GetSubmittedTxByTxHash(txHash []byte) (*SubmittedTx, error)

	// result can be empty slice (if not found), ordered by SentAt
	GetSubmittedTxByTokenId(tokenId *big.Int) ([]*SubmittedTx, error)

	GetSubmittedTxByStatus(status ...MonitoredTxStatus) ([]*SubmittedTx, error)

	UpdateFound(txHash []byte, foundAt *big.Int) error

	UpdateTxStatus(txHash []byte, status MonitoredTxStatus) error
}
