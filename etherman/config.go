package etherman

import (
	"time"

	"github.com/TEENet-io/bridge-validator/contracts/nftbridge"
	"github.com/ethereum/go-ethereum/common"
)

const DefaultReceiptPollInterval = 1 * time.Second

type Config struct {
	// Name is the human readable name of the ledger, e.g. "eth" or "base"
	Name string

	// URL is the URL of the Ethereum node
	URL string

	// Side tells which bridge contract ABI is deployed on this ledger
	Side nftbridge.Side

	// BridgeContractAddress is the deployed bridge contract address
	BridgeContractAddress common.Address

	// ReceiptPollInterval is how often WaitConfirmed polls the node
	ReceiptPollInterval time.Duration
}
