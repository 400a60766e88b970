package bridge

import (
	"time"

	"github.com/TEENet-io/bridge-validator/agreement"
)

const (
	DefaultConfirmations = 5
	DefaultChannelSize   = 32
)

type Config struct {
	// Blocks, mining block included, a triggering event's tx needs before
	// it is handled
	Confirmations uint64

	// Upper bound for one handler, confirmation wait included. Zero means
	// no bound.
	HandlerTimeout time.Duration

	// Buffer size of the event channels fed by the synchronizers
	ChannelSize int
}

// Direction is one way across the bridge. Locked events are observed on
// Source, Validated and NFTUnlocked events on Dest, and every transaction
// is sent to Dest.
type Direction struct {
	// e.g. ETH2BASE
	Name string

	Source agreement.Ledger
	Dest   agreement.Ledger

	// AttachMetadata makes the terminal bridgeReceive carry the encoded
	// asset, for the direction that recreates the NFT on Dest
	AttachMetadata bool
}
