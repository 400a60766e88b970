package ethsync

import (
	"context"

	"github.com/TEENet-io/bridge-validator/agreement"
	"github.com/TEENet-io/bridge-validator/etherman"
)

var _ EventSource = (*etherman.Etherman)(nil)

// EventSource is the ledger the synchronizer reads from.
type EventSource interface {
	Name() string
	HeadBlockNumber(ctx context.Context) (uint64, error)
	GetEventLogs(ctx context.Context, from, to uint64) (*etherman.EventLogs, error)
}

// LockedEventSink receives NFTLocked events, i.e. the direction for which
// this ledger is the source.
type LockedEventSink interface {
	GetLockedEventChannel() chan<- *agreement.LockedEvent
}

// DestinationEventSink receives Validated and NFTUnlocked events, i.e. the
// direction for which this ledger is the destination.
type DestinationEventSink interface {
	GetValidatedEventChannel() chan<- *agreement.ValidatedEvent
	GetUnlockedEventChannel() chan<- *agreement.UnlockedEvent
}
