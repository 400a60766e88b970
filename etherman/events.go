package etherman

import (
	"context"
	"errors"
	"math/big"

	"github.com/TEENet-io/bridge-validator/agreement"
	"github.com/TEENet-io/bridge-validator/contracts/nftbridge"
	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	logger "github.com/sirupsen/logrus"
)

var ErrUnknownEventSignature = errors.New("unknown event signature")

// EventLogs holds the bridge events found in a block range, in log order.
type EventLogs struct {
	Locked    []agreement.LockedEvent
	Validated []agreement.ValidatedEvent
	Unlocked  []agreement.UnlockedEvent
}

func (e *EventLogs) Len() int {
	return len(e.Locked) + len(e.Validated) + len(e.Unlocked)
}

// GetEventLogs returns the NFTLocked, Validated and NFTUnlocked events
// emitted by the bridge contract in blocks [from, to].
func (etherman *Etherman) GetEventLogs(ctx context.Context, from, to uint64) (*EventLogs, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []ethcommon.Address{etherman.bridge.Address},
		Topics: [][]ethcommon.Hash{{
			nftbridge.NFTLockedSignatureHash,
			nftbridge.ValidatedSignatureHash,
			nftbridge.NFTUnlockedSignatureHash,
		}},
	}

	logs, err := etherman.ethClient.FilterLogs(ctx, query)
	if err != nil {
		logger.WithFields(logger.Fields{
			"ledger": etherman.cfg.Name,
			"from":   from,
			"to":     to,
		}).Errorf("failed to filter logs: %v", err)
		return nil, err
	}

	return decodeLogs(etherman.bridge, logs)
}

func decodeLogs(bridge *nftbridge.NFTBridge, logs []types.Log) (*EventLogs, error) {
	events := &EventLogs{}

	for _, vlog := range logs {
		if vlog.Removed || len(vlog.Topics) == 0 {
			continue
		}

		switch vlog.Topics[0] {
		case nftbridge.NFTLockedSignatureHash:
			ev := new(nftbridge.NFTLocked)
			if err := bridge.UnpackLog(ev, "NFTLocked", vlog); err != nil {
				return nil, err
			}
			events.Locked = append(events.Locked, agreement.LockedEvent{
				TxHash:      vlog.TxHash,
				BlockNumber: vlog.BlockNumber,
				TokenId:     ev.TokenId,
				Owner:       ev.Owner,
			})
		case nftbridge.ValidatedSignatureHash:
			ev := new(nftbridge.Validated)
			if err := bridge.UnpackLog(ev, "Validated", vlog); err != nil {
				return nil, err
			}
			events.Validated = append(events.Validated, agreement.ValidatedEvent{
				TxHash:        vlog.TxHash,
				BlockNumber:   vlog.BlockNumber,
				TokenId:       ev.TokenId,
				Receiver:      ev.Receiver,
				PrevValidator: ev.PrevValidator,
			})
		case nftbridge.NFTUnlockedSignatureHash:
			ev := new(nftbridge.NFTUnlocked)
			if err := bridge.UnpackLog(ev, "NFTUnlocked", vlog); err != nil {
				return nil, err
			}
			events.Unlocked = append(events.Unlocked, agreement.UnlockedEvent{
				TxHash:      vlog.TxHash,
				BlockNumber: vlog.BlockNumber,
				TokenId:     ev.TokenId,
				Recipient:   ev.Recipient,
			})
		default:
			return nil, ErrUnknownEventSignature
		}
	}

	return events, nil
}
