package ethsync

import (
	"context"
	"time"

	"github.com/TEENet-io/bridge-validator/etherman"
	logger "github.com/sirupsen/logrus"
)

const MinTickerDuration = 100 * time.Millisecond

// Synchronizer follows one ledger and fans its bridge events out to the
// engines consuming them.
type Synchronizer struct {
	cfg      *Config
	source   EventSource
	outbound LockedEventSink
	inbound  DestinationEventSink

	// next block to scan
	next uint64
}

func New(
	source EventSource,
	outbound LockedEventSink,
	inbound DestinationEventSink,
	cfg *Config,
) (*Synchronizer, error) {
	if source == nil {
		return nil, ErrNilSource
	}

	if cfg.FrequencyToCheckHead < MinTickerDuration {
		cfg.FrequencyToCheckHead = MinTickerDuration
	}
	if cfg.BlockRange == 0 {
		cfg.BlockRange = DefaultBlockRange
	}

	head, err := source.HeadBlockNumber(context.Background())
	if err != nil {
		logger.WithField("ledger", source.Name()).Error("failed to get head block number")
		return nil, err
	}

	next := head + 1
	if cfg.StartBlock >= 0 {
		if uint64(cfg.StartBlock) > head+1 {
			return nil, ErrStartBlockAheadOfHead(cfg.StartBlock, head)
		}
		next = uint64(cfg.StartBlock)
	}

	return &Synchronizer{
		cfg:      cfg,
		source:   source,
		outbound: outbound,
		inbound:  inbound,
		next:     next,
	}, nil
}

// Sync polls the ledger until ctx is done. RPC failures are logged and the
// same block range is retried on the next tick.
func (s *Synchronizer) Sync(ctx context.Context) error {
	newLogger := logger.WithField("ledger", s.source.Name())
	newLogger.WithField("from", s.next).Info("starting event synchronization")
	defer newLogger.Info("stopping event synchronization")

	ticker := time.NewTicker(s.cfg.FrequencyToCheckHead)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.syncOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				newLogger.Warnf("failed to sync events: %v", err)
			}
		}
	}
}

func (s *Synchronizer) syncOnce(ctx context.Context) error {
	head, err := s.source.HeadBlockNumber(ctx)
	if err != nil {
		return err
	}

	for s.next <= head {
		to := s.next + s.cfg.BlockRange - 1
		if to > head {
			to = head
		}

		events, err := s.source.GetEventLogs(ctx, s.next, to)
		if err != nil {
			return err
		}

		if events.Len() > 0 {
			logger.WithFields(logger.Fields{
				"ledger":    s.source.Name(),
				"from":      s.next,
				"to":        to,
				"locked":    len(events.Locked),
				"validated": len(events.Validated),
				"unlocked":  len(events.Unlocked),
			}).Debug("events")
		}

		if err := s.dispatch(ctx, events); err != nil {
			return err
		}

		s.next = to + 1
	}

	return nil
}

func (s *Synchronizer) dispatch(ctx context.Context, events *etherman.EventLogs) error {
	for i := range events.Locked {
		ev := events.Locked[i]
		logger.WithFields(logger.Fields{
			"ledger":  s.source.Name(),
			"txHash":  ev.TxHash.String(),
			"tokenId": ev.TokenId,
			"owner":   ev.Owner.String(),
		}).Debug("NFTLocked event")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s.outbound.GetLockedEventChannel() <- &ev:
		}
	}

	for i := range events.Validated {
		ev := events.Validated[i]
		logger.WithFields(logger.Fields{
			"ledger":        s.source.Name(),
			"txHash":        ev.TxHash.String(),
			"tokenId":       ev.TokenId,
			"prevValidator": ev.PrevValidator.String(),
		}).Debug("Validated event")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s.inbound.GetValidatedEventChannel() <- &ev:
		}
	}

	for i := range events.Unlocked {
		ev := events.Unlocked[i]
		logger.WithFields(logger.Fields{
			"ledger":    s.source.Name(),
			"txHash":    ev.TxHash.String(),
			"tokenId":   ev.TokenId,
			"recipient": ev.Recipient.String(),
		}).Debug("NFTUnlocked event")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s.inbound.GetUnlockedEventChannel() <- &ev:
		}
	}

	return nil
}
