package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/TEENet-io/bridge-validator/agreement"
	"github.com/TEENet-io/bridge-validator/authority"
	"github.com/TEENet-io/bridge-validator/metrics"
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
)

// HandleLocked reacts to an NFTLocked event observed on the source ledger.
// Only the authority at position 0 acts, by sending validate(tokenId, owner)
// to the destination ledger.
func (e *Engine) HandleLocked(ctx context.Context, ev *agreement.LockedEvent) error {
	newLogger := logger.WithFields(logger.Fields{
		"direction": e.dir.Name,
		"tokenId":   ev.TokenId,
		"owner":     ev.Owner.String(),
		"txHash":    ev.TxHash.String(),
	})
	newLogger.Info("bridge initiated")

	return e.handle(ctx, newLogger, agreement.Locked, e.dir.Source, ev.TxHash, func(ctx context.Context) (string, error) {
		list, err := e.dir.Source.Authorities(ctx)
		if err != nil {
			return metrics.OutcomeFailed, fmt.Errorf("%w: %v", ErrReadAuthorities, err)
		}

		me := e.role.IdentityOn(e.dir.Source.Name())
		if len(list) == 0 || list[0] != me {
			newLogger.Debug("not the first authority, skip")
			return metrics.OutcomeSkipped, nil
		}

		if stale, err := e.isStale(ctx, newLogger, ev.TokenId); err != nil || stale {
			return staleOutcome(err)
		}

		return e.submit(ctx, newLogger, agreement.NewValidateCall(ev.TokenId, ev.Owner))
	})
}

// HandleValidated reacts to a Validated event observed on the destination
// ledger. The successor of prevValidator co-signs with validate; when
// prevValidator is the last authority, the last authority performs the
// terminal bridgeReceive.
func (e *Engine) HandleValidated(ctx context.Context, ev *agreement.ValidatedEvent) error {
	newLogger := logger.WithFields(logger.Fields{
		"direction":     e.dir.Name,
		"tokenId":       ev.TokenId,
		"receiver":      ev.Receiver.String(),
		"prevValidator": ev.PrevValidator.String(),
		"txHash":        ev.TxHash.String(),
	})
	newLogger.Info("validated")

	return e.handle(ctx, newLogger, agreement.Validated, e.dir.Dest, ev.TxHash, func(ctx context.Context) (string, error) {
		list, err := e.dir.Dest.Authorities(ctx)
		if err != nil {
			return metrics.OutcomeFailed, fmt.Errorf("%w: %v", ErrReadAuthorities, err)
		}

		me := e.role.IdentityOn(e.dir.Dest.Name())
		next, err := authority.Successor(list, ev.PrevValidator)
		switch {
		case err == nil:
			if next != me {
				newLogger.WithField("next", next.String()).Debug("not the next authority, skip")
				return metrics.OutcomeSkipped, nil
			}
			if stale, err := e.isStale(ctx, newLogger, ev.TokenId); err != nil || stale {
				return staleOutcome(err)
			}
			return e.submit(ctx, newLogger, agreement.NewValidateCall(ev.TokenId, ev.Receiver))

		case errors.Is(err, authority.ErrNoSuccessor):
			terminal, err := authority.TerminalPosition(list)
			if err != nil || list[terminal] != me {
				newLogger.Debug("not the terminal authority, skip")
				return metrics.OutcomeSkipped, nil
			}
			if stale, err := e.isStale(ctx, newLogger, ev.TokenId); err != nil || stale {
				return staleOutcome(err)
			}

			var payload *string
			if e.dir.AttachMetadata {
				asset, err := e.fetcher.FetchEncodedAsset(ctx, ev.TokenId)
				if err != nil {
					return metrics.OutcomeFailed, fmt.Errorf("%w: %v", ErrFetchAsset, err)
				}
				payload = &asset
			}
			newLogger.Info("terminal authority, releasing")
			return e.submit(ctx, newLogger, agreement.NewBridgeReceiveCall(ev.TokenId, ev.Receiver, payload))

		default:
			newLogger.Warn("previous validator is not an authority, skip")
			return metrics.OutcomeSkipped, nil
		}
	})
}

// HandleUnlocked only reports a finished bridging.
func (e *Engine) HandleUnlocked(ev *agreement.UnlockedEvent) {
	e.recorder.EventReceived(e.dir.Name, string(agreement.Unlocked))
	logger.WithFields(logger.Fields{
		"direction": e.dir.Name,
		"tokenId":   ev.TokenId,
		"recipient": ev.Recipient.String(),
		"txHash":    ev.TxHash.String(),
	}).Info("bridge completed")
}

// handle waits for the triggering tx, then runs decide under the guard.
// Errors are logged and returned; the event is never handled again.
func (e *Engine) handle(
	ctx context.Context,
	newLogger *logger.Entry,
	kind agreement.EventKind,
	observedOn agreement.Ledger,
	trigger ethcommon.Hash,
	decide func(ctx context.Context) (string, error),
) error {
	e.recorder.EventReceived(e.dir.Name, string(kind))
	e.recorder.HandlerStarted()
	defer e.recorder.HandlerDone()

	if e.cfg.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.HandlerTimeout)
		defer cancel()
	}

	outcome := metrics.OutcomeFailed
	err := e.waitTrigger(ctx, observedOn, trigger)
	if err == nil {
		err = e.guard.Do(ctx, func(ctx context.Context) error {
			var err error
			outcome, err = decide(ctx)
			return err
		})
	}

	e.recorder.Decision(e.dir.Name, string(kind), outcome)
	if err != nil {
		newLogger.Errorf("failed to handle event: err=%v", err)
	}
	return err
}

func (e *Engine) waitTrigger(ctx context.Context, ledger agreement.Ledger, txHash ethcommon.Hash) error {
	if _, err := ledger.WaitConfirmed(ctx, txHash, e.cfg.Confirmations); err != nil {
		return fmt.Errorf("%w: %v", ErrTriggerNotConfirmed, err)
	}
	return nil
}

// isStale re-reads the locked flag on the source ledger. A false flag means
// the event no longer describes a bridging in progress.
func (e *Engine) isStale(ctx context.Context, newLogger *logger.Entry, tokenId *big.Int) (bool, error) {
	locked, err := e.dir.Source.IsLocked(ctx, tokenId)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrReadLockedFlag, err)
	}
	if !locked {
		newLogger.Error("validator compromised, locked flag is false")
		return true, nil
	}
	return false, nil
}

func staleOutcome(err error) (string, error) {
	if err != nil {
		return metrics.OutcomeFailed, err
	}
	return metrics.OutcomeStale, nil
}

func (e *Engine) submit(ctx context.Context, newLogger *logger.Entry, call *agreement.ContractCall) (string, error) {
	txHash, err := e.submitter.Submit(ctx, e.dir.Dest, call)
	if err != nil {
		return metrics.OutcomeFailed, err
	}
	newLogger.WithFields(logger.Fields{
		"method": call.Method,
		"ledger": e.dir.Dest.Name(),
		"sent":   txHash.String(),
	}).Info("action confirmed")
	return metrics.OutcomeActed, nil
}
