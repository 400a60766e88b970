// Package bridge runs the validation protocol for one direction of the
// bridge. Every decision is derived from fresh on-chain reads; nothing about
// an asset is remembered between events.
package bridge

import (
	"context"
	"sync"

	"github.com/TEENet-io/bridge-validator/agreement"
	"github.com/TEENet-io/bridge-validator/authority"
	"github.com/TEENet-io/bridge-validator/guard"
	logger "github.com/sirupsen/logrus"
)

type Engine struct {
	cfg       *Config
	dir       *Direction
	role      *authority.Role
	guard     *guard.Guard
	submitter Submitter
	fetcher   AssetFetcher
	recorder  Recorder

	lockedCh    chan *agreement.LockedEvent
	validatedCh chan *agreement.ValidatedEvent
	unlockedCh  chan *agreement.UnlockedEvent

	wg sync.WaitGroup
}

// New creates the engine of one direction. The guard must be shared by
// every engine of the process. fetcher may be nil unless the direction
// attaches metadata, recorder may be nil. cfg is copied; zero values are
// replaced by the package defaults.
func New(
	cfg *Config,
	dir *Direction,
	role *authority.Role,
	g *guard.Guard,
	submitter Submitter,
	fetcher AssetFetcher,
	recorder Recorder,
) (*Engine, error) {
	switch {
	case dir.Source == nil || dir.Dest == nil:
		return nil, ErrNilLedger
	case role == nil:
		return nil, ErrNilRole
	case g == nil:
		return nil, ErrNilGuard
	case submitter == nil:
		return nil, ErrNilSubmitter
	case dir.AttachMetadata && fetcher == nil:
		return nil, ErrNilFetcher
	}

	c := *cfg
	if c.Confirmations == 0 {
		c.Confirmations = DefaultConfirmations
	}
	if c.ChannelSize <= 0 {
		c.ChannelSize = DefaultChannelSize
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Engine{
		cfg:         &c,
		dir:         dir,
		role:        role,
		guard:       g,
		submitter:   submitter,
		fetcher:     fetcher,
		recorder:    recorder,
		lockedCh:    make(chan *agreement.LockedEvent, c.ChannelSize),
		validatedCh: make(chan *agreement.ValidatedEvent, c.ChannelSize),
		unlockedCh:  make(chan *agreement.UnlockedEvent, c.ChannelSize),
	}, nil
}

func (e *Engine) Name() string {
	return e.dir.Name
}

func (e *Engine) GetLockedEventChannel() chan<- *agreement.LockedEvent {
	return e.lockedCh
}

func (e *Engine) GetValidatedEventChannel() chan<- *agreement.ValidatedEvent {
	return e.validatedCh
}

func (e *Engine) GetUnlockedEventChannel() chan<- *agreement.UnlockedEvent {
	return e.unlockedCh
}

// Start consumes the event channels until ctx is done. Every event is
// handled in its own goroutine; handlers contend for the shared guard.
// Start waits for running handlers before returning.
func (e *Engine) Start(ctx context.Context) error {
	newLogger := logger.WithField("direction", e.dir.Name)
	newLogger.WithFields(logger.Fields{
		"confirmations":  e.cfg.Confirmations,
		"handlerTimeout": e.cfg.HandlerTimeout,
	}).Info("starting bridge engine")
	defer newLogger.Info("stopping bridge engine")

	defer e.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.lockedCh:
			e.spawn(func() { _ = e.HandleLocked(ctx, ev) })
		case ev := <-e.validatedCh:
			e.spawn(func() { _ = e.HandleValidated(ctx, ev) })
		case ev := <-e.unlockedCh:
			e.HandleUnlocked(ev)
		}
	}
}

func (e *Engine) spawn(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}
