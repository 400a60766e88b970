// Validator = two ledger gateways + one engine per direction + one
// synchronizer per ledger + optional journal + http reporter.
// All components are configured via environment variables (strings!).

package cmd

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/TEENet-io/bridge-validator/authority"
	"github.com/TEENet-io/bridge-validator/bridge"
	"github.com/TEENet-io/bridge-validator/chaintxmgr"
	"github.com/TEENet-io/bridge-validator/chaintxmgrdb"
	"github.com/TEENet-io/bridge-validator/common"
	"github.com/TEENet-io/bridge-validator/contracts/nftbridge"
	"github.com/TEENet-io/bridge-validator/etherman"
	"github.com/TEENet-io/bridge-validator/ethsync"
	"github.com/TEENet-io/bridge-validator/guard"
	"github.com/TEENet-io/bridge-validator/metadata"
	"github.com/TEENet-io/bridge-validator/metrics"
	"github.com/TEENet-io/bridge-validator/reporter"
)

// Default params for the validator.
// More often we don't recommend users to tweak those.
const (
	DefaultNativeName   = "eth"
	DefaultReceiverName = "base"
	DefaultPollInterval = 2 * time.Second
	DefaultHttpIp       = "0.0.0.0"
	DefaultHttpPort     = "8080"

	bootstrapTimeout = 30 * time.Second
)

var (
	ErrMissingRpcUrl      = errors.New("missing rpc url")
	ErrBadContractAddress = errors.New("bad contract address")
	ErrMissingSecret      = errors.New("missing signing key")
	ErrLedgerNames        = errors.New("ledger names must be non-empty and distinct")
)

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type ValidatorConfig struct {
	// native side, where the NFTs originate
	NativeName         string // e.g. eth
	NativeRpcUrl       string // json rpc url
	NativeContractAddr string // bridge contract address
	NativeSecret       string // optional, overrides CallbackSecret on the native side

	// receiver side, where the NFTs are recreated
	ReceiverName         string // e.g. base
	ReceiverRpcUrl       string // json rpc url
	ReceiverContractAddr string // bridge contract address
	ReceiverSecret       string // optional, overrides CallbackSecret on the receiver side

	// signing key of this validator on both ledgers
	CallbackSecret string

	// protocol
	Confirmations       uint64        // depth of a triggering event's tx before it is handled
	SubmitConfirmations uint64        // depth of our own txs before they count as final
	HandlerTimeout      time.Duration // 0 = no bound
	PollInterval        time.Duration // how often each ledger head is polled
	StartBlock          int64         // -1 = from the head at startup
	MetadataUrl         string        // base url of the asset images

	// journal side, empty = no journal
	DbFilePath string

	// Http side
	HttpIp   string // eg. 0.0.0.0
	HttpPort string // eg. 8080
}

// Validate reports the first setting that makes the validator unable to start.
func (vc *ValidatorConfig) Validate() error {
	if vc.NativeName == "" || vc.ReceiverName == "" || vc.NativeName == vc.ReceiverName {
		return fmt.Errorf("%w: %q, %q", ErrLedgerNames, vc.NativeName, vc.ReceiverName)
	}
	if vc.NativeRpcUrl == "" {
		return fmt.Errorf("%w: %s", ErrMissingRpcUrl, vc.NativeName)
	}
	if vc.ReceiverRpcUrl == "" {
		return fmt.Errorf("%w: %s", ErrMissingRpcUrl, vc.ReceiverName)
	}
	if !ethcommon.IsHexAddress(vc.NativeContractAddr) {
		return fmt.Errorf("%w: %s %q", ErrBadContractAddress, vc.NativeName, vc.NativeContractAddr)
	}
	if !ethcommon.IsHexAddress(vc.ReceiverContractAddr) {
		return fmt.Errorf("%w: %s %q", ErrBadContractAddress, vc.ReceiverName, vc.ReceiverContractAddr)
	}
	if vc.nativeSecret() == "" {
		return fmt.Errorf("%w: %s", ErrMissingSecret, vc.NativeName)
	}
	if vc.receiverSecret() == "" {
		return fmt.Errorf("%w: %s", ErrMissingSecret, vc.ReceiverName)
	}
	return nil
}

func (vc *ValidatorConfig) nativeSecret() string {
	if vc.NativeSecret != "" {
		return vc.NativeSecret
	}
	return vc.CallbackSecret
}

func (vc *ValidatorConfig) receiverSecret() string {
	if vc.ReceiverSecret != "" {
		return vc.ReceiverSecret
	}
	return vc.CallbackSecret
}

// SigningKeys parses the key used on each ledger.
func (vc *ValidatorConfig) SigningKeys() (native, receiver *ecdsa.PrivateKey, err error) {
	native, err = etherman.StringToPrivateKey(vc.nativeSecret())
	if err != nil {
		return nil, nil, fmt.Errorf("%s signing key: %w", vc.NativeName, err)
	}
	receiver, err = etherman.StringToPrivateKey(vc.receiverSecret())
	if err != nil {
		return nil, nil, fmt.Errorf("%s signing key: %w", vc.ReceiverName, err)
	}
	return native, receiver, nil
}

// Validator holds the objects that consists of the validator.
type Validator struct {
	Role    *authority.Role
	Metrics *metrics.Metrics
	Guard   *guard.Guard

	// ledger side
	NativeEtherman   *etherman.Etherman
	ReceiverEtherman *etherman.Etherman
	NativeSync       *ethsync.Synchronizer
	ReceiverSync     *ethsync.Synchronizer

	// one engine per direction
	Eth2Base *bridge.Engine
	Base2Eth *bridge.Engine

	// optional
	MgrDb *chaintxmgrdb.SQLiteChainTxMgrDB

	Reporter *reporter.HttpReporter
}

// NewValidator connects to both ledgers, runs the bootstrap checks and
// builds every component. Nothing is started yet.
func NewValidator(vc *ValidatorConfig) (*Validator, error) {
	if err := vc.Validate(); err != nil {
		return nil, err
	}

	nativeKey, receiverKey, err := vc.SigningKeys()
	if err != nil {
		return nil, err
	}

	// 1) ledger gateways
	nativeMan, err := etherman.NewEtherman(&etherman.Config{
		Name:                  vc.NativeName,
		URL:                   vc.NativeRpcUrl,
		Side:                  nftbridge.Native,
		BridgeContractAddress: ethcommon.HexToAddress(vc.NativeContractAddr),
	}, nativeKey)
	if err != nil {
		logger.Errorf("failed to create %s etherman: %v", vc.NativeName, err)
		return nil, err
	}
	receiverMan, err := etherman.NewEtherman(&etherman.Config{
		Name:                  vc.ReceiverName,
		URL:                   vc.ReceiverRpcUrl,
		Side:                  nftbridge.Receiver,
		BridgeContractAddress: ethcommon.HexToAddress(vc.ReceiverContractAddr),
	}, receiverKey)
	if err != nil {
		logger.Errorf("failed to create %s etherman: %v", vc.ReceiverName, err)
		return nil, err
	}

	// 2) both authority lists must agree on who we are
	ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
	defer cancel()
	role, err := authority.Check(ctx, nativeMan, receiverMan)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"role":             role.String(),
		"native":           vc.NativeName,
		"nativeChainId":    nativeMan.ChainID().String(),
		"nativeIdentity":   nativeMan.Identity().String(),
		"receiver":         vc.ReceiverName,
		"receiverChainId":  receiverMan.ChainID().String(),
		"receiverIdentity": receiverMan.Identity().String(),
	}).Info("validator starting")

	// 3) shared infrastructure
	m := metrics.New(metrics.DefaultPrefix)
	g := guard.New()
	g.OnAcquire = func(d time.Duration) { m.GuardWaited(d.Seconds()) }

	var mgrdb *chaintxmgrdb.SQLiteChainTxMgrDB
	var journal chaintxmgrdb.ChainTxMgrDB
	if vc.DbFilePath != "" {
		mgrdb, err = chaintxmgrdb.NewSQLiteChainTxMgrDB(vc.DbFilePath)
		if err != nil {
			logger.Errorf("failed to open journal %s: %v", vc.DbFilePath, err)
			return nil, err
		}
		journal = mgrdb
	}

	fetcher := metadata.NewFetcher(vc.MetadataUrl, nil)

	// 4) one engine per direction, each with its own tx manager
	newEngine := func(src, dst *etherman.Etherman, attachMetadata bool) (*bridge.Engine, error) {
		name := common.DirectionName(src.Name(), dst.Name())
		mgr := chaintxmgr.New(&chaintxmgr.ChainTxMgrConfig{
			Direction:     name,
			Confirmations: vc.SubmitConfirmations,
		}, journal, m)
		return bridge.New(
			&bridge.Config{
				Confirmations:  vc.Confirmations,
				HandlerTimeout: vc.HandlerTimeout,
			},
			&bridge.Direction{
				Name:           name,
				Source:         src,
				Dest:           dst,
				AttachMetadata: attachMetadata,
			},
			role, g, mgr, fetcher, m,
		)
	}

	eth2base, err := newEngine(nativeMan, receiverMan, true)
	if err != nil {
		return nil, closeOnError(mgrdb, err)
	}
	base2eth, err := newEngine(receiverMan, nativeMan, false)
	if err != nil {
		return nil, closeOnError(mgrdb, err)
	}

	// 5) one synchronizer per ledger: locks feed the engine leaving the
	// ledger, validations and unlocks feed the engine arriving on it
	nativeSync, err := ethsync.New(nativeMan, eth2base, base2eth, &ethsync.Config{
		FrequencyToCheckHead: vc.PollInterval,
		StartBlock:           vc.StartBlock,
	})
	if err != nil {
		logger.Errorf("failed to create %s synchronizer: %v", vc.NativeName, err)
		return nil, closeOnError(mgrdb, err)
	}
	receiverSync, err := ethsync.New(receiverMan, base2eth, eth2base, &ethsync.Config{
		FrequencyToCheckHead: vc.PollInterval,
		StartBlock:           vc.StartBlock,
	})
	if err != nil {
		logger.Errorf("failed to create %s synchronizer: %v", vc.ReceiverName, err)
		return nil, closeOnError(mgrdb, err)
	}

	// 6) http reporter
	httpReporter := reporter.NewHttpReporter(
		vc.HttpIp,
		vc.HttpPort,
		role,
		[]string{eth2base.Name(), base2eth.Name()},
		journal,
		m.Registry(),
	)

	return &Validator{
		Role:             role,
		Metrics:          m,
		Guard:            g,
		NativeEtherman:   nativeMan,
		ReceiverEtherman: receiverMan,
		NativeSync:       nativeSync,
		ReceiverSync:     receiverSync,
		Eth2Base:         eth2base,
		Base2Eth:         base2eth,
		MgrDb:            mgrdb,
		Reporter:         httpReporter,
	}, nil
}

// Run starts every component and blocks until ctx is done or one of them
// fails. The journal is closed on return.
func (v *Validator) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	// engines first so the synchronizers have someone to hand events to
	eg.Go(func() error { return v.Eth2Base.Start(ctx) })
	eg.Go(func() error { return v.Base2Eth.Start(ctx) })
	eg.Go(func() error { return v.NativeSync.Sync(ctx) })
	eg.Go(func() error { return v.ReceiverSync.Sync(ctx) })
	eg.Go(func() error { return v.Reporter.Run(ctx) })

	err := eg.Wait()

	if v.MgrDb != nil {
		if cerr := v.MgrDb.Close(); cerr != nil {
			logger.Errorf("failed to close journal: %v", cerr)
		}
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Create, then start the validator and wait.
// Press Ctrl-C to kill the validator.
func StartValidatorAndWait(vc *ValidatorConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up a signal channel to listen for Ctrl-C (SIGINT) or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Infof("received signal: %v, cancelling context...", sig)
		cancel()
	}()

	v, err := NewValidator(vc)
	if err != nil {
		logger.Fatalf("failed to create validator: %v", err)
		return
	}

	if err := v.Run(ctx); err != nil {
		logger.Fatalf("validator stopped: %v", err)
	}
	logger.Info("validator stopped")
}

func closeOnError(mgrdb *chaintxmgrdb.SQLiteChainTxMgrDB, err error) error {
	if mgrdb != nil {
		_ = mgrdb.Close()
	}
	return err
}
