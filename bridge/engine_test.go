package bridge

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/TEENet-io/bridge-validator/agreement"
	"github.com/TEENet-io/bridge-validator/authority"
	"github.com/TEENet-io/bridge-validator/chaintxmgr"
	"github.com/TEENet-io/bridge-validator/common"
	"github.com/TEENet-io/bridge-validator/guard"
	"github.com/TEENet-io/bridge-validator/metrics"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const asset = "aW1hZ2U="

type stubFetcher struct {
	err error
}

func (f *stubFetcher) FetchEncodedAsset(ctx context.Context, tokenId *big.Int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return asset, nil
}

type decisionRecorder struct {
	mu       sync.Mutex
	outcomes []string
	events   int
	running  int
}

func (r *decisionRecorder) EventReceived(direction, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events++
}

func (r *decisionRecorder) Decision(direction, kind, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *decisionRecorder) HandlerStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running++
}

func (r *decisionRecorder) HandlerDone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running--
}

func (r *decisionRecorder) Outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.outcomes...)
}

// testValidator is one validator process: its view of both ledgers and the
// two engines it runs.
type testValidator struct {
	native   *agreement.MockLedger
	receiver *agreement.MockLedger
	eth2base *Engine
	base2eth *Engine
	fetcher  *stubFetcher
	recorder *decisionRecorder
}

func newTestValidator(t *testing.T, authorities []ethcommon.Address, idx int) *testValidator {
	native := agreement.NewMockLedger("eth", authorities[idx], authorities)
	receiver := agreement.NewMockLedger("base", authorities[idx], authorities)
	receiver.ShareInflight(native)

	role, err := authority.Check(context.Background(), native, receiver)
	require.NoError(t, err)

	g := guard.New()
	fetcher := &stubFetcher{}
	rec := &decisionRecorder{}

	eth2base, err := New(
		&Config{Confirmations: 5},
		&Direction{Name: common.DirectionName("eth", "base"), Source: native, Dest: receiver, AttachMetadata: true},
		role, g,
		chaintxmgr.New(&chaintxmgr.ChainTxMgrConfig{Direction: "ETH2BASE"}, nil, nil),
		fetcher, rec,
	)
	require.NoError(t, err)

	base2eth, err := New(
		&Config{Confirmations: 5},
		&Direction{Name: common.DirectionName("base", "eth"), Source: receiver, Dest: native},
		role, g,
		chaintxmgr.New(&chaintxmgr.ChainTxMgrConfig{Direction: "BASE2ETH"}, nil, nil),
		nil, rec,
	)
	require.NoError(t, err)

	return &testValidator{
		native:   native,
		receiver: receiver,
		eth2base: eth2base,
		base2eth: base2eth,
		fetcher:  fetcher,
		recorder: rec,
	}
}

func newTestValidators(t *testing.T, authorities []ethcommon.Address) []*testValidator {
	vals := make([]*testValidator, len(authorities))
	for i := range authorities {
		vals[i] = newTestValidator(t, authorities, i)
	}
	return vals
}

func lockedEvent(tokenId int64, owner ethcommon.Address) *agreement.LockedEvent {
	return &agreement.LockedEvent{
		TxHash:  common.RandHash(),
		TokenId: big.NewInt(tokenId),
		Owner:   owner,
	}
}

func validatedEvent(tokenId int64, receiver, prev ethcommon.Address) *agreement.ValidatedEvent {
	return &agreement.ValidatedEvent{
		TxHash:        common.RandHash(),
		TokenId:       big.NewInt(tokenId),
		Receiver:      receiver,
		PrevValidator: prev,
	}
}

func TestNewEngineChecks(t *testing.T) {
	ledger := agreement.NewMockLedger("eth", ethcommon.Address{}, nil)
	role := &authority.Role{}
	g := guard.New()
	sub := chaintxmgr.New(&chaintxmgr.ChainTxMgrConfig{}, nil, nil)

	_, err := New(&Config{}, &Direction{Source: ledger}, role, g, sub, nil, nil)
	assert.ErrorIs(t, err, ErrNilLedger)
	_, err = New(&Config{}, &Direction{Source: ledger, Dest: ledger}, nil, g, sub, nil, nil)
	assert.ErrorIs(t, err, ErrNilRole)
	_, err = New(&Config{}, &Direction{Source: ledger, Dest: ledger}, role, nil, sub, nil, nil)
	assert.ErrorIs(t, err, ErrNilGuard)
	_, err = New(&Config{}, &Direction{Source: ledger, Dest: ledger}, role, g, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNilSubmitter)
	_, err = New(&Config{}, &Direction{Source: ledger, Dest: ledger, AttachMetadata: true}, role, g, sub, nil, nil)
	assert.ErrorIs(t, err, ErrNilFetcher)

	cfg := &Config{}
	e, err := New(cfg, &Direction{Name: "ETH2BASE", Source: ledger, Dest: ledger}, role, g, sub, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(DefaultConfirmations), e.cfg.Confirmations)
	assert.Equal(t, DefaultChannelSize, cap(e.lockedCh))
	assert.Equal(t, Config{}, *cfg)
	assert.Equal(t, "ETH2BASE", e.Name())
}

// Three validators bridge token 7 from eth to base.
func TestThreeValidatorsEth2Base(t *testing.T) {
	authorities := common.RandEthAddresses(3)
	vals := newTestValidators(t, authorities)
	owner := common.RandEthAddress()
	ctx := context.Background()

	for _, v := range vals {
		v.native.SetLocked(big.NewInt(7), true)
	}

	// Locked on eth: only V0 validates on base
	locked := lockedEvent(7, owner)
	for _, v := range vals {
		require.NoError(t, v.eth2base.HandleLocked(ctx, locked))
		assert.Contains(t, v.native.Waited(), locked.TxHash)
	}
	require.Len(t, vals[0].receiver.Sent(), 1)
	assert.Equal(t, agreement.NewValidateCall(big.NewInt(7), owner), vals[0].receiver.Sent()[0])
	assert.Empty(t, vals[1].receiver.Sent())
	assert.Empty(t, vals[2].receiver.Sent())

	// Validated by V0: only V1 validates
	validated := validatedEvent(7, owner, authorities[0])
	for _, v := range vals {
		require.NoError(t, v.eth2base.HandleValidated(ctx, validated))
		assert.Contains(t, v.receiver.Waited(), validated.TxHash)
	}
	require.Len(t, vals[1].receiver.Sent(), 1)
	assert.Equal(t, agreement.NewValidateCall(big.NewInt(7), owner), vals[1].receiver.Sent()[0])
	assert.Len(t, vals[0].receiver.Sent(), 1)
	assert.Empty(t, vals[2].receiver.Sent())

	// Validated by V1: only V2 validates
	validated = validatedEvent(7, owner, authorities[1])
	for _, v := range vals {
		require.NoError(t, v.eth2base.HandleValidated(ctx, validated))
	}
	require.Len(t, vals[2].receiver.Sent(), 1)
	assert.Equal(t, agreement.NewValidateCall(big.NewInt(7), owner), vals[2].receiver.Sent()[0])
	assert.Len(t, vals[0].receiver.Sent(), 1)
	assert.Len(t, vals[1].receiver.Sent(), 1)

	// Validated by V2, the last authority: V2 releases with the asset attached
	validated = validatedEvent(7, owner, authorities[2])
	for _, v := range vals {
		require.NoError(t, v.eth2base.HandleValidated(ctx, validated))
	}
	payload := asset
	require.Len(t, vals[2].receiver.Sent(), 2)
	assert.Equal(t, agreement.NewBridgeReceiveCall(big.NewInt(7), owner, &payload), vals[2].receiver.Sent()[1])
	assert.Len(t, vals[0].receiver.Sent(), 1)
	assert.Len(t, vals[1].receiver.Sent(), 1)

	// nothing is ever sent to the source ledger
	for _, v := range vals {
		assert.Empty(t, v.native.Sent())
	}

	assert.Equal(t, []string{
		metrics.OutcomeSkipped, metrics.OutcomeSkipped, metrics.OutcomeActed, metrics.OutcomeActed,
	}, vals[2].recorder.Outcomes())
}

func TestBase2EthTerminalHasNoPayload(t *testing.T) {
	authorities := common.RandEthAddresses(3)
	v := newTestValidator(t, authorities, 2)
	receiver := common.RandEthAddress()
	v.receiver.SetLocked(big.NewInt(9), true)

	err := v.base2eth.HandleValidated(context.Background(), validatedEvent(9, receiver, authorities[2]))
	require.NoError(t, err)

	require.Len(t, v.native.Sent(), 1)
	assert.Equal(t, agreement.NewBridgeReceiveCall(big.NewInt(9), receiver, nil), v.native.Sent()[0])
	assert.Len(t, v.native.Sent()[0].Args, 2)
	assert.Empty(t, v.receiver.Sent())
}

func TestTerminalIsLastPosition(t *testing.T) {
	authorities := common.RandEthAddresses(4)
	vals := newTestValidators(t, authorities)
	receiver := common.RandEthAddress()

	for _, v := range vals {
		v.native.SetLocked(big.NewInt(1), true)
	}

	// V2 is not terminal with four authorities: V3 is the successor of V2
	ev := validatedEvent(1, receiver, authorities[2])
	for _, v := range vals {
		require.NoError(t, v.eth2base.HandleValidated(context.Background(), ev))
	}
	assert.Empty(t, vals[2].receiver.Sent())
	require.Len(t, vals[3].receiver.Sent(), 1)
	assert.Equal(t, agreement.MethodValidate, vals[3].receiver.Sent()[0].Method)

	ev = validatedEvent(1, receiver, authorities[3])
	for _, v := range vals {
		require.NoError(t, v.eth2base.HandleValidated(context.Background(), ev))
	}
	assert.Empty(t, vals[2].receiver.Sent())
	require.Len(t, vals[3].receiver.Sent(), 2)
	assert.Equal(t, agreement.MethodBridgeReceive, vals[3].receiver.Sent()[1].Method)
}

func TestUnknownPrevValidatorIsIgnored(t *testing.T) {
	authorities := common.RandEthAddresses(3)
	vals := newTestValidators(t, authorities)

	ev := validatedEvent(1, common.RandEthAddress(), common.RandEthAddress())
	for _, v := range vals {
		v.native.SetLocked(big.NewInt(1), true)
		require.NoError(t, v.eth2base.HandleValidated(context.Background(), ev))
		assert.Empty(t, v.receiver.Sent())
		assert.Equal(t, []string{metrics.OutcomeSkipped}, v.recorder.Outcomes())
	}
}

func TestStaleLockedFlag(t *testing.T) {
	authorities := common.RandEthAddresses(3)
	ctx := context.Background()
	owner := common.RandEthAddress()

	// locked flag never set: every acting branch aborts
	v0 := newTestValidator(t, authorities, 0)
	require.NoError(t, v0.eth2base.HandleLocked(ctx, lockedEvent(3, owner)))

	v1 := newTestValidator(t, authorities, 1)
	require.NoError(t, v1.eth2base.HandleValidated(ctx, validatedEvent(3, owner, authorities[0])))

	v2 := newTestValidator(t, authorities, 2)
	require.NoError(t, v2.eth2base.HandleValidated(ctx, validatedEvent(3, owner, authorities[2])))

	for _, v := range []*testValidator{v0, v1, v2} {
		assert.Empty(t, v.receiver.Sent())
		assert.Empty(t, v.native.Sent())
		assert.Equal(t, []string{metrics.OutcomeStale}, v.recorder.Outcomes())
	}

	// the flag is read on the source ledger, not the destination
	v1.receiver.SetLocked(big.NewInt(3), true)
	require.NoError(t, v1.eth2base.HandleValidated(ctx, validatedEvent(3, owner, authorities[0])))
	assert.Empty(t, v1.receiver.Sent())
}

func TestHandlerFailures(t *testing.T) {
	authorities := common.RandEthAddresses(3)
	ctx := context.Background()
	owner := common.RandEthAddress()
	rpcErr := errors.New("rpc down")

	// triggering tx never confirms
	v := newTestValidator(t, authorities, 0)
	v.native.SetLocked(big.NewInt(1), true)
	v.native.WaitErr = rpcErr
	err := v.eth2base.HandleLocked(ctx, lockedEvent(1, owner))
	assert.ErrorIs(t, err, ErrTriggerNotConfirmed)
	assert.Empty(t, v.receiver.Sent())

	// authorities unreadable
	v = newTestValidator(t, authorities, 0)
	v.native.SetLocked(big.NewInt(1), true)
	v.native.AuthErr = rpcErr
	err = v.eth2base.HandleLocked(ctx, lockedEvent(1, owner))
	assert.ErrorIs(t, err, ErrReadAuthorities)

	// locked flag unreadable
	v = newTestValidator(t, authorities, 0)
	v.native.LockedErr = rpcErr
	err = v.eth2base.HandleLocked(ctx, lockedEvent(1, owner))
	assert.ErrorIs(t, err, ErrReadLockedFlag)
	assert.Empty(t, v.receiver.Sent())

	// asset unavailable
	v = newTestValidator(t, authorities, 2)
	v.native.SetLocked(big.NewInt(1), true)
	v.fetcher.err = rpcErr
	err = v.eth2base.HandleValidated(ctx, validatedEvent(1, owner, authorities[2]))
	assert.ErrorIs(t, err, ErrFetchAsset)
	assert.Empty(t, v.receiver.Sent())

	// submission reverted: no retry
	v = newTestValidator(t, authorities, 0)
	v.native.SetLocked(big.NewInt(1), true)
	v.receiver.Reverted = true
	err = v.eth2base.HandleLocked(ctx, lockedEvent(1, owner))
	assert.ErrorIs(t, err, chaintxmgr.ErrTxReverted)
	assert.Len(t, v.receiver.Sent(), 1)
	assert.Equal(t, []string{metrics.OutcomeFailed}, v.recorder.Outcomes())
}

func TestHandlerTimeout(t *testing.T) {
	authorities := common.RandEthAddresses(1)
	v := newTestValidator(t, authorities, 0)
	v.native.SetLocked(big.NewInt(1), true)
	v.eth2base.cfg.HandlerTimeout = 20 * time.Millisecond

	// another handler holds the guard longer than the timeout
	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = v.eth2base.guard.Do(context.Background(), func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := v.eth2base.HandleLocked(context.Background(), lockedEvent(1, common.RandEthAddress()))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, v.receiver.Sent())
	close(release)
}

// Events arrive on all four streams at once; submissions never overlap.
func TestAtMostOneSubmissionInFlight(t *testing.T) {
	// a single authority acts on every event of both directions
	authorities := common.RandEthAddresses(1)
	v := newTestValidator(t, authorities, 0)
	v.native.SendDelay = 10 * time.Millisecond
	v.receiver.SendDelay = 10 * time.Millisecond

	const n = 5
	for i := 0; i < 2*n; i++ {
		v.native.SetLocked(big.NewInt(int64(i)), true)
		v.receiver.SetLocked(big.NewInt(int64(i)), true)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, e := range []*Engine{v.eth2base, v.base2eth} {
		wg.Add(1)
		go func(e *Engine) {
			defer wg.Done()
			_ = e.Start(ctx)
		}(e)
	}

	me := authorities[0]
	for i := 0; i < n; i++ {
		v.eth2base.GetLockedEventChannel() <- lockedEvent(int64(i), me)
		v.eth2base.GetValidatedEventChannel() <- validatedEvent(int64(n+i), me, me)
		v.base2eth.GetLockedEventChannel() <- lockedEvent(int64(i), me)
		v.base2eth.GetValidatedEventChannel() <- validatedEvent(int64(n+i), me, me)
	}
	v.eth2base.GetUnlockedEventChannel() <- &agreement.UnlockedEvent{TokenId: big.NewInt(0)}

	require.Eventually(t, func() bool {
		return len(v.native.Sent()) == 2*n && len(v.receiver.Sent()) == 2*n
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	wg.Wait()

	assert.Equal(t, 1, v.native.Inflight().Max())
	assert.Same(t, v.native.Inflight(), v.receiver.Inflight())
	assert.Len(t, v.recorder.Outcomes(), 4*n)
	assert.Equal(t, 0, v.recorder.running)
}
