package agreement

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrMockTxNotFound = errors.New("mock ledger: tx not found")

// MockLedger is an in-memory Ledger used by tests. It records every call
// and tracks how many submitted transactions are in flight at once
// (between SendCall and the WaitConfirmed that follows it).
type MockLedger struct {
	mu sync.Mutex

	name        string
	identity    common.Address
	authorities []common.Address
	locked      map[string]bool

	GasPrice  *big.Int
	GasLimit  uint64
	SendDelay time.Duration

	GasPriceErr  error
	AuthErr      error
	LockedErr    error
	EstimateErr  error
	SendErr      error
	WaitErr      error
	Reverted     bool
	SubstituteTx bool // return different call data than what was sent

	nonce   uint64
	txs     map[common.Hash][]byte
	pending map[common.Hash]bool
	sent    []*ContractCall
	waited  []common.Hash
	counter *InflightCounter
}

// InflightCounter counts unconfirmed submissions, possibly across ledgers.
type InflightCounter struct {
	mu  sync.Mutex
	cur int
	max int
}

func (c *InflightCounter) inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur++
	if c.cur > c.max {
		c.max = c.cur
	}
}

func (c *InflightCounter) dec() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur--
}

// Max is the highest number of submissions observed in flight at once.
func (c *InflightCounter) Max() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.max
}

func NewMockLedger(name string, identity common.Address, authorities []common.Address) *MockLedger {
	return &MockLedger{
		name:        name,
		identity:    identity,
		authorities: append([]common.Address{}, authorities...),
		locked:      make(map[string]bool),
		GasPrice:    big.NewInt(1_000_000_000),
		GasLimit:    100_000,
		txs:         make(map[common.Hash][]byte),
		pending:     make(map[common.Hash]bool),
		counter:     &InflightCounter{},
	}
}

// ShareInflight makes both ledgers report into the same in-flight counter.
func (m *MockLedger) ShareInflight(other *MockLedger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter = other.counter
}

func (m *MockLedger) Inflight() *InflightCounter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counter
}

func (m *MockLedger) Name() string { return m.name }

func (m *MockLedger) Identity() common.Address { return m.identity }

func (m *MockLedger) SetAuthorities(list []common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authorities = append([]common.Address{}, list...)
}

func (m *MockLedger) SetLocked(tokenId *big.Int, locked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked[tokenId.String()] = locked
}

func (m *MockLedger) Authorities(ctx context.Context) ([]common.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AuthErr != nil {
		return nil, m.AuthErr
	}
	return append([]common.Address{}, m.authorities...), nil
}

func (m *MockLedger) IsLocked(ctx context.Context, tokenId *big.Int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LockedErr != nil {
		return false, m.LockedErr
	}
	return m.locked[tokenId.String()], nil
}

func (m *MockLedger) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if m.GasPriceErr != nil {
		return nil, m.GasPriceErr
	}
	return new(big.Int).Set(m.GasPrice), nil
}

func (m *MockLedger) EstimateGas(ctx context.Context, call *ContractCall) (uint64, error) {
	if m.EstimateErr != nil {
		return 0, m.EstimateErr
	}
	return m.GasLimit, nil
}

func (m *MockLedger) PackCall(call *ContractCall) ([]byte, error) {
	return []byte(call.String()), nil
}

func (m *MockLedger) SendCall(ctx context.Context, call *ContractCall, gasPrice *big.Int, gasLimit uint64) (common.Hash, error) {
	m.mu.Lock()
	if m.SendErr != nil {
		m.mu.Unlock()
		return common.Hash{}, m.SendErr
	}
	m.counter.inc()
	m.nonce++
	input, _ := m.PackCall(call)
	hash := crypto.Keccak256Hash(input, new(big.Int).SetUint64(m.nonce).Bytes())
	if m.SubstituteTx {
		m.txs[hash] = append(input, 0xff)
	} else {
		m.txs[hash] = input
	}
	m.pending[hash] = true
	m.sent = append(m.sent, call)
	delay := m.SendDelay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return hash, nil
}

func (m *MockLedger) WaitConfirmed(ctx context.Context, txHash common.Hash, depth uint64) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.waited = append(m.waited, txHash)
	if m.pending[txHash] {
		delete(m.pending, txHash)
		m.counter.dec()
	}
	if m.WaitErr != nil {
		return nil, m.WaitErr
	}
	return &Receipt{
		TxHash:        txHash,
		BlockNumber:   1,
		Confirmations: depth,
		Reverted:      m.Reverted,
	}, nil
}

func (m *MockLedger) TransactionInput(ctx context.Context, txHash common.Hash) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	input, ok := m.txs[txHash]
	if !ok {
		return nil, ErrMockTxNotFound
	}
	return input, nil
}

// Sent returns the calls submitted so far, in order.
func (m *MockLedger) Sent() []*ContractCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ContractCall{}, m.sent...)
}

// Waited returns every tx hash passed to WaitConfirmed.
func (m *MockLedger) Waited() []common.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]common.Hash{}, m.waited...)
}
