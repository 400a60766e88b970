package ethsync

import (
	"context"
	"errors"
	"sync"

	"github.com/TEENet-io/bridge-validator/agreement"
	"github.com/TEENet-io/bridge-validator/etherman"
)

var ErrMockSourceDown = errors.New("mock source: unavailable")

// MockSource is an in-memory ledger whose events are placed at given heights.
type MockSource struct {
	mu sync.Mutex

	name   string
	head   uint64
	events map[uint64]*etherman.EventLogs
	down   bool

	queries [][2]uint64
}

func NewMockSource(name string, head uint64) *MockSource {
	return &MockSource{
		name:   name,
		head:   head,
		events: make(map[uint64]*etherman.EventLogs),
	}
}

func (m *MockSource) Name() string { return m.name }

func (m *MockSource) SetHead(head uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.head = head
}

func (m *MockSource) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

func (m *MockSource) at(block uint64) *etherman.EventLogs {
	if _, ok := m.events[block]; !ok {
		m.events[block] = &etherman.EventLogs{}
	}
	return m.events[block]
}

func (m *MockSource) AddLocked(ev agreement.LockedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.at(ev.BlockNumber).Locked = append(m.at(ev.BlockNumber).Locked, ev)
}

func (m *MockSource) AddValidated(ev agreement.ValidatedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.at(ev.BlockNumber).Validated = append(m.at(ev.BlockNumber).Validated, ev)
}

func (m *MockSource) AddUnlocked(ev agreement.UnlockedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.at(ev.BlockNumber).Unlocked = append(m.at(ev.BlockNumber).Unlocked, ev)
}

// Queries returns every [from, to] range requested so far.
func (m *MockSource) Queries() [][2]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]uint64{}, m.queries...)
}

func (m *MockSource) HeadBlockNumber(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return 0, ErrMockSourceDown
	}
	return m.head, nil
}

func (m *MockSource) GetEventLogs(ctx context.Context, from, to uint64) (*etherman.EventLogs, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, ErrMockSourceDown
	}

	m.queries = append(m.queries, [2]uint64{from, to})
	out := &etherman.EventLogs{}
	for b := from; b <= to; b++ {
		if ev, ok := m.events[b]; ok {
			out.Locked = append(out.Locked, ev.Locked...)
			out.Validated = append(out.Validated, ev.Validated...)
			out.Unlocked = append(out.Unlocked, ev.Unlocked...)
		}
	}
	return out, nil
}

// MockSink buffers whatever the synchronizer dispatches.
type MockSink struct {
	LockedCh    chan *agreement.LockedEvent
	ValidatedCh chan *agreement.ValidatedEvent
	UnlockedCh  chan *agreement.UnlockedEvent
}

func NewMockSink(size int) *MockSink {
	return &MockSink{
		LockedCh:    make(chan *agreement.LockedEvent, size),
		ValidatedCh: make(chan *agreement.ValidatedEvent, size),
		UnlockedCh:  make(chan *agreement.UnlockedEvent, size),
	}
}

func (s *MockSink) GetLockedEventChannel() chan<- *agreement.LockedEvent {
	return s.LockedCh
}

func (s *MockSink) GetValidatedEventChannel() chan<- *agreement.ValidatedEvent {
	return s.ValidatedCh
}

func (s *MockSink) GetUnlockedEventChannel() chan<- *agreement.UnlockedEvent {
	return s.UnlockedCh
}
