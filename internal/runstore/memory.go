package runstore

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/argos/internal/contracts"
)

// Memory is an in-process RunStatusStore
// Redis 없이 돌리는 단일 프로세스 배포와 테스트용. API와 워커가 같은
// 프로세스에 있을 때만 구독이 의미 있다.
type Memory struct {
	mu          sync.RWMutex
	statuses    map[string]*contracts.RunStatus
	subscribers map[string]map[int]chan *contracts.RunStatus
	nextSubID   int
}

// NewMemory creates an in-memory run status store
func NewMemory() *Memory {
	return &Memory{
		statuses:    make(map[string]*contracts.RunStatus),
		subscribers: make(map[string]map[int]chan *contracts.RunStatus),
	}
}

// Put stores the latest status and fans it out to subscribers
func (m *Memory) Put(ctx context.Context, status *contracts.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *status
	if copied.UpdatedAt.IsZero() {
		copied.UpdatedAt = time.Now()
	}
	m.statuses[status.RunID] = &copied

	for _, ch := range m.subscribers[status.RunID] {
		// 느린 구독자는 이벤트를 버린다. 최종 상태는 Get으로 항상 복구 가능.
		select {
		case ch <- &copied:
		default:
		}
	}
	return nil
}

// Get returns the latest status for a run
func (m *Memory) Get(ctx context.Context, runID string) (*contracts.RunStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statuses[runID]
	if !ok {
		return nil, contracts.ErrRunNotFound
	}
	copied := *status
	return &copied, nil
}

// Subscribe returns a channel of status updates for a run
// 반환된 cancel을 호출하면 채널이 닫힌다.
func (m *Memory) Subscribe(ctx context.Context, runID string) (<-chan *contracts.RunStatus, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan *contracts.RunStatus, 16)
	if m.subscribers[runID] == nil {
		m.subscribers[runID] = make(map[int]chan *contracts.RunStatus)
	}
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[runID][id] = ch

	// 구독 시점의 최신 상태를 즉시 전달해 폴링 공백을 없앤다
	if status, ok := m.statuses[runID]; ok {
		copied := *status
		ch <- &copied
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subscribers[runID], id)
			close(ch)
		})
	}
	return ch, cancel, nil
}
