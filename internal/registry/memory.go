package registry

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/argos/internal/contracts"
)

// Memory is an in-process ModelRegistry
// 단위 테스트와 단발성 CLI 실행에서 사용. 프로세스 간 공유는 Postgres 구현으로.
type Memory struct {
	mu      sync.Mutex
	models  map[string]*contracts.TrainedModel
	configs map[string]*contracts.TargetConfiguration
	nextID  int64
}

// NewMemory creates an empty in-memory registry
func NewMemory() *Memory {
	return &Memory{
		models:  make(map[string]*contracts.TrainedModel),
		configs: make(map[string]*contracts.TargetConfiguration),
		nextID:  1,
	}
}

// Register implements contracts.ModelRegistry
// 같은 (symbol, target_config, algorithm) 키의 활성 모델 비활성화와 삽입을
// 단일 락 구간에서 수행한다.
func (m *Memory) Register(ctx context.Context, model *contracts.TrainedModel) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.models {
		if existing.IsActive &&
			existing.Symbol == model.Symbol &&
			existing.TargetConfigID == model.TargetConfigID &&
			existing.Algorithm == model.Algorithm {
			existing.IsActive = false
		}
	}

	stored := *model
	stored.IsActive = true
	m.models[stored.ID] = &stored

	return stored.ID, nil
}

// Load implements contracts.ModelRegistry
func (m *Memory) Load(ctx context.Context, id string) (*contracts.TrainedModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	model, ok := m.models[id]
	if !ok {
		return nil, contracts.ErrModelNotFound
	}

	copied := *model
	return &copied, nil
}

// Deactivate implements contracts.ModelRegistry
func (m *Memory) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	model, ok := m.models[id]
	if !ok {
		return contracts.ErrModelNotFound
	}
	model.IsActive = false
	return nil
}

// ListActive implements contracts.ModelRegistry
func (m *Memory) ListActive(ctx context.Context) ([]*contracts.TrainedModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var active []*contracts.TrainedModel
	for _, model := range m.models {
		if model.IsActive {
			copied := *model
			active = append(active, &copied)
		}
	}
	return active, nil
}

// GetOrCreateTargetConfig implements contracts.ModelRegistry
// (symbol, return%, horizon) 트리플당 하나를 캐시 키로 재사용한다.
func (m *Memory) GetOrCreateTargetConfig(ctx context.Context, tc contracts.TargetConfiguration) (*contracts.TargetConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tc.Key()
	if existing, ok := m.configs[key]; ok {
		copied := *existing
		return &copied, nil
	}

	created := tc
	created.ID = m.nextID
	created.CreatedAt = time.Now()
	m.nextID++
	m.configs[key] = &created

	copied := created
	return &copied, nil
}

// ActiveCount returns the number of active models for a key (test helper)
func (m *Memory) ActiveCount(symbol string, targetConfigID int64, algorithm string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, model := range m.models {
		if model.IsActive &&
			model.Symbol == symbol &&
			model.TargetConfigID == targetConfigID &&
			model.Algorithm == algorithm {
			count++
		}
	}
	return count
}
