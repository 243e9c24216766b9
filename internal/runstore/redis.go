package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/wonny/argos/internal/contracts"
	"github.com/wonny/argos/pkg/redis"
)

// statusTTL 종료된 런 상태를 Redis에 남겨두는 기간
const statusTTL = 24 * time.Hour

// Redis is a RunStatusStore backed by Redis with pub/sub fan-out
// ⭐ SSOT: 런 상태 공유는 여기서만
// API 프로세스와 워커 프로세스가 분리된 배포에서 상태를 공유하는 경로다.
// 최신 상태는 키에, 변경 알림은 pub/sub 채널에 싣는다.
type Redis struct {
	client *redis.Client
	prefix string
	log    zerolog.Logger
}

// NewRedis creates a Redis-backed run status store
func NewRedis(client *redis.Client, prefix string, log zerolog.Logger) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		log:    log.With().Str("component", "runstore.redis").Logger(),
	}
}

func (r *Redis) statusKey(runID string) string {
	return fmt.Sprintf("%s:runs:%s", r.prefix, runID)
}

func (r *Redis) channel(runID string) string {
	return fmt.Sprintf("%s:runs:events:%s", r.prefix, runID)
}

// Put stores the latest status and publishes it to subscribers
func (r *Redis) Put(ctx context.Context, status *contracts.RunStatus) error {
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now()
	}

	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal run status: %w", err)
	}

	if err := r.client.Redis().Set(ctx, r.statusKey(status.RunID), data, statusTTL).Err(); err != nil {
		return fmt.Errorf("store run status: %w", err)
	}

	// 구독자가 없어도 publish는 무해하다
	if err := r.client.Redis().Publish(ctx, r.channel(status.RunID), data).Err(); err != nil {
		r.log.Warn().Err(err).Str("run_id", status.RunID).Msg("status publish failed")
	}
	return nil
}

// Get returns the latest status for a run
func (r *Redis) Get(ctx context.Context, runID string) (*contracts.RunStatus, error) {
	data, err := r.client.Redis().Get(ctx, r.statusKey(runID)).Bytes()
	if err == goredis.Nil {
		return nil, contracts.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run status: %w", err)
	}

	var status contracts.RunStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("unmarshal run status: %w", err)
	}
	return &status, nil
}

// Subscribe streams status updates for a run over Redis pub/sub
func (r *Redis) Subscribe(ctx context.Context, runID string) (<-chan *contracts.RunStatus, func(), error) {
	pubsub := r.client.Redis().Subscribe(ctx, r.channel(runID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe to run %s: %w", runID, err)
	}

	out := make(chan *contracts.RunStatus, 16)

	// 구독 직후 현재 상태를 한 번 밀어준다
	if current, err := r.Get(ctx, runID); err == nil {
		out <- current
	}

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var status contracts.RunStatus
			if err := json.Unmarshal([]byte(msg.Payload), &status); err != nil {
				r.log.Warn().Err(err).Str("run_id", runID).Msg("malformed status event")
				continue
			}
			select {
			case out <- &status:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() {
		_ = pubsub.Close()
	}
	return out, cancel, nil
}
