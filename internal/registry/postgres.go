package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/argos/internal/contracts"
)

// Postgres is the shared ModelRegistry backed by PostgreSQL
// ⭐ SSOT: 모델 아티팩트 영속화는 여기서만
//
// 같은 키의 동시 Register가 레이스하면 활성 모델이 둘이 될 수 있으므로
// "기존 활성 비활성화 → 새 모델 삽입"을 키 단위 advisory lock이 걸린
// 트랜잭션으로 직렬화한다.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed registry
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Register implements contracts.ModelRegistry
func (r *Postgres) Register(ctx context.Context, model *contracts.TrainedModel) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 키 단위 트랜잭션 advisory lock: 커밋/롤백 시 자동 해제
	lockKey := modelKeyHash(model.Symbol, model.TargetConfigID, model.Algorithm)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey); err != nil {
		return "", fmt.Errorf("acquire model key lock: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE screener.trained_models
		SET is_active = false
		WHERE symbol = $1 AND target_config_id = $2 AND algorithm = $3 AND is_active`,
		model.Symbol, model.TargetConfigID, model.Algorithm)
	if err != nil {
		return "", fmt.Errorf("deactivate prior models: %w", err)
	}

	metrics, err := json.Marshal(model.Metrics)
	if err != nil {
		return "", fmt.Errorf("marshal metrics: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO screener.trained_models
			(id, symbol, target_config_id, algorithm, feature_schema_version, metrics, artifact, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8)`,
		model.ID, model.Symbol, model.TargetConfigID, model.Algorithm,
		model.FeatureSchemaVersion, metrics, model.Artifact, model.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert model: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}

	return model.ID, nil
}

// Load implements contracts.ModelRegistry
func (r *Postgres) Load(ctx context.Context, id string) (*contracts.TrainedModel, error) {
	query := `
		SELECT id, symbol, target_config_id, algorithm, feature_schema_version,
		       metrics, artifact, is_active, created_at
		FROM screener.trained_models
		WHERE id = $1`

	var model contracts.TrainedModel
	var metrics []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&model.ID, &model.Symbol, &model.TargetConfigID, &model.Algorithm,
		&model.FeatureSchemaVersion, &metrics, &model.Artifact,
		&model.IsActive, &model.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, contracts.ErrModelNotFound
		}
		return nil, fmt.Errorf("load model %s: %w", id, err)
	}

	if err := json.Unmarshal(metrics, &model.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics for %s: %w", id, err)
	}

	return &model, nil
}

// Deactivate implements contracts.ModelRegistry
// 아티팩트가 깨졌거나 낡은 모델은 삭제하지 않고 비활성화한다.
func (r *Postgres) Deactivate(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE screener.trained_models SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate model %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return contracts.ErrModelNotFound
	}
	return nil
}

// ListActive implements contracts.ModelRegistry
func (r *Postgres) ListActive(ctx context.Context) ([]*contracts.TrainedModel, error) {
	query := `
		SELECT id, symbol, target_config_id, algorithm, feature_schema_version,
		       metrics, artifact, is_active, created_at
		FROM screener.trained_models
		WHERE is_active
		ORDER BY symbol, algorithm`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active models: %w", err)
	}
	defer rows.Close()

	var models []*contracts.TrainedModel
	for rows.Next() {
		var model contracts.TrainedModel
		var metrics []byte
		if err := rows.Scan(
			&model.ID, &model.Symbol, &model.TargetConfigID, &model.Algorithm,
			&model.FeatureSchemaVersion, &metrics, &model.Artifact,
			&model.IsActive, &model.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(metrics, &model.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal metrics for %s: %w", model.ID, err)
		}
		models = append(models, &model)
	}

	return models, rows.Err()
}

// GetOrCreateTargetConfig implements contracts.ModelRegistry
// (symbol, return%, horizon) 트리플당 한 행, 충돌 시 기존 행 재사용.
func (r *Postgres) GetOrCreateTargetConfig(ctx context.Context, tc contracts.TargetConfiguration) (*contracts.TargetConfiguration, error) {
	query := `
		INSERT INTO screener.target_configs
			(symbol, expected_return_pct, horizon_days, risk_tolerance, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol, expected_return_pct, horizon_days)
		DO UPDATE SET symbol = EXCLUDED.symbol
		RETURNING id, symbol, expected_return_pct, horizon_days, risk_tolerance, created_at`

	var created contracts.TargetConfiguration
	err := r.pool.QueryRow(ctx, query,
		tc.Symbol, tc.ExpectedReturnPct, tc.HorizonDays, tc.RiskTolerance, time.Now(),
	).Scan(
		&created.ID, &created.Symbol, &created.ExpectedReturnPct,
		&created.HorizonDays, &created.RiskTolerance, &created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get or create target config %s: %w", tc.Key(), err)
	}

	return &created, nil
}

// modelKeyHash maps a model key to an advisory lock id
func modelKeyHash(symbol string, targetConfigID int64, algorithm string) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d:%s", symbol, targetConfigID, algorithm)
	return int64(h.Sum64())
}
