package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/wonny/argos/internal/contracts"
	"github.com/wonny/argos/pkg/database"
)

// Opportunities is the Postgres-backed OpportunityStore
// ⭐ SSOT: 기회/검증 레코드 영속화는 여기서만
//
// 검증 레코드는 (opportunity_id, validation_period_days) 키로 upsert한다.
// 같은 쌍 재검증은 이전 레코드를 덮어쓰므로 동시 재검증도 안전하다
// (last-writer overwrite, 멱등).
type Opportunities struct {
	db  *database.DB
	log zerolog.Logger
}

// NewOpportunities creates a Postgres opportunity store
func NewOpportunities(db *database.DB, log zerolog.Logger) *Opportunities {
	return &Opportunities{
		db:  db,
		log: log.With().Str("component", "store.opportunities").Logger(),
	}
}

// SaveOpportunity inserts an opportunity and returns its id
func (s *Opportunities) SaveOpportunity(ctx context.Context, opp *contracts.Opportunity) (int64, error) {
	scores, err := json.Marshal(opp.Scores)
	if err != nil {
		return 0, fmt.Errorf("marshal scores: %w", err)
	}

	var id int64
	err = s.db.Pool.QueryRow(ctx, `
		INSERT INTO screener.opportunities (
			run_id, symbol, opportunity_date, scores, composite_score,
			recommendation, confidence_level, risk_level,
			price_at_generation, predicted_return, model_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, opp.RunID, opp.Symbol, opp.OpportunityDate, scores, opp.CompositeScore,
		opp.Recommendation, opp.ConfidenceLevel, opp.RiskLevel,
		opp.PriceAtGeneration, opp.PredictedReturn, opp.ModelID, opp.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert opportunity for %s: %w", opp.Symbol, err)
	}
	return id, nil
}

// GetOpportunity loads one opportunity by id
func (s *Opportunities) GetOpportunity(ctx context.Context, id int64) (*contracts.Opportunity, error) {
	row := s.db.Pool.QueryRow(ctx, opportunitySelect+` WHERE id = $1`, id)
	opp, err := scanOpportunity(row)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: opportunity %d", contracts.ErrNotAvailable, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load opportunity %d: %w", id, err)
	}
	return opp, nil
}

// ListOpportunities loads opportunities by id, skipping unknown ids
func (s *Opportunities) ListOpportunities(ctx context.Context, ids []int64) ([]contracts.Opportunity, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.Pool.Query(ctx, opportunitySelect+` WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("query opportunities: %w", err)
	}
	defer rows.Close()

	var opportunities []contracts.Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		opportunities = append(opportunities, *opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate opportunities: %w", err)
	}
	return opportunities, nil
}

// SaveValidationRecord upserts one validation record keyed by (opportunity, period)
func (s *Opportunities) SaveValidationRecord(ctx context.Context, rec *contracts.ValidationRecord) error {
	risk, err := json.Marshal(rec.Risk)
	if err != nil {
		return fmt.Errorf("marshal risk metrics: %w", err)
	}

	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO screener.validation_records (
			opportunity_id, validation_period_days, actual_return, predicted_return,
			recommendation_correct, performance_category, risk, final_price, validated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (opportunity_id, validation_period_days) DO UPDATE SET
			actual_return = EXCLUDED.actual_return,
			predicted_return = EXCLUDED.predicted_return,
			recommendation_correct = EXCLUDED.recommendation_correct,
			performance_category = EXCLUDED.performance_category,
			risk = EXCLUDED.risk,
			final_price = EXCLUDED.final_price,
			validated_at = EXCLUDED.validated_at
	`, rec.OpportunityID, rec.ValidationPeriodDays, rec.ActualReturn, rec.PredictedReturn,
		rec.RecommendationCorrect, rec.PerformanceCategory, risk, rec.FinalPrice, rec.ValidatedAt)
	if err != nil {
		return fmt.Errorf("upsert validation record %d/%dd: %w", rec.OpportunityID, rec.ValidationPeriodDays, err)
	}
	return nil
}

// ListPendingValidation returns opportunities with no record for a period yet
// 검증 스윕 잡이 주기적으로 집어간다.
func (s *Opportunities) ListPendingValidation(ctx context.Context, periodDays int) ([]contracts.Opportunity, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT o.id, o.run_id, o.symbol, o.opportunity_date, o.scores, o.composite_score,
		       o.recommendation, o.confidence_level, o.risk_level,
		       o.price_at_generation, o.predicted_return, o.model_id, o.created_at
		FROM screener.opportunities o
		LEFT JOIN screener.validation_records vr
		  ON vr.opportunity_id = o.id AND vr.validation_period_days = $1
		WHERE vr.opportunity_id IS NULL
		ORDER BY o.opportunity_date ASC, o.id ASC
	`, periodDays)
	if err != nil {
		return nil, fmt.Errorf("query pending validation (%dd): %w", periodDays, err)
	}
	defer rows.Close()

	var opportunities []contracts.Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending opportunity: %w", err)
		}
		opportunities = append(opportunities, *opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending validation: %w", err)
	}
	return opportunities, nil
}

const opportunitySelect = `
	SELECT id, run_id, symbol, opportunity_date, scores, composite_score,
	       recommendation, confidence_level, risk_level,
	       price_at_generation, predicted_return, model_id, created_at
	FROM screener.opportunities
`

func scanOpportunity(row pgx.Row) (*contracts.Opportunity, error) {
	var opp contracts.Opportunity
	var scores []byte
	if err := row.Scan(
		&opp.ID, &opp.RunID, &opp.Symbol, &opp.OpportunityDate, &scores, &opp.CompositeScore,
		&opp.Recommendation, &opp.ConfidenceLevel, &opp.RiskLevel,
		&opp.PriceAtGeneration, &opp.PredictedReturn, &opp.ModelID, &opp.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &opp.Scores); err != nil {
			return nil, fmt.Errorf("unmarshal scores: %w", err)
		}
	}
	return &opp, nil
}
