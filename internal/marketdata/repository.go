package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/wonny/argos/internal/contracts"
	"github.com/wonny/argos/pkg/database"
)

// PriceRepository reads daily price bars from Postgres
// ⭐ SSOT: 가격 바 조회 쿼리는 여기서만
type PriceRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *database.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("component", "marketdata.repository").Logger(),
	}
}

// Series returns bars for a symbol in [from, to], oldest first
func (r *PriceRepository) Series(ctx context.Context, symbol string, from, to time.Time) (*contracts.PriceSeries, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT date, open, high, low, close, volume
		FROM market.daily_bars
		WHERE symbol = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("query bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	series := &contracts.PriceSeries{Symbol: symbol}
	for rows.Next() {
		var bar contracts.PriceBar
		if err := rows.Scan(&bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("scan bar for %s: %w", symbol, err)
		}
		series.Bars = append(series.Bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bars for %s: %w", symbol, err)
	}

	return series, nil
}

// BarsUpTo returns at most limit bars with date <= asOf, oldest first
// as-of 경계가 쿼리 자체에 박혀 있어 미래 바는 결과에 들어올 수 없다.
func (r *PriceRepository) BarsUpTo(ctx context.Context, symbol string, asOf time.Time, limit int) ([]contracts.PriceBar, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT date, open, high, low, close, volume
		FROM (
			SELECT date, open, high, low, close, volume
			FROM market.daily_bars
			WHERE symbol = $1 AND date <= $2
			ORDER BY date DESC
			LIMIT $3
		) recent
		ORDER BY date ASC
	`, symbol, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("query bars up to %s for %s: %w", asOf.Format("2006-01-02"), symbol, err)
	}
	defer rows.Close()

	var bars []contracts.PriceBar
	for rows.Next() {
		var bar contracts.PriceBar
		if err := rows.Scan(&bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("scan bar for %s: %w", symbol, err)
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bars for %s: %w", symbol, err)
	}

	return bars, nil
}

// CloseOn returns the closing price on an exact trading date
func (r *PriceRepository) CloseOn(ctx context.Context, symbol string, date time.Time) (float64, error) {
	var close float64
	err := r.db.Pool.QueryRow(ctx, `
		SELECT close
		FROM market.daily_bars
		WHERE symbol = $1 AND date = $2
	`, symbol, date).Scan(&close)
	if err == pgx.ErrNoRows {
		return 0, contracts.ErrNotAvailable
	}
	if err != nil {
		return 0, fmt.Errorf("query close for %s on %s: %w", symbol, date.Format("2006-01-02"), err)
	}
	return close, nil
}

// Universe returns all symbols with at least minBars bars
func (r *PriceRepository) Universe(ctx context.Context, minBars int) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT symbol
		FROM market.daily_bars
		GROUP BY symbol
		HAVING COUNT(*) >= $1
		ORDER BY symbol ASC
	`, minBars)
	if err != nil {
		return nil, fmt.Errorf("query universe: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("scan universe symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate universe: %w", err)
	}

	r.log.Debug().Int("symbols", len(symbols)).Int("min_bars", minBars).Msg("universe loaded")
	return symbols, nil
}
