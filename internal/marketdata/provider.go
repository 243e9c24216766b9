package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/wonny/argos/internal/contracts"
	"github.com/wonny/argos/pkg/redis"
)

// barSource abstracts the price store behind the provider
type barSource interface {
	Series(ctx context.Context, symbol string, from, to time.Time) (*contracts.PriceSeries, error)
	BarsUpTo(ctx context.Context, symbol string, asOf time.Time, limit int) ([]contracts.PriceBar, error)
	CloseOn(ctx context.Context, symbol string, date time.Time) (float64, error)
}

// Provider implements contracts.FeatureProvider with caching and rate limiting
// ⭐ SSOT: 피처/가격 서빙은 여기서만
// 스크리너가 종목 하나당 수백 번 피처를 조회하므로 Redis 캐시와
// rate limiter로 저장소 부하를 누른다.
type Provider struct {
	source  barSource
	builder *FeatureBuilder
	cache   *redis.Cache
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewProvider creates a new market data provider
func NewProvider(source barSource, builder *FeatureBuilder, cache *redis.Cache, log zerolog.Logger) *Provider {
	return &Provider{
		source:  source,
		builder: builder,
		cache:   cache,
		// 초당 200회, 버스트 50: 공유 저장소를 혼자 독점하지 않는 선
		limiter: rate.NewLimiter(rate.Limit(200), 50),
		log:     log.With().Str("component", "marketdata.provider").Logger(),
	}
}

// FeatureVector returns the schema-versioned feature vector for a symbol at an as-of date
//
// 지원하지 않는 스키마 버전은 SchemaMismatchError. as-of 날짜에 바가 없으면
// (휴장일 등) contracts.ErrNotAvailable.
func (p *Provider) FeatureVector(ctx context.Context, symbol string, asOf time.Time, schemaVersion int) ([]float64, error) {
	if schemaVersion != contracts.FeatureSchemaVersion {
		return nil, &contracts.SchemaMismatchError{
			ModelVersion:   schemaVersion,
			CurrentVersion: contracts.FeatureSchemaVersion,
		}
	}

	key := redis.FeatureKey(symbol, asOf.Format("2006-01-02"), schemaVersion)
	var cached []float64
	if hit, err := p.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	bars, err := p.source.BarsUpTo(ctx, symbol, asOf, p.builder.Warmup())
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 || !sameDay(bars[len(bars)-1].Date, asOf) {
		return nil, contracts.ErrNotAvailable
	}

	vector, err := p.builder.FromHistory(bars)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Set(ctx, key, vector, redis.TTLDaily); err != nil {
		p.log.Warn().Err(err).Str("symbol", symbol).Msg("feature cache write failed")
	}

	return vector, nil
}

// Price returns the closing price on an exact trading date
func (p *Provider) Price(ctx context.Context, symbol string, date time.Time) (float64, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	return p.source.CloseOn(ctx, symbol, date)
}

// PriceSeries returns the bar series for a symbol in [from, to]
func (p *Provider) PriceSeries(ctx context.Context, symbol string, from, to time.Time) (*contracts.PriceSeries, error) {
	key := redis.SeriesKey(symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached contracts.PriceSeries
	if hit, err := p.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	series, err := p.source.Series(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("%w: no bars for %s in [%s, %s]", contracts.ErrNotAvailable,
			symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	if err := p.cache.Set(ctx, key, series, redis.TTLMedium); err != nil {
		p.log.Warn().Err(err).Str("symbol", symbol).Msg("series cache write failed")
	}

	return series, nil
}

func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}
