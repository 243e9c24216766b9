package commands

import (
	"fmt"

	"github.com/wonny/argos/internal/contracts"
	"github.com/wonny/argos/internal/labeling"
	"github.com/wonny/argos/internal/marketdata"
	"github.com/wonny/argos/internal/predicting"
	"github.com/wonny/argos/internal/registry"
	"github.com/wonny/argos/internal/runstore"
	"github.com/wonny/argos/internal/screener"
	"github.com/wonny/argos/internal/store"
	"github.com/wonny/argos/internal/training"
	"github.com/wonny/argos/internal/validation"
	"github.com/wonny/argos/internal/worker"
	"github.com/wonny/argos/pkg/config"
	"github.com/wonny/argos/pkg/database"
	"github.com/wonny/argos/pkg/logger"
	"github.com/wonny/argos/pkg/redis"
)

// engine bundles the wired component graph shared by every command
// ⭐ SSOT: 의존성 조립은 여기서만
type engine struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *database.DB
	redis  *redis.Client
	status contracts.RunStatusStore

	provider     *marketdata.Provider
	priceRepo    *marketdata.PriceRepository
	registry     *registry.Postgres
	oppStore     *store.Opportunities
	queue        *worker.Queue
	orchestrator *screener.Orchestrator
	validator    *validation.Validator
}

// newEngine loads config and wires the full component graph
func newEngine() (*engine, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 4. Connect to Redis (disabled면 no-op 클라이언트)
	redisClient, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// 5. Market data: repository + feature builder + caching provider
	priceRepo := marketdata.NewPriceRepository(db, log.Zerolog())
	cache := redis.NewCache(redisClient, "argos")
	provider := marketdata.NewProvider(priceRepo, marketdata.NewFeatureBuilder(), cache, log.Zerolog())

	// 6. Persistence: model registry + opportunity store + run queue
	modelRegistry := registry.NewPostgres(db.Pool)
	oppStore := store.NewOpportunities(db, log.Zerolog())
	queue := worker.NewQueue(db, log.Zerolog())

	// 7. Run status store: Redis가 있으면 프로세스 간 공유, 없으면 인메모리
	var status contracts.RunStatusStore
	if redisClient.Enabled() {
		status = runstore.NewRedis(redisClient, "argos", log.Zerolog())
	} else {
		status = runstore.NewMemory()
	}

	// 8. Engine core: labeler → trainer → predictor → orchestrator
	labeler := labeling.NewConstructor(marketdata.NewFeatureBuilder(), cfg.Screener.MinSamples, log.Zerolog())
	trainer := training.NewTrainer(modelRegistry, training.Config{
		HoldoutRatio: cfg.Screener.HoldoutRatio,
		MinSkew:      cfg.Screener.MinSkew,
		MaxSkew:      cfg.Screener.MaxSkew,
		Algorithms:   cfg.Screener.Algorithms,
	}, log.Zerolog())
	predictor := predicting.NewPredictor(modelRegistry, provider, log.Zerolog())
	orchestrator := screener.NewOrchestrator(
		priceRepo, provider, labeler, trainer, predictor,
		modelRegistry, oppStore, cfg.Screener, log.Zerolog())

	// 9. Validator (backtester)
	validator := validation.NewValidator(provider, oppStore, validation.Config{
		NeutralBand:  cfg.Validation.NeutralBand,
		RiskFreeRate: cfg.Validation.RiskFreeRate,
		MarketProxy:  cfg.Validation.MarketProxy,
	}, log.Zerolog())

	return &engine{
		cfg:          cfg,
		log:          log,
		db:           db,
		redis:        redisClient,
		status:       status,
		provider:     provider,
		priceRepo:    priceRepo,
		registry:     modelRegistry,
		oppStore:     oppStore,
		queue:        queue,
		orchestrator: orchestrator,
		validator:    validator,
	}, nil
}

// close releases engine resources
func (e *engine) close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.db != nil {
		e.db.Close()
	}
}
