package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Screener
	Screener ScreenerConfig

	// Validation
	Validation ValidationConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// ScreenerConfig holds screener engine configuration
type ScreenerConfig struct {
	// Labeling
	MinSamples  int // 학습 테이블 최소 행 수 (미만이면 InsufficientData)
	HistoryDays int // 라벨링에 사용할 과거 거래일 수

	// Training
	Algorithms   []string // 활성 알고리즘 목록
	HoldoutRatio float64  // 홀드아웃 비율 (시간순 분할)
	MinSkew      float64  // 양성 라벨 비율 하한
	MaxSkew      float64  // 양성 라벨 비율 상한

	// Run limits
	SoftTimeLimit time.Duration // 초과 시 부분 결과로 마무리
	HardTimeLimit time.Duration // 초과 시 강제 종료

	// Worker
	WorkerConcurrency int
	WorkerPollEvery   time.Duration
}

// ValidationConfig holds backtesting validator configuration
type ValidationConfig struct {
	Periods      []int   // 검증 기간 목록 (거래일)
	NeutralBand  float64 // HOLD 판정 중립 밴드 (절대 수익률)
	RiskFreeRate float64 // 연간 무위험 수익률 (Sharpe용)
	MarketProxy  string  // 베타 계산용 시장 지수 심볼
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8091"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		// Screener
		Screener: ScreenerConfig{
			MinSamples:        getEnvAsInt("SCREENER_MIN_SAMPLES", 30),
			HistoryDays:       getEnvAsInt("SCREENER_HISTORY_DAYS", 504),
			Algorithms:        getEnvAsList("SCREENER_ALGORITHMS", "randomforest,gradientboost,neuralnet"),
			HoldoutRatio:      getEnvAsFloat("SCREENER_HOLDOUT_RATIO", 0.2),
			MinSkew:           getEnvAsFloat("SCREENER_MIN_SKEW", 0.02),
			MaxSkew:           getEnvAsFloat("SCREENER_MAX_SKEW", 0.98),
			SoftTimeLimit:     getEnvAsDuration("SCREENER_SOFT_TIME_LIMIT", "20m"),
			HardTimeLimit:     getEnvAsDuration("SCREENER_HARD_TIME_LIMIT", "25m"),
			WorkerConcurrency: getEnvAsInt("SCREENER_WORKER_CONCURRENCY", 2),
			WorkerPollEvery:   getEnvAsDuration("SCREENER_WORKER_POLL_EVERY", "2s"),
		},

		// Validation
		Validation: ValidationConfig{
			Periods:      getEnvAsIntList("VALIDATION_PERIODS", "5,10,21"),
			NeutralBand:  getEnvAsFloat("VALIDATION_NEUTRAL_BAND", 0.02),
			RiskFreeRate: getEnvAsFloat("VALIDATION_RISK_FREE_RATE", 0.03),
			MarketProxy:  getEnv("VALIDATION_MARKET_PROXY", "SPY"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Screener.MinSamples < 1 {
		return fmt.Errorf("SCREENER_MIN_SAMPLES must be positive")
	}

	if c.Screener.HoldoutRatio <= 0 || c.Screener.HoldoutRatio >= 1 {
		return fmt.Errorf("SCREENER_HOLDOUT_RATIO must be in (0, 1)")
	}

	if len(c.Screener.Algorithms) == 0 {
		return fmt.Errorf("SCREENER_ALGORITHMS must not be empty")
	}

	if c.Screener.SoftTimeLimit >= c.Screener.HardTimeLimit {
		return fmt.Errorf("SCREENER_SOFT_TIME_LIMIT must be shorter than SCREENER_HARD_TIME_LIMIT")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsList(key string, defaultValue string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	var items []string
	for _, item := range strings.Split(valueStr, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvAsIntList(key string, defaultValue string) []int {
	var values []int
	for _, item := range getEnvAsList(key, defaultValue) {
		v, err := strconv.Atoi(item)
		if err != nil {
			continue
		}
		values = append(values, v)
	}
	return values
}
