package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/argos/internal/api"
	"github.com/wonny/argos/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- 스크리너 런 접수 (비동기, run_id 즉시 반환)
- 런 상태 폴링 / WebSocket 스트리밍
- 저장된 기회 조회 및 백테스트 배치 트리거

Endpoints:
  GET  /health                        - Health check
  POST /api/screener/runs             - 스크리너 런 시작
  GET  /api/screener/runs/:id         - 런 상태 폴링
  GET  /api/screener/runs/:id/stream  - 런 상태 WebSocket 스트림
  GET  /api/opportunities/:id         - 기회 단건 조회
  POST /api/validation/batch          - 기회 백테스트 배치

Example:
  go run ./cmd/argos api
  go run ./cmd/argos api --port 8091`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: config)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Argos API Server ===")

	// 1. Wire the engine (config, logger, db, redis, components)
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	// Override port if flag is set
	if apiPort != "" {
		eng.cfg.Port = apiPort
	}

	log := eng.log
	log.WithFields(map[string]interface{}{
		"port": eng.cfg.Port,
		"env":  eng.cfg.Env,
	}).Info("Initializing API server")

	// 2. Create handlers
	screenerHandler := handlers.NewScreenerHandler(eng.queue, eng.status, log)
	validationHandler := handlers.NewValidationHandler(eng.validator, eng.oppStore, eng.cfg.Validation.Periods, log)

	// 3. Create router
	router := api.NewRouter(screenerHandler, validationHandler, log)

	// 4. Create server
	server := api.New(eng.cfg, log, router)

	// 5. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", eng.cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  POST /api/screener/runs")
	fmt.Println("  GET  /api/screener/runs/:id")
	fmt.Println("  GET  /api/screener/runs/:id/stream")
	fmt.Println("  GET  /api/opportunities/:id")
	fmt.Println("  POST /api/validation/batch")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
