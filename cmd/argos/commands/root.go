package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "argos",
	Short: "Argos - ML 기반 기회 스크리닝/검증 엔진",
	Long: `Argos Unified CLI

종목별 분류기를 학습해 매매 기회를 스크리닝하고,
생성된 기회를 전방 수익률로 백테스트하는 엔진.

Usage:
  go run ./cmd/argos [command]

Examples:
  go run ./cmd/argos api
  go run ./cmd/argos worker
  go run ./cmd/argos screener run --target-return 5 --horizon 10
  go run ./cmd/argos validate --ids 1,2,3`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
