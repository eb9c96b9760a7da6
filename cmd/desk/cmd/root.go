// Package cmd - desk CLI commands
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/pkg/config"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/pkg/logger"
)

var (
	// Common flags
	cfgFile string
	verbose bool

	// Loaded by PersistentPreRunE
	cfg *config.Config
)

// rootCmd is the root command
var rootCmd = &cobra.Command{
	Use:   "desk",
	Short: "Trading desk client - backend invoker and realtime cache",
	Long: `Trading desk client

Usage:
    go run ./cmd/desk [command]

Commands:
    serve       HTTP/SSE/WebSocket API over the realtime cache (Port 8090)
    watch       Print cache events to stdout
    invoke      Call one backend command
    journal     Show the latest journaled changes
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(journalCmd)
}

// initConfig loads .env / environment configuration and initializes the logger
func initConfig() error {
	var files []string
	if cfgFile != "" {
		files = append(files, cfgFile)
	}

	loaded, err := config.Load(files...)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg = loaded

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}

	return logger.Init(logger.ConfigFrom(
		level,
		cfg.Logging.Format,
		cfg.Logging.FileEnabled,
		cfg.Logging.FilePath,
		cfg.Logging.RotationSize,
		cfg.Logging.RetentionDays,
	))
}
