package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"relogic/internal/config"
	"relogic/internal/logging"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	timeout    time.Duration

	// Logger
	logger *zap.Logger

	// Resolved per invocation by PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "relogic",
	Short: "relogic - natural language to first-order logic and SMT",
	Long: `relogic compiles natural-language sentences into first-order logic by asking
an LLM oracle, one decision at a time, how to split the text. The resulting
formulas can be rendered as text or JSON, compiled to a Z3 script or SMT-LIB,
or evaluated as a Datalog program.

Contracts are handled in bulk: every penalty rule's trigger condition is
compiled and the results are saved under the output directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		workspace = ws

		if err := godotenv.Load(filepath.Join(ws, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Failed to load .env", zap.Error(err))
		}

		path := configPath
		if path == "" {
			path = config.DefaultConfigPath(ws)
		}
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		if err := logging.Configure(ws, cfg.Logging.Settings()); err != nil {
			logger.Warn("Failed to configure file logging", zap.Error(err))
		}
		logging.BootDebug("Command %q, config %s, provider %s", cmd.CommandPath(), path, cfg.LLM.Provider)
		logger.Debug("Configuration loaded",
			zap.String("workspace", ws),
			zap.String("config", path),
			zap.String("provider", cfg.LLM.Provider),
			zap.String("model", cfg.LLM.Model))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdown()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: nearest .relogic or go.mod, else current)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/.relogic/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(contractCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(datalogCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(tracesCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	err := rootCmd.Execute()
	// PersistentPostRun is skipped when a command fails.
	shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func shutdown() {
	closeApp()
	logging.CloseAll()
	logging.CloseAudit()
	if logger != nil {
		_ = logger.Sync()
	}
}

func resolveWorkspace() (string, error) {
	if workspace != "" {
		return filepath.Abs(workspace)
	}
	if root, err := config.FindWorkspaceRoot(); err == nil {
		return root, nil
	}
	return os.Getwd()
}

// commandContext applies --timeout and cancels on SIGINT/SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}
