package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dudu/droneid/internal/config"
	"github.com/dudu/droneid/internal/logger"
)

var (
	configPath string
	logLevel   string
	devLog     bool

	// cfg is loaded once per invocation before any subcommand runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "droneid",
	Short: "Real-time person detection and face matching on a video stream",
	Long: `droneid detects people in a live video stream (webcam, video file, URL
or a DJI Tello drone), checks every visible face against one enrolled
reference identity, and shows or records the annotated stream.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("dev") {
			cfg.Log.Development = devLog
		}
		if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.Set(logger.Log().With(zap.String("run_id", uuid.NewString())))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute runs the root command with a context cancelled on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Log().Error("fatal", zap.Error(err))
		logger.Sync()
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initEnv)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&devLog, "dev", false, "Human readable development logging")
}

func initEnv() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
