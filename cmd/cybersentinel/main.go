// Command cybersentinel runs the security log pipeline stages.
//
// Each stage is its own subcommand so deployments can scale stages
// independently; the all subcommand runs every stage in one process
// for development.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/config"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/logging"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/service"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "cybersentinel",
		Short: "Security log pipeline",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return config.LoadEnvFile(envFile)
		},
	}

	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file seeding the environment (missing file is ignored)")

	receiverCmd := &cobra.Command{
		Use:   "receiver",
		Short: "Start the syslog receiver stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadReceiver()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return service.Run(ctx, logger, service.NewReceiverStage(cfg, logger))
		},
	}

	processorCmd := &cobra.Command{
		Use:   "processor",
		Short: "Start the enrichment and indexing stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadProcessor()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return service.Run(ctx, logger, service.NewProcessorStage(cfg, logger))
		},
	}

	alertingCmd := &cobra.Command{
		Use:   "alerting",
		Short: "Start the rule evaluation and alert delivery stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAlerting()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return service.Run(ctx, logger, service.NewAlertingStage(cfg, logger))
		},
	}

	allCmd := &cobra.Command{
		Use:   "all",
		Short: "Run every stage in one process",
		RunE: func(cmd *cobra.Command, args []string) error {
			rcfg, err := config.LoadReceiver()
			if err != nil {
				return err
			}
			pcfg, err := config.LoadProcessor()
			if err != nil {
				return err
			}
			acfg, err := config.LoadAlerting()
			if err != nil {
				return err
			}
			logger := newLogger(rcfg.LogLevel)
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return service.Run(ctx, logger,
				service.NewReceiverStage(rcfg, logger),
				service.NewProcessorStage(pcfg, logger),
				service.NewAlertingStage(acfg, logger),
			)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(receiverCmd, processorCmd, alertingCmd, allCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	return logging.New(os.Stderr, level)
}
