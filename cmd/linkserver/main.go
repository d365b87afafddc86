package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/consorcioops/boleto-batch/internal/config"
	"github.com/consorcioops/boleto-batch/internal/filelink"
	"github.com/consorcioops/boleto-batch/internal/logger"
)

var flagConfig string

func main() {
	rootCmd := &cobra.Command{
		Use:           "linkserver",
		Short:         "Serves downloaded payment slips over signed expiring links",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "path to a .env configuration file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if flagConfig != "" {
		if err := godotenv.Load(flagConfig); err != nil {
			return fmt.Errorf("load config file %s: %w", flagConfig, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)

	service, err := filelink.NewService(cfg.Processing.DownloadsDir, cfg.FileLink.BaseURL, cfg.FileLink.SecretKey, cfg.FileLink.Expiry)
	if err != nil {
		return fmt.Errorf("initialize file link service: %w", err)
	}

	router := filelink.NewRouter(service, log)
	addr := fmt.Sprintf(":%d", cfg.FileLink.Port)
	log.WithField("addr", addr).Info("File link server starting")
	return router.Run(addr)
}
