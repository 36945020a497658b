package main

import (
	"os"

	"crowdfund/internal/config"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.WithError(err).Error("exit")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		cfg        *config.Config
	)

	root := &cobra.Command{
		Use:           "crowdfund",
		Short:         "Crowdfunding escrow service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := setupLogging(&loaded.Log); err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "path to the YAML config file, empty for defaults")

	root.AddCommand(
		newServeCmd(func() *config.Config { return cfg }),
		newMigrateCmd(func() *config.Config { return cfg }),
	)
	return root
}

func setupLogging(cfg *config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return errors.Wrapf(err, "log level %q", cfg.Level)
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return errors.Errorf("unknown log format %q", cfg.Format)
	}
	return nil
}
