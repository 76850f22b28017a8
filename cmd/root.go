package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evanofslack/dns-relay/internal/audit"
	"github.com/evanofslack/dns-relay/internal/config"
	"github.com/evanofslack/dns-relay/internal/logger"
	"github.com/evanofslack/dns-relay/internal/metrics"
	"github.com/evanofslack/dns-relay/internal/provider"
	"github.com/evanofslack/dns-relay/internal/provider/cloudflare"
	"github.com/evanofslack/dns-relay/internal/provider/rest"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:           "dns-relay",
		Short:         "Cloudflare DNS record relay",
		Long:          "Relays add, update and delete requests for Cloudflare DNS records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	rootCmd.AddCommand(serveCmd, recordCmd, ddnsCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file, installs the logger and validates.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Configure(cfg.Log.Level, cfg.Log.Env, cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newProvider(cfg config.Cloudflare, m *metrics.Metrics) (provider.Provider, error) {
	if cfg.Backend == config.BackendSDK {
		p, err := cloudflare.New(cfg, m)
		if err != nil {
			return nil, fmt.Errorf("init cloudflare sdk provider: %w", err)
		}
		return p, nil
	}

	p, err := rest.New(cfg, m)
	if err != nil {
		return nil, fmt.Errorf("init cloudflare rest provider: %w", err)
	}
	return p, nil
}

func openJournal(cfg config.Audit, m *metrics.Metrics) (audit.Journal, error) {
	if cfg.Path == "" {
		return audit.Nop(), nil
	}
	j, err := audit.New(cfg.Path, m)
	if err != nil {
		return nil, fmt.Errorf("open audit journal: %w", err)
	}
	return j, nil
}
