// Package cli provides the taskwire command line surface.
package cli

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smallnest/taskwire/auth"
	"github.com/smallnest/taskwire/client"
	"github.com/smallnest/taskwire/config"
	"github.com/smallnest/taskwire/internal/logger"
	"github.com/smallnest/taskwire/retry"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "taskwire",
	Short: "Client for the task-execution backend",
	Long: `taskwire issues plain and streaming calls against a remote
task-execution backend, handling credential refresh, retries and
cancellation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		if err := logger.Init(level, cfg.Log.Development); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		config.Watch(func(next *config.Config) {
			_ = logger.Init(next.Log.Level, next.Log.Development)
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// openStore opens the durable credential store from the loaded config.
func openStore() (*auth.SQLiteStore, error) {
	cfg := config.Get()
	return auth.NewSQLiteStore(config.ExpandUserPath(cfg.Auth.CredentialDB))
}

// newClient builds the backend client from the loaded config. The returned
// cleanup closes the credential store.
func newClient() (*client.Client, func(), error) {
	cfg := config.Get()

	store, err := openStore()
	if err != nil {
		return nil, nil, err
	}

	refresher := auth.NewRefresher(
		cfg.Backend.BaseURL+cfg.Auth.RefreshPath,
		store,
		&http.Client{Timeout: 15 * time.Second},
	)

	opts := []client.Option{
		client.WithAttemptTimeout(cfg.Backend.AttemptTimeout),
		client.WithRefreshWindow(cfg.Auth.RefreshWindow),
	}
	if cfg.Retry.MaxAttempts > 0 {
		pol := retry.Policy{MaxAttempts: cfg.Retry.MaxAttempts, Delay: cfg.Retry.Delay}
		opts = append(opts,
			client.WithRetryPolicy(http.MethodGet, pol),
			client.WithRetryPolicy(http.MethodDelete, pol),
			client.WithStreamPolicy(pol),
		)
	}

	c := client.New(cfg.Backend.BaseURL, store, refresher, opts...)
	return c, func() { _ = store.Close() }, nil
}
