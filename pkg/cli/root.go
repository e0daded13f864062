// Package cli builds the injurystore command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nimburion/injurystore/pkg/config"
	"github.com/nimburion/injurystore/pkg/observability/logger"
	"github.com/nimburion/injurystore/pkg/store"
	"github.com/nimburion/injurystore/pkg/store/factory"
)

// BackendFactory opens the key-value backend for a loaded configuration.
type BackendFactory func(cfg *config.Config, log logger.Logger, opts ...factory.Option) (store.Store, error)

// Options configures NewRootCommand.
type Options struct {
	Name        string
	Description string
	// ConfigPath is the default for --config-file.
	ConfigPath string
	EnvPrefix  string

	// OpenBackend overrides backend construction, mainly for tests.
	OpenBackend BackendFactory
	// OpenPublisher overrides change-event publisher construction.
	OpenPublisher PublisherFactory
	// Now overrides the clock used for reported_at defaults.
	Now func() time.Time
}

type app struct {
	opts Options

	cfgPath             string
	secretFilePath      string
	serviceNameOverride string
}

// NewRootCommand creates the CLI: record commands operating on the configured
// store, plus serve, healthcheck, config and version.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "injurystore"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = config.DefaultEnvPrefix
	}
	if opts.OpenBackend == nil {
		opts.OpenBackend = defaultBackend
	}
	if opts.OpenPublisher == nil {
		opts.OpenPublisher = defaultPublisher
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	a := &app{opts: opts}

	rootCmd := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.cfgPath, "config-file", "c", opts.ConfigPath, "config file path")
	pf.StringVar(&a.secretFilePath, "secret-file", "", "path to secrets file (sets "+opts.EnvPrefix+"_SECRETS_FILE)")
	pf.StringVar(&a.serviceNameOverride, "service-name", "", "service name override")
	registerConfigFlags(pf)

	rootCmd.AddCommand(
		a.listCommand(),
		a.saveCommand(),
		a.addCommand(),
		a.updateCommand(),
		a.deleteCommand(),
		a.clearCommand(),
		a.serveCommand(),
		a.healthcheckCommand(),
		a.configCommand(),
		a.openapiCommand(),
		a.versionCommand(),
	)
	return rootCmd
}

// registerConfigFlags declares the flags the config loader binds by name.
func registerConfigFlags(fs *pflag.FlagSet) {
	defaults := config.DefaultConfig()
	fs.String("storage-type", defaults.Storage.Type, fmt.Sprintf("storage backend %v", config.StorageTypes))
	fs.String("storage-key", defaults.Storage.Key, "key holding the injury collection")
	fs.String("sql-dsn", defaults.Storage.SQL.DSN, "DSN for sqlite, postgres and mysql backends")
	fs.String("redis-url", defaults.Storage.Redis.URL, "redis connection URL")
	fs.String("events-type", defaults.Events.Type, fmt.Sprintf("change event publisher %v", config.EventsTypes))
	fs.Bool("serialize-mutations", defaults.Store.SerializeMutations, "serialize read-modify-write operations within this process")
	fs.String("log-level", defaults.Observability.LogLevel, "log level (debug, info, warn, error)")
	fs.String("log-format", defaults.Observability.LogFormat, "log format (json, text)")
}

func (a *app) loadConfig(flags *pflag.FlagSet) (*config.Config, logger.Logger, error) {
	return LoadConfigAndLogger(a.cfgPath, a.opts.EnvPrefix, a.secretFilePath, flags, a.opts.Name, a.serviceNameOverride)
}

func defaultBackend(cfg *config.Config, log logger.Logger, opts ...factory.Option) (store.Store, error) {
	return factory.New(cfg.Storage, log, opts...)
}

// Execute runs the command and exits non-zero on error.
func Execute(cmd *cobra.Command) {
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func closeQuietly(log logger.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Warn("close failed", "resource", name, "error", err)
	}
}
