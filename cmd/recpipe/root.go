package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/recpipe/artifact"
	"github.com/kbukum/recpipe/bootstrap"
	"github.com/kbukum/recpipe/config"
	"github.com/kbukum/recpipe/logger"
	"github.com/kbukum/recpipe/observability"
	"github.com/kbukum/recpipe/version"
)

const serviceName = "recpipe"

// cli holds the persistent flags shared by every command.
type cli struct {
	configFile string
	envFile    string
	logLevel   string
	storePath  string
	backend    string
	summary    bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Build, train and run recommendation pipelines",
		Long:          "recpipe composes recommender components into pipelines, trains and stores them,\nand runs queries one at a time or in batches across a pool of workers.",
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "config file (default: search recpipe.yml, config.yml)")
	pf.StringVar(&c.envFile, "env-file", "", "dotenv file to load")
	pf.StringVar(&c.logLevel, "log-level", "", "override logging.level")
	pf.StringVar(&c.storePath, "store", "", "artifact store path (overrides artifacts.path)")
	pf.StringVar(&c.backend, "backend", "", "artifact backend: file or badger")
	pf.BoolVar(&c.summary, "summary", false, "print the startup summary to stderr")

	root.AddCommand(
		newRunCmd(c),
		newTrainCmd(c),
		newRecommendCmd(c),
		newBatchCmd(c),
		newWorkerCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the config file, dotenv and RECPIPE_* variables, then
// applies flag overrides.
func (c *cli) loadConfig() (*Config, error) {
	var opts []config.LoaderOption
	if c.configFile != "" {
		if _, err := os.Stat(c.configFile); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		opts = append(opts, config.WithConfigFile(c.configFile))
	}
	if c.envFile != "" {
		opts = append(opts, config.WithEnvFile(c.envFile))
	}

	var cfg Config
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		return nil, err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.storePath != "" {
		cfg.Artifacts.Path = c.storePath
		cfg.Artifacts.InMemory = false
	}
	if c.backend != "" {
		cfg.Artifacts.Backend = c.backend
	}
	return &cfg, nil
}

// session is the per-command runtime: the bootstrapped app plus the
// services a command asked for.
type session struct {
	app     *bootstrap.App[*Config]
	cfg     *Config
	log     *logger.Logger
	metrics *observability.Metrics
	store   *artifact.Component
	stdin   io.Reader
}

type taskFunc func(ctx context.Context, s *session) error

type taskSpec struct {
	// withStore registers the artifact store as a managed service.
	withStore bool
	configure taskFunc
	run       taskFunc
	// mutate adjusts the loaded config before validation.
	mutate func(cfg *Config)
}

// runTask loads config, bootstraps the app and runs spec inside
// App.RunTask, so signals cancel the task and services stop on exit.
func (c *cli) runTask(cmd *cobra.Command, spec taskSpec) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if spec.mutate != nil {
		spec.mutate(cfg)
	}

	var summaryOut io.Writer = io.Discard
	if c.summary {
		summaryOut = cmd.ErrOrStderr()
	}
	app, err := bootstrap.NewApp(cfg, bootstrap.WithSummaryWriter(summaryOut))
	if err != nil {
		return err
	}

	s := &session{app: app, cfg: cfg, log: app.Logger.WithComponent(cmd.Name()), stdin: cmd.InOrStdin()}
	if spec.withStore {
		s.store = artifact.NewComponent(cfg.Artifacts, logger.Get(logger.ComponentArtifacts))
		if err := app.Services.Register(s.store); err != nil {
			return err
		}
	}

	app.OnStart(func(ctx context.Context) error {
		shutdown, err := observability.Setup(ctx, cfg.Observability, observability.Service{
			Name:        app.Name,
			Version:     app.Version,
			Environment: cfg.Environment,
		})
		if err != nil {
			return err
		}
		app.OnStop(func(ctx context.Context) error { return shutdown(ctx) })
		s.metrics, err = observability.NewMetrics(observability.Meter(serviceName))
		return err
	})
	if spec.configure != nil {
		app.OnConfigure(func(ctx context.Context, _ *bootstrap.App[*Config]) error {
			return spec.configure(ctx, s)
		})
	}

	return app.RunTask(cmd.Context(), func(ctx context.Context) error {
		return spec.run(ctx, s)
	})
}
