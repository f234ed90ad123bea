package main

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rhokp"
	"github.com/kailas-cloud/rhokp/internal/config"
	"github.com/kailas-cloud/rhokp/internal/domain"
	logpkg "github.com/kailas-cloud/rhokp/internal/logger"
	"github.com/kailas-cloud/rhokp/internal/version"
)

// globalFlags are shared by every command.
type globalFlags struct {
	env        string
	configPath string
	logLevel   string
	jsonLog    bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "rhokp",
		Short: "Retrieval client for the Red Hat Offline Knowledge Portal",
		Long: `rhokp queries a Red Hat Offline Knowledge Portal (Solr) and turns the hits
into a numbered, citation-annotated context block for language models.

Configuration comes from config/<env>.yaml (or --config), with ${VAR:-default}
placeholders resolved from the environment; RHOKP_* variables override the
built-in defaults when no file exists. A .env file in the working directory is
loaded first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Version,
	}

	root.PersistentFlags().StringVar(&g.env, "env", config.GetEnv(), "Environment: local, dev, docker, prod")
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to a YAML config file (overrides --env lookup)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&g.jsonLog, "json-log", false, "Emit JSON logs on stderr")

	root.AddCommand(
		retrieveCmd(g),
		healthCmd(g),
		serveCmd(g),
		mcpCmd(g),
		askCmd(g),
		evalCmd(g),
		versionCmd(),
	)
	return root
}

// app is what every command starts from: loaded config and a logger.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func (g *globalFlags) load() (*app, error) {
	var (
		cfg config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFile(g.configPath)
	} else {
		cfg, err = config.Load(g.env)
	}
	if err != nil {
		return nil, domain.Validation("config", err)
	}

	level := cfg.Logging.Level
	if g.logLevel != "" {
		level = g.logLevel
	}
	logEnv := g.env
	if g.jsonLog {
		logEnv = "prod"
	}
	logger, err := logpkg.NewLogger(logEnv, level)
	if err != nil {
		return nil, domain.Validation("logger", err)
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) close() { _ = a.logger.Sync() }

// clientOptions maps the loaded config onto client options.
func (a *app) clientOptions(reg prometheus.Registerer) ([]rhokp.Option, error) {
	ccfg, err := a.cfg.ToClientConfig()
	if err != nil {
		return nil, err
	}
	opts := []rhokp.Option{
		rhokp.WithConfig(ccfg),
		rhokp.WithLogger(a.logger),
	}
	if a.cfg.Local.Index != "" {
		opts = append(opts, rhokp.WithLocalIndex(a.cfg.Local.Index))
	}
	switch a.cfg.Cache.Driver {
	case config.CacheValkey, config.CacheRedis:
		opts = append(opts, rhokp.WithRedisCache(a.cfg.Cache.Addrs[0], a.cfg.Cache.Password))
	}
	if reg != nil {
		opts = append(opts, rhokp.WithPrometheus(reg))
	}
	return opts, nil
}

func (a *app) newClient(reg prometheus.Registerer) (*rhokp.Client, error) {
	opts, err := a.clientOptions(reg)
	if err != nil {
		return nil, err
	}
	return rhokp.New(opts...)
}

// exitCode maps the error kind to a process exit status.
func exitCode(err error) int {
	switch rhokp.KindOf(err) {
	case rhokp.KindValidation:
		return 2
	case rhokp.KindConnection, rhokp.KindTimeout:
		return 3
	case rhokp.KindResponse:
		return 4
	}
	var u usageError
	if errors.As(err, &u) {
		return 2
	}
	return 1
}

// usageError marks bad command-line input that did not reach the client.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rhokp %s (commit %s, built %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}
}
