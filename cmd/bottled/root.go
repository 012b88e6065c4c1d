package main

import (
	"fmt"
	"io"

	"github.com/kylerisse/bottled/pkg/dispatch"
	"github.com/kylerisse/bottled/pkg/service"
	"github.com/kylerisse/bottled/pkg/services/echo"
	"github.com/kylerisse/bottled/pkg/services/hostname"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app carries the state shared by all subcommands. It is populated by the
// root command's PersistentPreRunE.
type app struct {
	cfg         config
	showMetrics bool

	logger     *logrus.Logger
	registry   *service.Registry
	dispatcher *dispatch.Dispatcher
	metrics    *prometheus.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "bottled",
		Short:         "Invoke service objects from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfg.LogLevel, "log-level", "", "log level (overrides BOTTLED_LOG_LEVEL)")
	flags.StringVar(&a.cfg.LogFormat, "log-format", "", "log format: text|json (overrides BOTTLED_LOG_FORMAT)")
	flags.Float64Var(&a.cfg.Rate, "rate", 0, "maximum invocations per second, 0 for unlimited (overrides BOTTLED_RATE)")
	flags.IntVar(&a.cfg.Burst, "burst", 0, "limiter burst size (overrides BOTTLED_BURST)")
	flags.BoolVar(&a.showMetrics, "metrics", false, "print invocation metrics to stderr when done")

	cmd.AddCommand(
		listCmd(a),
		describeCmd(a),
		callCmd(a),
		runCmd(a),
	)
	return cmd
}

// setup merges env config with any flags set on the command line and
// builds the logger, registry and dispatcher.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.cfg.LogLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.cfg.LogFormat
	}
	if flags.Changed("rate") {
		cfg.Rate = a.cfg.Rate
	}
	if flags.Changed("burst") {
		cfg.Burst = a.cfg.Burst
	}
	a.cfg = cfg

	a.logger, err = cfg.newLogger(cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	a.registry, err = defaultRegistry()
	if err != nil {
		return err
	}

	a.metrics = prometheus.NewRegistry()
	opts := []dispatch.Option{
		dispatch.WithLogger(a.logger),
		dispatch.WithMetrics(a.metrics),
	}
	limiter, err := cfg.newLimiter()
	if err != nil {
		return err
	}
	if limiter != nil {
		opts = append(opts, dispatch.WithLimiter(limiter))
	}

	a.dispatcher, err = dispatch.New(a.registry, opts...)
	if err != nil {
		return err
	}

	a.logger.WithFields(logrus.Fields{
		"services": a.registry.Names(),
		"rate":     cfg.Rate,
	}).Debug("Dispatcher ready")
	return nil
}

func defaultRegistry() (*service.Registry, error) {
	reg := service.NewRegistry()
	for _, register := range []func(*service.Registry) error{
		echo.Register,
		hostname.Register,
	} {
		if err := register(reg); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// dumpMetrics writes the collected invocation metrics in the Prometheus
// text format when --metrics is set.
func (a *app) dumpMetrics(w io.Writer) {
	if !a.showMetrics || a.metrics == nil {
		return
	}
	families, err := a.metrics.Gather()
	if err != nil {
		a.logger.WithError(err).Warn("Could not gather metrics")
		return
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			a.logger.WithError(err).Warn("Could not write metrics")
			return
		}
	}
}
