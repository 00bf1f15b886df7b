package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HerbHall/wolgate/internal/config"
	"github.com/HerbHall/wolgate/internal/event"
	"github.com/HerbHall/wolgate/internal/manifest"
	"github.com/HerbHall/wolgate/internal/registry"
	"github.com/HerbHall/wolgate/internal/server"
	"github.com/HerbHall/wolgate/internal/store"
	"github.com/HerbHall/wolgate/internal/version"
	"github.com/HerbHall/wolgate/internal/wakeonlan"
	"github.com/HerbHall/wolgate/pkg/plugin"
)

const shutdownTimeout = 10 * time.Second

func runServe(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to configuration file")
	manifestPath := fs.String("manifest", "", "path to an add-on manifest (JSON or YAML) supplying devices and checkPing")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load configuration: %v\n", err)
		return 1
	}
	v := cfg.Viper()

	logger, err := newLogger(v.GetString("log.level"))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	var man *manifest.Manifest
	if *manifestPath != "" {
		man, err = manifest.Load(*manifestPath)
		if err != nil {
			logger.Error("failed to load manifest", zap.Error(err))
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, v, man, logger); err != nil {
		logger.Error("wolgate stopped with error", zap.Error(err))
		return 1
	}
	return 0
}

// serve runs the gateway until ctx is cancelled or the HTTP server fails.
func serve(ctx context.Context, v *viper.Viper, man *manifest.Manifest, logger *zap.Logger) error {
	logger.Info("wolgate starting", zap.String("version", version.Short()))

	db, err := store.New(v.GetString("database.path"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	bus := event.NewBus(logger.Named("event"))

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	reg := registry.New(logger)
	if err := reg.Register(wakeonlan.New()); err != nil {
		return err
	}
	for _, p := range reg.All() {
		name := p.Info().Name
		if !v.GetBool("plugins." + name + ".enabled") {
			if err := reg.Disable(name, "disabled by configuration"); err != nil {
				return err
			}
		}
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("validate plugins: %w", err)
	}

	depsFor := func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config:  pluginConfig(v, name, man),
			Logger:  logger.Named(name),
			Store:   db,
			Bus:     bus,
			Metrics: metrics,
		}
	}
	if err := reg.InitAll(ctx, depsFor); err != nil {
		return err
	}
	unsubscribe := reg.Subscribe(bus)
	defer unsubscribe()
	if err := reg.StartAll(ctx); err != nil {
		stopPlugins(reg)
		return err
	}

	addr := v.GetString("server.host") + ":" + v.GetString("server.port")
	srv := server.New(addr, reg, metrics, logger)
	srv.SetMaxConnections(v.GetInt("server.max_connections"))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	logger.Info("wolgate ready", zap.String("addr", addr))

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	reg.StopAll(shutdownCtx)

	logger.Info("wolgate stopped")
	return serveErr
}

func stopPlugins(reg *registry.Registry) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	reg.StopAll(ctx)
}

// pluginConfig returns the plugins.<name> subtree. The manifest, when given,
// overrides the device settings of the wakeonlan module.
func pluginConfig(v *viper.Viper, name string, man *manifest.Manifest) plugin.Config {
	sub := v.Sub("plugins." + name)
	if sub == nil {
		sub = viper.New()
	}
	if man != nil && name == "wakeonlan" {
		man.Apply(sub)
	}
	return config.New(sub)
}
