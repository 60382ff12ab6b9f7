package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/config"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/logger"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/metrics/prometheus"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/telemetry"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/sdk"
)

const (
	remoteConfigTimeout = 3 * time.Second
	shutdownTimeout     = 5 * time.Second
)

// app bundles the client with the observability it was started with.
type app struct {
	cfg             *config.Config
	client          *sdk.Client
	exporter        *prometheus.Exporter
	shutdownTracing func(context.Context) error
}

// loadConfig reads the configuration file and applies flag and environment overrides.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("failed to load dotenv file", "error", err)
	}
	cfg, err := config.Load(viper.GetString(flagConfig))
	if err != nil {
		return nil, err
	}

	if addr := viper.GetString(flagMetricsAddr); addr != "" {
		cfg.Metrics.Addr = addr
	}
	if endpoint := viper.GetString(flagOTLPEndpoint); endpoint != "" {
		cfg.Tracing.Endpoint = endpoint
	}
	if name := viper.GetString(flagProvider); name != "" {
		id, err := providers.ParseProviderID(name)
		if err != nil {
			return nil, err
		}
		cfg.DefaultProvider = string(id)
	}
	return cfg, nil
}

// configureLogging sends console logs to stderr only in verbose mode. Records
// are always kept in the client's log sink.
func configureLogging(cfg *config.Config) {
	if viper.GetBool(flagVerbose) {
		logger.SetOutput(os.Stderr)
		logger.SetVerbose(true)
		return
	}
	logger.SetOutput(io.Discard)
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
}

// setupApp builds a ready client. extra options are appended after the
// options derived from configuration.
func setupApp(ctx context.Context, extra ...sdk.Option) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	configureLogging(cfg)

	a := &app{cfg: cfg}
	if cfg.Metrics.Addr != "" {
		a.exporter = prometheus.NewExporter(cfg.Metrics.Addr)
		if err := a.exporter.Listen(); err != nil {
			return nil, fmt.Errorf("failed to start metrics exporter on %s: %w", cfg.Metrics.Addr, err)
		}
		logger.Info("serving metrics", "addr", a.exporter.Addr())
		go func() {
			if err := a.exporter.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics exporter stopped", "addr", a.exporter.Addr(), "error", err)
			}
		}()
	}
	if cfg.Tracing.Endpoint != "" {
		shutdown, err := telemetry.Setup(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to set up tracing: %w", err)
		}
		a.shutdownTracing = shutdown
	}

	remote := fetchRemote(ctx, cfg)
	opts := append([]sdk.Option{sdk.WithRemoteConfig(remote)}, extra...)
	client, err := sdk.New(cfg, opts...)
	if err != nil {
		a.close()
		return nil, err
	}
	a.client = client

	if model := viper.GetString(flagModel); model != "" {
		client.SetModel(model)
	}
	return a, nil
}

// fetchRemote merges key material served by the backend. An unreachable
// backend leaves the local configuration as is.
func fetchRemote(ctx context.Context, cfg *config.Config) *config.RemoteConfig {
	ctx, cancel := context.WithTimeout(ctx, remoteConfigTimeout)
	defer cancel()

	remote, err := config.FetchRemote(ctx, nil, cfg.Backend.URL)
	if err != nil {
		logger.Warn("backend configuration unavailable", "url", cfg.Backend.URL, "error", err)
		return nil
	}
	_, envProvider := os.LookupEnv(config.EnvDefaultProvider)
	cfg.MergeRemote(remote, envProvider || viper.GetString(flagProvider) != "")
	return remote
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.client != nil {
		if err := a.client.Close(); err != nil {
			logger.Warn("failed to close client", "error", err)
		}
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}
	if a.exporter != nil {
		if err := a.exporter.Shutdown(ctx); err != nil {
			logger.Warn("failed to stop metrics exporter", "error", err)
		}
	}
}
