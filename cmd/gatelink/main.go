// Package main implements the gatelink command. It opens the airport realtime
// channels selected on the command line, relays their events to NATS when
// configured, and serves metrics and health until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ScGaSe/smartlogistics-sub001/bus"
	"github.com/ScGaSe/smartlogistics-sub001/channel"
	"github.com/ScGaSe/smartlogistics-sub001/config"
	"github.com/ScGaSe/smartlogistics-sub001/health"
	"github.com/ScGaSe/smartlogistics-sub001/message"
	"github.com/ScGaSe/smartlogistics-sub001/metric"
	"github.com/ScGaSe/smartlogistics-sub001/natsclient"
	"github.com/ScGaSe/smartlogistics-sub001/notification"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/buffer"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/retry"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/tlsutil"
	"github.com/ScGaSe/smartlogistics-sub001/registry"
	"github.com/ScGaSe/smartlogistics-sub001/relay"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "gatelink"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	if cliCfg.UserID == "" && cliCfg.ShareID == "" && !cliCfg.Traffic {
		return fmt.Errorf("nothing to do: pass --user, --share or --traffic")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if err := app.open(cliCfg); err != nil {
		_ = app.shutdown(cliCfg.ShutdownTimeout)
		return err
	}

	slog.Info("gatelink started", "mode", app.registry.Mode())
	<-ctx.Done()
	slog.Info("Received shutdown signal")

	if err := app.shutdown(cliCfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("gatelink shutdown complete")
	return nil
}

// initializeCLI parses flags and sets up the bootstrap logger
func initializeCLI() (*CLIConfig, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp(flag.CommandLine)
		return nil, true, nil
	}

	slog.SetDefault(setupLogger(cliCfg.LogLevel, cliCfg.LogFormat))
	slog.Info("Starting gatelink",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, false, nil
}

// initializeConfiguration loads the config layers and applies the flags
func initializeConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	applyFlags(cfg, cliCfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFlags lets explicit flags win over file and environment values
func applyFlags(cfg *config.Config, cliCfg *CLIConfig) {
	if cliCfg.isSet("simulate") {
		cfg.Simulation = cliCfg.Simulate
	}
	if cliCfg.isSet("metrics-port") {
		cfg.Metrics.Port = cliCfg.MetricsPort
		cfg.Metrics.Enabled = cliCfg.MetricsPort > 0
	}
	if cliCfg.isSet("log-level") {
		cfg.Log.Level = cliCfg.LogLevel
	}
	if cliCfg.isSet("log-format") {
		cfg.Log.Format = cliCfg.LogFormat
	}
}

// app holds everything started by run
type app struct {
	logger   *slog.Logger
	cfg      *config.Config
	metrics  *metric.MetricsRegistry
	server   *metric.Server
	sink     *notification.AsyncSink
	registry *registry.Registry
	nats     *natsclient.Client
	relay    *relay.Relay

	ctx     context.Context
	watches sync.WaitGroup
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		logger:  logger,
		cfg:     cfg,
		metrics: metric.NewMetricsRegistry(),
		ctx:     ctx,
	}

	sink, err := a.buildSink(ctx)
	if err != nil {
		return nil, err
	}
	a.sink = sink

	wsTLS, err := tlsutil.LoadClientConfig(cfg.Transport.TLS)
	if err != nil {
		_ = sink.Stop(time.Second)
		return nil, fmt.Errorf("load transport TLS: %w", err)
	}
	historyPolicy, err := buffer.ParseOverflowPolicy(cfg.Notifications.HistoryPolicy)
	if err != nil {
		_ = sink.Stop(time.Second)
		return nil, fmt.Errorf("notification history: %w", err)
	}

	a.registry = registry.New(registry.Options{
		Endpoint:             config.NewProvider(cfg.Endpoint),
		Simulation:           cfg.Simulation,
		FallbackConnectDelay: cfg.Fallback.ConnectDelay,
		FallbackInterval:     cfg.Fallback.Interval,
		MaxAttempts:          cfg.Reconnect.MaxAttempts,
		ReconnectDelay:       cfg.Reconnect.Delay,
		LocationStep:         cfg.Reconnect.LocationStep,
		Transport: []channel.WebSocketOption{
			channel.WithHandshakeTimeout(cfg.Transport.HandshakeTimeout),
			channel.WithKeepalive(cfg.Transport.PingInterval, cfg.Transport.PongWait),
			channel.WithWriteTimeout(cfg.Transport.WriteTimeout),
			channel.WithTLSConfig(wsTLS),
		},
		Sink:          sink,
		HistorySize:   cfg.Notifications.HistorySize,
		HistoryPolicy: historyPolicy,
		Logger:        logger,
		Metrics:       a.metrics,
	})

	if cfg.Metrics.Enabled {
		a.startMetricsServer()
	}

	if cfg.NATS.Enabled {
		if err := a.startRelay(ctx); err != nil {
			_ = a.shutdown(5 * time.Second)
			return nil, err
		}
	}
	return a, nil
}

// buildSink composes log and desktop delivery behind a worker pool
func (a *app) buildSink(ctx context.Context) (*notification.AsyncSink, error) {
	sinks := notification.MultiSink{
		notification.LogSink{Logger: a.logger.With("component", "notifications"), Level: slog.LevelInfo},
	}
	if a.cfg.Notifications.Desktop {
		sinks = append(sinks, notification.NewDesktopSink(a.cfg.Notifications.Icon))
	}

	sink, err := notification.NewAsyncSink(sinks,
		notification.WithWorkers(a.cfg.Notifications.AsyncWorkers, a.cfg.Notifications.QueueSize),
		notification.WithAsyncLogger(a.logger),
		notification.WithAsyncMetrics(a.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("create notification sink: %w", err)
	}
	if err := sink.Start(ctx); err != nil {
		return nil, fmt.Errorf("start notification sink: %w", err)
	}
	return sink, nil
}

func (a *app) startMetricsServer() {
	a.server = metric.NewServer(a.cfg.Metrics.Port, a.cfg.Metrics.Path, a.metrics,
		metric.WithHealthHandler(health.Handler(a.registry.Health)))

	go func() {
		if err := a.server.Start(); err != nil {
			a.logger.Error("metrics server stopped", "error", err)
		}
	}()
	a.logger.Info("metrics server listening", "address", a.server.Address())
}

// startRelay connects to NATS and starts the event relay
func (a *app) startRelay(ctx context.Context) error {
	natsTLS, err := tlsutil.LoadClientConfig(a.cfg.NATS.TLS)
	if err != nil {
		return fmt.Errorf("load NATS TLS: %w", err)
	}

	client, err := natsclient.NewClient(a.cfg.NATS.URL,
		natsclient.WithLogger(a.logger),
		natsclient.WithMetrics(a.metrics.CoreMetrics()),
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(a.cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(a.cfg.NATS.ReconnectWait),
		natsclient.WithToken(a.cfg.NATS.Token),
		natsclient.WithTLSConfig(natsTLS),
	)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}
	a.nats = client
	a.registry.Track(natsclient.HealthComponent, client.Health)

	slog.Info("Connecting to NATS", "url", a.cfg.NATS.URL)
	err = retry.Do(ctx, retry.Quick(), func() error {
		err := client.Connect(ctx)
		if errors.Is(err, natsclient.ErrCircuitOpen) || errors.Is(err, natsclient.ErrClosed) {
			return retry.NonRetryable(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}

	pub := relay.Publisher(relay.PublisherFunc(client.Publish))
	if a.cfg.NATS.Stream != "" {
		subjects := relay.StreamSubjects(a.cfg.NATS.SubjectPrefix)
		if _, err := client.EnsureStream(ctx, a.cfg.NATS.Stream, subjects...); err != nil {
			return fmt.Errorf("ensure stream %s: %w", a.cfg.NATS.Stream, err)
		}
		pub = relay.JetStream(client)
	}

	r, err := relay.New(pub,
		relay.WithPrefix(a.cfg.NATS.SubjectPrefix),
		relay.WithLogger(a.logger),
		relay.WithMetrics(a.metrics.CoreMetrics()),
	)
	if err != nil {
		return fmt.Errorf("create relay: %w", err)
	}
	if err := r.Start(ctx); err != nil {
		return fmt.Errorf("start relay: %w", err)
	}
	a.relay = r
	return nil
}

// open connects the channels selected on the command line
func (a *app) open(cliCfg *CLIConfig) error {
	if cliCfg.UserID != "" {
		c := a.registry.Notifications()
		if err := a.attach(c); err != nil {
			return err
		}
		a.watch(c.Supervisor().Kind().String(), c.SubscribeState(), c.Unsubscribe)
		if err := c.Connect(cliCfg.UserID); err != nil {
			return fmt.Errorf("open notifications: %w", err)
		}
	}

	if cliCfg.Traffic {
		c := a.registry.Traffic()
		if err := a.attach(c); err != nil {
			return err
		}
		a.watch(c.Supervisor().Kind().String(), c.SubscribeState(), c.Unsubscribe)
		a.watch(c.Supervisor().Kind().String(), c.Subscribe(), c.Unsubscribe)
		if err := c.Connect(); err != nil {
			return fmt.Errorf("open traffic: %w", err)
		}
	}

	if cliCfg.ShareID != "" {
		c := a.registry.LocationShare()
		if err := a.attach(c); err != nil {
			return err
		}
		a.watch(c.Supervisor().Kind().String(), c.SubscribeState(), c.Unsubscribe)
		a.watch(c.Supervisor().Kind().String(), c.Subscribe(), c.Unsubscribe)
		if err := c.Connect(cliCfg.ShareID); err != nil {
			return fmt.Errorf("open location share: %w", err)
		}
	}
	return nil
}

func (a *app) attach(src relay.Source) error {
	if a.relay == nil {
		return nil
	}
	if err := a.relay.Attach(src); err != nil {
		return fmt.Errorf("attach relay: %w", err)
	}
	return nil
}

// watch logs state changes and events of one channel until shutdown
func (a *app) watch(name string, sub bus.Subscription, unsubscribe func(bus.Subscription)) {
	logger := a.logger.With("component", "watch", "channel", name)

	a.watches.Add(1)
	go func() {
		defer a.watches.Done()
		defer unsubscribe(sub)

		for {
			select {
			case <-a.ctx.Done():
				return
			case v, ok := <-sub:
				if !ok {
					return
				}
				logEvent(logger, v)
			}
		}
	}()
}

func logEvent(logger *slog.Logger, v any) {
	switch ev := v.(type) {
	case channel.Snapshot:
		attrs := []any{"state", ev.State.String(), "attempts", ev.Attempts}
		if ev.LastError != "" {
			attrs = append(attrs, "error", ev.LastError)
		}
		if ev.Exhausted {
			logger.Warn("channel gave up reconnecting", attrs...)
			return
		}
		logger.Info("channel state", attrs...)
	case message.TrafficSnapshot:
		logger.Info("traffic update",
			"busiest", ev.Busiest(3),
			"roads", len(ev.Roads),
			"updated_at", ev.UpdatedAt)
	case message.Location:
		logger.Info("location update",
			"latitude", ev.Latitude,
			"longitude", ev.Longitude,
			"timestamp", ev.Timestamp)
	default:
		logger.Debug("event", "type", fmt.Sprintf("%T", v))
	}
}

// shutdown stops everything in reverse start order
func (a *app) shutdown(timeout time.Duration) error {
	var errs []error

	if a.relay != nil {
		a.relay.Stop()
	}
	if a.registry != nil {
		if err := a.registry.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.watches.Wait()

	if a.sink != nil {
		if err := a.sink.Stop(timeout); err != nil {
			errs = append(errs, err)
		}
	}
	if a.nats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := a.nats.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	if a.server != nil {
		if err := a.server.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
