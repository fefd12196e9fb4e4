package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sgerhart/roomlink/internal/action"
	"github.com/sgerhart/roomlink/internal/api"
	"github.com/sgerhart/roomlink/internal/chat"
	"github.com/sgerhart/roomlink/internal/config"
	"github.com/sgerhart/roomlink/internal/dispatch"
	"github.com/sgerhart/roomlink/internal/forward"
	"github.com/sgerhart/roomlink/internal/health"
	"github.com/sgerhart/roomlink/internal/logging"
	"github.com/sgerhart/roomlink/internal/metrics"
	"github.com/sgerhart/roomlink/internal/pending"
	"github.com/sgerhart/roomlink/internal/probe"
	"github.com/sgerhart/roomlink/internal/recency"
	"github.com/sgerhart/roomlink/internal/registry"
	"github.com/sgerhart/roomlink/internal/systemd"
	"github.com/sgerhart/roomlink/internal/validate"
	"github.com/sgerhart/roomlink/internal/zoom"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger("coordinator", cfg.LogLevel)
	logger.LogSystemEvent("service_started")

	co := cfg.Coordinator
	logger.LogSystemEvent("config_loaded",
		"http_addr", co.HTTPAddr,
		"local_room", co.LocalRoomName,
		"probe_timeout", co.ProbeTimeout.String(),
		"sweep_interval", co.SweepInterval.String(),
		"forward_transport", co.ForwardTransport,
		"recency_window", co.RecencyWindow.String(),
		"pending_ttl", co.PendingTTL.String(),
		"nats_url", cfg.NATSURL,
		"slack", cfg.Slack.Token != "",
		"zoom", cfg.Zoom.Enabled())

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(promRegistry)

	rooms := registry.New(logger, m)
	guard := recency.NewGuard(co.RecencyWindow, co.RecencyCapacity)
	rooms.OnRemove(guard.Forget)

	store := pending.NewStore(co.PendingTTL, co.PendingCapacity, logger, m)

	prober := probe.NewProber(rooms, probe.NewHTTPChecker(nil), probe.Options{
		ProbeTimeout: co.ProbeTimeout,
		SweepTimeout: co.SweepTimeout,
		Concurrency:  co.ProbeConcurrency,
	}, logger, m)

	messenger := newMessenger(cfg, logger)

	var meetings action.MeetingCreator
	if cfg.Zoom.Enabled() {
		meetings = zoom.NewClient(zoom.Credentials{
			AccountID:    cfg.Zoom.AccountID,
			ClientID:     cfg.Zoom.ClientID,
			ClientSecret: cfg.Zoom.ClientSecret,
		}, cfg.Zoom.UserIndex)
	}
	local := action.NewExecutor(co.LocalRoomName, action.BrowserOpener{}, meetings, messenger, logger)

	checker := health.NewComponentChecker(logger)
	checker.Register("registry", func() bool { return true })

	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL,
			nats.Name("roomlink-coordinator"),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.LogSystemEvent("nats_disconnected", "error", err)
			}))
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		logger.LogSystemEvent("nats_connected", "url", cfg.NATSURL)

		checker.Register("nats", nc.IsConnected)
	}

	var forwarder forward.Forwarder = forward.NewHTTPForwarder(nil, logger)
	if co.ForwardTransport == "nats" {
		forwarder = forward.NewNATSForwarder(nc, logger)
	}
	forwarder = forward.WithTimeout(forwarder, co.ForwardTimeout)

	dispatcher := dispatch.New(dispatch.Dependencies{
		Registry:  rooms,
		Prober:    prober,
		Guard:     guard,
		Pending:   store,
		Messenger: messenger,
		Local:     local,
		Forwarder: forwarder,
		Logger:    logger,
		Metrics:   m,
	})

	validator, err := validate.NewRegistrationValidator()
	if err != nil {
		logger.Error("Failed to load registration schema", "error", err)
		os.Exit(1)
	}

	if nc != nil {
		consumer := api.NewRegistrationConsumer(rooms, validator, logger)
		sub, err := consumer.Subscribe(nc)
		if err != nil {
			logger.Error("Failed to subscribe to announcements", "error", err)
			os.Exit(1)
		}
		defer sub.Unsubscribe()
	}

	server := api.NewServer(api.Dependencies{
		Registry:    rooms,
		Dispatcher:  dispatcher,
		Validator:   validator,
		Checker:     checker,
		Gatherer:    promRegistry,
		Logger:      logger,
		ChatTimeout: co.SweepTimeout + co.ForwardTimeout,
	})

	httpServer := &http.Server{
		Addr:              co.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go prober.Run(ctx, co.SweepInterval)
	go store.RunReaper(ctx, time.Minute)

	go func() {
		logger.LogSystemEvent("http_server_started", "addr", co.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	notifier := systemd.NewNotifier()
	defer notifier.Close()
	if err := notifier.NotifyReady(); err != nil {
		logger.Warn("Failed to notify systemd", "error", err)
	}
	go notifier.RunWatchdog(ctx, systemd.WatchdogInterval())

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("Received shutdown signal", "signal", sig.String())
	_ = notifier.NotifyStopping()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	logger.LogSystemEvent("service_stopped")
}

func newMessenger(cfg *config.Config, logger *logging.Logger) chat.Messenger {
	if cfg.Slack.Token == "" {
		logger.Warn("SLACK_TOKEN not set, chat messages will only be logged")
		return chat.NewLogMessenger(logger)
	}
	return chat.NewSlackMessenger(cfg.Slack.Token, logger)
}
