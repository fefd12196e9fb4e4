package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nats-io/nats.go"

	"github.com/sgerhart/roomlink/internal/action"
	"github.com/sgerhart/roomlink/internal/chat"
	"github.com/sgerhart/roomlink/internal/config"
	"github.com/sgerhart/roomlink/internal/logging"
	"github.com/sgerhart/roomlink/internal/model"
	"github.com/sgerhart/roomlink/internal/systemd"
	"github.com/sgerhart/roomlink/internal/validate"
	"github.com/sgerhart/roomlink/internal/worker"
	"github.com/sgerhart/roomlink/internal/zoom"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// The room name may also be given as arguments, e.g. `worker Room A`
	if len(os.Args) > 1 {
		cfg.Worker.Name = strings.Join(os.Args[1:], " ")
	}
	if err := cfg.ValidateWorker(); err != nil {
		fmt.Printf("Invalid worker configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger("worker", cfg.LogLevel)
	logger.LogSystemEvent("service_started")

	w := cfg.Worker
	address, err := worker.AdvertiseAddress(w.AdvertiseAddr, w.HTTPPort)
	if err != nil {
		logger.Error("Failed to determine advertise address", "error", err)
		os.Exit(1)
	}

	logger.LogSystemEvent("config_loaded",
		"room", w.Name,
		"room_id", model.RoomID(w.Name),
		"address", address,
		"coordinator_url", w.CoordinatorURL,
		"register_interval", w.RegisterInterval.String(),
		"nats_url", cfg.NATSURL,
		"zoom", cfg.Zoom.Enabled())

	var messenger chat.Messenger = chat.NewLogMessenger(logger)
	if cfg.Slack.Token != "" {
		messenger = chat.NewSlackMessenger(cfg.Slack.Token, logger)
	}

	var meetings action.MeetingCreator
	if cfg.Zoom.Enabled() {
		meetings = zoom.NewClient(zoom.Credentials{
			AccountID:    cfg.Zoom.AccountID,
			ClientID:     cfg.Zoom.ClientID,
			ClientSecret: cfg.Zoom.ClientSecret,
		}, cfg.Zoom.UserIndex)
	}
	executor := action.NewExecutor(w.Name, action.BrowserOpener{}, meetings, messenger, logger)

	validator, err := validate.NewCommandValidator()
	if err != nil {
		logger.Error("Failed to load command schema", "error", err)
		os.Exit(1)
	}

	server := worker.NewServer(executor, validator, w.HTTPPort, logger)

	var publisher worker.Publisher
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("roomlink-worker-"+model.RoomID(w.Name)))
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		logger.LogSystemEvent("nats_connected", "url", cfg.NATSURL)

		sub, err := worker.SubscribeCommands(nc, model.RoomID(w.Name), server, cfg.Coordinator.ForwardTimeout, logger)
		if err != nil {
			logger.Error("Failed to subscribe to commands", "error", err)
			os.Exit(1)
		}
		defer sub.Unsubscribe()

		publisher = nc
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	notifier := systemd.NewNotifier()
	defer notifier.Close()

	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", "signal", sig.String())
		_ = notifier.NotifyStopping()
		cancel()
	}()

	announcer := worker.NewAnnouncer(w.CoordinatorURL, w.Name, address, w.RegisterInterval, publisher, logger)
	go announcer.Run(ctx)

	if err := notifier.NotifyReady(); err != nil {
		logger.Warn("Failed to notify systemd", "error", err)
	}
	go notifier.RunWatchdog(ctx, systemd.WatchdogInterval())

	if err := server.Start(ctx); err != nil {
		logger.Error("Worker server failed", "error", err)
		os.Exit(1)
	}

	logger.LogSystemEvent("service_stopped")
}
