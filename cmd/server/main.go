package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"telemetry-bridge/internal/broadcast"
	"telemetry-bridge/internal/chat"
	"telemetry-bridge/internal/database"
	"telemetry-bridge/internal/history"
	"telemetry-bridge/internal/logging"
	"telemetry-bridge/internal/metrics"
	"telemetry-bridge/internal/mqtt"
	"telemetry-bridge/internal/server"
	"telemetry-bridge/internal/services"
	"telemetry-bridge/internal/snapshot"
	"telemetry-bridge/pkg/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Telemetry bridge failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.Init(cfg.LogLevel, cfg.LogFormat)
	log.Info("Starting telemetry bridge", "history", cfg.HistoryDriver, "record_readings", cfg.RecordReadings)

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	clock := clockwork.NewRealClock()

	// === History store ===
	store, closeStore, err := openHistory(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	guarded := history.NewGuarded(cfg.HistoryDriver, store, history.DefaultBreakerConfig(), log)

	// === Ingest path: subscriber -> bridge -> snapshot, hub, recorder ===
	cache := snapshot.NewForSensors(clock)
	hub := broadcast.NewHub(broadcast.Config{ViewerBuffer: cfg.ViewerBuffer}, m, log)
	defer hub.Close()

	var wg sync.WaitGroup

	// A nil records channel turns reading logging off
	var records chan<- history.Record
	if cfg.RecordReadings {
		recorder := services.NewRecorderService(guarded, clock, services.DefaultRecorderServiceConfig(), log)
		records = recorder.Records
		wg.Add(1)
		go func() {
			defer wg.Done()
			recorder.Start(ctx)
		}()
	}

	bridge := services.NewBridgeService(cache, hub, records, m,
		services.BridgeServiceConfig{EventChannelSize: cfg.IngestBuffer}, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		bridge.Start(ctx)
	}()

	// === MQTT ===
	log.Info("Connecting to MQTT broker", "broker", cfg.MQTTBroker)
	mqttClient, err := mqtt.Dial(ctx, mqtt.ClientConfig{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
	}, log.With("component", "mqtt"))
	if err != nil {
		return fmt.Errorf("connect mqtt: %w", err)
	}
	defer mqttClient.Close()

	subscriber := mqtt.NewSubscriber(
		mqttClient,
		mqtt.SubscriberConfig{
			Topics:      cfg.SensorTopics(),
			QoS:         byte(cfg.MQTTQoS),
			SendTimeout: cfg.IngestTimeout,
		},
		bridge.Events,
		clock,
		m,
		log.With("component", "subscriber"),
	)
	if err := subscriber.SubscribeAll(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	publisher := mqtt.NewPublisher(mqttClient, mqtt.PublisherConfig{
		ControlTopic: cfg.MQTTTopicControl,
		QoS:          byte(cfg.MQTTQoS),
	}, log.With("component", "publisher"))

	// === Query and command side ===
	reports := services.NewReportService(cache, guarded, clock, m, services.ReportServiceConfig{
		DefaultRows: cfg.ReportDefaultRows,
		MaxRows:     cfg.ReportMaxRows,
	}, log)

	var audit history.Writer
	if cfg.HistoryDriver != config.HistoryNone {
		audit = guarded
	}
	dispatch := services.NewDispatchService(publisher, audit, clock, m, cfg.PublishTimeout, log)
	responder := chat.NewResponder(reports, dispatch, log)

	srv := server.New(server.Options{
		Addr:         cfg.ListenAddr(),
		CommandRate:  cfg.CommandRate,
		CommandBurst: cfg.CommandBurst,
	}, server.Deps{
		Hub:          hub,
		Reports:      reports,
		Dispatcher:   dispatch,
		Responder:    responder,
		Metrics:      metrics.Handler(reg),
		BusConnected: mqttClient.IsConnected,
		Clock:        clock,
	}, log)

	log.Info("Telemetry bridge is running",
		"http", cfg.ListenAddr(),
		"control_topic", publisher.Topic(),
		"sensor_topics", len(cfg.SensorTopics()),
	)

	if err := srv.Run(ctx); err != nil {
		stop()
		wg.Wait()
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("Shutdown signal received, stopping services")
	wg.Wait()
	log.Info("Shutdown complete", "mqtt_reconnects", mqttClient.Reconnects())
	return nil
}

// openHistory connects the configured history backend. The returned close
// func is always safe to call.
func openHistory(ctx context.Context, cfg *config.Config, log *slog.Logger) (history.ReadWriter, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch cfg.HistoryDriver {
	case config.HistoryClickHouse:
		db, err := database.NewClickHouseDB(connectCtx, database.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDB,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePass,
		}, log.With("component", "clickhouse"))
		if err != nil {
			return nil, nil, fmt.Errorf("open clickhouse: %w", err)
		}
		return db, func() {
			if err := db.Close(); err != nil {
				log.Warn("Failed to close ClickHouse", "error", err)
			}
		}, nil
	case config.HistoryPostgres:
		db, err := database.NewPostgresDB(connectCtx, cfg.DatabaseURL, log.With("component", "postgres"))
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, db.Close, nil
	default:
		log.Info("History disabled, reports will be unavailable")
		return history.Disabled{}, func() {}, nil
	}
}
