package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ats-scorer-go/internal/app"
	"ats-scorer-go/internal/config"
	"ats-scorer-go/internal/logger"
	"ats-scorer-go/internal/outbox"
	"ats-scorer-go/internal/storage"
	"ats-scorer-go/internal/tracing"

	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/spf13/pflag"
)

const serviceName = "ats-worker"

func main() {
	var (
		configPath string
		noRelay    bool
	)
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.BoolVar(&noRelay, "no-relay", false, "Do not run the outbox relay in this process")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("load config: %v", err)
	}
	if err := logger.Init(cfg.Logger); err != nil {
		glog.Fatalf("init logger: %v", err)
	}
	log := logger.Component(serviceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, serviceName, cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	}

	st, err := storage.NewStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init storage")
	}
	defer st.Close()
	if st.RabbitMQ == nil || st.MySQL == nil {
		log.Fatal().Msg("worker needs rabbitmq and mysql")
	}

	a, err := app.Build(ctx, cfg, st, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build pipeline")
	}
	defer a.Close()

	if err := st.RabbitMQ.EnsureAnalysisTopology(); err != nil {
		log.Fatal().Err(err).Msg("declare analysis topology")
	}

	var relay *outbox.MessageRelay
	if !noRelay {
		relay = outbox.NewMessageRelay(st.MySQL.DB(), st.RabbitMQ, logger.Component("outbox"),
			outbox.WithPollingInterval(config.GetDuration(cfg.Outbox.PollInterval, 0)),
			outbox.WithBatchSize(cfg.Outbox.BatchSize),
			outbox.WithMaxRetries(cfg.Outbox.MaxRetries),
		)
		relay.Start()
		log.Info().Msg("outbox relay started")
	}

	done, err := st.RabbitMQ.StartConsumer(ctx, cfg.RabbitMQ.AnalysisQueue,
		cfg.RabbitMQ.PrefetchCount, cfg.RabbitMQ.Workers, a.Service.HandleAnalysisMessage)
	if err != nil {
		log.Fatal().Err(err).Msg("start analysis consumer")
	}
	log.Info().
		Str("queue", cfg.RabbitMQ.AnalysisQueue).
		Int("workers", cfg.RabbitMQ.Workers).
		Msg("analysis consumer started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Info().Msg("shutting down")
	case <-done:
		log.Warn().Msg("consumer stopped")
	}

	cancel()
	if relay != nil {
		relay.Stop()
	}
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Warn().Msg("workers did not finish in time")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
	log.Info().Msg("stopped")
}
