package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ats-scorer-go/internal/api/handler"
	"ats-scorer-go/internal/api/router"
	"ats-scorer-go/internal/app"
	"ats-scorer-go/internal/config"
	"ats-scorer-go/internal/logger"
	"ats-scorer-go/internal/storage"
	"ats-scorer-go/internal/tracing"

	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/spf13/pflag"
)

const serviceName = "ats-server"

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
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

	// The synchronous endpoints work without any backend.
	st, err := storage.NewStorage(ctx, cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("no storage backends, running stateless")
		st = nil
	} else {
		defer st.Close()
	}

	a, err := app.Build(ctx, cfg, st, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build pipeline")
	}
	defer a.Close()

	opts := []handler.HandlerOption{
		handler.WithJDLister(a.JDs),
		handler.WithMaxUploadBytes(int64(cfg.Server.MaxUploadMB) << 20),
		handler.WithHandlerLogger(logger.Component("handler")),
	}
	if st != nil {
		opts = append(opts, handler.WithHealthChecker(st))
	}
	h := router.NewServer(cfg.Server, handler.NewATSHandler(a.Service, opts...), logger.Component("http"))

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("http server listening")
		if err := h.Run(); err != nil {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
	log.Info().Msg("stopped")
}
