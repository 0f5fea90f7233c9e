// ats-mcp exposes résumé scoring as MCP tools over stdio, or over
// streamable HTTP when --http is set.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ats-scorer-go/internal/app"
	"ats-scorer-go/internal/config"
	"ats-scorer-go/internal/logger"
	"ats-scorer-go/internal/mcptools"

	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/pflag"
)

const serviceName = "ats-mcp"

var version = "dev"

func main() {
	var configPath, httpAddr string
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.StringVar(&httpAddr, "http", "", "Serve streamable HTTP on this address instead of stdio")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("load config: %v", err)
	}
	// stdout carries the protocol.
	if err := logger.InitWithWriter(cfg.Logger, os.Stderr); err != nil {
		glog.Fatalf("init logger: %v", err)
	}
	log := logger.Component(serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build pipeline")
	}
	defer a.Close()

	server := mcp.NewServer(&mcp.Implementation{Name: serviceName, Version: version}, nil)
	mcptools.Register(server, a.Service, a.JDs)

	if httpAddr == "" {
		log.Info().Msg("serving mcp over stdio")
		if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("mcp server")
		}
		return
	}

	srv := &http.Server{
		Addr: httpAddr,
		Handler: mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return server
		}, nil),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info().Str("address", httpAddr).Msg("serving mcp over http")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("mcp server")
	}
}
