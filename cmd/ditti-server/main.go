// Package main implements the ditti web server, which renders participant
// activity charts as SVG.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/config"
	"github.com/codeGROOVE-dev/ditti/pkg/httpcache"
	"github.com/codeGROOVE-dev/ditti/pkg/portal"
	"github.com/maypok86/otter"
)

var (
	port       = flag.String("port", "8080", "Port for web server")
	configPath = flag.String("config", "", "YAML config file")
	apiURL     = flag.String("api-url", "", "Portal API base URL (or set DITTI_API_URL)")
	token      = flag.String("token", "", "Portal bearer token (or set DITTI_TOKEN)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("ditti Server v1.0.0")
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *apiURL == "" {
		*apiURL = os.Getenv("DITTI_API_URL")
	}
	if *apiURL != "" {
		cfg.API.BaseURL = *apiURL
	}
	if *token == "" {
		*token = os.Getenv("DITTI_TOKEN")
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", "error", err)
		os.Exit(1)
	}

	logger.Info("Server configuration",
		"port", *port,
		"verbose", *verbose,
		"api_url", cfg.API.BaseURL,
		"api_app", cfg.API.App,
		"api_timeout", cfg.API.Timeout,
		"timezone", loc.String(),
		"has_token", *token != "")

	client, err := portal.New(cfg.API.BaseURL, append(cfg.PortalOptions(),
		portal.WithToken(*token),
		portal.WithLogger(logger),
		portal.WithCache(httpcache.NewMemoryCache(5*time.Minute, logger)),
	)...)
	if err != nil {
		logger.Error("Failed to create portal client", "error", err)
		os.Exit(1)
	}

	renders, err := otter.MustBuilder[string, []byte](10_000).
		WithTTL(5 * time.Minute).
		Build()
	if err != nil {
		logger.Error("Failed to build cache", "error", err)
		os.Exit(1)
	}

	s := &server{
		source:   client,
		renders:  renders,
		limiter:  newRateLimiter(60),
		logger:   logger,
		cfg:      &cfg,
		location: loc,
		now:      time.Now,
	}

	srv := &http.Server{
		Addr:              ":" + *port,
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", *port)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", "error", err)
	}
	logger.Info("Server stopped")
}
