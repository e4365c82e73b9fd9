package main

import (
	"context"
	"expvar"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"sechooks/internal"
	"sechooks/webhook"
)

func main() {
	logger := internal.NewLogger("receiver")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	config, err := internal.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	emitters := internal.FanoutEmitter{internal.NewLokiEmitter(config.Loki, logger)}
	if config.Forwarder.Enabled {
		forwarder, err := internal.NewForwarder(config.Forwarder)
		if err != nil {
			logger.Fatalf("forwarder: %v", err)
		}
		defer forwarder.Close()
		emitters = append(emitters, internal.NewForwarderEmitter(forwarder, logger))
		logger.Printf("verdict forwarder enabled on topic %s", config.Forwarder.Topic)
	}

	handler := webhook.NewHandler(config.Webhook, emitters, logger, config.Server.MaxBodyBytes)

	mux := http.NewServeMux()
	mux.Handle(config.Webhook.Path, handler)
	mux.Handle("/health", webhook.HealthHandler(config.Loki.Service))
	if config.Server.MetricsEnabled {
		mux.Handle(config.Server.MetricsPath, expvar.Handler())
	}
	mux.Handle("/", webhook.NotFoundHandler(emitters))

	root := internal.NewRateLimitHandler(mux,
		config.Server.RateLimitRPS, config.Server.RateLimitBurst, 10*time.Minute)

	addr := ":" + strconv.Itoa(config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       time.Duration(config.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(config.Server.WriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       time.Duration(config.Server.IdleTimeoutMS) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(config.Server.ReadHeaderMS) * time.Millisecond,
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	emitters.Emit(startCtx, internal.NewSecurityRecord(
		"webhook_service_start", internal.SeverityInfo,
		"Webhook security receiver service started",
		map[string]any{
			"signature_verification": !config.Webhook.SkipVerification,
			"loki_url":               config.Loki.URL,
		},
	), nil)
	cancelStart()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
}
