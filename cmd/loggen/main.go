// Command loggen runs the SIEM sample-data generator: it fabricates
// system-auth, package-install, and login events for the log sink, and can
// replay signed synthetic Git pushes against the webhook receiver.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"sechooks/internal"
	"sechooks/pkg/generator"
)

func main() {
	logger := internal.NewLogger("loggen")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	config, err := internal.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	pusher := internal.NewLokiEmitter(internal.LokiConfig{
		URL:           config.Generator.LokiURL,
		PushTimeoutMS: config.Generator.PushTimeoutMS,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
		<-shutdown
		logger.Printf("shutting down")
		cancel()
	}()

	gen := generator.New(config.Generator, config.Webhook.Secret, pusher, logger)
	gen.Run(ctx)
}
