package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/tailored-agentic-units/drawbridge/bridge"
	"github.com/tailored-agentic-units/drawbridge/companion/connectrpc"
	"github.com/tailored-agentic-units/drawbridge/observability"
	"github.com/tailored-agentic-units/drawbridge/shell/memshell"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var (
		configFile   = flag.String("config", "", "Path to drawbridge config JSON file")
		companionURL = flag.String("companion", "", "Companion service base URL (overrides config)")
		catalogFile  = flag.String("catalog", "", "Path to shell catalog JSON file")
		location     = flag.String("location", "", "Initial shell location")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	cfg := bridge.DefaultConfig()
	if *configFile != "" {
		loaded, err := bridge.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}

	if *companionURL != "" {
		cfg.CompanionURL = *companionURL
	}
	if cfg.CompanionURL == "" {
		fmt.Fprintln(os.Stderr, "Usage: drawbridge -companion <url> [-config <file>] [-catalog <file>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	level, minEvent := slog.LevelInfo, observability.LevelInfo
	if *verbose {
		level, minEvent = slog.LevelDebug, observability.LevelVerbose
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	observability.RegisterObserver("slog", observability.NewSlogObserver(logger))
	named, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		log.Fatalf("Failed to create observer: %v", err)
	}
	observer := observability.MinLevel(named, minEvent)

	shellOpts := []memshell.Option{memshell.WithLocation(*location)}
	if *catalogFile != "" {
		c, err := memshell.LoadCatalog(*catalogFile)
		if err != nil {
			log.Fatalf("Failed to load catalog: %v", err)
		}
		shellOpts = append(shellOpts, memshell.WithCatalog(c))
	}
	sh := memshell.New(shellOpts...)

	client := connectrpc.NewClient(http.DefaultClient, cfg.CompanionURL, cfg.Companion,
		connectrpc.WithObserver(observer),
	)
	defer client.Close()

	b, err := bridge.New(&cfg, client, sh, bridge.WithObserver(observer))
	if err != nil {
		log.Fatalf("Failed to create bridge: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := b.Start(ctx); err != nil {
		log.Fatalf("Failed to start bridge: %v", err)
	}
	logger.Info("drawbridge running", "companion", cfg.CompanionURL, "location", sh.Current())

	<-ctx.Done()

	if err := b.Close(shutdownTimeout); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
