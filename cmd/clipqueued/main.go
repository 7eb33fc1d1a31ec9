package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/clipqueue/internal/admin"
	"github.com/danmuck/clipqueue/internal/logging"
	"github.com/danmuck/clipqueue/internal/observability"
	"github.com/danmuck/clipqueue/internal/queue"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	cfg := defaultDaemonConfig()
	if *configPath != "" {
		loaded, err := loadDaemonConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "clipqueued: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	observability.InitLogger(cfg.NodeID)
	if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "clipqueued: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg daemonConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := admin.NewEventHub()
	q := queue.New(cfg.Queue, hub)
	srv := admin.New(cfg.NodeID, cfg.AdminAddr, cfg.MemberName, q, hub, cfg.CorsOrigins)

	log.Info().
		Str("node", cfg.NodeID).
		Str("admin_addr", cfg.AdminAddr).
		Str("self_id", q.SelfID()).
		Msg("clipqueued starting")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		q.Leave()
		return nil
	case err := <-serveErr:
		q.Leave()
		return err
	}
}
