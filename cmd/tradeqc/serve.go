package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"

	"tradeqc/internal/config"
	"tradeqc/internal/server"
)

func serveCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "tradeqc.yaml", "config file path")
	outDir := fs.String("outdir", "", "directory holding a completed run")
	addr := fs.String("addr", "", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *outDir != "" {
		cfg.Paths.OutDir = *outDir
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger := config.NewLogger(cfg.Logging)
	logger.InfoContext(ctx, "starting results server",
		slog.String("addr", cfg.Server.Addr),
		slog.String("outdir", cfg.Paths.OutDir))

	return server.New(cfg.Paths.OutDir, logger).ListenAndServe(ctx, cfg.Server.Addr)
}
