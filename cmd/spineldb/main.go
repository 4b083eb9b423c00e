// Command spineldb runs the SpinelDB server daemon.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/server"
)

func main() {
	var (
		configPath  = pflag.String("config", "", "path to the JWCC config file")
		addr        = pflag.String("addr", "", "listen address (overrides config)")
		metricsAddr = pflag.String("metrics-addr", "", "prometheus endpoint address (overrides config)")
		logLevel    = pflag.String("log-level", "", "trace|debug|info|warn|error (overrides config)")
		pretty      = pflag.Bool("pretty-log", false, "human-readable console log output")
	)
	pflag.Parse()

	cfg := cmn.Default()
	if *configPath != "" {
		loaded, err := cmn.LoadConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("cannot load config")
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if *pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Str("level", cfg.LogLevel).Msg("unknown log level")
	}
	zerolog.SetGlobalLevel(level)

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot initialize server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("server terminated")
	}
	log.Info().Msg("shutdown complete")
}
