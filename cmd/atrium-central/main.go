// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Atrium-central is the node daemon: it connects the broker pools,
// opens the capability catalog, registers the built-in rooms and the
// station on the router, and runs until a signal arrives.
//
// On startup:
//  1. Loads the YAML configuration (--config or ATRIUM_CONFIG).
//  2. Connects the Central and Local Redis backends.
//  3. Opens the catalog database, seeding the built-in capabilities.
//  4. Registers the station, the echo room, and the prompter.
//  5. Starts the router: rooms up, directory collected, integrity
//     checked, startup announced.
//  6. Waits for SIGINT/SIGTERM, then shuts down in reverse.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/atrium-foundation/atrium/broker"
	"github.com/atrium-foundation/atrium/catalog"
	"github.com/atrium-foundation/atrium/lib/config"
	"github.com/atrium-foundation/atrium/lib/ref"
	"github.com/atrium-foundation/atrium/room"
	"github.com/atrium-foundation/atrium/room/echoroom"
	"github.com/atrium-foundation/atrium/room/prompter"
	"github.com/atrium-foundation/atrium/router"
	"github.com/atrium-foundation/atrium/station"
)

// seedCapabilities is the catalog seed for a fresh database: every
// capability the built-in rooms claim.
var seedCapabilities = []catalog.Capability{
	{ID: ref.MustParseCapabilityID("echo"), Description: "repeat the message back"},
	{ID: ref.MustParseCapabilityID("spell_word"), Description: "spell a word out letter by letter"},
	{ID: ref.MustParseCapabilityID("quiet"), Description: "toggle prompts for this session"},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		debug      bool
	)
	flags := pflag.NewFlagSet("atrium-central", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "configuration file (default: $ATRIUM_CONFIG)")
	flags.BoolVar(&debug, "debug", false, "debug logging and frame diagnostics")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}
	timeouts, err := cfg.Timeouts.Parse()
	if err != nil {
		return err
	}
	self, err := ref.ParseParticipantID(cfg.Station.Participant)
	if err != nil {
		return fmt.Errorf("station.participant: %w", err)
	}

	central, err := broker.NewRedisBackend(ctx, broker.RedisConfig{
		Address:  cfg.Central.Address,
		Password: cfg.Central.Password,
		Database: cfg.Central.Database,
	})
	if err != nil {
		return err
	}
	local, err := broker.NewRedisBackend(ctx, broker.RedisConfig{
		Address:  cfg.Local.Address,
		Password: cfg.Local.Password,
		Database: cfg.Local.Database,
	})
	if err != nil {
		central.Close()
		return err
	}
	hub := broker.NewHub(central, local, logger)
	defer hub.Close()

	cat, err := catalog.Open(catalog.Config{
		Path:     cfg.Catalog.Path,
		PoolSize: cfg.Catalog.PoolSize,
		Logger:   logger,
		Seed:     seedCapabilities,
	})
	if err != nil {
		return err
	}
	defer cat.Close()

	rtr, err := router.New(router.Config{
		Bus:      room.NewBus(hub.Central(), logger),
		Central:  hub.Central(),
		Catalog:  cat,
		Self:     self,
		Timeouts: timeouts,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	if _, err := station.New(station.Config{
		Hub:     hub,
		Router:  rtr,
		Catalog: cat,
		Self:    self,
		Debug:   cfg.Station.Debug,
		Logger:  logger,
	}); err != nil {
		return err
	}
	if _, err := rtr.Register(echoroom.New(logger)); err != nil {
		return err
	}
	nagger, err := prompter.New(prompter.Config{
		Central: hub.Central(),
		Self:    self,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	if _, err := rtr.Register(nagger); err != nil {
		return err
	}

	if err := rtr.Start(ctx); err != nil {
		return err
	}
	for _, violation := range rtr.IntegrityReport() {
		logger.Warn("running degraded", "violation", violation.Error())
	}

	<-ctx.Done()
	logger.Info("signal received, shutting down")

	// The signal context is spent; shutdown gets its own.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	return rtr.Shutdown(shutdownCtx)
}
