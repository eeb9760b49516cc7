package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/materials-ledger/internal/bootstrap"
	"github.com/angelmondragon/materials-ledger/pkg/config"
	"github.com/angelmondragon/materials-ledger/pkg/db"
	"github.com/angelmondragon/materials-ledger/pkg/logger"
	"github.com/angelmondragon/materials-ledger/pkg/migrate"
	"github.com/angelmondragon/materials-ledger/pkg/outbox"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "importer", Output: os.Stderr})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	var opts Options
	flag.StringVar(&opts.Command, "cmd", "direct", "command: direct|staged|template|events")
	flag.StringVar(&opts.File, "file", "", "input CSV or XLSX file (direct, staged)")
	flag.StringVar(&opts.Delimiter, "delimiter", "", "CSV delimiter override")
	flag.StringVar(&opts.MappingMode, "mapping-mode", "auto", "column mapping mode: auto|explicit (direct)")
	flag.StringVar(&opts.Mapping, "mapping", "", `explicit mapping as JSON, e.g. {"partNumber":"Kod"} (direct)`)
	flag.StringVar(&opts.Actor, "actor", "", "actor id recorded on the run")
	flag.BoolVar(&opts.Confirm, "confirm", false, "confirm the staged session right after preview")
	flag.StringVar(&opts.Kind, "kind", "direct", "template kind: direct|staged (template)")
	flag.StringVar(&opts.Format, "format", "csv", "template format: csv|xlsx (template)")
	flag.StringVar(&opts.Output, "out", "", "template output path, stdout when empty")
	flag.IntVar(&opts.Limit, "limit", 50, "max events to list (events)")
	flag.BoolVar(&opts.Mark, "mark", false, "mark listed events as published (events)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "importer",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Output:      os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": opts.Command})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	services, err := bootstrap.Build(bootstrap.Params{Config: cfg, Logger: logg, DB: dbClient})
	if err != nil {
		logg.Error(ctx, "failed to build services", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Imports:  services.Imports,
		Staged:   services.Staged,
		Outbox:   services.Outbox,
		Decoders: outbox.DefaultDecoders(),
		Logger:   logg,
		Out:      os.Stdout,
	})
	if err != nil {
		logg.Error(ctx, "failed to create importer", err)
		os.Exit(1)
	}

	if err := service.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "importer %s failed: %v\n", opts.Command, err)
		os.Exit(1)
	}
}
