package main

import (
	"log/slog"

	"github.com/jackzampolin/tilebook/internal/config"
	"github.com/jackzampolin/tilebook/internal/mosaic"
	"github.com/jackzampolin/tilebook/internal/resolver"
)

// stages wires the resolver client to the mosaic stages for one run.
type stages struct {
	client    *resolver.Client
	prober    *mosaic.Prober
	assembler *mosaic.Assembler
	lengths   *mosaic.LengthFinder
}

func newStages(cfg *config.Config, logger *slog.Logger) (*stages, error) {
	client, err := resolver.NewClient(resolver.Config{
		URLTemplate: cfg.Resolver.URLTemplate,
		Timeout:     cfg.Resolver.Timeout(),
		RateLimit:   cfg.Resolver.RateLimit,
		UserAgent:   cfg.Resolver.UserAgent,
		HTTP2:       cfg.Resolver.HTTP2,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	fetcher := mosaic.NewFetcher(mosaic.FetcherConfig{
		Source:     client,
		RetryDelay: cfg.Download.RetryDelay(),
		Logger:     logger,
	})

	return &stages{
		client: client,
		prober: mosaic.NewProber(mosaic.ProberConfig{
			Fetcher:     fetcher,
			Retries:     cfg.Download.Retries,
			MaxGridSide: cfg.Download.MaxGrid,
			Logger:      logger,
		}),
		assembler: mosaic.NewAssembler(mosaic.AssemblerConfig{
			Fetcher:     fetcher,
			Concurrency: cfg.Download.Concurrency,
			Logger:      logger,
		}),
		lengths: mosaic.NewLengthFinder(mosaic.LengthFinderConfig{
			Fetcher:   fetcher,
			Retries:   cfg.Download.Retries,
			MaxLength: cfg.Download.MaxLength,
			Logger:    logger,
		}),
	}, nil
}
