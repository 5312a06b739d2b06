package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/tilebook/internal/book"
	"github.com/jackzampolin/tilebook/internal/config"
	"github.com/jackzampolin/tilebook/internal/document"
	"github.com/jackzampolin/tilebook/internal/metrics"
)

var (
	downloadLength      int
	downloadFormat      string
	downloadPageSize    string
	downloadOutDir      string
	downloadMetricsAddr string
	downloadKeepStaging bool
)

var downloadCmd = &cobra.Command{
	Use:   "download <document-id>",
	Short: "Download a document and build it into a PDF or image directory",
	Long: `Download every page of a document from the tile resolver.

The tile grid is probed once on the representative page. When --length is
not given the page count is found by probing the resolver. Each page gets
its own retry budget; the first page that cannot be fetched stops the
download. No PDF is written and its staged pages are removed; with
--format images the pages written before the failure are kept.

Editing the config file while a download runs re-applies resolver.rate_limit.

Examples:
  tilebook download 2013061108004              # length found automatically
  tilebook download 2013061108004 --length 212
  tilebook download 2013061108004 --format images --out ./pages
  tilebook download 2013061108004 --metrics-addr :9090`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		documentID := args[0]

		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		cfg := *e.config.Get()
		applyDownloadFlags(cmd, &cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger := e.logger

		s, err := newStages(&cfg, logger)
		if err != nil {
			return err
		}

		if e.config.ConfigFile() != "" {
			e.config.OnChange(func(c *config.Config) {
				if c.Resolver.RateLimit != s.client.RateLimit() {
					logger.Info("rate limit changed", "from", s.client.RateLimit(), "to", c.Resolver.RateLimit)
					s.client.SetRateLimit(c.Resolver.RateLimit)
				}
			})
			e.config.WatchConfig(logger)
		}

		if downloadMetricsAddr != "" {
			go func() {
				if err := metrics.Serve(ctx, downloadMetricsAddr, logger); err != nil {
					logger.Error("metrics server failed", "error", err)
				}
			}()
		}

		builder, err := document.New(cfg.Output.Format, documentID, document.Config{
			Home:        e.home,
			OutputDir:   cfg.Output.Dir,
			JPEGQuality: cfg.Output.JPEGQuality,
			KeepStaging: cfg.Output.KeepStaging,
			Logger:      logger,
		})
		if err != nil {
			return err
		}

		orch := book.New(book.Config{
			Prober:             s.prober,
			Assembler:          s.assembler,
			LengthFinder:       s.lengths,
			Builder:            builder,
			Retries:            cfg.Download.Retries,
			RepresentativePage: cfg.Download.RepresentativePage,
			FrontCover:         cfg.Download.FrontCover,
			BackCover:          cfg.Download.BackCover,
			SkipCovers:         cfg.Download.SkipCovers,
			ProbeEachUnit:      cfg.Download.ProbeEachUnit,
			PageFormat:         cfg.Output.PageSize,
			Logger:             logger,
		})

		result, err := orch.Download(ctx, documentID, downloadLength)
		if err != nil {
			if book.IsRetryExhausted(err) {
				return fmt.Errorf("%w (raise download.retries or lower resolver.rate_limit)", err)
			}
			return err
		}

		if wait := s.client.RateLimitWait(); wait > 0 {
			logger.Info("requests were rate limited", "total_wait", wait.Round(time.Millisecond))
		}
		return e.printer.Print(result)
	},
}

// applyDownloadFlags lets explicitly set flags override the config file.
func applyDownloadFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format = downloadFormat
	}
	if flags.Changed("page-size") {
		cfg.Output.PageSize = downloadPageSize
	}
	if flags.Changed("out") {
		cfg.Output.Dir = downloadOutDir
	}
	if flags.Changed("keep-staging") {
		cfg.Output.KeepStaging = downloadKeepStaging
	}
}

func init() {
	downloadCmd.Flags().IntVar(&downloadLength, "length", 0, "number of content pages (0 = find automatically)")
	downloadCmd.Flags().StringVar(&downloadFormat, "format", document.KindPDF, "output format: pdf or images")
	downloadCmd.Flags().StringVar(&downloadPageSize, "page-size", document.DefaultPageFormat, "PDF page size, e.g. Letter or A4")
	downloadCmd.Flags().StringVar(&downloadOutDir, "out", "", "output directory (default: ~/.tilebook/exports)")
	downloadCmd.Flags().StringVar(&downloadMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the download")
	downloadCmd.Flags().BoolVar(&downloadKeepStaging, "keep-staging", false, "keep staged page images after the PDF is written")
}
