package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/tilebook/internal/mosaic"
	"github.com/jackzampolin/tilebook/internal/resolver"
)

var (
	probePage       string
	probeFindLength bool
)

// ProbeResult is printed by the probe command.
type ProbeResult struct {
	DocumentID string           `json:"document_id" yaml:"document_id"`
	Page       string           `json:"page" yaml:"page"`
	Grid       mosaic.GridShape `json:"grid" yaml:"grid"`
	Length     int              `json:"length,omitempty" yaml:"length,omitempty"`
}

var probeCmd = &cobra.Command{
	Use:   "probe <document-id>",
	Short: "Report the tile grid and page count of a document without downloading it",
	Long: `Probe the resolver for a document's tile grid and, with --length, its
page count. Nothing is written to disk.

Examples:
  tilebook probe 2013061108004
  tilebook probe 2013061108004 --page C1
  tilebook probe 2013061108004 --length -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		documentID := args[0]

		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		cfg := e.config.Get()

		page := resolver.Page(cfg.Download.RepresentativePage)
		if probePage != "" {
			if page, err = resolver.ParsePageToken(probePage); err != nil {
				return err
			}
		}

		s, err := newStages(cfg, e.logger)
		if err != nil {
			return err
		}

		grid, err := s.prober.Probe(ctx, documentID, page)
		if err != nil {
			return fmt.Errorf("grid probe failed: %w", err)
		}
		result := ProbeResult{DocumentID: documentID, Page: page.String(), Grid: grid}

		if probeFindLength {
			if result.Length, err = s.lengths.FindLength(ctx, documentID); err != nil {
				return fmt.Errorf("length probe failed: %w", err)
			}
		}

		return e.printer.Print(result)
	},
}

func init() {
	probeCmd.Flags().StringVar(&probePage, "page", "", "page to probe, a number or cover marker (default: download.representative_page)")
	probeCmd.Flags().BoolVar(&probeFindLength, "length", false, "also find the number of content pages")
}
