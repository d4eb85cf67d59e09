package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specrag/internal/chunk"
	"github.com/fyrsmithlabs/specrag/internal/document"
	"github.com/fyrsmithlabs/specrag/internal/segmenter"
)

var (
	segmentInput  string
	segmentOutput string
)

func init() {
	segmentCmd.Flags().StringVar(&segmentInput, "input", "", "HTML document (default document.raw_path)")
	segmentCmd.Flags().StringVar(&segmentOutput, "output", "", "JSONL chunk file (default chunks.path)")
	rootCmd.AddCommand(segmentCmd)
}

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Split the document into one chunk per success criterion",
	Long: `Segment the fetched document into success-criterion chunks and write them as
JSONL, replacing any previous chunk file. Diagnostics (candidates, parse
misses, reserved and duplicate identifiers) are logged.`,
	Args: cobra.NoArgs,
	RunE: runSegment,
}

func runSegment(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	in := firstNonEmpty(segmentInput, e.cfg.Document.RawPath)
	out := firstNonEmpty(segmentOutput, e.cfg.Chunks.Path)

	doc, err := document.Load(in, document.Options{SkipTags: e.cfg.Segmenter.SkipTags})
	if err != nil {
		return err
	}

	sc := e.cfg.Segmenter
	seg := segmenter.New(segmenter.Options{
		Label:            sc.Label,
		ReservedSections: sc.ReservedSections,
		CandidateTags:    sc.CandidateTags,
		ContentTags:      sc.ContentTags,
		StopTags:         sc.StopTags,
		BaseURL:          firstNonEmpty(e.cfg.Document.BaseURL, e.cfg.Document.SourceURL),
		Provenance: chunk.Provenance{
			DocSet:      e.cfg.Document.DocSet,
			Source:      e.cfg.Document.Source,
			Normativity: e.cfg.Document.Normativity,
			Version:     e.cfg.Document.Version,
		},
	}, e.logger)

	res := seg.Segment(doc)
	d := res.Diagnostics
	e.logger.Info("segmentation complete",
		zap.String("input", in),
		zap.Int("nodes", doc.Len()),
		zap.Int("candidates", d.Candidates),
		zap.Int("recognized", d.Recognized),
		zap.Any("strategies", d.Strategies),
		zap.Int("parse_misses", d.ParseMisses),
		zap.Int("reserved", d.Reserved),
		zap.Strings("duplicates", d.Duplicates),
		zap.Int("emitted", d.Emitted),
	)

	if err := chunk.WriteFile(out, res.Chunks); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d chunks to %s\n", okStyle.Render("wrote"), len(res.Chunks), out)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
