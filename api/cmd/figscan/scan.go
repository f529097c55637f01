package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"figscan/api/internal/raster"
	"figscan/api/internal/scan"
	"figscan/api/internal/util"
	"figscan/api/internal/vision"
	"figscan/api/internal/vision/gemini"
)

type scanFlags struct {
	page        int
	out         string
	explain     bool
	concurrency int
	timeout     time.Duration
	quiet       bool
}

func newScanCmd() *cobra.Command {
	var f scanFlags

	cmd := &cobra.Command{
		Use:   "scan <file>",
		Short: "Scan one page of an image or PDF and write the extracted elements",
		Long: `Scan renders one page, asks the vision model for diagrams, charts, photos
and maps, and writes page.jpg, one NN-<label>.jpg per element and items.json
into the output directory. With --explain every element also gets an
NN-<label>.md explanation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Require("GEMINI_API_KEY"); err != nil {
				return err
			}
			if f.timeout <= 0 {
				f.timeout = cfg.RequestTimeout
			}
			engine := gemini.New(cfg.GeminiAPIKey, cfg.GeminiDetectModel, cfg.GeminiExplainModel)
			u := newUI(cmd.OutOrStdout(), f.quiet || outputJSON)
			return runScan(cmd.Context(), engine, raster.New(raster.FitzRenderer{}), args[0], f, u)
		},
	}

	cmd.Flags().IntVarP(&f.page, "page", "p", 1, "page number for PDFs (clamped to the document)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "figscan-out", "output directory")
	cmd.Flags().BoolVar(&f.explain, "explain", false, "also fetch an explanation for every element")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 4, "parallel explanation requests")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "overall deadline (default: REQUEST_TIMEOUT)")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "no spinner or progress bar")
	return cmd
}

// itemRecord is one entry of items.json.
type itemRecord struct {
	Index       int    `json:"index"`
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	File        string `json:"file,omitempty"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Explanation string `json:"explanation_file,omitempty"`
}

type manifest struct {
	Source string         `json:"source"`
	Page   *scan.PageInfo `json:"page"`
	Items  []itemRecord   `json:"items"`
}

func runScan(ctx context.Context, engine vision.Engine, r scan.Rasterizer, path string, f scanFlags, u *ui) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	s := scan.NewSession(r, engine, scan.Options{
		Recorder: scan.LogRecorder{Log: logger},
		Logger:   logger,
	})

	stop := u.spin("scanning " + filepath.Base(path))
	snap, err := s.Scan(ctx, raster.NewSource(filepath.Base(path), data), f.page)
	stop()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.out, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(f.out, "page.jpg"), snap.PageJPEG, 0o644); err != nil {
		return err
	}

	m := manifest{Source: path, Page: snap.Page, Items: make([]itemRecord, 0, len(snap.Items))}
	for i, it := range snap.Items {
		rec := itemRecord{
			Index:       i + 1,
			ID:          it.ID,
			Label:       it.Label,
			Description: it.Description,
			X:           it.X,
			Y:           it.Y,
			Width:       it.Width,
			Height:      it.Height,
		}
		if !it.Empty() {
			rec.File = itemFileName(i, it.Label, ".jpg")
			if err := os.WriteFile(filepath.Join(f.out, rec.File), it.Image, 0o644); err != nil {
				return err
			}
		}
		m.Items = append(m.Items, rec)
	}

	if f.explain && len(snap.Items) > 0 {
		if err := explainAll(ctx, s, snap.Items, f, u); err != nil {
			return err
		}
		for i := range m.Items {
			m.Items[i].Explanation = itemFileName(i, m.Items[i].Label, ".md")
		}
	}

	js, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(f.out, "items.json"), js, 0o644); err != nil {
		return err
	}

	if len(snap.Items) == 0 {
		u.warn("No visual elements found on this page.")
		return nil
	}
	u.success("%d elements written to %s", len(snap.Items), f.out)
	for i, rec := range m.Items {
		u.item(i, rec.Label, rec.File)
	}
	return nil
}

// explainAll fetches explanations concurrently; each goroutine writes its own file.
func explainAll(ctx context.Context, s *scan.Session, items []scan.ItemView, f scanFlags, u *ui) error {
	bar := u.bar(len(items), "explaining")
	defer func() { _ = bar.Finish() }()

	g, ctx := errgroup.WithContext(ctx)
	if f.concurrency > 0 {
		g.SetLimit(f.concurrency)
	}
	for i, it := range items {
		g.Go(func() error {
			txt, err := s.Explain(ctx, it.ID)
			if err != nil {
				return fmt.Errorf("explain %s: %w", it.Label, err)
			}
			body := fmt.Sprintf("# %s\n\n%s\n", it.Label, txt)
			defer func() { _ = bar.Add(1) }()
			return os.WriteFile(filepath.Join(f.out, itemFileName(i, it.Label, ".md")), []byte(body), 0o644)
		})
	}
	return g.Wait()
}

func itemFileName(i int, label, ext string) string {
	return fmt.Sprintf("%02d-%s%s", i+1, util.Slug(label), ext)
}
