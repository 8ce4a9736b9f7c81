package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/pagelens/docr/pkg/docr"
)

var (
	pdfFormat        string
	pdfOutputPath    string
	pdfExtractImages bool
	pdfInlineImages  bool
)

var pdfCmd = &cobra.Command{
	Use:   "pdf <file>",
	Short: "OCR a multi-page PDF",
	Long: `Process every page of a PDF and write the combined result as
Markdown, HTML, DOCX or JSON. Pages that fail are marked in the output
and do not stop the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runPDF,
}

func init() {
	pdfCmd.Flags().StringVarP(&pdfFormat, "format", "f", "markdown", "output format: json, markdown, html, docx")
	pdfCmd.Flags().StringVarP(&pdfOutputPath, "output", "o", "", "output path (default: input name with new extension)")
	pdfCmd.Flags().BoolVar(&pdfExtractImages, "extract-images", false, "crop figure regions into image files")
	pdfCmd.Flags().BoolVar(&pdfInlineImages, "inline-images", false, "embed extracted images as data URIs")
	rootCmd.AddCommand(pdfCmd)
}

func runPDF(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Minute)
	defer cancel()

	format, err := docr.ParseFormat(pdfFormat)
	if err != nil {
		return err
	}
	job, err := buildJob()
	if err != nil {
		return err
	}
	job.Format = format
	job.ExtractImages = pdfExtractImages
	job.InlineImages = pdfInlineImages

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	log := newLogger().WithJob(uuid.NewString())

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	events, err := client.ProcessPDF(ctx, data, job)
	if err != nil {
		return err
	}

	var (
		bar    *progressbar.ProgressBar
		pages  []docr.PageResult
		failed int
	)
	for ev := range events {
		switch ev.Type {
		case docr.EventStart:
			total, _ := ev.Payload.(int)
			log.Info().Int("pages", total).Msg("processing PDF")
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("OCR"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		case docr.EventPageComplete:
			if bar != nil {
				_ = bar.Add(1)
			}
			if result, ok := ev.Payload.(docr.PageResult); ok && result.Failed() {
				failed++
				log.Warn().Int("page", ev.Page).Str("error", result.Err).Msg("page failed")
			}
		case docr.EventError:
			msg, _ := ev.Payload.(string)
			return fmt.Errorf("processing failed: %s", msg)
		case docr.EventComplete:
			if cp, ok := ev.Payload.(docr.CompletePayload); ok {
				pages = cp.Pages
			}
		}
	}
	if pages == nil {
		return fmt.Errorf("stream ended without a completion event")
	}

	doc, err := client.Convert(pages, format, job)
	if err != nil {
		return err
	}

	outPath := pdfOutputPath
	if outPath == "" {
		base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		outPath = filepath.Join(filepath.Dir(args[0]), base+doc.Ext)
	}
	if err := os.WriteFile(outPath, doc.Data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	if err := writeAssets(filepath.Dir(outPath), doc.Assets); err != nil {
		return err
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "done with %d failed page(s): %s\n", failed, outPath)
	} else {
		fmt.Fprintf(os.Stderr, "done: %s\n", outPath)
	}
	return nil
}

// writeAssets materializes extracted images next to the output file,
// preserving their relative reference paths.
func writeAssets(dir string, assets []docr.ExtractedImage) error {
	for _, asset := range assets {
		path := filepath.Join(dir, filepath.FromSlash(asset.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating asset directory: %w", err)
		}
		if err := os.WriteFile(path, asset.Data, 0o644); err != nil {
			return fmt.Errorf("writing asset %s: %w", asset.Name, err)
		}
	}
	return nil
}
