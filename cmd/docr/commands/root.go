package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagelens/docr/internal/domain"
	"github.com/pagelens/docr/pkg/docr"
)

var (
	verbose   bool
	logFormat string

	flagMode      string
	flagPrompt    string
	flagFindTerm  string
	flagSchema    string
	flagGrounding bool
	flagCaption   bool
	flagDPI       int
	flagBaseSize  int
	flagTileSize  int
	flagNoCrop    bool
)

var rootCmd = &cobra.Command{
	Use:   "docr",
	Short: "Document OCR pipeline - images and PDFs to structured text",
	Long: `docr runs images and multi-page PDFs through a vision OCR model and
re-renders the results as Markdown, HTML, DOCX or JSON, with optional
bounding-box grounding and embedded-image extraction.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format: console or json")

	rootCmd.PersistentFlags().StringVarP(&flagMode, "mode", "m", "plain_ocr", "processing mode")
	rootCmd.PersistentFlags().StringVarP(&flagPrompt, "prompt", "p", "", "custom prompt for freeform mode")
	rootCmd.PersistentFlags().StringVar(&flagFindTerm, "find", "", "term to locate in find_ref mode")
	rootCmd.PersistentFlags().StringVar(&flagSchema, "schema", "", "JSON schema for kv_json mode")
	rootCmd.PersistentFlags().BoolVarP(&flagGrounding, "grounding", "g", false, "request bounding boxes")
	rootCmd.PersistentFlags().BoolVar(&flagCaption, "caption", false, "append an image description")
	rootCmd.PersistentFlags().IntVar(&flagDPI, "dpi", domain.DefaultDPI, "PDF render resolution")
	rootCmd.PersistentFlags().IntVar(&flagBaseSize, "base-size", domain.DefaultBaseSize, "global view size")
	rootCmd.PersistentFlags().IntVar(&flagTileSize, "tile-size", domain.DefaultTileSize, "local tile size")
	rootCmd.PersistentFlags().BoolVar(&flagNoCrop, "no-crop", false, "disable dynamic tiling")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger() *docr.Logger {
	level := "info"
	if verbose {
		level = "debug"
	}
	return domain.NewLogger(domain.LogConfig{Level: level, Format: logFormat, Output: os.Stderr})
}

func buildJob() (docr.Job, error) {
	mode, err := docr.ParseMode(flagMode)
	if err != nil {
		return docr.Job{}, err
	}

	job := docr.DefaultJob()
	job.Mode = mode
	job.Prompt = flagPrompt
	job.FindTerm = flagFindTerm
	job.Schema = flagSchema
	job.Grounding = flagGrounding
	job.IncludeCaption = flagCaption
	job.DPI = flagDPI
	job.BaseSize = flagBaseSize
	job.TileSize = flagTileSize
	job.CropMode = !flagNoCrop
	return job, nil
}

func newClient() (*docr.Client, error) {
	client, err := docr.NewClient()
	if err != nil {
		return nil, fmt.Errorf("configuring client: %w", err)
	}
	return client, nil
}
