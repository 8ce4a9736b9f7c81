package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var imageOutputPath string

var imageCmd = &cobra.Command{
	Use:   "image <file>",
	Short: "OCR a single image",
	Long:  "Run one PNG or JPEG through the OCR model and print the structured result as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE:  runImage,
}

func init() {
	imageCmd.Flags().StringVarP(&imageOutputPath, "output", "o", "", "write JSON result to a file instead of stdout")
	rootCmd.AddCommand(imageCmd)
}

func runImage(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	job, err := buildJob()
	if err != nil {
		return err
	}

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

	log.Info().Str("file", args[0]).Str("mode", string(job.Mode)).Msg("processing image")
	result, err := client.ProcessImage(ctx, data, job)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')

	if imageOutputPath != "" {
		return os.WriteFile(imageOutputPath, out, 0o644)
	}
	_, err = os.Stdout.Write(out)
	return err
}
