// Package page runs the OCR pipeline for a single image: tile, infer,
// parse, and optionally caption and crop out grounded figures.
package page

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"strings"

	"github.com/pagelens/docr/internal/annotate"
	"github.com/pagelens/docr/internal/domain"
	"github.com/pagelens/docr/internal/tiling"
	"github.com/pagelens/docr/internal/vision"
)

// cropQuality is the JPEG quality for extracted figure crops.
const cropQuality = 95

// Processor processes one page image into a PageResult. It is
// stateless apart from its collaborators and safe for concurrent use.
type Processor struct {
	Backend vision.Backend
	Engine  tiling.Engine
	Logger  *domain.Logger
}

// Process runs tiling, a single inference call, and annotation parsing
// for one page. pageNumber is 1-based and only labels the result; it
// does not index into anything.
//
// Inference failures surface as page errors wrapping the cause, so a
// caller can still distinguish backend unavailability.
func (p *Processor) Process(ctx context.Context, img image.Image, pageNumber int, job domain.Job) (domain.PageResult, error) {
	job = job.Normalize()
	log := p.Logger.OrNop().WithPage(pageNumber)

	b := img.Bounds()
	dims := domain.Dims{W: b.Dx(), H: b.Dy()}

	tiles := p.Engine.Tile(img, job.BaseSize, job.TileSize, job.CropMode)
	prompt := vision.BuildPrompt(vision.PromptInput{
		Mode:           job.Mode,
		UserPrompt:     job.Prompt,
		Grounding:      job.Grounding,
		FindTerm:       job.FindTerm,
		Schema:         job.Schema,
		IncludeCaption: job.IncludeCaption,
	})

	raw, err := p.Backend.Infer(ctx, vision.Request{
		Tiles:    tiles,
		Source:   img,
		Mode:     job.Mode,
		Prompt:   prompt,
		BaseSize: job.BaseSize,
		TileSize: job.TileSize,
		CropMode: job.CropMode,
	})
	if err != nil {
		return domain.PageResult{}, domain.PageError(pageNumber, "inference failed", err)
	}

	var imageNames []string
	opts := annotate.Options{Logger: p.Logger}
	if job.ExtractImages {
		opts.ImageRef = func(i int) string {
			name := fmt.Sprintf("images/page-%d-img-%d.jpg", pageNumber, i)
			imageNames = append(imageNames, name)
			return fmt.Sprintf("![](%s)", name)
		}
	}
	parsed := annotate.Parse(raw, dims, opts)
	cleaned := parsed.Cleaned

	if job.IncludeCaption && job.Mode != domain.ModeDescribe {
		caption, err := p.caption(ctx, img, tiles, job)
		if err != nil {
			log.Warn().Err(err).Msg("caption inference failed, continuing without")
		} else if caption != "" {
			cleaned = strings.TrimSpace(cleaned + "\n\n" + caption)
		}
	}

	result := domain.PageResult{
		PageNumber:  pageNumber,
		RawText:     raw,
		CleanedText: cleaned,
		Dims:        dims,
	}
	if job.Grounding || job.Mode.RequiresGrounding() {
		result.Boxes = parsed.Boxes
	}
	if job.ExtractImages {
		result.Images = cropImages(img, parsed.Boxes, imageNames, log)
	}
	return result, nil
}

// caption issues the second, description-style inference call. It
// never contributes boxes.
func (p *Processor) caption(ctx context.Context, img image.Image, tiles []tiling.Tile, job domain.Job) (string, error) {
	raw, err := p.Backend.Infer(ctx, vision.Request{
		Tiles:    tiles,
		Source:   img,
		Mode:     domain.ModeDescribe,
		Prompt:   vision.BuildPrompt(vision.PromptInput{Mode: domain.ModeDescribe}),
		BaseSize: job.BaseSize,
		TileSize: job.TileSize,
		CropMode: job.CropMode,
	})
	if err != nil {
		return "", err
	}
	b := img.Bounds()
	parsed := annotate.Parse(raw, domain.Dims{W: b.Dx(), H: b.Dy()}, annotate.Options{Logger: p.Logger})
	return parsed.Cleaned, nil
}

// cropImages cuts the model's image-labeled regions out of the page
// render. Names line up index-for-index with the annotate.Parse
// ImageRef numbering; boxes that degenerated after clamping are
// skipped alongside their name.
func cropImages(img image.Image, boxes []domain.BoundingBox, names []string, log *domain.Logger) []domain.ExtractedImage {
	var out []domain.ExtractedImage
	i := 0
	for _, box := range boxes {
		if !strings.EqualFold(box.Label, "image") {
			continue
		}
		if i >= len(names) {
			break
		}
		name := names[i]
		i++

		rect := image.Rect(box.Box[0], box.Box[1], box.Box[2], box.Box[3]).Intersect(img.Bounds())
		if rect.Empty() {
			continue
		}
		cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		draw.Draw(cropped, cropped.Bounds(), img, rect.Min, draw.Src)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: cropQuality}); err != nil {
			log.Warn().Err(err).Str("image", name).Msg("encoding extracted image failed")
			continue
		}
		out = append(out, domain.ExtractedImage{Name: name, Data: buf.Bytes()})
	}
	return out
}
