// Package vision defines the contract with the external OCR inference
// backend and the prompt construction for each processing mode.
package vision

import (
	"context"
	"image"

	"github.com/pagelens/docr/internal/domain"
	"github.com/pagelens/docr/internal/tiling"
)

// Request is one inference call: the tile set prepared for the model
// plus the mode-specific prompt. Source is the unpadded page image;
// backends that upload a single image use it so the model's 0-999
// coordinate frame spans exactly the page, not letterbox padding.
type Request struct {
	Tiles  []tiling.Tile
	Source image.Image
	Mode   domain.Mode
	Prompt string

	// Tiling parameters travel with the request so remote backends
	// that re-tile internally stay consistent with the local geometry.
	BaseSize int
	TileSize int
	CropMode bool
}

// Backend runs one synchronous inference call. Implementations return
// the model's raw tagged text; no retries happen at this layer.
type Backend interface {
	Infer(ctx context.Context, req Request) (string, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, req Request) (string, error)

func (f BackendFunc) Infer(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
