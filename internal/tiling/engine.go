// Package tiling prepares arbitrarily sized images for a
// fixed-resolution vision model: one coarse global view plus a grid of
// fine-grained local tiles whose shape tracks the image's aspect ratio.
package tiling

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
)

// Role distinguishes the whole-image context view from grid crops.
type Role string

const (
	RoleGlobal Role = "global"
	RoleLocal  Role = "local"
)

// Tile is one model input. Crop is the region of the source image the
// tile shows, in source pixel space, always inside the source bounds.
// Index is the row-major position among local tiles, -1 for the global
// view.
type Tile struct {
	Role  Role
	Crop  image.Rectangle
	Image *image.RGBA
	Index int
}

// DefaultMaxTiles bounds the local grid so pathological aspect ratios
// cannot blow up memory.
const DefaultMaxTiles = 9

// Engine computes tile sets. The zero value is ready to use. PickGrid,
// when set, replaces the built-in grid chooser; the exact tie-break
// between equally fitting grids is not a contract anyone should depend
// on, so it stays swappable.
type Engine struct {
	MaxTiles int
	PickGrid func(width, height, maxTiles int) (rows, cols int)
}

func (e Engine) maxTiles() int {
	if e.MaxTiles > 0 {
		return e.MaxTiles
	}
	return DefaultMaxTiles
}

func (e Engine) pickGrid(width, height int) (rows, cols int) {
	if e.PickGrid != nil {
		return e.PickGrid(width, height, e.maxTiles())
	}
	return bestGrid(width, height, e.maxTiles())
}

// Tile splits src into a global view resized to baseSize squared plus,
// when cropMode is on and the image exceeds tileSize in either
// dimension, a row-major grid of tileSize squared local tiles. The
// result is deterministic for identical inputs.
func (e Engine) Tile(src image.Image, baseSize, tileSize int, cropMode bool) []Tile {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	global := Tile{
		Role:  RoleGlobal,
		Crop:  image.Rect(0, 0, w, h),
		Image: fit(src, baseSize, baseSize, xdraw.CatmullRom),
		Index: -1,
	}
	if !cropMode || max(w, h) <= tileSize {
		return []Tile{global}
	}

	rows, cols := e.pickGrid(w, h)
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}

	// Letterbox onto the grid canvas, then slice. The image anchors at
	// the top-left so padding only ever sits on the right/bottom edges.
	cw, ch := cols*tileSize, rows*tileSize
	canvas := fit(src, cw, ch, xdraw.ApproxBiLinear)
	scale := fitScale(w, h, cw, ch)

	tiles := make([]Tile, 0, rows*cols+1)
	tiles = append(tiles, global)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cell := image.Rect(c*tileSize, r*tileSize, (c+1)*tileSize, (r+1)*tileSize)
			sub := image.NewRGBA(image.Rect(0, 0, tileSize, tileSize))
			draw.Draw(sub, sub.Bounds(), canvas, cell.Min, draw.Src)
			tiles = append(tiles, Tile{
				Role:  RoleLocal,
				Crop:  sourceRect(cell, scale, w, h),
				Image: sub,
				Index: r*cols + c,
			})
		}
	}
	return tiles
}

// bestGrid picks the (rows, cols) grid with rows*cols <= maxTiles whose
// cols/rows ratio is closest to the image's width/height. Ties fall to
// the grid with fewer tiles, then the one with fewer rows.
func bestGrid(width, height, maxTiles int) (rows, cols int) {
	if maxTiles < 1 {
		maxTiles = 1
	}
	aspect := float64(width) / float64(height)

	rows, cols = 1, 1
	bestDelta := math.Inf(1)
	for r := 1; r <= maxTiles; r++ {
		for c := 1; r*c <= maxTiles; c++ {
			delta := math.Abs(float64(c)/float64(r) - aspect)
			if delta < bestDelta {
				rows, cols, bestDelta = r, c, delta
				continue
			}
			if delta == bestDelta && (r*c < rows*cols || (r*c == rows*cols && r < rows)) {
				rows, cols = r, c
			}
		}
	}
	return rows, cols
}

// fitScale is the uniform factor that maps source pixels onto a
// cw x ch canvas without stretching.
func fitScale(w, h, cw, ch int) float64 {
	return math.Min(float64(cw)/float64(w), float64(ch)/float64(h))
}

// fit letterboxes src onto a white cw x ch canvas, anchored top-left.
func fit(src image.Image, cw, ch int, scaler xdraw.Scaler) *image.RGBA {
	b := src.Bounds()
	s := fitScale(b.Dx(), b.Dy(), cw, ch)
	sw := int(math.Round(float64(b.Dx()) * s))
	sh := int(math.Round(float64(b.Dy()) * s))
	if sw > cw {
		sw = cw
	}
	if sh > ch {
		sh = ch
	}

	canvas := image.NewRGBA(image.Rect(0, 0, cw, ch))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	scaler.Scale(canvas, image.Rect(0, 0, sw, sh), src, b, xdraw.Over, nil)
	return canvas
}

// sourceRect maps a canvas cell back into source pixel space and clamps
// it to the image bounds. A cell that landed entirely in padding
// degenerates to an empty rectangle on the image edge.
func sourceRect(cell image.Rectangle, scale float64, w, h int) image.Rectangle {
	x0 := clamp(int(math.Round(float64(cell.Min.X)/scale)), 0, w)
	y0 := clamp(int(math.Round(float64(cell.Min.Y)/scale)), 0, h)
	x1 := clamp(int(math.Round(float64(cell.Max.X)/scale)), 0, w)
	y1 := clamp(int(math.Round(float64(cell.Max.Y)/scale)), 0, h)
	return image.Rect(x0, y0, x1, y1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
