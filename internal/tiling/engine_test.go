package tiling

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 251), G: uint8(y % 241), B: 40, A: 255})
		}
	}
	return img
}

func TestTileSmallImageSingleGlobal(t *testing.T) {
	// Anything fitting inside one tile gets only the global view.
	e := Engine{}
	tiles := e.Tile(testImage(600, 400), 1024, 640, true)

	if len(tiles) != 1 {
		t.Fatalf("got %d tiles, want 1", len(tiles))
	}
	g := tiles[0]
	if g.Role != RoleGlobal || g.Index != -1 {
		t.Errorf("tile = %v/%d, want global/-1", g.Role, g.Index)
	}
	if got := g.Image.Bounds(); got.Dx() != 1024 || got.Dy() != 1024 {
		t.Errorf("global view is %dx%d, want 1024x1024", got.Dx(), got.Dy())
	}
	if g.Crop != image.Rect(0, 0, 600, 400) {
		t.Errorf("global crop = %v, want full image", g.Crop)
	}
}

func TestTileCropModeDisabled(t *testing.T) {
	e := Engine{}
	tiles := e.Tile(testImage(3000, 2000), 1024, 640, false)
	if len(tiles) != 1 || tiles[0].Role != RoleGlobal {
		t.Fatalf("crop_mode off should yield one global tile, got %d", len(tiles))
	}
}

func TestTileGridShape(t *testing.T) {
	e := Engine{}
	tiles := e.Tile(testImage(1920, 1080), 1024, 640, true)

	// 16:9 picks a 1x2 grid: one global plus two locals.
	if len(tiles) != 3 {
		t.Fatalf("got %d tiles, want 3", len(tiles))
	}
	if tiles[0].Role != RoleGlobal {
		t.Fatalf("first tile role = %v, want global", tiles[0].Role)
	}
	for i, tile := range tiles[1:] {
		if tile.Role != RoleLocal {
			t.Errorf("tile %d role = %v, want local", i, tile.Role)
		}
		if tile.Index != i {
			t.Errorf("tile %d index = %d (row-major order broken)", i, tile.Index)
		}
		if b := tile.Image.Bounds(); b.Dx() != 640 || b.Dy() != 640 {
			t.Errorf("tile %d is %dx%d, want 640x640", i, b.Dx(), b.Dy())
		}
	}
}

func TestTileCropsCoverSourceAndStayInside(t *testing.T) {
	e := Engine{}
	src := testImage(2500, 900)
	tiles := e.Tile(src, 1024, 640, true)

	union := image.Rectangle{}
	for _, tile := range tiles[1:] {
		if !tile.Crop.In(src.Bounds()) && !tile.Crop.Empty() {
			t.Errorf("crop %v escapes source bounds %v", tile.Crop, src.Bounds())
		}
		union = union.Union(tile.Crop)
	}
	if union != src.Bounds() {
		t.Errorf("local crops cover %v, want %v", union, src.Bounds())
	}
}

func TestTileCountBounded(t *testing.T) {
	e := Engine{MaxTiles: 9}
	shapes := [][2]int{{10000, 100}, {100, 10000}, {5000, 5000}, {641, 641}, {1920, 1080}}
	for _, s := range shapes {
		tiles := e.Tile(testImage(s[0], s[1]), 1024, 640, true)
		if locals := len(tiles) - 1; locals > 9 {
			t.Errorf("%dx%d produced %d local tiles, want <= 9", s[0], s[1], locals)
		}
	}
}

func TestBestGrid(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		rows, cols int
	}{
		{"16:9 prefers one wide row", 1920, 1080, 1, 2},
		{"square prefers fewest tiles", 2000, 2000, 1, 1},
		{"tall receipt stacks rows", 600, 4800, 8, 1},
		{"panorama stays one row", 9000, 1000, 1, 9},
		{"4:3 capped below its exact grid", 1600, 1200, 2, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, c := bestGrid(tt.w, tt.h, 9)
			if r != tt.rows || c != tt.cols {
				t.Errorf("bestGrid(%d, %d) = (%d, %d), want (%d, %d)", tt.w, tt.h, r, c, tt.rows, tt.cols)
			}
		})
	}
}

func TestTileDeterministic(t *testing.T) {
	e := Engine{}
	src := testImage(1920, 1080)

	a := e.Tile(src, 1024, 640, true)
	b := e.Tile(src, 1024, 640, true)
	if len(a) != len(b) {
		t.Fatalf("tile counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Crop != b[i].Crop || a[i].Role != b[i].Role {
			t.Fatalf("tile %d metadata differs between runs", i)
		}
		if !bytes.Equal(encodePNG(t, a[i].Image), encodePNG(t, b[i].Image)) {
			t.Fatalf("tile %d pixels differ between runs", i)
		}
	}
}

func TestPickGridOverride(t *testing.T) {
	e := Engine{PickGrid: func(w, h, maxTiles int) (int, int) { return 2, 2 }}
	tiles := e.Tile(testImage(1920, 1080), 1024, 640, true)
	if locals := len(tiles) - 1; locals != 4 {
		t.Errorf("override produced %d local tiles, want 4", locals)
	}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
