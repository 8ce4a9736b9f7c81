package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/pagelens/docr/internal/domain"
	"github.com/pagelens/docr/internal/tiling"
)

// HTTPBackend talks to an inference server that accepts a base64 page
// image plus tiling parameters and returns the model's raw text. The
// server re-tiles on its side; the global view carries the full page.
type HTTPBackend struct {
	url        string
	token      string
	httpClient *http.Client
	log        *domain.Logger
}

// HTTPBackendConfig configures an HTTPBackend. Timeout bounds a single
// inference round-trip; zero means 120s.
type HTTPBackendConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
	Logger  *domain.Logger
}

// NewHTTPBackend builds an HTTP inference backend.
func NewHTTPBackend(cfg HTTPBackendConfig) (*HTTPBackend, error) {
	if cfg.URL == "" {
		return nil, domain.ConfigError("inference URL is required", nil)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPBackend{
		url:        cfg.URL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		log:        cfg.Logger.OrNop(),
	}, nil
}

type inferenceRequest struct {
	Prompt    string `json:"prompt"`
	ImageB64  string `json:"image_b64"`
	BaseSize  int    `json:"base_size"`
	ImageSize int    `json:"image_size"`
	CropMode  bool   `json:"crop_mode"`
}

type inferenceResponse struct {
	Text string `json:"text"`
}

// Infer sends the page to the inference server and returns the raw
// tagged text. Failures come back as backend errors so callers can
// apply their own retry policy; none happens here.
//
// The server re-tiles on its side from base_size/image_size/crop_mode,
// so the upload is the unpadded source image rather than the local
// tile set; that keeps the model's coordinate frame aligned with the
// page pixels.
func (b *HTTPBackend) Infer(ctx context.Context, req Request) (string, error) {
	src := req.Source
	if src == nil {
		global := globalTile(req.Tiles)
		if global == nil {
			return "", domain.BackendError("request has neither source image nor global view", nil)
		}
		src = global.Image
	}

	var img bytes.Buffer
	if err := png.Encode(&img, src); err != nil {
		return "", domain.BackendError("encoding page image", err)
	}

	body, err := json.Marshal(inferenceRequest{
		Prompt:    req.Prompt,
		ImageB64:  base64.StdEncoding.EncodeToString(img.Bytes()),
		BaseSize:  req.BaseSize,
		ImageSize: req.TileSize,
		CropMode:  req.CropMode,
	})
	if err != nil {
		return "", domain.BackendError("marshaling inference request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return "", domain.BackendError("building inference request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.token != "" {
		httpReq.Header.Set("X-Internal-Token", b.token)
	}

	start := time.Now()
	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return "", domain.BackendError("inference request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", domain.BackendError(
			fmt.Sprintf("inference returned status %d: %s", resp.StatusCode, string(data)), nil)
	}

	var parsed inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", domain.BackendError("decoding inference response", err)
	}
	if parsed.Text == "" {
		return "", domain.BackendError("inference returned empty text", nil)
	}

	b.log.Debug().
		Str("mode", string(req.Mode)).
		Dur("elapsed", time.Since(start)).
		Int("chars", len(parsed.Text)).
		Msg("inference complete")
	return parsed.Text, nil
}

func globalTile(tiles []tiling.Tile) *tiling.Tile {
	for i := range tiles {
		if tiles[i].Role == tiling.RoleGlobal {
			return &tiles[i]
		}
	}
	return nil
}
