package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagelens/docr/pkg/docr"
)

const testPDFPath = "../fixtures/sample.pdf"

func init() {
	_ = godotenv.Load("../../.env")
}

// newInferenceServer fakes the model server: every request gets the
// same tagged response, exercising the full HTTP backend path.
func newInferenceServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt   string `json:"prompt"`
			ImageB64 string `json:"image_b64"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ImageB64 == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": text})
	}))
}

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			img.Set(x, y, color.RGBA{R: 245, G: 245, B: 245, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImagePipelineEndToEnd(t *testing.T) {
	raw := "# Receipt\n\nCoffee 4.50\n\n" +
		"<|ref|>Total<|/ref|><|det|>[[100,800,400,900]]<|/det|>"
	srv := newInferenceServer(t, raw)
	defer srv.Close()

	client, err := docr.NewClientWithConfig(docr.Config{InferURL: srv.URL, Timeout: 30 * time.Second})
	require.NoError(t, err)
	defer client.Close()

	job := docr.DefaultJob()
	job.Grounding = true

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := client.ProcessImage(ctx, samplePNG(t), job)
	require.NoError(t, err)

	assert.Contains(t, res.Text, "# Receipt")
	assert.Contains(t, res.Text, "Total")
	assert.NotContains(t, res.Text, "<|det|>", "grounding markers leaked into cleaned text")

	require.Len(t, res.Boxes, 1)
	assert.Equal(t, "Total", res.Boxes[0].Label)
	// 0-999 coords scaled onto the 640x480 source.
	assert.Equal(t, [4]int{64, 384, 256, 432}, res.Boxes[0].Box)
	assert.Equal(t, docr.Dims{W: 640, H: 480}, res.Dims)
}

func TestImageToDocumentFormats(t *testing.T) {
	srv := newInferenceServer(t, "## Section\n\nBody text.\n\n<table><tr><td>a</td><td>b</td></tr></table>")
	defer srv.Close()

	client, err := docr.NewClientWithConfig(docr.Config{InferURL: srv.URL})
	require.NoError(t, err)
	defer client.Close()

	res, err := client.ProcessImage(context.Background(), samplePNG(t), docr.DefaultJob())
	require.NoError(t, err)

	page := docr.PageResult{PageNumber: 1, CleanedText: res.Text, Dims: res.Dims}
	for _, format := range []docr.Format{"json", "markdown", "html", "docx"} {
		doc, err := client.Convert([]docr.PageResult{page}, format, docr.DefaultJob())
		require.NoError(t, err, "format %s", format)
		assert.NotEmpty(t, doc.Data, "format %s", format)
		assert.NotEmpty(t, doc.MIME, "format %s", format)
		assert.NotEmpty(t, doc.Ext, "format %s", format)
	}

	md, err := client.Convert([]docr.PageResult{page}, docr.FormatMarkdown, docr.DefaultJob())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(md.Data), "| a | b |"), "HTML table not rewritten: %s", md.Data)
}

// TestPDFPipelineEndToEnd needs MuPDF and a fixture; it runs the real
// render path when both are available.
func TestPDFPipelineEndToEnd(t *testing.T) {
	if _, err := os.Stat(testPDFPath); os.IsNotExist(err) {
		t.Skipf("sample PDF not found at %s", testPDFPath)
	}

	srv := newInferenceServer(t, "page content")
	defer srv.Close()

	client, err := docr.NewClientWithConfig(docr.Config{InferURL: srv.URL})
	require.NoError(t, err)
	defer client.Close()

	data, err := os.ReadFile(testPDFPath)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	events, err := client.ProcessPDF(ctx, data, docr.DefaultJob())
	require.NoError(t, err)

	counts := make(map[docr.EventType]int)
	var pages []docr.PageResult
	for ev := range events {
		counts[ev.Type]++
		if ev.Type == docr.EventComplete {
			pages = ev.Payload.(docr.CompletePayload).Pages
		}
	}

	assert.Equal(t, 1, counts[docr.EventStart])
	assert.Equal(t, 1, counts[docr.EventComplete])
	require.NotEmpty(t, pages)
	assert.Equal(t, len(pages), counts[docr.EventPageComplete])
	for i, p := range pages {
		assert.Equal(t, i+1, p.PageNumber, "page order broken at slot %d", i)
	}
}
