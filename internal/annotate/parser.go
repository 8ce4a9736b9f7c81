// Package annotate turns raw model output containing grounding tags
// into clean display text plus pixel-space bounding boxes.
//
// The model wraps grounded spans as
//
//	<|ref|>label<|/ref|><|det|>[[x1,y1,x2,y2], ...]<|/det|>
//
// with coordinates normalized to 0-999 regardless of image size. The
// payload may also be a flat 4-tuple or a pair of corner points; all
// shapes are normalized to a list of 4-tuples before scaling.
package annotate

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/pagelens/docr/internal/domain"
)

var (
	groundingBlock = regexp.MustCompile(`(?s)<\|ref\|>(?P<label>.*?)<\|/ref\|>\s*<\|det\|>(?P<coords>.*?)<\|/det\|>`)
	strayMarker    = regexp.MustCompile(`<\|.*?\|>`)
	blankRuns      = regexp.MustCompile(`\n{3,}`)
)

// fullWidth maps CJK punctuation the model occasionally emits inside
// coordinate payloads onto the ASCII forms the JSON decoder expects.
var fullWidth = strings.NewReplacer(
	"，", ",",
	"。", ".",
	"；", ",",
	"：", ":",
	"【", "[",
	"】", "]",
	"（", "(",
	"）", ")",
	"、", ",",
	"％", "%",
	"－", "-",
)

// Options tunes how grounding blocks are rewritten into cleaned text.
type Options struct {
	// ImageRef supplies the replacement text for the i-th image-labeled
	// box on the page, typically a markdown image link. When nil, image
	// blocks collapse to their label like any other.
	ImageRef func(i int) string

	Logger *domain.Logger
}

// Result is the outcome of parsing one page's raw output.
type Result struct {
	Cleaned string
	Boxes   []domain.BoundingBox
	// ImageCount is how many image-labeled boxes were rewritten via
	// Options.ImageRef; it matches the indices that func received.
	ImageCount int
}

// Parse extracts bounding boxes from raw and strips the grounding
// markers, leaving the surrounding prose, table markup and formula
// notation untouched. Malformed coordinate payloads drop their block's
// boxes but never fail the parse.
func Parse(raw string, dims domain.Dims, opts Options) Result {
	log := opts.Logger.OrNop()

	var (
		out    strings.Builder
		boxes  []domain.BoundingBox
		labels []string
		images int
	)

	cursor := 0
	for _, loc := range groundingBlock.FindAllStringSubmatchIndex(raw, -1) {
		out.WriteString(raw[cursor:loc[0]])
		cursor = loc[1]

		label := strings.TrimSpace(submatch(raw, loc, 1))
		payload := submatch(raw, loc, 2)

		coords, ok := parseCoords(payload)
		if !ok {
			log.Warn().Str("label", label).Msg("dropping malformed grounding payload")
		}

		valid := make([]domain.BoundingBox, 0, len(coords))
		for _, c := range coords {
			b := scaleBox(c, dims)
			if b[2] <= b[0] || b[3] <= b[1] {
				log.Debug().Str("label", label).Msg("skipping degenerate box")
				continue
			}
			valid = append(valid, domain.BoundingBox{Label: label, Box: b})
		}
		boxes = append(boxes, valid...)
		labels = append(labels, label)

		if strings.EqualFold(label, "image") && opts.ImageRef != nil {
			refs := make([]string, 0, len(valid))
			for range valid {
				refs = append(refs, opts.ImageRef(images))
				images++
			}
			out.WriteString(strings.Join(refs, "\n"))
			continue
		}
		out.WriteString(label)
	}
	out.WriteString(raw[cursor:])

	cleaned := out.String()
	cleaned = strings.ReplaceAll(cleaned, "<|grounding|>", "")
	cleaned = strings.ReplaceAll(cleaned, `\coloneqq`, ":=")
	cleaned = strings.ReplaceAll(cleaned, `\eqqcolon`, "=:")
	cleaned = blankRuns.ReplaceAllString(cleaned, "\n\n")
	cleaned = strings.TrimSpace(cleaned)

	// A page that was nothing but grounding blocks still reads as its
	// labels rather than coming back blank.
	if cleaned == "" && len(labels) > 0 {
		cleaned = strings.TrimSpace(strings.Join(labels, "\n"))
	}

	return Result{Cleaned: cleaned, Boxes: boxes, ImageCount: images}
}

func submatch(raw string, loc []int, group int) string {
	start, end := loc[2*group], loc[2*group+1]
	if start < 0 || end < 0 {
		return ""
	}
	return raw[start:end]
}

// parseCoords decodes a detection payload into 0-999 coordinate
// 4-tuples. The second return is false when the payload was present
// but undecodable.
func parseCoords(payload string) ([][4]float64, bool) {
	cleaned := fullWidth.Replace(payload)
	cleaned = strayMarker.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start < 0 || end < start {
		return nil, false
	}

	var data any
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &data); err != nil {
		return nil, false
	}
	items, ok := data.([]any)
	if !ok {
		return nil, false
	}
	return normalizeCoords(items), true
}

// normalizeCoords accepts a flat [x1,y1,x2,y2], a list of such tuples,
// or a pair of [x,y] corner points, and yields a uniform tuple list.
func normalizeCoords(items []any) [][4]float64 {
	if box, ok := asBox(items); ok {
		return [][4]float64{box}
	}

	var boxes [][4]float64
	for _, item := range items {
		inner, ok := item.([]any)
		if !ok {
			continue
		}
		if box, ok := asBox(inner); ok {
			boxes = append(boxes, box)
			continue
		}
		if len(inner) >= 2 {
			p1, ok1 := inner[0].([]any)
			p2, ok2 := inner[1].([]any)
			if ok1 && ok2 && len(p1) >= 2 && len(p2) >= 2 {
				x1, a := asFloat(p1[0])
				y1, b := asFloat(p1[1])
				x2, c := asFloat(p2[0])
				y2, d := asFloat(p2[1])
				if a && b && c && d {
					boxes = append(boxes, [4]float64{x1, y1, x2, y2})
				}
			}
		}
	}
	return boxes
}

func asBox(items []any) ([4]float64, bool) {
	if len(items) != 4 {
		return [4]float64{}, false
	}
	var box [4]float64
	for i, v := range items {
		f, ok := asFloat(v)
		if !ok {
			return [4]float64{}, false
		}
		box[i] = f
	}
	return box, true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// scaleBox maps 0-999 normalized coordinates onto the page's pixel
// grid, rounding to the nearest pixel and clamping to the image.
func scaleBox(c [4]float64, dims domain.Dims) [4]int {
	return [4]int{
		scaleCoord(c[0], dims.W),
		scaleCoord(c[1], dims.H),
		scaleCoord(c[2], dims.W),
		scaleCoord(c[3], dims.H),
	}
}

func scaleCoord(n float64, dim int) int {
	v := int(math.Round(n / 999.0 * float64(dim)))
	if v < 0 {
		return 0
	}
	if v > dim {
		return dim
	}
	return v
}
