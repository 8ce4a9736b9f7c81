package annotate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pagelens/docr/internal/domain"
)

var fullHD = domain.Dims{W: 1920, H: 1080}

func TestParseMultiBoxLabel(t *testing.T) {
	raw := `Total due below.
<|ref|>invoice<|/ref|><|det|>[[100,100,200,200],[500,500,600,600]]<|/det|>
Thank you.`

	res := Parse(raw, fullHD, Options{})

	if len(res.Boxes) != 2 {
		t.Fatalf("got %d boxes, want 2", len(res.Boxes))
	}
	want := [][4]int{
		{192, 108, 384, 216},
		{961, 541, 1153, 649},
	}
	for i, b := range res.Boxes {
		if b.Label != "invoice" {
			t.Errorf("box %d label = %q, want invoice", i, b.Label)
		}
		if b.Box != want[i] {
			t.Errorf("box %d = %v, want %v", i, b.Box, want[i])
		}
	}
	if want := "Total due below.\ninvoice\nThank you."; res.Cleaned != want {
		t.Errorf("Cleaned = %q, want %q", res.Cleaned, want)
	}
}

func TestParseFlatTuplePromoted(t *testing.T) {
	raw := `<|ref|>title<|/ref|><|det|>[0,0,999,100]<|/det|>`
	res := Parse(raw, domain.Dims{W: 999, H: 999}, Options{})

	if len(res.Boxes) != 1 {
		t.Fatalf("got %d boxes, want 1", len(res.Boxes))
	}
	if res.Boxes[0].Box != [4]int{0, 0, 999, 100} {
		t.Errorf("box = %v", res.Boxes[0].Box)
	}
}

func TestParseCornerPointPair(t *testing.T) {
	raw := `<|ref|>stamp<|/ref|><|det|>[[[100,100],[200,200]]]<|/det|>`
	res := Parse(raw, domain.Dims{W: 999, H: 999}, Options{})

	if len(res.Boxes) != 1 || res.Boxes[0].Box != [4]int{100, 100, 200, 200} {
		t.Fatalf("boxes = %v", res.Boxes)
	}
}

func TestParseFullWidthPunctuation(t *testing.T) {
	raw := `<|ref|>章节<|/ref|><|det|>【【100，100，200，200】】<|/det|>`
	res := Parse(raw, domain.Dims{W: 999, H: 999}, Options{})

	if len(res.Boxes) != 1 {
		t.Fatalf("got %d boxes, want 1", len(res.Boxes))
	}
	if res.Boxes[0].Box != [4]int{100, 100, 200, 200} {
		t.Errorf("box = %v", res.Boxes[0].Box)
	}
}

func TestParseMalformedPayloadNeverFails(t *testing.T) {
	raws := []string{
		`<|ref|>a<|/ref|><|det|>[[100,100<|/det|> trailing`,
		`<|ref|>b<|/ref|><|det|>not json at all<|/det|>`,
		`<|ref|>c<|/ref|><|det|>{"x":1}<|/det|>`,
		`<|ref|>d<|/ref|><|det|>[[1,2,3]]<|/det|>`,
		`<|ref|><|/ref|><|det|><|/det|>`,
	}
	for _, raw := range raws {
		res := Parse(raw+" prose survives", fullHD, Options{})
		if len(res.Boxes) != 0 {
			t.Errorf("raw %q yielded boxes %v, want none", raw, res.Boxes)
		}
		if !strings.Contains(res.Cleaned, "prose survives") {
			t.Errorf("raw %q lost surrounding prose: %q", raw, res.Cleaned)
		}
		if strings.Contains(res.Cleaned, "<|det|>") || strings.Contains(res.Cleaned, "<|ref|>") {
			t.Errorf("raw %q left markers in cleaned text: %q", raw, res.Cleaned)
		}
	}
}

func TestParsePreservesTablesAndFormulas(t *testing.T) {
	raw := "Intro\n<table><tr><td>1</td></tr></table>\n" +
		`$$E = mc^2 \coloneqq x$$` + "\n" +
		`<|ref|>figure<|/ref|><|det|>[[10,10,500,500]]<|/det|>`

	res := Parse(raw, fullHD, Options{})

	if !strings.Contains(res.Cleaned, "<table><tr><td>1</td></tr></table>") {
		t.Error("table markup was rewritten")
	}
	if !strings.Contains(res.Cleaned, "$$E = mc^2 := x$$") {
		t.Errorf("formula handling wrong: %q", res.Cleaned)
	}
}

func TestParseImageRefHook(t *testing.T) {
	raw := `Before
<|ref|>image<|/ref|><|det|>[[0,0,400,400],[500,500,900,900]]<|/det|>
After`

	res := Parse(raw, fullHD, Options{
		ImageRef: func(i int) string { return fmt.Sprintf("![](images/page-1-img-%d.jpg)", i) },
	})

	if res.ImageCount != 2 {
		t.Fatalf("ImageCount = %d, want 2", res.ImageCount)
	}
	if !strings.Contains(res.Cleaned, "![](images/page-1-img-0.jpg)\n![](images/page-1-img-1.jpg)") {
		t.Errorf("image refs missing from cleaned text: %q", res.Cleaned)
	}
	if len(res.Boxes) != 2 || res.Boxes[0].Label != "image" {
		t.Errorf("image boxes = %v", res.Boxes)
	}
}

func TestParseStripsGroundingTokenAndBlankRuns(t *testing.T) {
	raw := "<|grounding|>Line one\n\n\n\n\nLine two"
	res := Parse(raw, fullHD, Options{})
	if res.Cleaned != "Line one\n\nLine two" {
		t.Errorf("Cleaned = %q", res.Cleaned)
	}
}

func TestParseLabelOnlyPageFallsBackToLabels(t *testing.T) {
	raw := `<|ref|><|/ref|><|det|>[[1,2,3]]<|/det|>`
	res := Parse(raw, fullHD, Options{})
	if res.Cleaned != "" {
		t.Errorf("empty label should stay empty, got %q", res.Cleaned)
	}

	raw = `  <|ref|>header<|/ref|><|det|>bad<|/det|>  `
	res = Parse(raw, fullHD, Options{})
	if res.Cleaned != "header" {
		t.Errorf("Cleaned = %q, want the label", res.Cleaned)
	}
}

func TestScaleMonotonic(t *testing.T) {
	dims := []int{1, 640, 1080, 1920, 10000}
	for _, dim := range dims {
		prev := 0
		for n := 0; n <= 999; n++ {
			got := scaleCoord(float64(n), dim)
			if got < prev {
				t.Fatalf("scale(%d, %d) = %d < scale(%d) = %d", n, dim, got, n-1, prev)
			}
			if got < 0 || got > dim {
				t.Fatalf("scale(%d, %d) = %d out of range", n, dim, got)
			}
			prev = got
		}
		if scaleCoord(999, dim) != dim {
			t.Errorf("scale(999, %d) = %d, want %d", dim, scaleCoord(999, dim), dim)
		}
	}
}
