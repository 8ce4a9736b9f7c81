package domain

import "testing"

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"plain_ocr", ModePlainOCR, false},
		{"Markdown", ModeMarkdown, false},
		{"  find_ref ", ModeFindRef, false},
		{"", ModePlainOCR, false},
		{"describe", ModeDescribe, false},
		{"banana", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if err != nil && !IsInput(err) {
				t.Errorf("ParseMode(%q) error kind = %q, want input", tt.in, KindOf(err))
			}
		})
	}
}

func TestModeRequiresGrounding(t *testing.T) {
	grounded := []Mode{ModeFindRef, ModeLayoutMap, ModePIIRedact}
	for _, m := range grounded {
		if !m.RequiresGrounding() {
			t.Errorf("%s should require grounding", m)
		}
	}
	for _, m := range []Mode{ModePlainOCR, ModeMarkdown, ModeDescribe, ModeFreeform} {
		if m.RequiresGrounding() {
			t.Errorf("%s should not require grounding", m)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"MARKDOWN", FormatMarkdown, false},
		{"html", FormatHTML, false},
		{"docx", FormatDOCX, false},
		{"", FormatJSON, false},
		{"pdf", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJobNormalize(t *testing.T) {
	j := Job{}.Normalize()

	if j.Mode != ModePlainOCR {
		t.Errorf("Mode = %q, want plain_ocr", j.Mode)
	}
	if j.DPI != 144 {
		t.Errorf("DPI = %d, want 144", j.DPI)
	}
	if j.BaseSize != 1024 || j.TileSize != 640 {
		t.Errorf("sizes = %d/%d, want 1024/640", j.BaseSize, j.TileSize)
	}

	// Explicit values survive normalization.
	j = Job{Mode: ModeMarkdown, DPI: 300, BaseSize: 512, TileSize: 512}.Normalize()
	if j.Mode != ModeMarkdown || j.DPI != 300 || j.BaseSize != 512 || j.TileSize != 512 {
		t.Errorf("Normalize overwrote explicit values: %+v", j)
	}
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		p    Progress
		want float64
		done bool
	}{
		{Progress{0, 0}, 0, false},
		{Progress{0, 4}, 0, false},
		{Progress{1, 4}, 25, false},
		{Progress{4, 4}, 100, true},
		{Progress{5, 4}, 100, false}, // clamped; never reported in practice
	}

	for _, tt := range tests {
		if got := tt.p.Percent(); got != tt.want {
			t.Errorf("Percent(%+v) = %v, want %v", tt.p, got, tt.want)
		}
		if got := tt.p.Done(); got != tt.done && tt.p.Completed <= tt.p.Total {
			t.Errorf("Done(%+v) = %v, want %v", tt.p, got, tt.done)
		}
	}
}

func TestPageResultFailed(t *testing.T) {
	if (PageResult{PageNumber: 1}).Failed() {
		t.Error("clean page reported as failed")
	}
	if !(PageResult{PageNumber: 3, Err: "inference failed"}).Failed() {
		t.Error("error-marked page reported as clean")
	}
}

func TestExtractedImageBase64(t *testing.T) {
	img := ExtractedImage{Name: "images/page-1-img-0.jpg", Data: []byte{0xFF, 0xD8, 0xFF}}
	if got := img.Base64(); got != "/9j/" {
		t.Errorf("Base64() = %q, want %q", got, "/9j/")
	}
}
