package pdf

import (
	"bytes"
	"testing"

	"github.com/pagelens/docr/internal/domain"
)

func TestValidatePDF(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"valid header", []byte("%PDF-1.7\n..."), false},
		{"header after junk", append(bytes.Repeat([]byte{0}, 100), []byte("%PDF-1.4")...), false},
		{"empty", nil, true},
		{"png masquerading", []byte("\x89PNG\r\n\x1a\n"), true},
		{"header too deep", append(bytes.Repeat([]byte{0}, 2048), []byte("%PDF-1.4")...), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePDF(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePDF error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !domain.IsInput(err) {
				t.Errorf("error kind = %q, want input", domain.KindOf(err))
			}
		})
	}
}

func TestValidateDPI(t *testing.T) {
	for _, dpi := range []int{36, 144, 300, 600} {
		if err := ValidateDPI(dpi); err != nil {
			t.Errorf("ValidateDPI(%d) = %v, want nil", dpi, err)
		}
	}
	for _, dpi := range []int{0, -1, 35, 601, 10000} {
		if err := ValidateDPI(dpi); !domain.IsInput(err) {
			t.Errorf("ValidateDPI(%d) = %v, want input error", dpi, err)
		}
	}
}

func TestNewFitzRendererRejectsGarbage(t *testing.T) {
	if _, err := NewFitzRenderer([]byte("not a pdf")); !domain.IsInput(err) {
		t.Errorf("err = %v, want input error", err)
	}
	if _, err := NewFitzRenderer(nil); !domain.IsInput(err) {
		t.Errorf("err = %v, want input error", err)
	}
}
