package workflow

import (
	"errors"
	"testing"
)

func TestIsImage(t *testing.T) {
	tests := []struct {
		mediaType string
		want      bool
	}{
		{"image/png", true},
		{"image/jpeg", true},
		{"IMAGE/PNG", true},
		{"image/webp; q=0.9", true},
		{"application/pdf", false},
		{"text/plain", false},
		{"", false},
		{"imagery/png", false},
	}
	for _, tt := range tests {
		if got := IsImage(tt.mediaType); got != tt.want {
			t.Errorf("IsImage(%q) = %v, want %v", tt.mediaType, got, tt.want)
		}
	}
}

func TestNewArtifact(t *testing.T) {
	a, err := NewArtifact("scan", "", pngHeader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.MediaType != "image/png" {
		t.Errorf("expected sniffed image/png, got %q", a.MediaType)
	}

	if _, err := NewArtifact("scan.png", "image/png", nil); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("expected ErrEmptyFile, got %v", err)
	}
	if _, err := NewArtifact("doc.pdf", "application/pdf", []byte("%PDF")); !errors.Is(err, ErrNotImage) {
		t.Errorf("expected ErrNotImage, got %v", err)
	}
}
