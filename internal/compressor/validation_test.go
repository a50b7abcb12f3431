package compressor

import (
	"errors"
	"testing"
)

func TestValidateFile(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 100)...)

	tests := []struct {
		name    string
		data    []byte
		maxSize int
		wantErr error
	}{
		{"Valid", png, 0, nil},
		{"At limit", png, len(png), nil},
		{"Over limit", png, len(png) - 1, ErrFileTooLarge},
		{"Empty", nil, 0, ErrNotPNG},
		{"JPEG", []byte{0xff, 0xd8, 0xff, 0xe0}, 0, ErrNotPNG},
		{"Short signature", png[:4], 0, ErrNotPNG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFile(tt.data, tt.maxSize)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateFile() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDimensions(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		wantErr       error
	}{
		{"Valid", 1920, 1080, nil},
		{"Single pixel", 1, 1, nil},
		{"Zero width", 0, 10, ErrInvalidImageDimensions},
		{"Negative height", 10, -1, ErrInvalidImageDimensions},
		{"Too wide", MaxImageWidth + 1, 1, ErrImageTooLarge},
		{"Too tall", 1, MaxImageHeight + 1, ErrImageTooLarge},
		{"Too many pixels", 10000, 10000, ErrImageTooLarge},
		{"Max pixels", 10000, 5000, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDimensions(tt.width, tt.height)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDimensions() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
