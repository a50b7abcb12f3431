package compressor

import (
	"bytes"
	"errors"
	"log/slog"
)

var (
	// ErrFileTooLarge is returned when the file exceeds the size limit
	ErrFileTooLarge = errors.New("file size exceeds limit")
	// ErrNotPNG is returned when the data does not start with the PNG signature
	ErrNotPNG = errors.New("not a PNG file")
	// ErrInvalidImageDimensions is returned when image dimensions are invalid
	ErrInvalidImageDimensions = errors.New("invalid image dimensions")
	// ErrImageTooLarge is returned when image dimensions exceed limits
	ErrImageTooLarge = errors.New("image dimensions exceed maximum allowed")
)

// Validation limits
const (
	MaxFileSize    = 20 * 1024 * 1024 // 20MB max file size
	MaxImageWidth  = 20000            // 20K pixels max width
	MaxImageHeight = 20000            // 20K pixels max height
	MaxImagePixels = 50_000_000       // 50 megapixels, 200MB as RGBA
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// IsPNG checks for the PNG signature
func IsPNG(data []byte) bool {
	return bytes.HasPrefix(data, pngSignature)
}

// ValidateFile checks the file size and signature before decoding
func ValidateFile(data []byte, maxSize int) error {
	if maxSize <= 0 {
		maxSize = MaxFileSize
	}
	if len(data) > maxSize {
		slog.Debug("file too large", "size", len(data), "max", maxSize)
		return ErrFileTooLarge
	}
	if !IsPNG(data) {
		return &DecodeError{Err: ErrNotPNG}
	}
	return nil
}

// ValidateDimensions checks image dimensions before the pixels are decoded,
// so a small file cannot claim a huge raster (decompression bomb)
func ValidateDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		slog.Debug("invalid dimensions", "width", width, "height", height)
		return ErrInvalidImageDimensions
	}
	if width > MaxImageWidth || height > MaxImageHeight {
		slog.Debug("dimensions too large", "width", width, "height", height)
		return ErrImageTooLarge
	}
	if int64(width)*int64(height) > MaxImagePixels {
		slog.Debug("too many pixels", "pixels", int64(width)*int64(height), "max", MaxImagePixels)
		return ErrImageTooLarge
	}
	return nil
}
