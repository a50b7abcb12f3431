// Package compressor turns PNG bytes into smaller palette PNG bytes: it
// validates and decodes the input, runs the quantizer, encodes the result
// and caches it.
package compressor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"strconv"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/image/draw"

	"github.com/harliandi/go-pngquant/internal/cache"
	"github.com/harliandi/go-pngquant/pkg/metrics"
	"github.com/harliandi/go-pngquant/pkg/pngenc"
	"github.com/harliandi/go-pngquant/pkg/quant"
)

// DecodeError reports input that could not be read as a PNG. The
// underlying codec error is kept as is.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode PNG: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Cache stores compressed outputs. Find returns nil, nil on a miss.
type Cache interface {
	Find(key string) ([]byte, error)
	Write(key string, data []byte) error
}

// Output is a compressed image and what is known about it.
type Output struct {
	Data []byte
	// Quality is the evaluated 0-100 quality, or -1 when served from cache.
	Quality int
	MSE     float64
	Colors  int
	Width   int
	Height  int
	Cached  bool
}

// Compressor handles PNG to palette PNG compression
type Compressor struct {
	cache       Cache
	encoder     pngenc.Encoder
	buffers     *BufferPool
	maxFileSize int
}

// Option configures a Compressor.
type Option func(*Compressor)

// WithCache enables the result cache.
func WithCache(c Cache) Option {
	return func(cp *Compressor) {
		cp.cache = c
	}
}

// WithMaxFileSize overrides MaxFileSize.
func WithMaxFileSize(n int) Option {
	return func(cp *Compressor) {
		cp.maxFileSize = n
	}
}

// WithCompressionLevel sets the zlib level of the output.
func WithCompressionLevel(level int) Option {
	return func(cp *Compressor) {
		cp.encoder.CompressionLevel = level
	}
}

// New creates a Compressor
func New(opts ...Option) *Compressor {
	c := &Compressor{
		buffers:     NewBufferPool(),
		maxFileSize: MaxFileSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompressBytes compresses one PNG. Errors are *DecodeError for unreadable
// input, the validation sentinels, or whatever quant.Quantize returns.
func (c *Compressor) CompressBytes(ctx context.Context, data []byte, opts Options) (*Output, error) {
	start := time.Now()
	speed := strconv.Itoa(opts.Speed())

	out, err := c.compress(ctx, data, opts)
	status := "success"
	switch {
	case err == nil && out.Cached:
		status = "cached"
	case errors.Is(err, quant.ErrQualityNotMet):
		status = "quality"
	case errors.Is(err, quant.ErrCancelled), errors.Is(err, context.Canceled):
		status = "cancelled"
	case err != nil:
		status = "error"
	}
	var outBytes int
	if out != nil {
		outBytes = len(out.Data)
	}
	metrics.RecordCompression(status, speed, time.Since(start).Seconds(), len(data), outBytes)
	if err != nil {
		return nil, err
	}
	if !out.Cached {
		metrics.RecordResult(out.Colors, out.Quality)
	}
	return out, nil
}

func (c *Compressor) compress(ctx context.Context, data []byte, opts Options) (*Output, error) {
	if err := ValidateFile(data, c.maxFileSize); err != nil {
		return nil, err
	}
	params := opts.Params()
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var key string
	if c.cache != nil {
		key = cache.Key(data, opts.String())
		if out := c.lookup(key); out != nil {
			return out, nil
		}
	}

	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	res, err := quant.Quantize(ctx, quant.RasterFromNRGBA(img), params)
	if err != nil {
		return nil, err
	}

	buf := c.buffers.Get(len(data))
	defer c.buffers.Put(buf)
	if err := c.encoder.Encode(buf, res.Image()); err != nil {
		return nil, fmt.Errorf("encode PNG: %w", err)
	}
	out := &Output{
		Data:    bytes.Clone(buf.Bytes()),
		Quality: res.Quality,
		MSE:     res.MSE,
		Colors:  len(res.Palette),
		Width:   res.Width,
		Height:  res.Height,
	}

	slog.Debug("compressed",
		"size", len(data),
		"output", len(out.Data),
		"colors", out.Colors,
		"quality", out.Quality,
		"attempts", res.Attempts,
		"options", opts.String(),
	)

	if c.cache != nil {
		if err := c.cache.Write(key, out.Data); err != nil {
			slog.Warn("failed to write cache", tint.Err(err))
		}
	}
	return out, nil
}

func (c *Compressor) lookup(key string) *Output {
	data, err := c.cache.Find(key)
	if err != nil {
		slog.Warn("failed to read cache", tint.Err(err))
	}
	metrics.RecordCacheLookup(data != nil)
	if data == nil {
		return nil
	}
	out := &Output{Data: data, Quality: -1, Cached: true}
	if cfg, err := png.DecodeConfig(bytes.NewReader(data)); err == nil {
		out.Width, out.Height = cfg.Width, cfg.Height
		if pal, ok := cfg.ColorModel.(color.Palette); ok {
			out.Colors = len(pal)
		}
	}
	return out
}

// Decode reads a PNG into a tightly packed NRGBA image. Dimensions are
// checked before any pixel data is decoded.
func Decode(data []byte) (*image.NRGBA, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if err := ValidateDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if nrgba, ok := src.(*image.NRGBA); ok {
		return nrgba, nil
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Copy(dst, image.Point{}, src, b, draw.Src, nil)
	return dst, nil
}
