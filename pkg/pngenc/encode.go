// Package pngenc writes paletted images as compact PNG files: the smallest
// bit depth that fits the palette, a tRNS chunk cut after the last
// translucent entry, and IDAT compressed with klauspost/compress.
package pngenc

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"io"

	"github.com/klauspost/compress/zlib"
)

var (
	// ErrEmptyImage is returned for images without pixels.
	ErrEmptyImage = errors.New("image has no pixels")
	// ErrPaletteSize is returned when the palette is empty or has more
	// than 256 entries.
	ErrPaletteSize = errors.New("palette must have 1-256 entries")
	// ErrIndexOutOfRange is returned when a pixel refers past the palette.
	ErrIndexOutOfRange = errors.New("pixel index outside palette")
)

const (
	pngHeader = "\x89PNG\r\n\x1a\n"

	colorTypePaletted = 3

	// maxIDATSize splits image data into several IDAT chunks.
	maxIDATSize = 1 << 20
)

// Encoder holds encoding options. The zero value uses zlib.BestCompression.
type Encoder struct {
	// CompressionLevel is a zlib level; 0 means zlib.BestCompression.
	CompressionLevel int
}

// Encode writes img to w with the default Encoder.
func Encode(w io.Writer, img *image.Paletted) error {
	var e Encoder
	return e.Encode(w, img)
}

// Encode writes img to w as an indexed PNG.
func (e *Encoder) Encode(w io.Writer, img *image.Paletted) error {
	b := img.Bounds()
	if b.Empty() {
		return ErrEmptyImage
	}
	if n := len(img.Palette); n == 0 || n > 256 {
		return fmt.Errorf("%w: got %d", ErrPaletteSize, n)
	}

	depth := BitDepth(len(img.Palette))
	data, err := packRows(img, depth)
	if err != nil {
		return err
	}
	compressed, err := e.compress(data)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	cw := &chunkWriter{w: bw}
	if _, err := io.WriteString(bw, pngHeader); err != nil {
		return err
	}

	var ihdr [13]byte
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(b.Dx()))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(b.Dy()))
	ihdr[8] = byte(depth)
	ihdr[9] = colorTypePaletted
	cw.write("IHDR", ihdr[:])

	plte, trns := paletteChunks(img.Palette)
	cw.write("PLTE", plte)
	if len(trns) > 0 {
		cw.write("tRNS", trns)
	}
	for len(compressed) > 0 {
		n := min(len(compressed), maxIDATSize)
		cw.write("IDAT", compressed[:n])
		compressed = compressed[n:]
	}
	cw.write("IEND", nil)

	if cw.err != nil {
		return cw.err
	}
	return bw.Flush()
}

// BitDepth returns the smallest PNG bit depth that can index n colors.
func BitDepth(n int) int {
	switch {
	case n <= 2:
		return 1
	case n <= 4:
		return 2
	case n <= 16:
		return 4
	default:
		return 8
	}
}

// paletteChunks returns the PLTE payload and the tRNS payload, the latter
// truncated after the last entry that is not opaque.
func paletteChunks(pal color.Palette) ([]byte, []byte) {
	plte := make([]byte, 0, 3*len(pal))
	alpha := make([]byte, 0, len(pal))
	last := -1
	for i, c := range pal {
		n := color.NRGBAModel.Convert(c).(color.NRGBA)
		plte = append(plte, n.R, n.G, n.B)
		alpha = append(alpha, n.A)
		if n.A != 0xff {
			last = i
		}
	}
	return plte, alpha[:last+1]
}

// packRows lays out the scanlines with a leading filter byte (none) and
// depth bits per pixel, most significant bits first.
func packRows(img *image.Paletted, depth int) ([]byte, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	perByte := 8 / depth
	rowLen := 1 + (w+perByte-1)/perByte
	n := uint8(len(img.Palette))

	data := make([]byte, h*rowLen)
	for y := 0; y < h; y++ {
		row := data[y*rowLen : (y+1)*rowLen]
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):][:w]
		if depth == 8 {
			for x, idx := range src {
				if len(img.Palette) < 256 && idx >= n {
					return nil, fmt.Errorf("%w: %d at (%d,%d)", ErrIndexOutOfRange, idx, x, y)
				}
			}
			copy(row[1:], src)
			continue
		}
		for x, idx := range src {
			if idx >= n {
				return nil, fmt.Errorf("%w: %d at (%d,%d)", ErrIndexOutOfRange, idx, x, y)
			}
			shift := uint(8 - depth*(x%perByte+1))
			row[1+x/perByte] |= idx << shift
		}
	}
	return data, nil
}

func (e *Encoder) compress(data []byte) ([]byte, error) {
	level := e.CompressionLevel
	if level == 0 {
		level = zlib.BestCompression
	}
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create zlib writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, fmt.Errorf("failed to compress image data: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zlib writer: %w", err)
	}
	return buf.Bytes(), nil
}

// chunkWriter writes length, type, data and CRC, remembering the first
// error so callers can check once at the end.
type chunkWriter struct {
	w   io.Writer
	err error
}

func (cw *chunkWriter) write(typ string, data []byte) {
	if cw.err != nil {
		return
	}
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[:4], uint32(len(data)))
	copy(hdr[4:], typ)

	crc := crc32.NewIEEE()
	crc.Write(hdr[4:8])
	crc.Write(data)
	var footer [4]byte
	binary.BigEndian.PutUint32(footer[:], crc.Sum32())

	for _, p := range [][]byte{hdr[:], data, footer[:]} {
		if _, err := cw.w.Write(p); err != nil {
			cw.err = err
			return
		}
	}
}
