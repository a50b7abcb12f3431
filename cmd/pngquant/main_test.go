package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 8), G: uint8(y * 8), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "in.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	in := writeTestPNG(t, dir)

	var stderr bytes.Buffer
	if code := run(context.Background(), []string{"-colors", "8", in}, nil, io.Discard, &stderr); code != 0 {
		t.Fatalf("run() = %d, stderr: %s", code, stderr.String())
	}
	out := filepath.Join(dir, "in-fs8.png")
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if p, ok := img.(*image.Paletted); !ok || len(p.Palette) > 8 {
		t.Errorf("output is %T, want at most 8 colors", img)
	}

	// A second run refuses to overwrite without -force.
	if code := run(context.Background(), []string{in}, nil, io.Discard, io.Discard); code != exitError {
		t.Errorf("run() without -force = %d, want %d", code, exitError)
	}
	if code := run(context.Background(), []string{"-force", in}, nil, io.Discard, io.Discard); code != 0 {
		t.Errorf("run(-force) = %d, want 0", code)
	}
}

func TestRun_Stdio(t *testing.T) {
	data, err := os.ReadFile(writeTestPNG(t, t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	if code := run(context.Background(), []string{"-speed", "10", "-nofs", "-"}, bytes.NewReader(data), &stdout, io.Discard); code != 0 {
		t.Fatalf("run() = %d", code)
	}
	if _, err := png.Decode(&stdout); err != nil {
		t.Errorf("stdout is not a PNG: %v", err)
	}
}

func TestRun_TransBug(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x > 0 {
				img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 30), G: 90, B: 10, A: 255})
			}
		}
	}
	var in bytes.Buffer
	if err := png.Encode(&in, img); err != nil {
		t.Fatal(err)
	}

	for _, transbug := range []bool{false, true} {
		args := []string{"-nofs", "-"}
		if transbug {
			args = append([]string{"-transbug"}, args...)
		}
		var stdout bytes.Buffer
		if code := run(context.Background(), args, bytes.NewReader(in.Bytes()), &stdout, io.Discard); code != 0 {
			t.Fatalf("run(%v) = %d", args, code)
		}
		out, err := png.Decode(&stdout)
		if err != nil {
			t.Fatalf("png.Decode() error = %v", err)
		}
		pal := out.(*image.Paletted).Palette
		want := 0
		if transbug {
			want = len(pal) - 1
		}
		if _, _, _, a := pal[want].RGBA(); a != 0 {
			t.Errorf("transbug %v: palette[%d] = %v, want transparent", transbug, want, pal[want])
		}
	}
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	in := writeTestPNG(t, dir)
	bad := filepath.Join(dir, "bad.png")
	os.WriteFile(bad, []byte("not a png"), 0o644)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"No input", nil, exitError},
		{"Bad speed", []string{"-speed", "0", in}, exitError},
		{"Bad quality", []string{"-quality", "80-20", in}, exitError},
		{"Missing file", []string{filepath.Join(dir, "missing.png")}, exitError},
		{"Not a PNG", []string{bad}, exitError},
		{"Quality too low", []string{"-quality", "95-100", "-colors", "2", "-o", filepath.Join(dir, "q.png"), in}, exitQuality},
		{"Help", []string{"-h"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(context.Background(), tt.args, nil, io.Discard, io.Discard); got != tt.want {
				t.Errorf("run(%v) = %d, want %d", tt.args, got, tt.want)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	o := &options{ext: "-fs8.png"}
	if got := o.outputPath("dir/a.png"); got != "dir/a-fs8.png" {
		t.Errorf("outputPath() = %q", got)
	}
	if got := o.outputPath("-"); got != "-" {
		t.Errorf("outputPath(-) = %q", got)
	}
	o.output = "x.png"
	if got := o.outputPath("dir/a.png"); got != "x.png" {
		t.Errorf("outputPath() with -o = %q", got)
	}
}
