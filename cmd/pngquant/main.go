// Command pngquant converts PNG images to smaller palette PNGs.
//
// Usage:
//
//	pngquant [options] <input.png>...   writes <input>-fs8.png next to each input
//	pngquant [options] -                reads stdin, writes stdout
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lmittmann/tint"

	"github.com/harliandi/go-pngquant/internal/compressor"
	"github.com/harliandi/go-pngquant/pkg/pngenc"
	"github.com/harliandi/go-pngquant/pkg/quality"
	"github.com/harliandi/go-pngquant/pkg/quant"
)

// Exit codes. exitQuality matches pngquant's.
const (
	exitError   = 1
	exitQuality = 99
)

type options struct {
	params    quant.Params
	ext       string
	output    string
	force     bool
	skipLarge bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, inputs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "pngquant: %v\n", err)
		return exitError
	}

	code := 0
	for _, in := range inputs {
		err := processFile(ctx, in, opts, stdin, stdout)
		switch {
		case err == nil:
		case errors.Is(err, quant.ErrQualityNotMet):
			slog.Warn("quality too low, skipped", "file", in, tint.Err(err))
			code = max(code, exitQuality)
		default:
			slog.Error("failed", "file", in, tint.Err(err))
			if code == 0 {
				code = exitError
			}
		}
		if ctx.Err() != nil {
			return exitError
		}
	}
	return code
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	fs := flag.NewFlagSet("pngquant", flag.ContinueOnError)
	fs.SetOutput(stderr)
	p := quant.DefaultParams()
	qualityRange := fs.String("quality", "", "min-max: don't save below min, use fewer colors below max (0-100)")
	fs.IntVar(&p.Speed, "speed", p.Speed, "speed/quality trade-off, 1 (brute-force) to 11 (fastest)")
	fs.IntVar(&p.PaletteSize, "colors", p.PaletteSize, "maximum number of colors, 2-256")
	noDither := fs.Bool("nofs", false, "disable Floyd-Steinberg dithering")
	fs.BoolVar(&p.IEBug, "iebug", false, "increase opacity to work around Internet Explorer 6 bug")
	fs.BoolVar(&p.TransparentLast, "transbug", false, "transparent color will be placed at the end of the palette")
	o := &options{}
	fs.StringVar(&o.ext, "ext", "-fs8.png", "output file name suffix")
	fs.StringVar(&o.output, "o", "", `output file, only with a single input ("-" for stdout)`)
	fs.BoolVar(&o.force, "force", false, "overwrite existing output files")
	fs.BoolVar(&o.skipLarge, "skip-if-larger", false, "only save if the result is smaller than the input")
	verbose := fs.Bool("verbose", false, "print status messages")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return nil, nil, errors.New("no input files")
	}
	if *qualityRange != "" {
		r, err := quality.ParseRange(*qualityRange)
		if err != nil {
			return nil, nil, err
		}
		p.MinQuality, p.MaxQuality = r.Min, r.Max
	}
	p.Dither = !*noDither
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	o.params = p
	if o.output != "" && fs.NArg() > 1 {
		return nil, nil, errors.New("-o can only be used with a single input file")
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(tint.NewHandler(stderr, &tint.Options{Level: level, TimeFormat: time.Kitchen})))
	return o, fs.Args(), nil
}

// outputPath returns where the result for in goes, "-" meaning stdout.
func (o *options) outputPath(in string) string {
	switch {
	case o.output != "":
		return o.output
	case in == "-":
		return "-"
	default:
		return strings.TrimSuffix(in, ".png") + o.ext
	}
}

func processFile(ctx context.Context, in string, o *options, stdin io.Reader, stdout io.Writer) error {
	start := time.Now()
	var data []byte
	var err error
	if in == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(in)
	}
	if err != nil {
		return err
	}

	out := o.outputPath(in)
	if out != "-" && !o.force {
		if _, err := os.Stat(out); err == nil {
			return fmt.Errorf("%s exists, use -force to overwrite", out)
		}
	}

	if err := compressor.ValidateFile(data, compressor.MaxFileSize); err != nil {
		return err
	}
	img, err := compressor.Decode(data)
	if err != nil {
		return err
	}

	task := quant.Go(ctx, quant.RasterFromNRGBA(img), o.params)
	res, err := task.Wait()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := pngenc.Encode(&buf, res.Image()); err != nil {
		return err
	}
	if o.skipLarge && buf.Len() >= len(data) {
		slog.Info("result is not smaller, skipped", "file", in,
			"input", humanize.IBytes(uint64(len(data))), "output", humanize.IBytes(uint64(buf.Len())))
		return nil
	}

	slog.Info("compressed",
		"file", in,
		"colors", len(res.Palette),
		"quality", res.Quality,
		"input", humanize.IBytes(uint64(len(data))),
		"output", humanize.IBytes(uint64(buf.Len())),
		"took", time.Since(start).Round(time.Millisecond),
	)
	if out == "-" {
		_, err = stdout.Write(buf.Bytes())
		return err
	}
	return os.WriteFile(out, buf.Bytes(), 0o644)
}
