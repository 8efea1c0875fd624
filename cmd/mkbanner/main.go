package main

import (
	"bufio"
	"flag"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"framepipe/assets"

	"golang.org/x/image/bmp"
)

func main() {
	var (
		inPath  = flag.String("in", "", "Input file (.png/.bmp for encode, raw strip for decode).")
		outPath = flag.String("out", "", "Output file (raw strip for encode, .bmp for decode).")
		mode    = flag.String("mode", "encode", "encode|decode.")
		width   = flag.Int("w", 320, "Strip width in pixels.")
		height  = flag.Int("h", assets.BannerHeight, "Strip height in pixels.")
	)
	flag.Parse()

	if *inPath == "" || *outPath == "" {
		fatalf("usage: mkbanner -mode encode -in banner.png -out banner.raw [-w 320 -h 32]\n       mkbanner -mode decode -in banner.raw -out preview.bmp")
	}
	if *width <= 0 || *height <= 0 {
		fatalf("invalid size %dx%d", *width, *height)
	}

	switch strings.ToLower(*mode) {
	case "encode":
		if err := encode(*inPath, *outPath, *width, *height); err != nil {
			fatalf("encode: %v", err)
		}
	case "decode":
		if err := decode(*inPath, *outPath, *width, *height); err != nil {
			fatalf("decode: %v", err)
		}
	default:
		fatalf("unknown mode: %s", *mode)
	}
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}

// encode scales an image to the strip size and writes raw big-endian
// RGBA5551.
func encode(inPath, outPath string, w, h int) error {
	in, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	img, format, err := image.Decode(bufio.NewReader(in))
	if err != nil {
		return fmt.Errorf("%s: %w", inPath, err)
	}
	b := img.Bounds()
	if b.Dx() != w || b.Dy() != h {
		fmt.Fprintf(os.Stderr, "mkbanner: scaling %s %dx%d to %dx%d\n", format, b.Dx(), b.Dy(), w, h)
	}
	return os.WriteFile(outPath, assets.BannerFromImage(img, w, h).Bytes(), 0o644)
}

// decode expands a raw strip into a BMP preview.
func decode(inPath, outPath string, w, h int) error {
	in, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	banner, err := assets.LoadBanner(in, w, h)
	if err != nil {
		return err
	}
	if ext := strings.ToLower(filepath.Ext(outPath)); ext != ".bmp" {
		return fmt.Errorf("decode writes BMP, got %q", ext)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	bw := bufio.NewWriter(out)
	if err := bmp.Encode(bw, banner.Image()); err != nil {
		return err
	}
	return bw.Flush()
}
