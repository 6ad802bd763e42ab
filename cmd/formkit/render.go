package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/wudi/formkit/config"
	"github.com/wudi/formkit/observability"
)

func runRender(ctx context.Context, cfg config.Options, logger observability.Logger, args []string) error {
	fs := newFlagSet("render", "-o page.png <pdf>")
	page := fs.Int("page", 1, "Page number, starting at 1")
	scale := fs.Float64("scale", cfg.RenderScale, "Pixels per point")
	out := fs.String("o", "", "Output image; the extension selects png, tiff or bmp")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	if *out == "" {
		fs.Usage()
		return usageError{"-o is required"}
	}
	encode, err := encoderFor(*out)
	if err != nil {
		return err
	}
	doc, err := openFile(ctx, fs, cfg, logger)
	if err != nil {
		return err
	}
	if *page < 1 || *page > doc.NumPages() {
		return usageError{fmt.Sprintf("page %d out of range 1-%d", *page, doc.NumPages())}
	}
	rp, err := doc.Render(ctx, *page-1, *scale)
	if err != nil {
		return fmt.Errorf("render page %d: %w", *page, err)
	}
	for _, w := range rp.Warnings {
		fmt.Fprintf(os.Stderr, "formkit: warning: %s\n", w)
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := encode(f, rp.Image); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", *out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("page rendered",
		observability.String("path", *out),
		observability.Int("width", rp.Width),
		observability.Int("height", rp.Height))
	return nil
}

func encoderFor(path string) (func(io.Writer, image.Image) error, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Encode, nil
	case ".tif", ".tiff":
		return func(w io.Writer, m image.Image) error {
			return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate})
		}, nil
	case ".bmp":
		return bmp.Encode, nil
	}
	return nil, usageError{fmt.Sprintf("unsupported image format %q", filepath.Ext(path))}
}
