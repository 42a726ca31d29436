package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"media-converter/internal/logging"

	"github.com/go-pdf/fpdf"
)

// DefaultRasterDPI is the resolution pages are rendered at.
const DefaultRasterDPI = 150

// pagePrefix names rasterised pages page-1.png, page-2.png and so on;
// pdftoppm zero-pads the number for long documents.
const pagePrefix = "page"

// Document rasterises PDFs with pdftoppm and assembles page images into a
// PDF with fpdf.
type Document struct {
	pdftoppmPath string
	dpi          int
}

var _ DocumentCodec = (*Document)(nil)

// NewDocument creates a document codec. An empty path resolves "pdftoppm"
// from PATH; a non-positive dpi uses DefaultRasterDPI.
func NewDocument(pdftoppmPath string, dpi int) *Document {
	if pdftoppmPath == "" {
		pdftoppmPath = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = DefaultRasterDPI
	}
	return &Document{pdftoppmPath: pdftoppmPath, dpi: dpi}
}

// Available reports whether pdftoppm can be found.
func (d *Document) Available() bool {
	_, err := exec.LookPath(d.pdftoppmPath)
	return err == nil
}

// Rasterize implements DocumentCodec.
func (d *Document) Rasterize(ctx context.Context, inputPath, outputDir string) (pages []string, err error) {
	start := time.Now()
	defer func() { observe("pdftoppm", "rasterize", start, err) }()

	if err = os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create page directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, d.pdftoppmPath,
		"-png",
		"-r", strconv.Itoa(d.dpi),
		inputPath,
		filepath.Join(outputDir, pagePrefix),
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err = cmd.Run(); err != nil {
		if missingTool(err) {
			return nil, unavailable(err)
		}
		msg := strings.TrimSpace(stderr.String())
		logging.Error("pdftoppm stderr: %s", msg)
		if strings.Contains(msg, "Syntax Error") || strings.Contains(msg, "May not be a PDF file") {
			return nil, fmt.Errorf("%w: pdftoppm: %s", ErrToolUnavailable, msg)
		}
		return nil, fmt.Errorf("pdftoppm error: %w", err)
	}

	pages, err = listPages(outputDir)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		err = errors.New("pdftoppm produced no pages")
		return nil, err
	}

	logging.Debug("Rasterized %s into %d pages", filepath.Base(inputPath), len(pages))
	return pages, nil
}

// listPages returns page images in dir ordered by page number.
func listPages(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pagePrefix+"-*.png"))
	if err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		return pageNumber(matches[i]) < pageNumber(matches[j])
	})
	return matches, nil
}

func pageNumber(path string) int {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	n, err := strconv.Atoi(strings.TrimPrefix(name, pagePrefix+"-"))
	if err != nil {
		return -1
	}
	return n
}

// Assemble implements DocumentCodec. Each page is sized to its image, one
// point per pixel.
func (d *Document) Assemble(_ context.Context, imagePaths []string, outputPath string) (err error) {
	start := time.Now()
	defer func() { observe("fpdf", "assemble", start, err) }()

	if len(imagePaths) == 0 {
		return errors.New("no pages to assemble")
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{UnitStr: "pt"})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	for _, path := range imagePaths {
		width, height, imageType, err := imageInfo(path)
		if err != nil {
			return err
		}

		size := fpdf.SizeType{Wd: float64(width), Ht: float64(height)}
		pdf.AddPageFormat("P", size)
		pdf.ImageOptions(path, 0, 0, size.Wd, size.Ht, false,
			fpdf.ImageOptions{ImageType: imageType}, 0, "")
		if pdf.Err() {
			return fmt.Errorf("failed to add page %s: %w", filepath.Base(path), pdf.Error())
		}
	}

	if err := pdf.OutputFileAndClose(outputPath); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

// imageInfo returns the pixel size and fpdf image type of a page image.
func imageInfo(path string) (width, height int, imageType string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, "", err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, "", fmt.Errorf("failed to read page image %s: %w", filepath.Base(path), err)
	}

	switch format {
	case "png":
		imageType = "PNG"
	case "jpeg":
		imageType = "JPG"
	default:
		return 0, 0, "", fmt.Errorf("unsupported page image format %q", format)
	}
	return cfg.Width, cfg.Height, imageType, nil
}
