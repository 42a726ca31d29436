package codec

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"media-converter/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP decode for the imaging path
)

// MaxImagePixels bounds decoded image size on the imaging path. Larger
// images are downscaled before encoding.
const MaxImagePixels = 40_000_000

// vipsOnlySources can only be decoded by libvips.
var vipsOnlySources = map[string]bool{
	"heic": true,
	"svg":  true,
}

// Image converts still images with libvips when it is initialised and with
// the imaging library otherwise.
type Image struct {
	// useVips is consulted per call so tests can force the imaging path.
	useVips func() bool
}

var _ ImageCodec = (*Image)(nil)

// NewImage creates an image codec.
func NewImage() *Image {
	return &Image{useVips: IsVipsAvailable}
}

// ConvertImage implements ImageCodec.
func (c *Image) ConvertImage(_ context.Context, inputPath, outputPath, target string, quality int) (err error) {
	target = normalizeImageTarget(target)
	quality = clampQuality(quality)
	source := strings.ToLower(strings.TrimPrefix(filepath.Ext(inputPath), "."))

	if c.useVips() && (vipsOnlySources[source] || source == "webp" || target == "webp") {
		start := time.Now()
		defer func() { observe("vips", "convert", start, err) }()
		return convertWithVips(inputPath, outputPath, target, quality)
	}

	if vipsOnlySources[source] || target == "webp" {
		return fmt.Errorf("%w: %s to %s requires libvips", ErrToolUnavailable, source, target)
	}

	start := time.Now()
	defer func() { observe("imaging", "convert", start, err) }()
	return convertWithImaging(inputPath, outputPath, target, quality)
}

func normalizeImageTarget(target string) string {
	target = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(target), "."))
	if target == "jpeg" {
		return "jpg"
	}
	return target
}

func convertWithVips(inputPath, outputPath, target string, quality int) error {
	ref, err := vips.LoadImageFromFile(inputPath, vips.NewImportParams())
	if err != nil {
		return fmt.Errorf("%w: vips failed to load %s: %v", ErrToolUnavailable, filepath.Base(inputPath), err)
	}
	defer ref.Close()

	logging.Debug("Vips loaded %s: %dx%d", filepath.Base(inputPath), ref.Width(), ref.Height())

	var data []byte
	switch target {
	case "jpg":
		// JPEG has no alpha channel.
		if ref.HasAlpha() {
			if err := ref.Flatten(&vips.Color{R: 255, G: 255, B: 255}); err != nil {
				return fmt.Errorf("vips flatten failed: %w", err)
			}
		}
		params := vips.NewJpegExportParams()
		params.Quality = quality
		params.OptimizeCoding = true
		data, _, err = ref.ExportJpeg(params)
	case "webp":
		params := vips.NewWebpExportParams()
		params.Quality = quality
		data, _, err = ref.ExportWebp(params)
	case "png":
		data, _, err = ref.ExportPng(vips.NewPngExportParams())
	default:
		return fmt.Errorf("unsupported image target %q", target)
	}
	if err != nil {
		return fmt.Errorf("vips export to %s failed: %w", target, err)
	}

	return os.WriteFile(outputPath, data, 0o644)
}

func convertWithImaging(inputPath, outputPath, target string, quality int) error {
	img, err := imaging.Open(inputPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("%w: failed to decode %s: %v", ErrToolUnavailable, filepath.Base(inputPath), err)
	}

	img = constrain(img, MaxImagePixels)

	var format imaging.Format
	var opts []imaging.EncodeOption
	switch target {
	case "jpg":
		format = imaging.JPEG
		opts = append(opts, imaging.JPEGQuality(quality))
	case "png":
		format = imaging.PNG
	default:
		return fmt.Errorf("unsupported image target %q", target)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	if err := imaging.Encode(out, img, format, opts...); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to encode %s: %w", target, err)
	}
	return out.Close()
}

// constrain downscales img so its pixel count does not exceed maxPixels.
func constrain(img image.Image, maxPixels int) image.Image {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width*height <= maxPixels {
		return img
	}

	// Pixel count scales with the square of the side.
	factor := math.Sqrt(float64(maxPixels) / float64(width*height))
	targetWidth := int(float64(width) * factor)
	targetHeight := int(float64(height) * factor)

	logging.Info("Constraining large image from %dx%d to %dx%d", width, height, targetWidth, targetHeight)
	return imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos)
}
