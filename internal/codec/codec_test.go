package codec

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestClampQuality(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultQuality},
		{-5, 1},
		{1, 1},
		{85, 85},
		{100, 100},
		{250, 100},
	}
	for _, tt := range tests {
		if got := clampQuality(tt.in); got != tt.want {
			t.Errorf("clampQuality(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCRF(t *testing.T) {
	tests := []struct{ quality, want int }{
		{85, 9},
		{100, 1},
		{1, 51},
		{50, 26},
		{0, 9},
	}
	for _, tt := range tests {
		if got := CRF(tt.quality); got != tt.want {
			t.Errorf("CRF(%d) = %d, want %d", tt.quality, got, tt.want)
		}
	}
}

func TestVideoArgs(t *testing.T) {
	t.Run("gif", func(t *testing.T) {
		args, err := VideoArgs("in.mp4", "out.gif", "gif", 85)
		if err != nil {
			t.Fatal(err)
		}
		joined := strings.Join(args, " ")
		for _, want := range []string{"-i in.mp4", "-vf " + gifFilter, "-loop 0"} {
			if !strings.Contains(joined, want) {
				t.Errorf("args %q missing %q", joined, want)
			}
		}
		if args[len(args)-1] != "out.gif" {
			t.Errorf("last arg = %q, want output path", args[len(args)-1])
		}
	})

	t.Run("mp4", func(t *testing.T) {
		args, err := VideoArgs("in.gif", "out.mp4", "MP4", 85)
		if err != nil {
			t.Fatal(err)
		}
		joined := strings.Join(args, " ")
		for _, want := range []string{"-c:v libx264", "-pix_fmt yuv420p", "-movflags +faststart", "-preset medium", "-crf 9"} {
			if !strings.Contains(joined, want) {
				t.Errorf("args %q missing %q", joined, want)
			}
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if _, err := VideoArgs("in.mp4", "out.webm", "webm", 85); err == nil {
			t.Error("VideoArgs(webm) should fail")
		}
	})
}

func TestParseProbe(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    ProbeResult
		wantErr bool
	}{
		{
			name: "video with format duration",
			json: `{"streams":[{"codec_type":"audio","codec_name":"aac"},{"codec_type":"video","codec_name":"h264","width":1920,"height":1080}],"format":{"duration":"45.500000"}}`,
			want: ProbeResult{Duration: 45500 * time.Millisecond, Valid: true, Width: 1920, Height: 1080, Codec: "h264"},
		},
		{
			name: "stream duration fallback",
			json: `{"streams":[{"codec_type":"video","codec_name":"gif","width":320,"height":240,"duration":"2.0"}],"format":{}}`,
			want: ProbeResult{Duration: 2 * time.Second, Valid: true, Width: 320, Height: 240, Codec: "gif"},
		},
		{
			name: "no video stream",
			json: `{"streams":[{"codec_type":"audio","codec_name":"mp3"}],"format":{"duration":"10"}}`,
			want: ProbeResult{Duration: 10 * time.Second},
		},
		{
			name:    "garbage",
			json:    `not json`,
			wantErr: true,
		},
		{
			name:    "bad duration",
			json:    `{"streams":[],"format":{"duration":"N/A"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProbe([]byte(tt.json))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseProbe() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseProbe() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestUnavailableWrapsNotFound(t *testing.T) {
	err := unavailable(&exec.Error{Name: "ffmpeg", Err: exec.ErrNotFound})
	if !errors.Is(err, ErrToolUnavailable) {
		t.Errorf("unavailable(not found) = %v, want ErrToolUnavailable", err)
	}

	other := errors.New("boom")
	if got := unavailable(other); got != other {
		t.Errorf("unavailable(other) = %v, want unchanged", got)
	}
}

func TestFFmpegMissingBinary(t *testing.T) {
	f := NewFFmpeg("/nonexistent/ffmpeg", "/nonexistent/ffprobe")
	if f.Available() {
		t.Fatal("Available() = true for missing binaries")
	}

	dir := t.TempDir()
	err := f.ConvertVideo(context.Background(), filepath.Join(dir, "in.mp4"), filepath.Join(dir, "out.gif"), "gif", 85)
	if !errors.Is(err, ErrToolUnavailable) {
		t.Errorf("ConvertVideo() error = %v, want ErrToolUnavailable", err)
	}

	_, err = f.Probe(context.Background(), filepath.Join(dir, "in.mp4"))
	if !errors.Is(err, ErrToolUnavailable) {
		t.Errorf("Probe() error = %v, want ErrToolUnavailable", err)
	}
}

func TestFFmpegConvertGIFToMP4(t *testing.T) {
	f := NewFFmpeg("", "")
	if !f.Available() {
		t.Skip("ffmpeg/ffprobe not installed")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "in.mp4")
	gen := exec.Command("ffmpeg", "-hide_banner", "-loglevel", "error", "-f", "lavfi",
		"-i", "testsrc=duration=1:size=64x64:rate=10", "-pix_fmt", "yuv420p", src)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot generate test clip: %v %s", err, out)
	}

	probe, err := f.Probe(context.Background(), src)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !probe.Valid || probe.Duration <= 0 {
		t.Errorf("Probe() = %+v, want valid with duration", probe)
	}

	dst := filepath.Join(dir, "out.gif")
	if err := f.ConvertVideo(context.Background(), src, dst, "gif", 85); err != nil {
		t.Fatalf("ConvertVideo() error = %v", err)
	}
	if info, err := os.Stat(dst); err != nil || info.Size() == 0 {
		t.Errorf("output missing or empty: %v", err)
	}
}

func TestImagingConvertPNGToJPEG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	dst := filepath.Join(dir, "out.jpg")
	writePNG(t, src, 32, 16)

	c := &Image{useVips: func() bool { return false }}
	if err := c.ConvertImage(context.Background(), src, dst, "jpeg", 85); err != nil {
		t.Fatalf("ConvertImage() error = %v", err)
	}

	f, err := os.Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 16 {
		t.Errorf("output size = %dx%d, want 32x16", b.Dx(), b.Dy())
	}
}

func TestImagingConvertToPNG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	dst := filepath.Join(dir, "out.png")
	writePNG(t, src, 8, 8)

	c := &Image{useVips: func() bool { return false }}
	if err := c.ConvertImage(context.Background(), src, dst, "png", 1); err != nil {
		t.Fatalf("ConvertImage() error = %v", err)
	}
	f, err := os.Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Errorf("output is not a PNG: %v", err)
	}
}

func TestImageWithoutVips(t *testing.T) {
	dir := t.TempDir()
	c := &Image{useVips: func() bool { return false }}

	tests := []struct {
		name   string
		src    string
		target string
	}{
		{"heic source", "in.heic", "jpg"},
		{"svg source", "in.svg", "png"},
		{"webp target", "in.png", "webp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.ConvertImage(context.Background(), filepath.Join(dir, tt.src), filepath.Join(dir, "out"), tt.target, 85)
			if !errors.Is(err, ErrToolUnavailable) {
				t.Errorf("ConvertImage() error = %v, want ErrToolUnavailable", err)
			}
		})
	}
}

func TestImagingCorruptInput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	if err := os.WriteFile(src, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &Image{useVips: func() bool { return false }}
	err := c.ConvertImage(context.Background(), src, filepath.Join(dir, "out.jpg"), "jpg", 85)
	if !errors.Is(err, ErrToolUnavailable) {
		t.Errorf("ConvertImage() error = %v, want ErrToolUnavailable", err)
	}
}

func TestConstrain(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 400, 100))
	got := constrain(img, 10_000)
	b := got.Bounds()
	if b.Dx()*b.Dy() > 10_000 {
		t.Errorf("constrained to %dx%d, exceeds pixel budget", b.Dx(), b.Dy())
	}
	if b.Dx() != 200 || b.Dy() != 50 {
		t.Errorf("constrained to %dx%d, want 200x50", b.Dx(), b.Dy())
	}

	if same := constrain(img, 1_000_000); same != image.Image(img) {
		t.Error("constrain() modified an image within budget")
	}
}

func TestListPagesOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page-10.png", "page-2.png", "page-1.png", "other.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	pages, err := listPages(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, p := range pages {
		names = append(names, filepath.Base(p))
	}
	want := []string{"page-1.png", "page-2.png", "page-10.png"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("listPages() = %v, want %v", names, want)
	}
}

func TestAssemble(t *testing.T) {
	dir := t.TempDir()
	pages := []string{filepath.Join(dir, "page-1.png"), filepath.Join(dir, "page-2.png")}
	writePNG(t, pages[0], 60, 80)
	writePNG(t, pages[1], 80, 60)

	out := filepath.Join(dir, "out.pdf")
	d := NewDocument("", 0)
	if err := d.Assemble(context.Background(), pages, out); err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "%PDF-") {
		t.Error("output does not start with a PDF header")
	}
	if n := strings.Count(string(data), "/Type /Page") - strings.Count(string(data), "/Type /Pages"); n != 2 {
		t.Errorf("page count = %d, want 2", n)
	}
}

func TestAssembleErrors(t *testing.T) {
	d := NewDocument("", 0)
	dir := t.TempDir()

	if err := d.Assemble(context.Background(), nil, filepath.Join(dir, "out.pdf")); err == nil {
		t.Error("Assemble(nil) should fail")
	}
	if err := d.Assemble(context.Background(), []string{filepath.Join(dir, "missing.png")}, filepath.Join(dir, "out.pdf")); err == nil {
		t.Error("Assemble(missing page) should fail")
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	d := NewDocument("", 0)
	if !d.Available() {
		t.Skip("pdftoppm not installed")
	}

	dir := t.TempDir()
	page := filepath.Join(dir, "src-1.png")
	writePNG(t, page, 50, 50)
	src := filepath.Join(dir, "src.pdf")
	if err := d.Assemble(context.Background(), []string{page}, src); err != nil {
		t.Fatal(err)
	}

	pages, err := d.Rasterize(context.Background(), src, filepath.Join(dir, "pages"))
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("Rasterize() = %d pages, want 1", len(pages))
	}

	out := filepath.Join(dir, "out.pdf")
	if err := d.Assemble(context.Background(), pages, out); err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
}

func TestRasterizeMissingBinary(t *testing.T) {
	d := NewDocument("/nonexistent/pdftoppm", 0)
	dir := t.TempDir()
	_, err := d.Rasterize(context.Background(), filepath.Join(dir, "in.pdf"), filepath.Join(dir, "pages"))
	if !errors.Is(err, ErrToolUnavailable) {
		t.Errorf("Rasterize() error = %v, want ErrToolUnavailable", err)
	}
}
