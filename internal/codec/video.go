package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"media-converter/internal/logging"
)

// gifFilter renders a palette-optimised GIF at 10 fps, 640 px wide.
const gifFilter = "fps=10,scale=640:-1:flags=lanczos,split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse"

// FFmpeg converts motion media with ffmpeg and inspects it with ffprobe.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string

	processes map[string]*exec.Cmd
	processMu sync.Mutex
}

var _ VideoCodec = (*FFmpeg)(nil)

// NewFFmpeg creates a video codec. Empty paths resolve "ffmpeg" and
// "ffprobe" from PATH at call time.
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		processes:   make(map[string]*exec.Cmd),
	}
}

// Available reports whether both binaries can be found.
func (f *FFmpeg) Available() bool {
	if _, err := exec.LookPath(f.ffmpegPath); err != nil {
		return false
	}
	_, err := exec.LookPath(f.ffprobePath)
	return err == nil
}

// VideoArgs builds the ffmpeg argument list for a conversion.
func VideoArgs(inputPath, outputPath, target string, quality int) ([]string, error) {
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", inputPath}

	switch strings.ToLower(target) {
	case "gif":
		args = append(args, "-vf", gifFilter, "-loop", "0")
	case "mp4":
		args = append(args,
			"-c:v", "libx264",
			"-pix_fmt", "yuv420p",
			"-movflags", "+faststart",
			"-preset", "medium",
			"-crf", strconv.Itoa(CRF(quality)),
		)
	default:
		return nil, fmt.Errorf("unsupported video target %q", target)
	}

	return append(args, outputPath), nil
}

// CRF maps a [1,100] quality onto x264's constant rate factor, where lower
// is better.
func CRF(quality int) int {
	crf := 51 - clampQuality(quality)/2
	if crf < 1 {
		return 1
	}
	if crf > 51 {
		return 51
	}
	return crf
}

// ConvertVideo implements VideoCodec.
func (f *FFmpeg) ConvertVideo(ctx context.Context, inputPath, outputPath, target string, quality int) (err error) {
	start := time.Now()
	defer func() { observe("ffmpeg", "convert", start, err) }()

	args, err := VideoArgs(inputPath, outputPath, target, quality)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	f.processMu.Lock()
	f.processes[outputPath] = cmd
	f.processMu.Unlock()

	defer func() {
		f.processMu.Lock()
		delete(f.processes, outputPath)
		f.processMu.Unlock()
	}()

	logging.Debug("Running ffmpeg %s", strings.Join(args, " "))

	if err = cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if missingTool(err) {
			return unavailable(err)
		}
		msg := strings.TrimSpace(stderr.String())
		logging.Error("FFmpeg stderr: %s", msg)
		if isUnsupportedInput(msg) {
			return fmt.Errorf("%w: ffmpeg: %s", ErrToolUnavailable, msg)
		}
		return fmt.Errorf("ffmpeg error: %w", err)
	}
	return nil
}

// isUnsupportedInput reports whether ffmpeg stderr indicates that it could
// not read the input at all.
func isUnsupportedInput(stderr string) bool {
	for _, marker := range []string{
		"Invalid data found when processing input",
		"could not find codec parameters",
		"Unknown encoder",
		"Decoder not found",
	} {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

// Probe implements VideoCodec. Valid is true when ffprobe finds a video
// stream.
func (f *FFmpeg) Probe(ctx context.Context, inputPath string) (result ProbeResult, err error) {
	start := time.Now()
	defer func() { observe("ffprobe", "probe", start, err) }()

	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err = cmd.Run(); err != nil {
		if missingTool(err) {
			return ProbeResult{}, unavailable(err)
		}
		return ProbeResult{}, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	return parseProbe(stdout.Bytes())
}

func parseProbe(data []byte) (ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return ProbeResult{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var result ProbeResult
	durStr := out.Format.Duration
	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		result.Valid = true
		result.Codec = s.CodecName
		result.Width = s.Width
		result.Height = s.Height
		if durStr == "" {
			durStr = s.Duration
		}
		break
	}

	if durStr != "" {
		seconds, err := strconv.ParseFloat(durStr, 64)
		if err != nil {
			return result, fmt.Errorf("invalid duration %q: %w", durStr, err)
		}
		result.Duration = time.Duration(seconds * float64(time.Second))
	}

	return result, nil
}

// Cleanup stops all active ffmpeg processes.
func (f *FFmpeg) Cleanup() {
	f.processMu.Lock()
	defer f.processMu.Unlock()

	for path, cmd := range f.processes {
		if cmd.Process != nil {
			logging.Info("Killing ffmpeg process for: %s", path)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill ffmpeg process for %s: %v", path, err)
			}
		}
	}
}
