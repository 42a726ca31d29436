package formats

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// MediaClass is the closed set of media families the pipeline can dispatch.
type MediaClass int

const (
	// ClassUnknown is never returned alongside a nil error.
	ClassUnknown MediaClass = iota
	// ClassImage covers still raster and vector images.
	ClassImage
	// ClassMotion covers video containers and animated GIFs.
	ClassMotion
	// ClassDocument covers PDF documents.
	ClassDocument
)

// Classes lists every dispatchable class in a stable order.
var Classes = []MediaClass{ClassImage, ClassMotion, ClassDocument}

// String returns the metric/log label for a class.
func (c MediaClass) String() string {
	switch c {
	case ClassImage:
		return "image"
	case ClassMotion:
		return "motion"
	case ClassDocument:
		return "document"
	default:
		return "unknown"
	}
}

var (
	// ErrUnsupportedType is returned when a source extension or declared MIME
	// type is not accepted.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrUnsupportedTarget is returned when the requested output format is not
	// produced for the source's media class.
	ErrUnsupportedTarget = errors.New("unsupported target format")
)

// sourceOrder is the allow-list of source extensions, in catalogue order.
var sourceOrder = []string{
	"png", "jpg", "jpeg", "webp", "heic", "svg",
	"gif", "mp4", "mov", "avi", "webm",
	"pdf",
}

var sourceClasses = map[string]MediaClass{
	"png":  ClassImage,
	"jpg":  ClassImage,
	"jpeg": ClassImage,
	"webp": ClassImage,
	"heic": ClassImage,
	"svg":  ClassImage,
	"gif":  ClassMotion,
	"mp4":  ClassMotion,
	"mov":  ClassMotion,
	"avi":  ClassMotion,
	"webm": ClassMotion,
	"pdf":  ClassDocument,
}

var targetFormats = map[MediaClass][]string{
	ClassImage:    {"png", "jpg", "jpeg", "webp"},
	ClassMotion:   {"gif", "mp4"},
	ClassDocument: {"pdf"},
}

// MimeTypes maps every known format to its canonical MIME type.
var MimeTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
	"heic": "image/heic",
	"svg":  "image/svg+xml",
	"gif":  "image/gif",
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
	"avi":  "video/x-msvideo",
	"webm": "video/webm",
	"pdf":  "application/pdf",
}

// mimeCategory reduces a declared MIME type to the coarse category used for
// the extension cross-check: "gif", "pdf", "mp4", "image" or "".
func mimeCategory(mimeType string) string {
	m := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(m, ";"); i != -1 {
		m = strings.TrimSpace(m[:i])
	}
	switch {
	case strings.Contains(m, "gif"):
		return "gif"
	case strings.Contains(m, "pdf"):
		return "pdf"
	case strings.Contains(m, "mp4"):
		return "mp4"
	case strings.HasPrefix(m, "image/"):
		return "image"
	default:
		return ""
	}
}

// expectedCategory is the MIME category an extension must declare. Every
// motion container other than gif must declare an mp4 type, so mov, avi and
// webm under their own MIME types are only accepted from trusted callers.
func expectedCategory(ext string) string {
	switch ext {
	case "gif":
		return "gif"
	case "pdf":
		return "pdf"
	case "mp4", "mov", "avi", "webm":
		return "mp4"
	default:
		return "image"
	}
}

// Extension returns the lowercase extension of filename without the dot.
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// BaseName returns filename without directory or extension.
func BaseName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Classify maps a filename and its declared MIME type to a media class.
//
// trusted callers skip the MIME cross-check but still need an allow-listed
// extension, since the extension decides which codec runs.
func Classify(filename, mimeType string, trusted bool) (MediaClass, error) {
	ext := Extension(filename)
	class, ok := sourceClasses[ext]
	if !ok {
		if ext == "" {
			return ClassUnknown, fmt.Errorf("%w: missing extension", ErrUnsupportedType)
		}
		return ClassUnknown, fmt.Errorf("%w: .%s", ErrUnsupportedType, ext)
	}

	if trusted {
		return class, nil
	}

	got := mimeCategory(mimeType)
	if got == "" || got != expectedCategory(ext) {
		return ClassUnknown, fmt.Errorf("%w: MIME type %q does not match .%s", ErrUnsupportedType, mimeType, ext)
	}

	return class, nil
}

// ValidateTarget normalizes target and checks it is produced for class.
func ValidateTarget(class MediaClass, target string) (string, error) {
	t := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(target), "."))
	for _, allowed := range targetFormats[class] {
		if t == allowed {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %s cannot be converted to %q", ErrUnsupportedTarget, class, target)
}

// Targets returns the output formats available for class.
func Targets(class MediaClass) []string {
	out := make([]string, len(targetFormats[class]))
	copy(out, targetFormats[class])
	return out
}

// ContentType returns the MIME type for a format, or application/octet-stream.
func ContentType(format string) string {
	if m, ok := MimeTypes[strings.ToLower(format)]; ok {
		return m
	}
	return "application/octet-stream"
}

// IsStill reports whether a target format for the motion class collapses the
// source into an animated image rather than a video stream.
func IsStill(target string) bool {
	return strings.EqualFold(target, "gif")
}
