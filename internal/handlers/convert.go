package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"media-converter/internal/convert"
	"media-converter/internal/formats"
	"media-converter/internal/identity"
	"media-converter/internal/logging"
	"media-converter/internal/metrics"
	"media-converter/internal/quota"
	"media-converter/internal/streaming"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	fileField   = "file"
	targetField = "targetFormat"

	// multipartSlack covers part headers and form fields on top of the file.
	multipartSlack = 1 << 20
	// maxFieldBytes bounds non-file form values.
	maxFieldBytes = 256
)

var errNoFile = errors.New("no file part in upload")

// upload is the result of reading a multipart convert request.
type upload struct {
	artifact convert.UploadedArtifact
	target   string
}

// Convert handles POST /api/convert. The body is multipart with a "file"
// part and a "targetFormat" field. On success the converted file is streamed
// back as an attachment.
func (h *Handlers) Convert(w http.ResponseWriter, r *http.Request) {
	id := caller(r)
	jobID := uuid.NewString()

	up, err := h.readUpload(w, r, id, jobID)
	if err != nil {
		if up.artifact.Path != "" {
			_ = os.Remove(up.artifact.Path)
		}
		switch {
		case errors.Is(err, errNoFile):
			writeJSONError(w, http.StatusBadRequest, convert.KindUnsupportedType.Code(), "No file uploaded")
		case isClientUploadError(err):
			logging.Warn("Rejected malformed upload from %s: %v", id.Key, err)
			writeJSONError(w, http.StatusBadRequest, convert.KindUnsupportedType.Code(), "Invalid upload")
		default:
			logging.Error("Failed to store upload for %s: %v", id.Key, err)
			writeJSONError(w, http.StatusInternalServerError, convert.KindInternal.Code(), internalMessage)
		}
		return
	}

	delivering := false
	sink := convert.SinkFunc(func(ctx context.Context, a convert.ConvertedArtifact, content io.Reader) error {
		delivering = true
		_, err := streaming.ServeAttachment(ctx, w, streaming.Attachment{
			FileName:    a.FileName,
			ContentType: a.ContentType,
			Size:        a.Size,
		}, content, h.stream)
		return err
	})

	job := convert.Job{
		ID:       jobID,
		Identity: id,
		Source:   up.artifact,
		Target:   up.target,
	}

	if _, err := h.orch.Convert(r.Context(), job, sink); err != nil {
		if delivering {
			// Headers are already on the wire.
			logging.Warn("Delivery of job %s to %s was cut short: %v", jobID, id.Key, err)
			return
		}
		writeConvertError(w, err)
	}
}

// readUpload streams the multipart body to the uploads area. A file larger
// than the caller's tier ceiling is read only up to ceiling+1 bytes, which is
// enough for the orchestrator to reject it by size.
func (h *Handlers) readUpload(w http.ResponseWriter, r *http.Request, id identity.Identity, jobID string) (upload, error) {
	var up upload

	ceiling := h.limits.Ceiling(id.Tier)
	if ceiling != quota.Unlimited {
		r.Body = http.MaxBytesReader(w, r.Body, ceiling+multipartSlack)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return up, err
	}

	haveFile := false
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return up, err
		}

		switch part.FormName() {
		case targetField:
			value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
			if err != nil {
				return up, err
			}
			up.target = strings.TrimSpace(string(value))

		case fileField:
			if haveFile {
				continue
			}
			haveFile = true
			if err := h.storeFile(part.FileName(), part.Header.Get("Content-Type"), part, ceiling, id, jobID, &up.artifact); err != nil {
				return up, err
			}
			if ceiling != quota.Unlimited && up.artifact.Size > ceiling {
				// Oversized; the remainder of the body is not needed.
				_ = part.Close()
				return up, nil
			}
		}
		_ = part.Close()
	}

	if !haveFile {
		return up, errNoFile
	}
	return up, nil
}

func (h *Handlers) storeFile(name, declared string, content io.Reader, ceiling int64, id identity.Identity, jobID string, a *convert.UploadedArtifact) error {
	original := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if original == "." || original == "/" {
		original = ""
	}

	path := filepath.Join(h.uploadDir, jobID+"."+uploadExtension(original))
	a.Path = path
	a.OriginalName = original

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}

	src := content
	if ceiling != quota.Unlimited {
		src = io.LimitReader(content, ceiling+1)
	}
	written, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	a.Size = written

	metrics.UploadBytesTotal.WithLabelValues(string(id.Tier)).Add(float64(written))

	if copyErr != nil {
		return copyErr
	}
	if closeErr != nil {
		return fmt.Errorf("close upload file: %w", closeErr)
	}

	// Sniff only when the part carried no Content-Type at all.
	a.MimeType = declaredType(declared)
	if strings.TrimSpace(declared) == "" && written > 0 {
		if mt, err := mimetype.DetectFile(path); err == nil {
			a.MimeType = mt.String()
		}
	}

	logging.Debug("Stored upload %q for %s: %s (%s)", original, id.Key, humanize.IBytes(uint64(written)), a.MimeType)
	return nil
}

// declaredType returns the media type the client declared, without
// parameters. A generic type such as application/octet-stream is still a
// declaration and is returned as is; only a missing or unparsable header
// yields "".
func declaredType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return mt
}

func uploadExtension(name string) string {
	if ext := formats.Extension(name); ext != "" && !strings.ContainsAny(ext, `/\`) {
		return ext
	}
	return "upload"
}

// isClientUploadError reports whether err came from a malformed request body
// rather than local storage.
func isClientUploadError(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var pathErr *os.PathError
	return !errors.As(err, &pathErr)
}
