package formats

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		mime     string
		trusted  bool
		want     MediaClass
		wantErr  error
	}{
		{"PNG image", "photo.png", "image/png", false, ClassImage, nil},
		{"Uppercase extension", "PHOTO.JPG", "image/jpeg", false, ClassImage, nil},
		{"JPEG alias", "photo.jpeg", "image/jpeg", false, ClassImage, nil},
		{"WebP", "a.webp", "image/webp", false, ClassImage, nil},
		{"HEIC", "IMG_0001.heic", "image/heic", false, ClassImage, nil},
		{"SVG with params", "logo.svg", "image/svg+xml; charset=utf-8", false, ClassImage, nil},
		{"GIF is motion", "anim.gif", "image/gif", false, ClassMotion, nil},
		{"MP4", "clip.mp4", "video/mp4", false, ClassMotion, nil},
		{"PDF", "doc.pdf", "application/pdf", false, ClassDocument, nil},
		{"Unknown extension", "notes.txt", "text/plain", false, ClassUnknown, ErrUnsupportedType},
		{"No extension", "README", "image/png", false, ClassUnknown, ErrUnsupportedType},
		{"Octet stream for png", "photo.png", "application/octet-stream", false, ClassUnknown, ErrUnsupportedType},
		{"Empty MIME", "photo.png", "", false, ClassUnknown, ErrUnsupportedType},
		{"PDF MIME on image", "photo.png", "application/pdf", false, ClassUnknown, ErrUnsupportedType},
		{"Image MIME on pdf", "doc.pdf", "image/png", false, ClassUnknown, ErrUnsupportedType},
		{"Quicktime MIME rejected", "clip.mov", "video/quicktime", false, ClassUnknown, ErrUnsupportedType},
		{"AVI MIME rejected", "clip.avi", "video/x-msvideo", false, ClassUnknown, ErrUnsupportedType},
		{"WebM MIME rejected", "clip.webm", "video/webm", false, ClassUnknown, ErrUnsupportedType},
		{"MOV declared as mp4", "clip.mov", "video/mp4", false, ClassMotion, nil},
		{"WebM declared as mp4", "clip.webm", "video/mp4", false, ClassMotion, nil},
		{"Trusted bypasses MIME", "photo.png", "application/octet-stream", true, ClassImage, nil},
		{"Trusted mov", "clip.mov", "video/quicktime", true, ClassMotion, nil},
		{"Trusted still needs extension", "notes.txt", "text/plain", true, ClassUnknown, ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.filename, tt.mime, tt.trusted)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Classify() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateTarget(t *testing.T) {
	// Every class accepts exactly its own targets and rejects everyone else's.
	for _, class := range Classes {
		for _, other := range Classes {
			for _, target := range Targets(other) {
				_, err := ValidateTarget(class, target)
				owned := false
				for _, own := range Targets(class) {
					if own == target {
						owned = true
					}
				}
				if owned && err != nil {
					t.Errorf("ValidateTarget(%s, %s) unexpected error: %v", class, target, err)
				}
				if !owned && !errors.Is(err, ErrUnsupportedTarget) {
					t.Errorf("ValidateTarget(%s, %s) = %v, want ErrUnsupportedTarget", class, target, err)
				}
			}
		}
	}
}

func TestValidateTargetNormalizes(t *testing.T) {
	got, err := ValidateTarget(ClassImage, " .JPG ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "jpg" {
		t.Errorf("expected jpg, got %q", got)
	}

	if _, err := ValidateTarget(ClassImage, "bmp"); !errors.Is(err, ErrUnsupportedTarget) {
		t.Errorf("expected ErrUnsupportedTarget for bmp, got %v", err)
	}
	if _, err := ValidateTarget(ClassUnknown, "png"); !errors.Is(err, ErrUnsupportedTarget) {
		t.Errorf("expected ErrUnsupportedTarget for unknown class, got %v", err)
	}
}

func TestTargetsReturnsCopy(t *testing.T) {
	targets := Targets(ClassMotion)
	targets[0] = "mkv"
	if Targets(ClassMotion)[0] != "gif" {
		t.Error("Targets() must not expose the internal table")
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"jpg":  "image/jpeg",
		"JPEG": "image/jpeg",
		"gif":  "image/gif",
		"pdf":  "application/pdf",
		"mp4":  "video/mp4",
		"xyz":  "application/octet-stream",
	}
	for format, want := range tests {
		if got := ContentType(format); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", format, got, want)
		}
	}
}

func TestBaseNameAndExtension(t *testing.T) {
	if got := BaseName("/tmp/uploads/holiday.photo.PNG"); got != "holiday.photo" {
		t.Errorf("BaseName() = %q", got)
	}
	if got := Extension("holiday.photo.PNG"); got != "png" {
		t.Errorf("Extension() = %q", got)
	}
}

func TestMediaClassString(t *testing.T) {
	if ClassImage.String() != "image" || ClassMotion.String() != "motion" ||
		ClassDocument.String() != "document" || ClassUnknown.String() != "unknown" {
		t.Error("unexpected MediaClass labels")
	}
}

func TestCatalogue(t *testing.T) {
	catalogue := Catalogue()
	if len(catalogue) == 0 {
		t.Fatal("expected a non-empty catalogue")
	}

	seen := make(map[string]bool)
	for _, c := range catalogue {
		if seen[c.URL] {
			t.Errorf("duplicate catalogue entry %s", c.URL)
		}
		seen[c.URL] = true

		class, err := Classify("x."+c.SourceFormat, c.SourceMimeType, false)
		if err != nil && c.SourceFormat != "mov" && c.SourceFormat != "avi" && c.SourceFormat != "webm" {
			t.Errorf("catalogue source %s does not classify: %v", c.SourceFormat, err)
		}
		if err == nil {
			if _, err := ValidateTarget(class, c.TargetFormat); err != nil {
				t.Errorf("catalogue pair %s is not dispatchable: %v", c.URL, err)
			}
		}
	}

	for _, want := range []string{"png-to-jpg", "heic-to-png", "mp4-to-gif", "gif-to-mp4", "pdf-to-pdf"} {
		if !seen[want] {
			t.Errorf("expected catalogue to contain %s", want)
		}
	}
	for _, unwanted := range []string{"png-to-png", "jpeg-to-png", "png-to-jpeg", "png-to-pdf"} {
		if seen[unwanted] {
			t.Errorf("catalogue should not contain %s", unwanted)
		}
	}
}
