package formats

import (
	"fmt"
	"strings"
)

// Converter describes one supported source → target pair.
type Converter struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	URL            string `json:"url"`
	Class          string `json:"class"`
	SourceFormat   string `json:"sourceFormat"`
	TargetFormat   string `json:"targetFormat"`
	SourceMimeType string `json:"sourceMimeType"`
	TargetMimeType string `json:"targetMimeType"`
}

var descriptions = map[string]string{
	"jpg":  "universal JPG format",
	"png":  "lossless PNG format",
	"webp": "modern WebP format for smaller file sizes",
	"gif":  "an animated GIF",
	"mp4":  "a web-friendly H.264 MP4 video",
	"pdf":  "a flattened, image-based PDF",
}

// aliases are accepted as input but not listed separately.
var aliases = map[string]bool{"jpeg": true}

// Catalogue returns every supported pair, ordered by source then target.
func Catalogue() []Converter {
	var out []Converter
	for _, src := range sourceOrder {
		if aliases[src] {
			continue
		}
		class := sourceClasses[src]
		for _, dst := range targetFormats[class] {
			if aliases[dst] {
				continue
			}
			if dst == src && class != ClassDocument {
				continue
			}
			out = append(out, Converter{
				Title:          fmt.Sprintf("%s to %s", strings.ToUpper(src), strings.ToUpper(dst)),
				Description:    fmt.Sprintf("Convert %s files to %s.", strings.ToUpper(src), descriptions[dst]),
				URL:            fmt.Sprintf("%s-to-%s", src, dst),
				Class:          class.String(),
				SourceFormat:   src,
				TargetFormat:   dst,
				SourceMimeType: ContentType(src),
				TargetMimeType: ContentType(dst),
			})
		}
	}
	return out
}
