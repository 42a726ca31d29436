// Package codec adapts external media tooling to the three capability
// contracts the conversion pipeline dispatches to:
//
//   - ImageCodec: still-image conversion. libvips (govips) handles HEIC, SVG
//     and WebP; the pure-Go imaging library handles PNG and JPEG and stands
//     in when libvips is not initialised.
//   - VideoCodec: ffmpeg conversion to GIF or MP4, and ffprobe inspection.
//   - DocumentCodec: PDF rasterisation with poppler's pdftoppm and
//     reassembly of page images into a PDF with fpdf.
//
// Every adapter treats the tool as slow and fallible. Errors caused by a
// missing binary or an input the tool cannot read wrap ErrToolUnavailable
// so callers can tell them apart from internal failures.
package codec
