// Package formats classifies uploaded files into media classes and
// validates requested output formats.
//
// Every accepted source extension maps to exactly one MediaClass:
//   - ClassImage: png, jpg, jpeg, webp, heic, svg
//   - ClassMotion: gif, mp4, mov, avi, webm
//   - ClassDocument: pdf
//
// Each class has a fixed set of output formats. The same tables drive the
// public converter catalogue, so the catalogue cannot advertise a pair that
// dispatch would reject.
package formats
