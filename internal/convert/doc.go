// Package convert turns one WebP file into a JPEG or GIF.
//
// A [Converter] handles exactly one [Task] per call and always returns a
// [Result]; decode, encode and delete failures (and panics) are captured in
// the result and never escape. Output is written to a hidden temp file beside
// the target and renamed into place only after a complete encode, so a failed
// task leaves neither a partial output nor a modified source.
package convert
