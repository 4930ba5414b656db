package naming

import (
	"path/filepath"
	"strings"
)

// SourceExt is the only recognized input extension (compared case-insensitively).
const SourceExt = ".webp"

// IsWebP reports whether path has the .webp extension, ignoring case.
func IsWebP(path string) bool {
	return strings.EqualFold(filepath.Ext(path), SourceExt)
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OutputPath returns the sibling of source with its extension replaced by ext
// (given without the dot, e.g. "jpg").
//
//	/photos/cat.webp, "gif" -> /photos/cat.gif
func OutputPath(source, ext string) string {
	return filepath.Join(filepath.Dir(source), Stem(source)+"."+ext)
}

// TempPath returns the hidden in-progress path used while output is encoded.
// It sits in the same directory so the final rename stays on one filesystem.
func TempPath(output string) string {
	return filepath.Join(filepath.Dir(output), "."+filepath.Base(output)+".part")
}

// IsTempPath reports whether path looks like a TempPath product.
func IsTempPath(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && strings.HasSuffix(base, ".part")
}
