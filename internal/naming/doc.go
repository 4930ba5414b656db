// Package naming derives output paths for converted images and resolves
// collisions between inputs that would otherwise write the same output.
//
// Output files live next to their source: <dir>/<stem>.<ext>. Writes go to a
// hidden sibling temp file first (see TempPath) so readers never observe a
// partial image.
package naming
