// Package webp decodes WebP files into a lazy sequence of frames.
//
// The RIFF container is walked with golang.org/x/image/riff. Each still image
// or animation frame is re-wrapped as a minimal standalone WebP and handed to
// golang.org/x/image/webp, which understands VP8, VP8L and VP8+ALPH but not
// animation. Animation frames are composited onto a canvas here:
//
//   - frame offsets are stored halved (x2 on read)
//   - a frame either alpha-blends over the canvas or overwrites its rectangle
//   - "dispose to background" clears the previous frame's rectangle to
//     transparent before the next frame is drawn
//
// Every yielded frame is a full-canvas snapshot owned by the caller.
package webp
