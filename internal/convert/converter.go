package convert

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/backmassage/webpconv/internal/naming"
	"github.com/backmassage/webpconv/internal/webp"
)

// Converter converts single tasks against a filesystem. It holds no
// per-task state and is safe for concurrent use.
type Converter struct {
	fs afero.Fs
}

// New returns a Converter that reads and writes through fs.
func New(fs afero.Fs) *Converter {
	return &Converter{fs: fs}
}

// Convert runs one task to completion and reports its outcome. It never
// panics and never returns a nil-error failure. ctx is consulted only before
// work starts; a conversion in progress is not interrupted.
func (c *Converter) Convert(ctx context.Context, t Task) (res Result) {
	start := time.Now()
	res = Result{SourcePath: t.SourcePath, OutputPath: t.OutputPath}
	if res.OutputPath == "" {
		res.OutputPath = naming.OutputPath(t.SourcePath, t.Options.Format.Ext())
	}

	stage := KindDecode
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Err = &Error{Kind: stage, Path: t.SourcePath, Err: fmt.Errorf("panic: %v", r)}
		}
		res.Elapsed = time.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	if !t.Options.Format.Valid() {
		res.Err = &Error{Kind: KindEncode, Path: t.SourcePath, Err: fmt.Errorf("unsupported format %q", t.Options.Format)}
		return res
	}
	if st, err := c.fs.Stat(t.SourcePath); err == nil {
		res.InputBytes = st.Size()
	}

	if t.Options.SkipExisting {
		if st, err := c.fs.Stat(res.OutputPath); err == nil {
			res.Success, res.Skipped = true, true
			res.OutputBytes = st.Size()
			if t.Options.DeleteOriginal {
				res.Warning = &Error{Kind: KindDelete, Path: t.SourcePath, Err: ErrOutputExists}
			}
			return res
		}
	}

	if t.Options.DryRun {
		info, err := webp.Probe(c.fs, t.SourcePath)
		if err != nil {
			res.Err = &Error{Kind: KindDecode, Path: t.SourcePath, Err: err}
			return res
		}
		res.Success = true
		res.Frames = info.Frames
		return res
	}

	var write func(io.Writer) error
	switch t.Options.Format {
	case FormatJPEG:
		fr, err := webp.First(c.fs, t.SourcePath)
		if err != nil {
			res.Err = &Error{Kind: KindDecode, Path: t.SourcePath, Err: err}
			return res
		}
		res.Frames = 1
		stage = KindEncode
		write = func(w io.Writer) error { return encodeJPEG(w, fr, t.Options.Quality) }
	case FormatGIF:
		b := &gifBuilder{dither: t.Options.Dither}
		for fr, err := range webp.Frames(c.fs, t.SourcePath) {
			if err != nil {
				res.Err = &Error{Kind: KindDecode, Path: t.SourcePath, Err: err}
				return res
			}
			b.add(fr)
		}
		if len(b.images) == 0 {
			res.Err = &Error{Kind: KindDecode, Path: t.SourcePath, Err: webp.ErrNoFrames}
			return res
		}
		res.Frames = len(b.images)
		stage = KindEncode
		g := b.finish()
		write = func(w io.Writer) error { return encodeGIF(w, g) }
	}

	n, err := c.writeAtomic(res.OutputPath, write)
	if err != nil {
		res.Err = &Error{Kind: KindEncode, Path: res.OutputPath, Err: err}
		return res
	}
	res.OutputBytes = n
	res.Success = true

	if t.Options.DeleteOriginal {
		stage = KindDelete
		if err := c.fs.Remove(t.SourcePath); err != nil {
			res.Warning = &Error{Kind: KindDelete, Path: t.SourcePath, Err: err}
		} else {
			res.Deleted = true
		}
	}
	return res
}

// writeAtomic encodes into a hidden temp file next to path, then renames it
// over path. On any failure, including a panic in write, the temp file is
// removed and path is untouched.
func (c *Converter) writeAtomic(path string, write func(io.Writer) error) (n int64, err error) {
	tmp := naming.TempPath(path)
	f, err := c.fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	closed := false
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			if !closed {
				_ = f.Close()
			}
			_ = c.fs.Remove(tmp)
		}
	}()

	cw := &countingWriter{w: f}
	bw := bufio.NewWriter(cw)
	err = write(bw)
	if err == nil {
		err = bw.Flush()
	}
	cerr := f.Close()
	closed = true
	if err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	if err = c.fs.Rename(tmp, path); err != nil {
		return 0, fmt.Errorf("rename into place: %w", err)
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// IsCanceled reports whether a result failed because its batch was canceled
// before the task started.
func IsCanceled(r Result) bool {
	return errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded)
}
