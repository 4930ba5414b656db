package convert

import (
	"errors"
	"fmt"
)

// Kind classifies a conversion failure by the stage it happened in.
type Kind int

const (
	// KindDecode means the source could not be opened or is not a valid WebP.
	KindDecode Kind = iota + 1
	// KindEncode means the output could not be produced or written.
	KindEncode
	// KindDelete means the source could not be removed after conversion.
	KindDelete
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindEncode:
		return "encode"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Sentinels matched by [Error.Is], so callers can write errors.Is(err, ErrDecode).
var (
	ErrDecode = errors.New("decode failed")
	ErrEncode = errors.New("encode failed")
	ErrDelete = errors.New("delete failed")

	// ErrOutputExists is the warning on a skipped result whose source was
	// kept although DeleteOriginal was set.
	ErrOutputExists = errors.New("output already exists")
)

// Error is a conversion failure tied to a file.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrDecode:
		return e.Kind == KindDecode
	case ErrEncode:
		return e.Kind == KindEncode
	case ErrDelete:
		return e.Kind == KindDelete
	}
	return false
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}
