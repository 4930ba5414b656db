package display

import (
	"fmt"
	"io"

	"github.com/backmassage/webpconv/internal/term"
)

const banner = `             _
__ __ _____| |__ _ __  __ ___ _ ___ __
\ V  V / -_) '_ \ '_ \/ _/ _ \ ' \ V /
 \_/\_/\___|_.__/ .__/\__\___/_||_\_/
                |_|`

// PrintBanner prints the ASCII art banner; uses Magenta if colors are enabled.
func PrintBanner(w io.Writer) {
	fmt.Fprintln(w, term.Paint(term.Magenta, banner))
}
