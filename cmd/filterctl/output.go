package main

import (
	"io"
	"os"

	"golang.org/x/term"

	ferrors "github.com/AGES-Pro-Mata/frontend-sub002/internal/errors"
)

// configureColor applies the --color mode to error output written to w.
func configureColor(mode string, w io.Writer) error {
	switch mode {
	case "always":
		ferrors.EnableColors()
	case "never":
		ferrors.DisableColors()
	case "", "auto":
		if isTerminal(w) {
			ferrors.EnableColors()
		} else {
			ferrors.DisableColors()
		}
	default:
		return ferrors.New("X003").WithDetailf("--color %q: want auto, always or never", mode)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// reportError writes err to w in the --error-format chosen by the user.
func reportError(w io.Writer, err error, format string) {
	if format == "json" {
		ferrors.FprintJSON(w, err)
		return
	}
	ferrors.Fprint(w, err)
}
