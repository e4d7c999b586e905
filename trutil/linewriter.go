// Package trutil holds small I/O helpers shared by bwcheck's packages.
package trutil

import (
	"bytes"
	"fmt"
	"strings"
)

// LineWriter is an io.Writer that calls Logf once per complete line written
// to it. Any occurrence of a string in Redact is masked before the line is
// logged.
type LineWriter struct {
	Prefix string
	Logf   func(string, ...any)

	// Redact lists secrets that must not reach the log. Empty strings are
	// ignored.
	Redact []string

	lineBuf strings.Builder
}

const mask = "********"

// Flush logs any partial line that has been written.
func (lw *LineWriter) Flush() error {
	if lw.lineBuf.Len() == 0 {
		return nil
	}
	return lw.flush()
}

func (lw *LineWriter) flush() error {
	line := lw.lineBuf.String()
	lw.lineBuf.Reset()
	for _, s := range lw.Redact {
		if s != "" {
			line = strings.ReplaceAll(line, s, mask)
		}
	}
	lw.Logf("%s%s", lw.Prefix, line)
	return nil
}

var newline = []byte{'\n'}

func (lw *LineWriter) Write(p []byte) (n int, err error) {
	p0 := p
	for {
		before, after, hasNewline := bytes.Cut(p, newline)
		lw.lineBuf.Write(before)
		if hasNewline {
			if err := lw.flush(); err != nil {
				return 0, err
			}
			p = after
		} else {
			return len(p0), nil
		}
	}
}

// Printf formats according to format and writes the result to lw.
func (lw *LineWriter) Printf(format string, args ...any) {
	fmt.Fprintf(lw, format, args...)
	if !strings.HasSuffix(format, "\n") {
		lw.Flush()
	}
}
