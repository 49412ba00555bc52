package runner

import (
	"bytes"
	"io"
)

// lineWriter forwards complete lines to fn. Both '\n' and '\r' end a line
// because git redraws progress meters with carriage returns.
type lineWriter struct {
	fn  func(string)
	buf []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexAny(w.buf, "\r\n")
		if i < 0 {
			break
		}
		if i > 0 {
			w.fn(string(w.buf[:i]))
		}
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if len(w.buf) > 0 {
		w.fn(string(w.buf))
		w.buf = nil
	}
}

// sink returns the writer for one output stream: the capture buffer alone,
// or the buffer tee'd into a line callback.
func sink(buf *bytes.Buffer, fn func(string)) io.Writer {
	if fn == nil {
		return buf
	}
	return &teeLines{buf: buf, lines: &lineWriter{fn: fn}}
}

type teeLines struct {
	buf   *bytes.Buffer
	lines *lineWriter
}

func (t *teeLines) Write(p []byte) (int, error) {
	t.buf.Write(p)
	return t.lines.Write(p)
}

func flush(w io.Writer) {
	if t, ok := w.(*teeLines); ok {
		t.lines.flush()
	}
}
