package transport

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// eventWriter writes Server-Sent Events and flushes after each one.
type eventWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func (e *eventWriter) event(name string, data []byte) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "event: %s\n", name)
	for _, line := range bytes.Split(data, []byte("\n")) {
		b.WriteString("data: ")
		b.Write(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return e.write(b.Bytes())
}

func (e *eventWriter) comment(text string) error {
	return e.write([]byte(": " + text + "\n\n"))
}

func (e *eventWriter) write(p []byte) error {
	if _, err := e.w.Write(p); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}
