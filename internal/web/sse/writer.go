// Package sse writes Server-Sent Events carrying rendered HTML
// fragments. Each assistant response streams over its own SSE
// connection, so a Writer lives for the duration of one response.
package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/a-h/templ"
)

// ErrStreamingNotSupported indicates the ResponseWriter cannot flush,
// which SSE requires.
var ErrStreamingNotSupported = errors.New("sse: streaming not supported")

// Event names understood by the client script.
const (
	EventChunk = "chunk" // escaped text appended to the streaming bubble
	EventTool  = "tool"  // tool status fragment
	EventDone  = "done"  // final committed message, closes the connection
	EventError = "error" // JSON {code, message}
)

// Writer streams SSE frames to a single client.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares w for SSE and returns a Writer. Fails if the
// underlying connection does not support flushing.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingNotSupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &Writer{w: w, flusher: flusher}, nil
}

// writeFrame writes one SSE frame. Multi-line payloads get a "data: "
// prefix per line, as the protocol requires.
func (s *Writer) writeFrame(event, data string) error {
	var b strings.Builder
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	if _, err := fmt.Fprint(s.w, b.String()); err != nil {
		return fmt.Errorf("write sse frame: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// WriteEvent renders the component and sends it under the given event
// name.
func (s *Writer) WriteEvent(ctx context.Context, event string, comp templ.Component) error {
	var buf bytes.Buffer
	if err := comp.Render(ctx, &buf); err != nil {
		return fmt.Errorf("render sse component: %w", err)
	}
	return s.writeFrame(event, buf.String())
}

// WriteChunk sends one streamed text increment. The text is escaped
// here so raw model output can never inject markup.
func (s *Writer) WriteChunk(text string) error {
	return s.writeFrame(EventChunk, html.EscapeString(text))
}

// WriteTool sends a tool status fragment.
func (s *Writer) WriteTool(ctx context.Context, comp templ.Component) error {
	return s.WriteEvent(ctx, EventTool, comp)
}

// WriteDone sends the final committed message. The client replaces the
// streamed content with this fragment and closes the connection, so
// nothing already streamed is shown twice.
func (s *Writer) WriteDone(ctx context.Context, comp templ.Component) error {
	return s.WriteEvent(ctx, EventDone, comp)
}

// WriteError sends a structured error event.
func (s *Writer) WriteError(code, message string) error {
	payload, err := json.Marshal(map[string]string{
		"code":    code,
		"message": message,
	})
	if err != nil {
		return fmt.Errorf("marshal sse error: %w", err)
	}
	return s.writeFrame(EventError, string(payload))
}
