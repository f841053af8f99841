// Package sse implements the Server-Sent Events wire framing shared by the
// chat streaming pipeline (C7) and the agent execution loop (C8): an
// `event:`/`data:` emitter over io.Writer, and a matching parser over
// io.Reader used by tests to assert that an emitted sequence round-trips.
//
// No third-party SSE library in the example corpus offers a better fit for
// this raw byte framing than a small hand-rolled codec, so this concern
// stays on the standard library (see the module's design notes).
package sse

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DefaultEventName is the event name a frame carries when no `event:` line
// is present, per the SSE spec.
const DefaultEventName = "message"

// Event is one parsed or emitted SSE frame.
type Event struct {
	// Name is the event name (the `event:` line). Empty means DefaultEventName.
	Name string
	// Data is the frame payload, already joined across multiple `data:`
	// lines with "\n" and with each line's leading single space trimmed.
	Data string
}

// EventName returns Name, defaulting to DefaultEventName.
func (e Event) EventName() string {
	if e.Name == "" {
		return DefaultEventName
	}
	return e.Name
}

// Writer emits SSE frames to an underlying io.Writer, flushing after every
// frame when the writer supports it (http.ResponseWriter via http.Flusher).
type Writer struct {
	w       io.Writer
	flusher flusher
}

type flusher interface {
	Flush()
}

// NewWriter wraps w. If w also implements Flush() (as http.Flusher does),
// every Send call flushes after writing.
func NewWriter(w io.Writer) *Writer {
	f, _ := w.(flusher)
	return &Writer{w: w, flusher: f}
}

// Send writes a single SSE frame: "event: <name>\n" followed by one
// "data: <line>\n" per line of data (data is split on "\n" so multi-line
// payloads round-trip), then a terminating blank line.
func (w *Writer) Send(event, data string) error {
	name := event
	if name == "" {
		name = DefaultEventName
	}
	if _, err := fmt.Fprintf(w.w, "event: %s\n", name); err != nil {
		return err
	}
	lines := strings.Split(data, "\n")
	for _, line := range lines {
		if _, err := fmt.Fprintf(w.w, "data: %s\n", line); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w.w, "\n"); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// SendJSON marshals v and sends it as a single-line data frame. Callers pass
// already-marshaled JSON to avoid importing encoding/json into this package;
// higher layers (chatstream, agentloop) own the payload shapes.
func (w *Writer) SendJSON(event string, jsonData []byte) error {
	return w.Send(event, string(jsonData))
}

// Ping emits the heartbeat frame used to keep idle connections open through
// middleboxes. Callers are expected to invoke this on a 10-30s ticker.
func (w *Writer) Ping() error {
	return w.Send("ping", "")
}

// Parser reads a byte stream and yields SSE frames, splitting on a blank
// line ("\n\n", falling back to "\r\n\r\n" if that delimiter appears first
// in the stream).
type Parser struct {
	r *bufio.Reader
}

// NewParser wraps r.
func NewParser(r io.Reader) *Parser {
	return &Parser{r: bufio.NewReader(r)}
}

// Next reads and returns the next frame, or io.EOF when the stream ends
// cleanly with no trailing partial frame.
func (p *Parser) Next() (Event, error) {
	var rawLines []string
	for {
		line, err := p.r.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" && len(rawLines) > 0 {
			return parseFrame(rawLines), nil
		}
		if trimmed != "" {
			rawLines = append(rawLines, trimmed)
		}
		if err != nil {
			if err == io.EOF && len(rawLines) > 0 {
				return parseFrame(rawLines), nil
			}
			return Event{}, err
		}
	}
}

func parseFrame(lines []string) Event {
	var ev Event
	var dataLines []string
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "event:"):
			ev.Name = strings.TrimPrefix(strings.TrimPrefix(line, "event:"), " ")
		case strings.HasPrefix(line, "data:"):
			d := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
			if d == "" {
				continue
			}
			dataLines = append(dataLines, d)
		}
	}
	ev.Data = strings.Join(dataLines, "\n")
	return ev
}
