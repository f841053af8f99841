package httpapi

import (
	"context"
	"encoding/json"

	"github.com/infrabay/opscore/internal/agentloop/stream"
	"github.com/infrabay/opscore/internal/sse"
)

// sseSink adapts stream.Sink to an SSE connection: every event Type() becomes
// the SSE event name and Payload() is marshaled as the data frame. This
// mirrors the generic-marshaling path the teacher's Pulse sink uses
// (Payload() without a type switch), rather than the typed per-event-struct
// translation stream_subscriber.go performs when bridging hook events —
// those per-event types already exist on the Sink side via stream.Event, so
// this transport layer only needs the marshal-agnostic Payload() view.
type sseSink struct {
	w *sse.Writer
}

// newSSESink wraps w as a stream.Sink suitable for Runtime.SubscribeRun.
func newSSESink(w *sse.Writer) stream.Sink {
	return &sseSink{w: w}
}

func (s *sseSink) Send(ctx context.Context, event stream.Event) error {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return err
	}
	return s.w.SendJSON(string(event.Type()), data)
}

func (s *sseSink) Close(ctx context.Context) error {
	return nil
}
