package stream

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
)

// Event names the tutor stream emits. A data line seen before any event line
// is tagged with EventMessage.
const (
	EventMessage     = "message"
	EventUserMessage = "user_message"
	EventChunk       = "chunk"
	EventDone        = "done"
	EventError       = "error"
)

// Chunk is one decoded stream event. Data is the JSON payload of the data
// line; payloads that fail to parse as JSON are wrapped as {"message": raw}.
type Chunk struct {
	Type string
	Data json.RawMessage
}

// Stream is a lazy, finite, non-restartable sequence of chunks decoded from
// one response body. It is consumed exactly once: drain Events, then check
// Err for a transport-level read failure. Callers that stop consuming early
// must call Close so the underlying body is released; Close after normal
// completion is a no-op.
type Stream struct {
	events chan Chunk
	err    error

	body      io.ReadCloser
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Stream) Events() <-chan Chunk {
	return s.events
}

// Err is valid once Events has been closed.
func (s *Stream) Err() error {
	return s.err
}

// Close abandons the stream: the decoder goroutine stops and the response
// body is closed, unblocking any in-flight read.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.body.Close()
	})
}

// Decode reads the event-stream body and yields one Chunk per data line as
// soon as its line is complete. Incoming reads are appended to a line buffer
// and split on newline; the trailing fragment is retained for the next read,
// so chunk boundaries that fall mid-line never corrupt the output. The body
// is always closed when decoding stops, whether by completion, read error,
// abandonment, or context cancellation.
func Decode(ctx context.Context, body io.ReadCloser) *Stream {
	s := &Stream{
		events: make(chan Chunk),
		body:   body,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.events)
		defer body.Close()

		var buffer string
		eventName := EventMessage
		readBuf := make([]byte, 4096)

		emit := func(line string) bool {
			line = strings.TrimSuffix(line, "\r")
			switch {
			case line == "":
				// Blank line ends the record; the next data line
				// reverts to the default event name.
				eventName = EventMessage
			case strings.HasPrefix(line, "event:"):
				eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				select {
				case s.events <- Chunk{Type: eventName, Data: normalize(payload)}:
				case <-s.done:
					return false
				case <-ctx.Done():
					s.err = ctx.Err()
					return false
				}
			}
			return true
		}

		for {
			n, err := body.Read(readBuf)
			if n > 0 {
				buffer += string(readBuf[:n])
				lines := strings.Split(buffer, "\n")
				// Last fragment may be incomplete; keep it buffered.
				buffer = lines[len(lines)-1]
				for _, line := range lines[:len(lines)-1] {
					if !emit(line) {
						return
					}
				}
			}
			if err != nil {
				if err == io.EOF {
					if buffer != "" {
						emit(buffer)
					}
				} else {
					select {
					case <-s.done:
						// Abandoned; the induced read error is
						// not a decode failure.
					default:
						s.err = err
					}
				}
				return
			}
		}
	}()

	return s
}

// normalize guarantees Data is valid JSON so downstream decoding never has to
// special-case raw text payloads.
func normalize(payload string) json.RawMessage {
	if json.Valid([]byte(payload)) {
		return json.RawMessage(payload)
	}
	wrapped, _ := json.Marshal(map[string]string{"message": payload})
	return json.RawMessage(wrapped)
}
