package chat

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
)

// Event is one complete text/event-stream record.
type Event struct {
	Type string
	Data string
}

var (
	recordSeparator = []byte("\n\n")
	crlf            = []byte("\r\n")
	lf              = []byte("\n")
)

// Decoder splits a text/event-stream into records. It keeps the trailing,
// possibly incomplete, fragment between calls to Feed.
type Decoder struct {
	buf []byte
}

// Feed appends chunk and returns every record completed by it, in order.
func (d *Decoder) Feed(chunk []byte) []Event {
	d.buf = append(d.buf, chunk...)
	// A CR at the end of one chunk pairs with the LF that starts the next,
	// so normalise the whole pending buffer rather than the chunk.
	d.buf = bytes.ReplaceAll(d.buf, crlf, lf)

	var events []Event
	for {
		i := bytes.Index(d.buf, recordSeparator)
		if i < 0 {
			break
		}
		if ev, ok := parseRecord(d.buf[:i]); ok {
			events = append(events, ev)
		}
		d.buf = d.buf[i+len(recordSeparator):]
	}
	d.buf = append([]byte(nil), d.buf...)
	return events
}

// Flush parses whatever is left at end of input as a final record.
func (d *Decoder) Flush() []Event {
	rest := bytes.TrimRight(d.buf, "\n")
	d.buf = nil
	if len(rest) == 0 {
		return nil
	}
	if ev, ok := parseRecord(rest); ok {
		return []Event{ev}
	}
	return nil
}

// parseRecord reads the event and data fields of one record; other fields and
// comment lines are ignored. A record without data or event name is dropped.
func parseRecord(record []byte) (Event, bool) {
	var ev Event
	var data []string
	for _, line := range strings.Split(string(record), "\n") {
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Type = strings.TrimSpace(value)
		case "data":
			data = append(data, value)
		}
	}
	if ev.Type == "" && len(data) == 0 {
		return Event{}, false
	}
	if ev.Type == "" {
		ev.Type = "message"
	}
	ev.Data = strings.Join(data, "\n")
	return ev, true
}

const readChunkSize = 4 * 1024

// ReadEvents reads r until EOF and hands every record to handle in arrival order.
// EOF is not an error; a handler error or context cancellation stops the read.
func ReadEvents(ctx context.Context, r io.Reader, handle func(Event) error) error {
	var dec Decoder
	buf := make([]byte, readChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			for _, ev := range dec.Feed(buf[:n]) {
				if herr := handle(ev); herr != nil {
					return herr
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return err
			}
			for _, ev := range dec.Flush() {
				if herr := handle(ev); herr != nil {
					return herr
				}
			}
			return nil
		}
	}
}
