// ABOUTME: Server-Sent Events codec shared by the remote sandbox client and the HTTP API.
// ABOUTME: Decodes W3C EventSource streams and encodes events with multi-line data support.
package sse

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Event is one dispatched server-sent event.
type Event struct {
	Type  string // "message" when the stream set no event name
	Data  string
	ID    string
	Retry int // -1 when unset
}

// Decoder reads events from a stream.
type Decoder struct {
	r    *bufio.Reader
	done bool
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 4096)}
}

// Decode returns the next event, or io.EOF when the stream ends. A trailing
// event without a terminating blank line is still dispatched.
func (d *Decoder) Decode() (Event, error) {
	if d.done {
		return Event{}, io.EOF
	}

	ev := Event{Retry: -1}
	var data []string
	hasData := false
	dispatch := func() Event {
		if ev.Type == "" {
			ev.Type = "message"
		}
		ev.Data = strings.Join(data, "\n")
		return ev
	}

	for {
		line, err := d.readLine()
		if err == io.EOF {
			d.done = true
			if hasData {
				return dispatch(), nil
			}
			return Event{}, io.EOF
		}
		if err != nil {
			return Event{}, err
		}

		if line == "" {
			if hasData {
				return dispatch(), nil
			}
			ev = Event{Retry: -1}
			continue
		}
		if line[0] == ':' {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Type = value
		case "data":
			data = append(data, value)
			hasData = true
		case "id":
			ev.ID = value
		case "retry":
			if n, err := strconv.Atoi(value); err == nil {
				ev.Retry = n
			}
		}
	}
}

// readLine returns one line without its terminator. LF, CRLF and a lone CR
// all end a line.
func (d *Decoder) readLine() (string, error) {
	var b strings.Builder
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			if err == io.EOF && b.Len() > 0 {
				return b.String(), nil
			}
			return "", err
		}
		switch c {
		case '\n':
			return b.String(), nil
		case '\r':
			if next, err := d.r.ReadByte(); err == nil && next != '\n' {
				_ = d.r.UnreadByte()
			}
			return b.String(), nil
		}
		b.WriteByte(c)
	}
}

// Encode writes ev in wire format, splitting multi-line data across data fields.
func Encode(w io.Writer, ev Event) error {
	var b strings.Builder
	if ev.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", ev.ID)
	}
	if ev.Type != "" && ev.Type != "message" {
		fmt.Fprintf(&b, "event: %s\n", ev.Type)
	}
	if ev.Retry > 0 {
		fmt.Fprintf(&b, "retry: %d\n", ev.Retry)
	}
	for _, line := range strings.Split(strings.ReplaceAll(ev.Data, "\r\n", "\n"), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}
