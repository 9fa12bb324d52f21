package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// MaxLineSize bounds one inbound message.
const MaxLineSize = 1024 * 1024

var (
	ErrMalformed = errors.New("malformed message")
	ErrTooLarge  = errors.New("message too large (max 1MB)")
)

// Decoder reads newline-delimited JSON messages.
type Decoder struct {
	scanner *bufio.Scanner
}

func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	return &Decoder{scanner: s}
}

// Next returns the next message. Blank lines are skipped. A line that is not a valid
// message yields ErrMalformed and decoding may continue; io.EOF and ErrTooLarge end
// the stream.
func (d *Decoder) Next() (Inbound, error) {
	for d.scanner.Scan() {
		line := d.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var in Inbound
		if err := json.Unmarshal(line, &in); err != nil {
			return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if in.Command == "" {
			return Inbound{}, fmt.Errorf("%w: missing command", ErrMalformed)
		}
		return in, nil
	}
	if err := d.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return Inbound{}, ErrTooLarge
		}
		return Inbound{}, err
	}
	return Inbound{}, io.EOF
}

// Encoder writes one JSON message per line. Post is safe for concurrent use.
type Encoder struct {
	mu  sync.Mutex
	w   io.Writer
	err error
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Post writes o. The first write error is kept and later posts are dropped.
func (e *Encoder) Post(o Outbound) {
	data, err := json.Marshal(o)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return
	}
	if err != nil {
		e.err = err
		return
	}
	data = append(data, '\n')
	_, e.err = e.w.Write(data)
}

// Err returns the first error seen by Post.
func (e *Encoder) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}
