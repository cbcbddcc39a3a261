// Package transport moves JSON-RPC messages between a client and a server
// as newline-delimited JSON.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/erauner12/topicbridge/internal/mcpserver/jsonrpc"
)

// MaxFrameSize is the largest accepted frame, newline excluded
const MaxFrameSize = 1 << 20

var (
	// ErrClosed is returned after Close
	ErrClosed = errors.New("transport closed")

	// ErrMalformedFrame wraps frames that are not valid JSON-RPC messages.
	// The stream stays usable unless the frame was oversized.
	ErrMalformedFrame = errors.New("malformed frame")
)

// Transport is a bidirectional, ordered message channel
type Transport interface {
	Send(ctx context.Context, msg jsonrpc.Message) error
	Receive(ctx context.Context) (jsonrpc.Message, error)
	Close(ctx context.Context) error
}

type frame struct {
	msg jsonrpc.Message
	err error
}

// Stream implements Transport over a reader/writer pair
type Stream struct {
	writeMu sync.Mutex
	w       io.Writer
	closer  io.Closer

	recvCh chan frame
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewStream starts reading frames from r. Writes go to w. closer, if not
// nil, is closed by Close and should unblock pending reads on r.
func NewStream(r io.Reader, w io.Writer, closer io.Closer) *Stream {
	s := &Stream{
		w:      w,
		closer: closer,
		recvCh: make(chan frame, 16),
		done:   make(chan struct{}),
	}
	go s.readLoop(r)
	return s
}

// NewStdio serves the current process's stdin and stdout. Stdout must not
// be used for anything else.
func NewStdio() *Stream {
	return NewStream(os.Stdin, os.Stdout, nil)
}

func (s *Stream) readLoop(r io.Reader) {
	defer close(s.recvCh)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxFrameSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var f frame
		if err := json.Unmarshal(line, &f.msg); err != nil {
			f = frame{err: fmt.Errorf("%w: %v", ErrMalformedFrame, err)}
		}
		if !s.deliver(f) {
			return
		}
	}

	err := scanner.Err()
	switch {
	case err == nil:
		err = io.EOF
	case errors.Is(err, bufio.ErrTooLong):
		err = fmt.Errorf("%w: frame exceeds %d bytes", ErrMalformedFrame, MaxFrameSize)
	}
	s.deliver(frame{err: err})
}

func (s *Stream) deliver(f frame) bool {
	select {
	case s.recvCh <- f:
		return true
	case <-s.done:
		return false
	}
}

// Send writes msg as a single line. Concurrent sends never interleave.
func (s *Stream) Send(ctx context.Context, msg jsonrpc.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if len(data) > MaxFrameSize {
		return fmt.Errorf("encode message: frame of %d bytes exceeds %d", len(data), MaxFrameSize)
	}
	data = append(data, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Receive returns the next message. io.EOF means the peer closed the stream.
func (s *Stream) Receive(ctx context.Context) (jsonrpc.Message, error) {
	select {
	case <-ctx.Done():
		return jsonrpc.Message{}, ctx.Err()
	case <-s.done:
		return jsonrpc.Message{}, ErrClosed
	case f, ok := <-s.recvCh:
		if !ok {
			return jsonrpc.Message{}, io.EOF
		}
		return f.msg, f.err
	}
}

// Close releases the stream. It is safe to call more than once.
func (s *Stream) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.closer != nil {
			s.closeErr = s.closer.Close()
		}
	})
	return s.closeErr
}

// Done is closed once Close has been called
func (s *Stream) Done() <-chan struct{} {
	return s.done
}
