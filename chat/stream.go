package chat

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/Laisky/errors/v2"
)

// Stream is a lazy, finite, single-consumer sequence of reply fragments.
// The consumer pulls with Recv until io.EOF; Close abandons the producer and
// cancels the underlying request. A stream is not restartable.
type Stream struct {
	ch     chan fragment
	done   chan struct{}
	cancel context.CancelFunc

	closeOnce sync.Once
	// terminal latches the result that ended the sequence (producer error or
	// io.EOF). Only touched by the consumer goroutine.
	terminal error
}

type fragment struct {
	text string
	err  error
}

// StreamWriter is the producer half, held by the bridge goroutine that decodes
// endpoint events. Exactly one CloseWithError (or CloseOK) call ends the stream.
type StreamWriter struct {
	s         *Stream
	closeOnce sync.Once
}

// NewStream pairs a consumer stream with its producer. cancel is invoked when
// the consumer closes early, so the producer's outbound request is abandoned.
func NewStream(cancel context.CancelFunc) (*Stream, *StreamWriter) {
	if cancel == nil {
		cancel = func() {}
	}
	s := &Stream{
		ch:     make(chan fragment, 16),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	return s, &StreamWriter{s: s}
}

// Recv blocks for the next fragment. It returns io.EOF after the final
// fragment, or the producer's error. After either, Recv keeps returning it.
func (s *Stream) Recv() (string, error) {
	if s.terminal != nil {
		return "", s.terminal
	}
	select {
	case <-s.done:
		return "", errors.New("stream closed by consumer")
	case f, ok := <-s.ch:
		if !ok {
			s.terminal = io.EOF
			return "", io.EOF
		}
		if f.err != nil {
			s.terminal = f.err
			return "", f.err
		}
		return f.text, nil
	}
}

// Close abandons the stream. Safe to call multiple times and after EOF.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
	})
	return nil
}

// Collect drains the stream and concatenates all fragments, mirroring how a
// caller turns a streamed reply into one assistant turn.
func (s *Stream) Collect() (string, error) {
	var sb strings.Builder
	for {
		text, err := s.Recv()
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(text)
	}
}

// Write delivers one fragment. It returns false when the consumer has closed
// the stream, telling the producer to stop decoding.
func (w *StreamWriter) Write(text string) bool {
	select {
	case <-w.s.done:
		return false
	case w.s.ch <- fragment{text: text}:
		return true
	}
}

// CloseWithError terminates the sequence. A nil err means normal exhaustion
// and the consumer sees io.EOF.
func (w *StreamWriter) CloseWithError(err error) {
	w.closeOnce.Do(func() {
		if err != nil {
			select {
			case <-w.s.done:
			case w.s.ch <- fragment{err: err}:
			}
		}
		close(w.s.ch)
	})
}
