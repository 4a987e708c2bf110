package llm

import (
	"errors"
	"io"
	"strings"
	"sync"
)

// accumulator joins text fragments in arrival order. Streams and the
// non-streaming response parsers share it so both paths build text the same way.
type accumulator struct {
	sb strings.Builder
}

func (a *accumulator) add(fragment string) {
	a.sb.WriteString(fragment)
}

func (a *accumulator) String() string {
	return a.sb.String()
}

// Stream is a lazy, finite sequence of text fragments produced by a provider.
// It is consumed like a bufio.Scanner and cannot be restarted:
//
//	for s.Next() {
//		fmt.Print(s.Text())
//	}
//	if err := s.Err(); err != nil { ... }
//
// Close releases the underlying connection and may be called at any time.
type Stream struct {
	provider string
	recv     func() (string, error) // io.EOF marks the end
	closer   func() error

	text      string
	err       error
	done      bool
	closeOnce sync.Once
	closeErr  error
}

// NewStream builds a stream from recv, which returns io.EOF once the vendor
// stream is exhausted, and closer, which may be nil.
func NewStream(provider string, recv func() (string, error), closer func() error) *Stream {
	return &Stream{provider: provider, recv: recv, closer: closer}
}

// Next advances to the next non-empty fragment. It returns false at the end
// of the stream or on error; Err tells which.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}

	for {
		fragment, err := s.recv()
		if err != nil {
			s.done = true
			s.text = ""
			if !errors.Is(err, io.EOF) {
				s.err = wrapErr(s.provider, "stream", err)
			}
			_ = s.Close()
			return false
		}
		if fragment != "" {
			s.text = fragment
			return true
		}
	}
}

// Text returns the fragment produced by the last successful call to Next.
func (s *Stream) Text() string {
	return s.text
}

// Err returns the first non-EOF error encountered by Next.
func (s *Stream) Err() error {
	return s.err
}

// Close stops the stream. Further calls to Next return false.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.done = true
		if s.closer != nil {
			s.closeErr = s.closer()
		}
	})
	return s.closeErr
}

// Collect drains s and returns the concatenated text. The stream is closed on return.
func Collect(s *Stream) (string, error) {
	defer s.Close()

	var acc accumulator
	for s.Next() {
		acc.add(s.Text())
	}
	if err := s.Err(); err != nil {
		return "", err
	}
	return acc.String(), nil
}

// StaticStream replays fixed fragments.
func StaticStream(provider string, fragments ...string) *Stream {
	idx := 0
	return NewStream(provider, func() (string, error) {
		if idx >= len(fragments) {
			return "", io.EOF
		}
		idx++
		return fragments[idx-1], nil
	}, nil)
}
