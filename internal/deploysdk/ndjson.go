package deploysdk

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// DecodeError is returned by Stream.Next for a line that is not valid JSON.
// The stream stays usable: the next call moves on to the following line.
type DecodeError struct {
	Line []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("ndjson: decode line %q: %v", truncate(e.Line, 80), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Stream is a pull iterator over a newline delimited JSON body.
// Next returns io.EOF once the body is exhausted.
type Stream[T any] struct {
	body   io.ReadCloser
	reader *bufio.Reader
}

// NewStream wraps body. The stream owns body and closes it on Close.
func NewStream[T any](body io.ReadCloser) *Stream[T] {
	return &Stream[T]{
		body:   body,
		reader: bufio.NewReader(body),
	}
}

// Next blocks until the next value is available. Blank lines are skipped.
// A connection failure mid-line is reported as that failure, not as a
// DecodeError.
func (s *Stream[T]) Next() (T, error) {
	var zero T

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return zero, err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err != nil {
				return zero, io.EOF
			}
			continue
		}

		var v T
		if decodeErr := jsonUnmarshal(line, &v); decodeErr != nil {
			return zero, &DecodeError{Line: line, Err: decodeErr}
		}
		return v, nil
	}
}

func (s *Stream[T]) Close() error {
	return s.body.Close()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
