package proto

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// MaxFrameSize is the largest accepted frame, newline included. A frame
// that exceeds it is discarded up to the next newline so the connection
// can keep serving requests.
const MaxFrameSize = 8192

// ErrOversized reports a frame longer than MaxFrameSize.
var ErrOversized = errors.New("frame exceeds maximum size")

// ErrMalformed reports a frame that is not a valid request.
var ErrMalformed = errors.New("malformed frame")

// WriteFrame writes v as one newline-terminated JSON frame.
func WriteFrame(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if len(data)+1 > MaxFrameSize {
		return ErrOversized
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// ReadFrame reads one newline-terminated frame from r and returns it
// without the trailing newline. On ErrOversized the rest of the frame has
// been drained and the reader is positioned at the next frame. The reader
// must be sized at least MaxFrameSize (see NewFrameReader).
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if err == nil {
		return bytes.TrimRight(append([]byte(nil), line...), "\r\n"), nil
	}
	if err == bufio.ErrBufferFull {
		// Drain the oversized frame so the next read starts clean.
		for err == bufio.ErrBufferFull {
			_, err = r.ReadSlice('\n')
		}
		if err != nil && err != io.EOF {
			return nil, err
		}
		return nil, ErrOversized
	}
	if err == io.EOF && len(line) > 0 {
		// Peer closed without a trailing newline; accept the final frame.
		return bytes.TrimRight(append([]byte(nil), line...), "\r\n"), nil
	}
	return nil, err
}

// NewFrameReader wraps r with a buffer large enough to hold one maximum
// size frame.
func NewFrameReader(r io.Reader) *bufio.Reader {
	return bufio.NewReaderSize(r, MaxFrameSize)
}
