package protocol

import (
	"errors"
	"fmt"
	"io"
)

// ReadHeader reads and decodes one header. A stream that ends before the
// first header byte returns io.EOF; one that ends inside the header returns
// ErrShortFrame. The raw bytes are returned alongside, also on decode errors.
func ReadHeader(r io.Reader, request bool) (Header, []byte, error) {
	buf := make([]byte, Header{Request: request}.Size())
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, nil, fmt.Errorf("%w: %v", ErrShortFrame, err)
		}
		return Header{}, nil, err
	}
	h, err := DecodeHeader(buf, request)
	return h, buf, err
}

// ReadPayload reads exactly n payload bytes.
func ReadPayload(r io.Reader, n uint32) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %v", ErrShortFrame, err)
		}
		return nil, err
	}
	return buf, nil
}

// Drain discards n payload bytes.
func Drain(r io.Reader, n uint32) error {
	if n == 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, int64(n)); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %v", ErrShortFrame, err)
		}
		return err
	}
	return nil
}

// ReadMessage reads one whole frame and decodes it.
func ReadMessage(r io.Reader, request bool) (*Message, error) {
	h, _, err := ReadHeader(r, request)
	if err != nil {
		return nil, err
	}
	payload, err := ReadPayload(r, h.PayloadLen)
	if err != nil {
		return nil, err
	}
	return Decode(h, payload)
}

// WriteMessage encodes m and writes it with a single Write call.
func WriteMessage(w io.Writer, m *Message) error {
	frame, err := m.Encode()
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}
