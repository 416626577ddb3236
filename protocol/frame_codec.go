// File: protocol/frame_codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Frame encoding and incremental decoding with frame size enforcement.

package protocol

import (
	"errors"
	"fmt"

	"github.com/momentics/hioload-rpc/api"
	"github.com/multiformats/go-varint"
)

// ErrEmptyFrame is returned for a zero-length frame; every frame carries a tag.
var ErrEmptyFrame = errors.New("empty frame")

// AppendFrame appends the framed payload to dst.
func AppendFrame(dst, payload []byte) []byte {
	var hdr [varint.MaxLenUvarint63]byte
	n := varint.PutUvarint(hdr[:], uint64(len(payload)))
	dst = append(dst, hdr[:n]...)
	return append(dst, payload...)
}

// EncodeFrame returns payload framed in a new buffer.
func EncodeFrame(payload []byte) []byte {
	return AppendFrame(make([]byte, 0, varint.UvarintSize(uint64(len(payload)))+len(payload)), payload)
}

// DecodeFrameFromBytes parses one frame from raw, enforcing maxSize (zero
// means DefaultMaxFrameSize). It returns the payload, which aliases raw, and
// the consumed byte count. If the frame is incomplete it returns (nil, 0, nil).
func DecodeFrameFromBytes(raw []byte, maxSize int) ([]byte, int, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	length, n, err := varint.FromUvarint(raw)
	if err != nil {
		if errors.Is(err, varint.ErrUnderflow) && len(raw) < varint.MaxLenUvarint63 {
			return nil, 0, nil // incomplete
		}
		return nil, 0, fmt.Errorf("frame length: %w", err)
	}
	if length == 0 {
		return nil, 0, ErrEmptyFrame
	}
	if length > uint64(maxSize) {
		return nil, 0, fmt.Errorf("frame of %d bytes, limit %d: %w", length, maxSize, api.ErrFrameTooLarge)
	}
	total := n + int(length)
	if len(raw) < total {
		return nil, 0, nil // incomplete
	}
	return raw[n:total], total, nil
}

// Decoder accumulates stream bytes and yields complete frames.
type Decoder struct {
	buf     []byte
	maxSize int
}

// NewDecoder returns a decoder enforcing maxSize per frame.
func NewDecoder(maxSize int) *Decoder {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &Decoder{maxSize: maxSize}
}

// Feed appends stream bytes.
func (d *Decoder) Feed(p []byte) { d.buf = append(d.buf, p...) }

// Buffered returns the number of bytes not yet consumed.
func (d *Decoder) Buffered() int { return len(d.buf) }

// Next returns the next complete frame payload as an owned copy, or nil when
// more input is needed.
func (d *Decoder) Next() ([]byte, error) {
	payload, n, err := DecodeFrameFromBytes(d.buf, d.maxSize)
	if err != nil || n == 0 {
		return nil, err
	}
	out := append([]byte(nil), payload...)
	rest := copy(d.buf, d.buf[n:])
	d.buf = d.buf[:rest]
	return out, nil
}

// Reset discards buffered input.
func (d *Decoder) Reset() { d.buf = d.buf[:0] }
