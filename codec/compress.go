// File: codec/compress.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package codec

import (
	"fmt"

	"github.com/klauspost/compress/s2"
)

// CompressedCodec s2-compresses slice bodies after the tag byte. Stack it
// under CipherCodec; ciphertext does not compress.
type CompressedCodec struct {
	inner StatefulStreamCodec
}

var _ StatefulStreamCodec = (*CompressedCodec)(nil)

// NewCompressedCodec wraps inner.
func NewCompressedCodec(inner StatefulStreamCodec) *CompressedCodec {
	return &CompressedCodec{inner: inner}
}

func (c *CompressedCodec) ToDataStatePair(o any) (DataStatePair, error) {
	p, err := c.inner.ToDataStatePair(o)
	if err != nil {
		return p, err
	}
	p.Data = compressSlice(p.Data)
	p.State = compressSlice(p.State)
	return p, nil
}

func (c *CompressedCodec) FromDataStatePair(p DataStatePair) (any, error) {
	var err error
	if p.Data, err = decompressSlice(p.Data); err != nil {
		return nil, err
	}
	if p.State, err = decompressSlice(p.State); err != nil {
		return nil, err
	}
	return c.inner.FromDataStatePair(p)
}

func (c *CompressedCodec) ResetState() { c.inner.ResetState() }

// Unwrap returns the wrapped codec.
func (c *CompressedCodec) Unwrap() StatefulStreamCodec { return c.inner }

func compressSlice(s []byte) []byte {
	if len(s) == 0 {
		return s
	}
	return append([]byte{s[0]}, s2.Encode(nil, s[1:])...)
}

func decompressSlice(s []byte) ([]byte, error) {
	if len(s) == 0 {
		return s, nil
	}
	body, err := s2.Decode(nil, s[1:])
	if err != nil {
		return nil, fmt.Errorf("s2 decode: %w", err)
	}
	out := make([]byte, 1+len(body))
	out[0] = s[0]
	copy(out[1:], body)
	return out, nil
}
