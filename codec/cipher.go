// File: codec/cipher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cipher decorator for stateful codecs.

package codec

import (
	"fmt"
	"sync/atomic"

	"github.com/momentics/hioload-rpc/api"
)

// Encrypter transforms the body of a slice. The tag byte is passed so
// authenticated ciphers can bind it, but it is never part of the output.
type Encrypter interface {
	Encrypt(tag byte, body []byte) ([]byte, error)
}

// Decrypter reverses an Encrypter.
type Decrypter interface {
	Decrypt(tag byte, body []byte) ([]byte, error)
}

type cipherContexts struct {
	enc Encrypter
	dec Decrypter
}

// CipherCodec encrypts both slices produced by the wrapped codec, leaving
// each leading tag byte in clear text. Without cipher contexts it passes
// slices through untouched, so a session can start in the clear and switch
// on encryption once keys are negotiated.
type CipherCodec struct {
	inner StatefulStreamCodec
	ctx   atomic.Pointer[cipherContexts]
}

var _ StatefulStreamCodec = (*CipherCodec)(nil)

// NewCipherCodec wraps inner with no cipher configured.
func NewCipherCodec(inner StatefulStreamCodec) *CipherCodec {
	c := &CipherCodec{inner: inner}
	c.ctx.Store(&cipherContexts{})
	return c
}

// InitCipher replaces both contexts. Either may be nil to disable that
// direction. Callers order the swap with in-flight messages, typically by
// running it on the reactor goroutine.
func (c *CipherCodec) InitCipher(enc Encrypter, dec Decrypter) {
	c.ctx.Store(&cipherContexts{enc: enc, dec: dec})
}

// Encrypting reports whether an encrypt context is active.
func (c *CipherCodec) Encrypting() bool { return c.ctx.Load().enc != nil }

func (c *CipherCodec) ToDataStatePair(o any) (DataStatePair, error) {
	p, err := c.inner.ToDataStatePair(o)
	if err != nil {
		return p, err
	}
	enc := c.ctx.Load().enc
	if enc == nil {
		return p, nil
	}
	if p.Data, err = encryptSlice(enc, p.Data); err != nil {
		return DataStatePair{}, err
	}
	if p.State, err = encryptSlice(enc, p.State); err != nil {
		return DataStatePair{}, err
	}
	return p, nil
}

func (c *CipherCodec) FromDataStatePair(p DataStatePair) (any, error) {
	if dec := c.ctx.Load().dec; dec != nil {
		var err error
		if p.State, err = decryptSlice(dec, p.State); err != nil {
			return nil, err
		}
		if p.Data, err = decryptSlice(dec, p.Data); err != nil {
			return nil, err
		}
	}
	return c.inner.FromDataStatePair(p)
}

// ResetState resets the wrapped codec. Cipher contexts are kept.
func (c *CipherCodec) ResetState() { c.inner.ResetState() }

// Unwrap returns the wrapped codec.
func (c *CipherCodec) Unwrap() StatefulStreamCodec { return c.inner }

func encryptSlice(enc Encrypter, s []byte) ([]byte, error) {
	if len(s) == 0 {
		return s, nil
	}
	body, err := enc.Encrypt(s[0], s[1:])
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w: %w", api.ErrCipher, err)
	}
	out := make([]byte, 1+len(body))
	out[0] = s[0]
	copy(out[1:], body)
	return out, nil
}

func decryptSlice(dec Decrypter, s []byte) ([]byte, error) {
	if len(s) == 0 {
		return s, nil
	}
	body, err := dec.Decrypt(s[0], s[1:])
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w: %w", api.ErrCipher, err)
	}
	out := make([]byte, 1+len(body))
	out[0] = s[0]
	copy(out[1:], body)
	return out, nil
}
