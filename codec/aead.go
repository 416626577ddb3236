// File: codec/aead.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Symmetric and hybrid cipher contexts.

package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
	"golang.org/x/crypto/chacha20poly1305"
)

// SessionKeySize is the AES key length used by the hybrid scheme.
const SessionKeySize = 32

var errShortCiphertext = errors.New("ciphertext too short")

// NewAESGCM returns AES-GCM for a 16, 24 or 32 byte key.
func NewAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// NewChaCha20Poly1305 returns ChaCha20-Poly1305 for a 32 byte key.
func NewChaCha20Poly1305(key []byte) (cipher.AEAD, error) {
	return chacha20poly1305.New(key)
}

// aeadContext seals with a random nonce: [nonce][ciphertext]. The tag byte
// is authenticated as additional data.
type aeadContext struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewSealer returns an Encrypter over aead.
func NewSealer(aead cipher.AEAD) Encrypter { return &aeadContext{aead: aead, rand: rand.Reader} }

// NewOpener returns a Decrypter over aead.
func NewOpener(aead cipher.AEAD) Decrypter { return &aeadContext{aead: aead} }

func (a *aeadContext) Encrypt(tag byte, body []byte) ([]byte, error) {
	ns := a.aead.NonceSize()
	out := make([]byte, ns, ns+len(body)+a.aead.Overhead())
	if _, err := io.ReadFull(a.rand, out); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return a.aead.Seal(out, out[:ns], body, []byte{tag}), nil
}

func (a *aeadContext) Decrypt(tag byte, body []byte) ([]byte, error) {
	ns := a.aead.NonceSize()
	if len(body) < ns+a.aead.Overhead() {
		return nil, errShortCiphertext
	}
	return a.aead.Open(nil, body[:ns], body[ns:], []byte{tag})
}

// hybridEncrypter wraps a fresh AES-256 key and GCM nonce per slice with
// RSA-OAEP(SHA-256): [uvarint blob len][key blob][ciphertext].
type hybridEncrypter struct {
	pub  *rsa.PublicKey
	rand io.Reader
	// observe, when set, sees every session key and nonce; tests only.
	observe func(key, nonce []byte)
}

// NewHybridEncrypter returns an Encrypter for the holder of pub's private key.
func NewHybridEncrypter(pub *rsa.PublicKey) Encrypter {
	return &hybridEncrypter{pub: pub, rand: rand.Reader}
}

func (h *hybridEncrypter) Encrypt(tag byte, body []byte) ([]byte, error) {
	secret := make([]byte, SessionKeySize+12)
	if _, err := io.ReadFull(h.rand, secret); err != nil {
		return nil, fmt.Errorf("session key: %w", err)
	}
	key, nonce := secret[:SessionKeySize], secret[SessionKeySize:]
	if h.observe != nil {
		h.observe(key, nonce)
	}
	gcm, err := NewAESGCM(key)
	if err != nil {
		return nil, err
	}
	blob, err := rsa.EncryptOAEP(sha256.New(), h.rand, h.pub, secret, nil)
	if err != nil {
		return nil, fmt.Errorf("wrap session key: %w", err)
	}
	out := varint.ToUvarint(uint64(len(blob)))
	out = append(out, blob...)
	return gcm.Seal(out, nonce, body, []byte{tag}), nil
}

type hybridDecrypter struct {
	priv *rsa.PrivateKey
}

// NewHybridDecrypter returns the Decrypter matching NewHybridEncrypter.
func NewHybridDecrypter(priv *rsa.PrivateKey) Decrypter {
	return &hybridDecrypter{priv: priv}
}

func (h *hybridDecrypter) Decrypt(tag byte, body []byte) ([]byte, error) {
	size, n, err := varint.FromUvarint(body)
	if err != nil {
		return nil, fmt.Errorf("key blob length: %w", err)
	}
	body = body[n:]
	if uint64(len(body)) < size {
		return nil, errShortCiphertext
	}
	secret, err := rsa.DecryptOAEP(sha256.New(), nil, h.priv, body[:size], nil)
	if err != nil {
		return nil, fmt.Errorf("unwrap session key: %w", err)
	}
	if len(secret) != SessionKeySize+12 {
		return nil, fmt.Errorf("session secret of %d bytes", len(secret))
	}
	gcm, err := NewAESGCM(secret[:SessionKeySize])
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, secret[SessionKeySize:], body[size:], []byte{tag})
}
