// File: codec/cipher_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package codec

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/protocol"
	"github.com/multiformats/go-varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T, n int) []byte {
	t.Helper()
	k := make([]byte, n)
	_, err := rand.Read(k)
	require.NoError(t, err)
	return k
}

func cipherPair(t *testing.T) (*CipherCodec, *CipherCodec) {
	t.Helper()
	return NewCipherCodec(NewGobCodec()), NewCipherCodec(NewGobCodec())
}

func roundTrip(t *testing.T, enc, dec StatefulStreamCodec, v any) DataStatePair {
	t.Helper()
	p, err := enc.ToDataStatePair(v)
	require.NoError(t, err)
	got, err := dec.FromDataStatePair(p)
	require.NoError(t, err)
	assert.Equal(t, v, got)
	return p
}

func TestCipherCodec_PassThroughWithoutCipher(t *testing.T) {
	a, b := cipherPair(t)
	plain, err := NewGobCodec().ToDataStatePair(greeting{Name: "clear"})
	require.NoError(t, err)
	p := roundTrip(t, a, b, greeting{Name: "clear"})
	assert.Equal(t, plain, p)
	assert.False(t, a.Encrypting())
}

func TestCipherCodec_SymmetricModes(t *testing.T) {
	aesGCM, err := NewAESGCM(randomKey(t, 32))
	require.NoError(t, err)
	chacha, err := NewChaCha20Poly1305(randomKey(t, 32))
	require.NoError(t, err)

	for name, aead := range map[string]cipher.AEAD{"aes-gcm": aesGCM, "chacha20poly1305": chacha} {
		t.Run(name, func(t *testing.T) {
			a, b := cipherPair(t)
			a.InitCipher(NewSealer(aead), nil)
			b.InitCipher(nil, NewOpener(aead))

			v := greeting{Name: "secret", Count: 42}
			p := roundTrip(t, a, b, v)
			assert.Equal(t, protocol.TagData, p.Data[0], "tag stays in clear text")
			assert.Equal(t, protocol.TagState, p.State[0])
			assert.False(t, bytes.Contains(p.Data, []byte("secret")))
		})
	}
}

func TestCipherCodec_TamperedTagFails(t *testing.T) {
	aead, err := NewAESGCM(randomKey(t, 16))
	require.NoError(t, err)
	a, b := cipherPair(t)
	a.InitCipher(NewSealer(aead), nil)
	b.InitCipher(nil, NewOpener(aead))

	p, err := a.ToDataStatePair(greeting{Name: "x"})
	require.NoError(t, err)
	p.State[0] = protocol.TagData
	_, err = b.FromDataStatePair(p)
	assert.ErrorIs(t, err, api.ErrCipher)
}

func TestCipherCodec_WrongKeyFails(t *testing.T) {
	k1, err := NewAESGCM(randomKey(t, 32))
	require.NoError(t, err)
	k2, err := NewAESGCM(randomKey(t, 32))
	require.NoError(t, err)
	a, b := cipherPair(t)
	a.InitCipher(NewSealer(k1), nil)
	b.InitCipher(nil, NewOpener(k2))

	p, err := a.ToDataStatePair(greeting{Name: "x"})
	require.NoError(t, err)
	_, err = b.FromDataStatePair(p)
	assert.ErrorIs(t, err, api.ErrCipher)
}

// observedHybrid returns a hybrid Encrypter reporting its session keys to fn.
func observedHybrid(pub *rsa.PublicKey, fn func(key, nonce []byte)) Encrypter {
	h := NewHybridEncrypter(pub).(*hybridEncrypter)
	h.observe = fn
	return h
}

func TestCipherCodec_Hybrid(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var keys, nonces [][]byte
	enc := observedHybrid(&priv.PublicKey, func(key, nonce []byte) {
		keys = append(keys, append([]byte(nil), key...))
		nonces = append(nonces, append([]byte(nil), nonce...))
	})

	a, b := cipherPair(t)
	a.InitCipher(enc, nil)
	b.InitCipher(nil, NewHybridDecrypter(priv))

	v := greeting{Name: "hybrid", Count: 9}
	p := roundTrip(t, a, b, v)
	require.Len(t, keys, 2, "one session key per slice")
	assert.NotEqual(t, keys[0], keys[1])

	// layout: [tag][uvarint len][key blob][ciphertext]; the ciphertext must
	// open with the observed session key.
	data := p.Data
	assert.Equal(t, protocol.TagData, data[0])
	size, n, err := varint.FromUvarint(data[1:])
	require.NoError(t, err)
	assert.EqualValues(t, priv.Size(), size)
	ct := data[1+n+int(size):]

	gcm, err := NewAESGCM(keys[0])
	require.NoError(t, err)
	body, err := gcm.Open(nil, nonces[0], ct, []byte{protocol.TagData})
	require.NoError(t, err)

	plain, err := NewGobCodec().ToDataStatePair(v)
	require.NoError(t, err)
	assert.Equal(t, plain.Data[1:], body)
}

func TestHybridEncrypter_ObserverIsPerInstance(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var seen int
	observed := observedHybrid(&priv.PublicKey, func(_, _ []byte) { seen++ })
	plain := NewHybridEncrypter(&priv.PublicKey)

	_, err = plain.Encrypt(protocol.TagData, []byte("quiet"))
	require.NoError(t, err)
	assert.Zero(t, seen, "an encrypter without an observer reports nothing")

	_, err = observed.Encrypt(protocol.TagData, []byte("loud"))
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
}

func TestCipherCodec_SwapMidSession(t *testing.T) {
	aead, err := NewAESGCM(randomKey(t, 32))
	require.NoError(t, err)
	a, b := cipherPair(t)

	roundTrip(t, a, b, greeting{Name: "before"})
	a.InitCipher(NewSealer(aead), nil)
	b.InitCipher(nil, NewOpener(aead))
	roundTrip(t, a, b, greeting{Name: "after"})
	roundTrip(t, a, b, &point{X: 3, Y: 4})

	a.InitCipher(nil, nil)
	b.InitCipher(nil, nil)
	roundTrip(t, a, b, greeting{Name: "clear again"})
}

func TestCompressedCodec_RoundTrip(t *testing.T) {
	a := NewCompressedCodec(NewGobCodec())
	b := NewCompressedCodec(NewGobCodec())
	v := greeting{Name: string(bytes.Repeat([]byte("compress me "), 200))}
	p := roundTrip(t, a, b, v)
	assert.Equal(t, protocol.TagData, p.Data[0])
	assert.Less(t, len(p.Data), len(v.Name))

	aead, err := NewAESGCM(randomKey(t, 32))
	require.NoError(t, err)
	ca := NewCipherCodec(NewCompressedCodec(NewGobCodec()))
	cb := NewCipherCodec(NewCompressedCodec(NewGobCodec()))
	ca.InitCipher(NewSealer(aead), nil)
	cb.InitCipher(nil, NewOpener(aead))
	roundTrip(t, ca, cb, v)
}
