// File: codec/codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package codec

// DataStatePair is the encoded form of one value. State is nil when the
// encoder's dictionary did not change.
type DataStatePair struct {
	Data  []byte
	State []byte
}

// StatefulStreamCodec encodes values against state shared with its peer.
// Implementations are not safe for concurrent use; see Synchronized.
type StatefulStreamCodec interface {
	// ToDataStatePair encodes o. State carries only the dictionary entries
	// added by this call.
	ToDataStatePair(o any) (DataStatePair, error)
	// FromDataStatePair folds p.State into the decoder's dictionary, then
	// decodes p.Data. A pair with no Data yields (nil, nil).
	FromDataStatePair(p DataStatePair) (any, error)
	// ResetState forgets all state on both directions.
	ResetState()
}

// Factory builds a fresh codec, one per connection.
type Factory func() StatefulStreamCodec

// DefaultFactory returns a synchronized GobCodec.
func DefaultFactory() StatefulStreamCodec {
	return Synchronized(NewGobCodec(), nil)
}

// CipherFactory returns a synchronized GobCodec behind a CipherCodec with no
// cipher configured, ready for a handshake to key it.
func CipherFactory() StatefulStreamCodec {
	return Synchronized(NewCipherCodec(NewGobCodec()), nil)
}
