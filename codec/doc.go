// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package codec provides stateful stream codecs for the RPC wire format.
//
// A codec turns a value into a DataStatePair: the DATA slice carries the
// value and the optional STATE slice carries dictionary updates the peer must
// fold in before decoding. Both slices start with a tag byte that decorators
// such as CipherCodec and CompressedCodec leave untouched.
package codec
