// File: codec/gob.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Dictionary codec: gob bodies prefixed by a small per-connection type id.

package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"reflect"

	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/protocol"
	"github.com/multiformats/go-varint"
)

// GobCodec assigns each registered type a small id the first time it is
// encoded and announces the (id, name) mapping in the STATE slice. Bodies are
// gob encoded with a fresh encoder, so the only cross-message state is the
// type dictionary.
//
// STATE slice: [TagState][uvarint count]{[uvarint id][uvarint len][name]}...
// DATA slice:  [TagData][uvarint id][gob body]
type GobCodec struct {
	encIDs   map[reflect.Type]uint64
	decTypes map[uint64]reflect.Type
}

var _ StatefulStreamCodec = (*GobCodec)(nil)

// NewGobCodec returns an empty dictionary codec.
func NewGobCodec() *GobCodec {
	return &GobCodec{
		encIDs:   make(map[reflect.Type]uint64),
		decTypes: make(map[uint64]reflect.Type),
	}
}

// ToDataStatePair encodes o, which must be of a registered type.
func (c *GobCodec) ToDataStatePair(o any) (DataStatePair, error) {
	if o == nil {
		return DataStatePair{}, fmt.Errorf("encode nil value: %w", api.ErrInvalidArgument)
	}
	t := reflect.TypeOf(o)
	var state []byte
	id, known := c.encIDs[t]
	if !known {
		name, ok := registeredName(t)
		if !ok {
			return DataStatePair{}, api.NewError(api.ErrCodeNotFound, "type not registered with codec").
				WithContext("type", t.String())
		}
		id = uint64(len(c.encIDs) + 1)
		state = appendStateEntry([]byte{protocol.TagState, 1}, id, name)
	}

	var buf bytes.Buffer
	buf.WriteByte(protocol.TagData)
	buf.Write(varint.ToUvarint(id))
	if err := gob.NewEncoder(&buf).Encode(o); err != nil {
		return DataStatePair{}, fmt.Errorf("gob encode %s: %w", t, err)
	}
	// commit the id only after a successful encode
	if !known {
		c.encIDs[t] = id
	}
	return DataStatePair{Data: buf.Bytes(), State: state}, nil
}

func appendStateEntry(dst []byte, id uint64, name string) []byte {
	dst = append(dst, varint.ToUvarint(id)...)
	dst = append(dst, varint.ToUvarint(uint64(len(name)))...)
	return append(dst, name...)
}

// FromDataStatePair folds any dictionary update, then decodes the data slice.
func (c *GobCodec) FromDataStatePair(p DataStatePair) (any, error) {
	if p.State != nil {
		if err := c.foldState(p.State); err != nil {
			return nil, err
		}
	}
	if len(p.Data) == 0 {
		return nil, nil
	}
	if p.Data[0] != protocol.TagData {
		return nil, protocolError("unexpected data tag", p.Data[0])
	}
	id, n, err := varint.FromUvarint(p.Data[1:])
	if err != nil {
		return nil, fmt.Errorf("data type id: %w", err)
	}
	t, ok := c.decTypes[id]
	if !ok {
		return nil, api.NewError(api.ErrCodeProtocol, "unknown type id").WithContext("id", id)
	}
	body := bytes.NewReader(p.Data[1+n:])
	if t.Kind() == reflect.Pointer {
		v := reflect.New(t.Elem())
		if err := gob.NewDecoder(body).DecodeValue(v); err != nil {
			return nil, fmt.Errorf("gob decode %s: %w", t, err)
		}
		return v.Interface(), nil
	}
	v := reflect.New(t)
	if err := gob.NewDecoder(body).DecodeValue(v); err != nil {
		return nil, fmt.Errorf("gob decode %s: %w", t, err)
	}
	return v.Elem().Interface(), nil
}

func (c *GobCodec) foldState(s []byte) error {
	if len(s) == 0 || s[0] != protocol.TagState {
		var tag byte
		if len(s) > 0 {
			tag = s[0]
		}
		return protocolError("unexpected state tag", tag)
	}
	s = s[1:]
	count, n, err := varint.FromUvarint(s)
	if err != nil {
		return fmt.Errorf("state entry count: %w", err)
	}
	s = s[n:]
	for i := uint64(0); i < count; i++ {
		id, n, err := varint.FromUvarint(s)
		if err != nil {
			return fmt.Errorf("state entry id: %w", err)
		}
		s = s[n:]
		size, n, err := varint.FromUvarint(s)
		if err != nil {
			return fmt.Errorf("state entry name: %w", err)
		}
		s = s[n:]
		if uint64(len(s)) < size {
			return api.NewError(api.ErrCodeProtocol, "truncated state entry").WithContext("id", id)
		}
		name := string(s[:size])
		s = s[size:]
		t, ok := registeredType(name)
		if !ok {
			return api.NewError(api.ErrCodeNotFound, "peer announced unregistered type").WithContext("type", name)
		}
		c.decTypes[id] = t
	}
	return nil
}

// ResetState clears both dictionaries.
func (c *GobCodec) ResetState() {
	clear(c.encIDs)
	clear(c.decTypes)
}

func protocolError(msg string, tag byte) error {
	return api.NewError(api.ErrCodeProtocol, msg).WithContext("tag", protocol.TagName(tag))
}
