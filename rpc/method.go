// File: rpc/method.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"fmt"
	"strings"

	"github.com/momentics/hioload-rpc/api"
)

// Method identifies a remote method by interface, name and ordered parameter
// type tags.
type Method struct {
	Interface  string
	Name       string
	ParamTypes []string
}

// NewMethod builds a method descriptor.
func NewMethod(iface, name string, params ...string) Method {
	return Method{Interface: iface, Name: name, ParamTypes: params}
}

// Key is the stable lookup key: Interface.Name(p1,p2).
func (m Method) Key() string {
	return m.Interface + "." + m.Name + "(" + strings.Join(m.ParamTypes, ",") + ")"
}

func (m Method) String() string { return m.Key() }

// ParseMethodKey is the inverse of Method.Key.
func ParseMethodKey(key string) (Method, error) {
	open := strings.IndexByte(key, '(')
	if open < 0 || !strings.HasSuffix(key, ")") {
		return Method{}, fmt.Errorf("method key %q: %w", key, api.ErrInvalidArgument)
	}
	dot := strings.LastIndexByte(key[:open], '.')
	if dot <= 0 || dot == open-1 {
		return Method{}, fmt.Errorf("method key %q: %w", key, api.ErrInvalidArgument)
	}
	m := Method{Interface: key[:dot], Name: key[dot+1 : open]}
	if params := key[open+1 : len(key)-1]; params != "" {
		m.ParamTypes = strings.Split(params, ",")
	}
	return m, nil
}

// MethodSerializer decides how a method descriptor travels in ExtendedRPC.
type MethodSerializer interface {
	ToSerializable(m Method) any
	FromSerializable(v any) (Method, error)
}

// DescriptorSerializer sends the Method struct itself.
type DescriptorSerializer struct{}

func (DescriptorSerializer) ToSerializable(m Method) any { return m }

func (DescriptorSerializer) FromSerializable(v any) (Method, error) {
	switch m := v.(type) {
	case Method:
		return m, nil
	case *Method:
		if m != nil {
			return *m, nil
		}
	}
	return Method{}, fmt.Errorf("method descriptor of type %T: %w", v, api.ErrInvalidArgument)
}

// KeySerializer sends the method key string.
type KeySerializer struct{}

func (KeySerializer) ToSerializable(m Method) any { return m.Key() }

func (KeySerializer) FromSerializable(v any) (Method, error) {
	key, ok := v.(string)
	if !ok {
		return Method{}, fmt.Errorf("method key of type %T: %w", v, api.ErrInvalidArgument)
	}
	return ParseMethodKey(key)
}
