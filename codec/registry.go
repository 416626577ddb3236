// File: codec/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Process-wide registry of types the dictionary codec may carry.

package codec

import (
	"encoding/gob"
	"reflect"
	"sort"
	"sync"
)

var registry = struct {
	sync.RWMutex
	byName map[string]reflect.Type
	byType map[reflect.Type]string
}{
	byName: make(map[string]reflect.Type),
	byType: make(map[reflect.Type]string),
}

func init() {
	for _, v := range []any{
		"", false, 0, int8(0), int16(0), int32(0), int64(0),
		uint(0), uint8(0), uint16(0), uint32(0), uint64(0),
		float32(0), float64(0), []byte(nil), []string(nil),
		[]any(nil), map[string]any(nil), map[string]string(nil),
	} {
		Register(v)
	}
}

// TypeName returns the wire name for t: package path and type name, with a
// leading "*" per pointer level.
func TypeName(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		return "*" + TypeName(t.Elem())
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// Register makes value's dynamic type encodable by GobCodec and, through
// gob.Register, usable inside interface-typed fields. Registering the same
// type again is a no-op.
func Register(value any) {
	t := reflect.TypeOf(value)
	if t == nil {
		panic("codec: Register of nil value")
	}
	name := TypeName(t)
	registry.Lock()
	defer registry.Unlock()
	if _, ok := registry.byType[t]; ok {
		return
	}
	if other, ok := registry.byName[name]; ok && other != t {
		panic("codec: type name " + name + " registered twice")
	}
	registry.byName[name] = t
	registry.byType[t] = name
	gob.Register(value)
}

func registeredName(t reflect.Type) (string, bool) {
	registry.RLock()
	defer registry.RUnlock()
	name, ok := registry.byType[t]
	return name, ok
}

func registeredType(name string) (reflect.Type, bool) {
	registry.RLock()
	defer registry.RUnlock()
	t, ok := registry.byName[name]
	return t, ok
}

// Registered lists registered type names in sorted order.
func Registered() []string {
	registry.RLock()
	names := make([]string, 0, len(registry.byName))
	for name := range registry.byName {
		names = append(names, name)
	}
	registry.RUnlock()
	sort.Strings(names)
	return names
}
