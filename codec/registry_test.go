// File: codec/registry_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package codec

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func typeOf(v any) reflect.Type { return reflect.TypeOf(v) }

func TestRegister_Idempotent(t *testing.T) {
	before := len(Registered())
	Register(greeting{})
	Register(&point{})
	assert.Len(t, Registered(), before)
	assert.Panics(t, func() { Register(nil) })
}
