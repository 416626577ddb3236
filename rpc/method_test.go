// File: rpc/method_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"testing"

	"github.com/momentics/hioload-rpc/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodKey(t *testing.T) {
	assert.Equal(t, "test.Greeter.Greet(string)", methodGreet.Key())
	assert.Equal(t, "test.Greeter.Hello()", methodHello.Key())
	assert.Equal(t, "rpc.BeanFactory.Create([]string,[]any)", MethodCreate.Key())
}

func TestParseMethodKey(t *testing.T) {
	for _, m := range []Method{methodHello, methodGreet, MethodCreate, NewMethod("a.b.C", "D", "x", "y", "z")} {
		got, err := ParseMethodKey(m.Key())
		require.NoError(t, err, m.Key())
		assert.Equal(t, m.Key(), got.Key())
		assert.Equal(t, m.Interface, got.Interface)
	}
	for _, bad := range []string{"", "Hello", "Hello()", ".Hello()", "iface.()", "iface.Hello(x"} {
		_, err := ParseMethodKey(bad)
		assert.ErrorIs(t, err, api.ErrInvalidArgument, bad)
	}
}

func TestMethodSerializers(t *testing.T) {
	for name, s := range map[string]MethodSerializer{
		"descriptor": DescriptorSerializer{},
		"key":        KeySerializer{},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := s.FromSerializable(s.ToSerializable(methodGreet))
			require.NoError(t, err)
			assert.Equal(t, methodGreet.Key(), got.Key())

			_, err = s.FromSerializable(42)
			assert.ErrorIs(t, err, api.ErrInvalidArgument)
		})
	}
}
