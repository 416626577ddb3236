// File: rpc/beans_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"testing"

	"github.com/google/uuid"
	"github.com/momentics/hioload-rpc/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapBeanFactory_Lifecycle(t *testing.T) {
	f := newGreeterFactory(t)

	self, err := f.Get(nil)
	require.NoError(t, err)
	assert.Same(t, f, self)

	id, err := f.Create([]string{greeterInterface}, "p")
	require.NoError(t, err)
	assert.True(t, f.Contains(id))

	bean, err := f.Get(id)
	require.NoError(t, err)
	g := bean.(*greeter)
	assert.Equal(t, "p", g.prefix)

	require.NoError(t, f.Destroy(id))
	assert.True(t, g.closed.Load())
	assert.False(t, f.Contains(id))
	assert.ErrorIs(t, f.Destroy(id), api.ErrNotFound)
	_, err = f.Get(id)
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.Zero(t, f.Len())
}

func TestMapBeanFactory_Errors(t *testing.T) {
	f := newGreeterFactory(t)
	_, err := f.Create([]string{"test.Unknown"})
	assert.ErrorIs(t, err, api.ErrNotFound)

	_, err = f.Create([]string{greeterInterface}, 42)
	assert.Error(t, err, "constructor rejects the argument")

	_, err = f.Get("not-a-uuid")
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	assert.False(t, f.Contains("not-a-uuid"))
	assert.False(t, f.Contains(uuid.New()))
}

func TestMapBeanFactory_InterfaceSetOrder(t *testing.T) {
	f := NewMapBeanFactory(nil)
	f.Provide([]string{"b.B", "a.A"}, func(...any) (any, error) { return "both", nil })
	f.ProvideConcrete("pkg.Thing", func(args ...any) (any, error) { return len(args), nil })

	id, err := f.Create([]string{"a.A", "b.B"})
	require.NoError(t, err)
	v, err := f.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "both", v)

	id, err = f.CreateConcrete("pkg.Thing", 1, 2)
	require.NoError(t, err)
	v, err = f.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = f.CreateConcrete("pkg.Other")
	assert.ErrorIs(t, err, api.ErrNotFound)
}
