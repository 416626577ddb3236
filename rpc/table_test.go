// File: rpc/table_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"testing"

	"github.com/momentics/hioload-rpc/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodTable_RegisterAndLookup(t *testing.T) {
	table := newGreeterTable()
	assert.Contains(t, table.Methods(), methodGreet.Key())
	assert.Contains(t, table.Methods(), MethodDestroy.Key())

	e, err := table.lookup(methodGreet)
	require.NoError(t, err)
	v, err := e.handler(&greeter{prefix: "> "}, []any{"amy"})
	require.NoError(t, err)
	assert.Equal(t, "> hello, amy", v)

	_, err = table.lookup(methodMissing)
	assert.ErrorIs(t, err, api.ErrNotFound)

	err = table.Register(methodGreet, Bind0(func(*greeter) (int, error) { return 0, nil }))
	assert.ErrorIs(t, err, api.ErrAlreadyExists)
	assert.ErrorIs(t, table.Register(NewMethod("x", "Nil"), nil), api.ErrInvalidArgument)
	assert.ErrorIs(t, table.RegisterContext(NewMethod("x", "Nil"), nil), api.ErrInvalidArgument)
}

func TestBinders_ArgumentChecks(t *testing.T) {
	h := Bind2(func(g *greeter, a string, b int) (string, error) { return g.prefix + a, nil })

	_, err := h(&greeter{}, []any{"only"})
	assert.ErrorIs(t, err, api.ErrInvalidArgument, "missing argument")

	_, err = h(&greeter{}, []any{1, 2})
	assert.ErrorIs(t, err, api.ErrInvalidArgument, "wrong argument type")

	_, err = h("not a greeter", []any{"a", 1})
	assert.ErrorIs(t, err, api.ErrInvalidArgument, "wrong target type")

	v, err := h(&greeter{prefix: "p"}, []any{"a", nil})
	require.NoError(t, err, "nil converts to the zero value")
	assert.Equal(t, "pa", v)
}

func TestBindContext1(t *testing.T) {
	h := BindContext1(func(ctx *CallContext, g *greeter, n int) (string, error) {
		return ctx.Method.Name + g.prefix, nil
	})
	v, err := h(&CallContext{Method: methodGreet}, &greeter{prefix: "!"}, []any{3})
	require.NoError(t, err)
	assert.Equal(t, "Greet!", v)
	assert.Nil(t, (&CallContext{}).Codec())
}
