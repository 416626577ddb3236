// File: rpc/beans.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/momentics/hioload-rpc/api"
	"go.uber.org/zap"
)

// BeanFactory owns the server-side objects stubs point at. Get(nil) returns
// the factory itself, which is how a client creates its first bean.
type BeanFactory interface {
	Get(id any) (any, error)
	Create(interfaces []string, args ...any) (any, error)
	CreateConcrete(concrete string, args ...any) (any, error)
	Destroy(id any) error
	Contains(id any) bool
}

// BeanFactoryInterface is the interface name of the remote bean factory.
const BeanFactoryInterface = "rpc.BeanFactory"

// Remote bean factory methods.
var (
	MethodCreate         = NewMethod(BeanFactoryInterface, "Create", "[]string", "[]any")
	MethodCreateConcrete = NewMethod(BeanFactoryInterface, "CreateConcrete", "string", "[]any")
	MethodDestroy        = NewMethod(BeanFactoryInterface, "Destroy", "any")
	MethodContains       = NewMethod(BeanFactoryInterface, "Contains", "any")
)

func registerBeanFactoryMethods(t *MethodTable) {
	t.MustRegister(MethodCreate, Bind2(func(f BeanFactory, ifaces []string, args []any) (any, error) {
		return f.Create(ifaces, args...)
	}))
	t.MustRegister(MethodCreateConcrete, Bind2(func(f BeanFactory, concrete string, args []any) (any, error) {
		return f.CreateConcrete(concrete, args...)
	}))
	t.MustRegister(MethodDestroy, Bind1(func(f BeanFactory, id any) (bool, error) {
		return true, f.Destroy(id)
	}))
	t.MustRegister(MethodContains, Bind1(func(f BeanFactory, id any) (bool, error) {
		return f.Contains(id), nil
	}))
}

// Constructor builds a bean from call arguments.
type Constructor func(args ...any) (any, error)

// MapBeanFactory keeps beans in memory under random UUID identifiers.
type MapBeanFactory struct {
	log *zap.Logger

	mu        sync.RWMutex
	ctors     map[string]Constructor
	concretes map[string]Constructor
	beans     map[uuid.UUID]any
}

var _ BeanFactory = (*MapBeanFactory)(nil)

// NewMapBeanFactory returns an empty factory.
func NewMapBeanFactory(log *zap.Logger) *MapBeanFactory {
	if log == nil {
		log = zap.L().Named("beans")
	}
	return &MapBeanFactory{
		log:       log,
		ctors:     make(map[string]Constructor),
		concretes: make(map[string]Constructor),
		beans:     make(map[uuid.UUID]any),
	}
}

func interfaceSetKey(ifaces []string) string {
	s := append([]string(nil), ifaces...)
	sort.Strings(s)
	return strings.Join(s, "+")
}

// Provide registers ctor for beans implementing exactly ifaces.
func (f *MapBeanFactory) Provide(ifaces []string, ctor Constructor) *MapBeanFactory {
	f.mu.Lock()
	f.ctors[interfaceSetKey(ifaces)] = ctor
	f.mu.Unlock()
	return f
}

// ProvideConcrete registers ctor under a concrete type name.
func (f *MapBeanFactory) ProvideConcrete(name string, ctor Constructor) *MapBeanFactory {
	f.mu.Lock()
	f.concretes[name] = ctor
	f.mu.Unlock()
	return f
}

// Get returns the bean with identifier id, or the factory for a nil id.
func (f *MapBeanFactory) Get(id any) (any, error) {
	if id == nil {
		return f, nil
	}
	key, ok := id.(uuid.UUID)
	if !ok {
		return nil, fmt.Errorf("bean identifier of type %T: %w", id, api.ErrInvalidArgument)
	}
	f.mu.RLock()
	bean, ok := f.beans[key]
	f.mu.RUnlock()
	if !ok {
		return nil, api.NewError(api.ErrCodeNotFound, "no such bean").WithContext("id", key.String())
	}
	return bean, nil
}

func (f *MapBeanFactory) Create(ifaces []string, args ...any) (any, error) {
	f.mu.RLock()
	ctor, ok := f.ctors[interfaceSetKey(ifaces)]
	f.mu.RUnlock()
	if !ok {
		return nil, api.NewError(api.ErrCodeNotFound, "no constructor for interfaces").
			WithContext("interfaces", ifaces)
	}
	return f.store(ctor, args)
}

func (f *MapBeanFactory) CreateConcrete(concrete string, args ...any) (any, error) {
	f.mu.RLock()
	ctor, ok := f.concretes[concrete]
	f.mu.RUnlock()
	if !ok {
		return nil, api.NewError(api.ErrCodeNotFound, "no constructor for type").WithContext("type", concrete)
	}
	return f.store(ctor, args)
}

func (f *MapBeanFactory) store(ctor Constructor, args []any) (any, error) {
	bean, err := ctor(args...)
	if err != nil {
		return nil, err
	}
	id := uuid.New()
	f.mu.Lock()
	f.beans[id] = bean
	f.mu.Unlock()
	f.log.Debug("bean created", zap.Stringer("id", id), zap.String("type", reflect.TypeOf(bean).String()))
	return id, nil
}

// Destroy removes the bean and closes it if it is an io.Closer.
func (f *MapBeanFactory) Destroy(id any) error {
	key, ok := id.(uuid.UUID)
	if !ok {
		return fmt.Errorf("bean identifier of type %T: %w", id, api.ErrInvalidArgument)
	}
	f.mu.Lock()
	bean, ok := f.beans[key]
	delete(f.beans, key)
	f.mu.Unlock()
	if !ok {
		return api.NewError(api.ErrCodeNotFound, "no such bean").WithContext("id", key.String())
	}
	f.log.Debug("bean destroyed", zap.Stringer("id", key))
	if c, ok := bean.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (f *MapBeanFactory) Contains(id any) bool {
	key, ok := id.(uuid.UUID)
	if !ok {
		return false
	}
	f.mu.RLock()
	_, ok = f.beans[key]
	f.mu.RUnlock()
	return ok
}

// Len returns the number of live beans.
func (f *MapBeanFactory) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.beans)
}
