// Package pool provides a generic pool of reusable objects.
package pool

import (
	"sync"
)

type Pool[T any] struct {
	sync.Pool
	ResetFunc func(*T)
}

// NewPool returns a pool that allocates new objects with allocFunc and
// resets the returned ones with resetFunc (which may be nil).
func NewPool[T any](
	allocFunc func() *T,
	resetFunc func(*T),
) *Pool[T] {
	return &Pool[T]{
		Pool: sync.Pool{
			New: func() any {
				return allocFunc()
			},
		},
		ResetFunc: resetFunc,
	}
}

func (p *Pool[T]) Get() *T {
	return p.Pool.Get().(*T)
}

func (p *Pool[T]) Put(items ...*T) {
	for _, item := range items {
		if item == nil {
			continue
		}
		if p.ResetFunc != nil {
			p.ResetFunc(item)
		}
		p.Pool.Put(item)
	}
}
