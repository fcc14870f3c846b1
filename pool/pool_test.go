package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type item struct {
	buf []byte
}

func TestPool(t *testing.T) {
	allocated := 0
	p := NewPool(
		func() *item {
			allocated++
			return &item{}
		},
		func(v *item) { v.buf = v.buf[:0] },
	)

	v := p.Get()
	require.NotNil(t, v)
	require.Equal(t, 1, allocated)
	v.buf = append(v.buf, 1, 2, 3)
	p.Put(v, nil)

	// sync.Pool gives no guarantees about keeping the object, but whatever
	// is returned must be reset
	v = p.Get()
	require.Empty(t, v.buf)
}
