package streampool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/imgcodec/accel/host"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLeaseReusesReleasedStreams(t *testing.T) {
	ctx := context.Background()
	dev, err := host.NewDevice(ctx, 0, host.Config{})
	require.NoError(t, err)
	defer dev.Close(ctx)

	p := New()
	defer p.Close(ctx)

	l0, err := p.Lease(ctx, dev)
	require.NoError(t, err)
	l1, err := p.Lease(ctx, dev)
	require.NoError(t, err)
	require.NotSame(t, l0.Stream(), l1.Stream())
	require.Equal(t, 2, p.NumLeased(ctx, dev))
	require.Equal(t, 2, dev.NumStreams(ctx))

	s0 := l0.Stream()
	l0.Release(ctx)
	l0.Release(ctx)
	require.Equal(t, 1, p.NumIdle(ctx, dev))
	require.Equal(t, 1, p.NumLeased(ctx, dev))

	l2, err := p.Lease(ctx, dev)
	require.NoError(t, err)
	require.Same(t, s0, l2.Stream())
	require.Equal(t, 2, dev.NumStreams(ctx))

	l1.Release(ctx)
	l2.Release(ctx)
	require.Equal(t, 0, p.NumLeased(ctx, dev))
	require.Equal(t, 2, p.NumIdle(ctx, dev))

	require.NoError(t, p.Purge(ctx, dev))
	require.Equal(t, 0, p.NumIdle(ctx, dev))
	require.Equal(t, 0, dev.NumStreams(ctx))
}

func TestLeaseKeepsDevicesApart(t *testing.T) {
	ctx := context.Background()
	dev0, err := host.NewDevice(ctx, 0, host.Config{})
	require.NoError(t, err)
	defer dev0.Close(ctx)
	dev1, err := host.NewDevice(ctx, 1, host.Config{})
	require.NoError(t, err)
	defer dev1.Close(ctx)

	p := New()
	defer p.Close(ctx)

	l0, err := p.Lease(ctx, dev0)
	require.NoError(t, err)
	l0.Release(ctx)

	l1, err := p.Lease(ctx, dev1)
	require.NoError(t, err)
	require.Equal(t, dev1.ID(), l1.Stream().DeviceID())
	l1.Release(ctx)

	require.Equal(t, 1, p.NumIdle(ctx, dev0))
	require.Equal(t, 1, p.NumIdle(ctx, dev1))
}

func TestLeaseOnClosedDevice(t *testing.T) {
	ctx := context.Background()
	dev, err := host.NewDevice(ctx, 0, host.Config{})
	require.NoError(t, err)
	require.NoError(t, dev.Close(ctx))

	_, err = New().Lease(ctx, dev)
	require.Error(t, err)
}
