package comm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullCommIdentityCollectives(t *testing.T) {
	n := &Null{}
	assert.Equal(t, 0, n.Rank())
	assert.Equal(t, 1, n.Size())

	ctx := context.Background()
	require.NoError(t, n.Barrier(ctx))

	sum, err := n.AllReduce(ctx, 7, OpSum)
	require.NoError(t, err)
	assert.Equal(t, int64(7), sum)

	scan, err := n.Scan(ctx, 7, OpSum)
	require.NoError(t, err)
	assert.Equal(t, int64(7), scan)

	gathered, err := n.AllGather(ctx, []byte("hi"))
	require.NoError(t, err)
	require.Len(t, gathered, 1)
	assert.Equal(t, []byte("hi"), gathered[0])

	bc, err := n.Broadcast(ctx, 0, []byte("root"))
	require.NoError(t, err)
	assert.Equal(t, []byte("root"), bc)
}

func TestNullCommSendRecvPanics(t *testing.T) {
	n := &Null{}
	ctx := context.Background()
	assert.Panics(t, func() { _ = n.Send(ctx, 0, 0, nil) })
	assert.Panics(t, func() { _, _ = n.Recv(ctx, 0, 0) })
}

func TestReduceOpSemantics(t *testing.T) {
	assert.Equal(t, int64(5), reduce(OpSum, 2, 3))
	assert.Equal(t, int64(3), reduce(OpMax, 2, 3))
	assert.Equal(t, int64(2), reduce(OpMin, 2, 3))
	assert.Equal(t, int64(1), reduce(OpOr, 0, 3))
	assert.Equal(t, int64(0), reduce(OpOr, 0, 0))
}
