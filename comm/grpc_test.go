package comm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGRPCWorld(t *testing.T, addrs []string) []*GRPC {
	t.Helper()
	ranks := make([]*GRPC, len(addrs))
	for r := range addrs {
		g, err := NewGRPC(r, addrs)
		require.NoError(t, err)
		ranks[r] = g
	}
	t.Cleanup(func() {
		for _, g := range ranks {
			_ = g.Close()
		}
	})
	return ranks
}

func TestGRPCSendRecvRoundTrip(t *testing.T) {
	addrs := []string{"127.0.0.1:19121", "127.0.0.1:19122"}
	ranks := newGRPCWorld(t, addrs)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	var recvd []byte
	var recvErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		recvd, recvErr = ranks[1].Recv(ctx, 0, 3)
	}()
	require.NoError(t, ranks[0].Send(ctx, 1, 3, []byte("hello")))
	wg.Wait()

	require.NoError(t, recvErr)
	assert.Equal(t, []byte("hello"), recvd)
}

func TestGRPCAllReduceAcrossThreeRanks(t *testing.T) {
	addrs := []string{"127.0.0.1:19131", "127.0.0.1:19132", "127.0.0.1:19133"}
	ranks := newGRPCWorld(t, addrs)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	results := make([]int64, len(ranks))
	wg.Add(len(ranks))
	for i, g := range ranks {
		go func(i int, g *GRPC) {
			defer wg.Done()
			v, err := g.AllReduce(ctx, int64(i+1), OpSum)
			require.NoError(t, err)
			results[i] = v
		}(i, g)
	}
	wg.Wait()
	for _, v := range results {
		assert.Equal(t, int64(6), v)
	}
}

func TestGRPCEnvelopeRoundTrip(t *testing.T) {
	b := encodeEnvelope(1, 2, 9, []byte("payload"))
	from, to, tag, payload := decodeEnvelope(b)
	assert.Equal(t, 1, from)
	assert.Equal(t, 2, to)
	assert.Equal(t, 9, tag)
	assert.Equal(t, []byte("payload"), payload)
}
