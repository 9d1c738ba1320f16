package comm

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSendRecvRoundTrip(t *testing.T) {
	world := NewLocalWorld(2)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	var recvErr error
	var recvd []byte
	go func() {
		defer wg.Done()
		recvd, recvErr = world[1].Recv(ctx, 0, 42)
	}()
	go func() {
		defer wg.Done()
		_ = world[0].Send(ctx, 1, 42, []byte("payload"))
	}()
	wg.Wait()

	require.NoError(t, recvErr)
	assert.Equal(t, []byte("payload"), recvd)
}

func TestLocalISendIRecv(t *testing.T) {
	world := NewLocalWorld(2)
	ctx := context.Background()

	recvCh := world[1].IRecv(ctx, 0, 7)
	sendCh := world[0].ISend(ctx, 1, 7, []byte("async"))

	require.NoError(t, <-sendCh)
	result := <-recvCh
	require.NoError(t, result.Err)
	assert.Equal(t, []byte("async"), result.Data)
}

func TestLocalBarrierReleasesAllRanks(t *testing.T) {
	const size = 4
	world := NewLocalWorld(size)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(size)
	for r := 0; r < size; r++ {
		go func(r int) {
			defer wg.Done()
			assert.NoError(t, world[r].Barrier(ctx))
		}(r)
	}
	wg.Wait()
}

func TestLocalAllReduceSum(t *testing.T) {
	const size = 5
	world := NewLocalWorld(size)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]int64, size)
	wg.Add(size)
	for r := 0; r < size; r++ {
		go func(r int) {
			defer wg.Done()
			v, err := world[r].AllReduce(ctx, int64(r+1), OpSum)
			require.NoError(t, err)
			results[r] = v
		}(r)
	}
	wg.Wait()
	for _, v := range results {
		assert.Equal(t, int64(1+2+3+4+5), v)
	}
}

func TestLocalScanIsInclusivePrefixPerRank(t *testing.T) {
	const size = 4
	world := NewLocalWorld(size)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]int64, size)
	wg.Add(size)
	for r := 0; r < size; r++ {
		go func(r int) {
			defer wg.Done()
			v, err := world[r].Scan(ctx, int64(r+1), OpSum)
			require.NoError(t, err)
			results[r] = v
		}(r)
	}
	wg.Wait()
	want := []int64{1, 3, 6, 10}
	assert.Equal(t, want, results)
}

func TestLocalAllGatherOrdersByRank(t *testing.T) {
	const size = 3
	world := NewLocalWorld(size)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([][][]byte, size)
	wg.Add(size)
	for r := 0; r < size; r++ {
		go func(r int) {
			defer wg.Done()
			v, err := world[r].AllGather(ctx, []byte{byte(r)})
			require.NoError(t, err)
			results[r] = v
		}(r)
	}
	wg.Wait()
	for r := 0; r < size; r++ {
		for i := 0; i < size; i++ {
			assert.Equal(t, []byte{byte(i)}, results[r][i])
		}
	}
}

func TestLocalBroadcastFromRoot(t *testing.T) {
	const size = 3
	world := NewLocalWorld(size)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([][]byte, size)
	wg.Add(size)
	for r := 0; r < size; r++ {
		go func(r int) {
			defer wg.Done()
			v, err := world[r].Broadcast(ctx, 1, []byte("from-rank-1"))
			require.NoError(t, err)
			results[r] = v
		}(r)
	}
	wg.Wait()
	for r := 0; r < size; r++ {
		assert.Equal(t, []byte("from-rank-1"), results[r])
	}
}

// TestLocalRepeatedRoundsDoNotRace exercises the generation-published
// collective path across many consecutive rounds with ranks progressing
// at different speeds, the scenario the published-by-generation design
// guards against.
func TestLocalRepeatedRoundsDoNotRace(t *testing.T) {
	const size = 6
	const rounds = 50
	world := NewLocalWorld(size)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(size)
	for r := 0; r < size; r++ {
		go func(r int) {
			defer wg.Done()
			for round := 0; round < rounds; round++ {
				v, err := world[r].AllReduce(ctx, int64(r), OpSum)
				require.NoError(t, err)
				assert.Equal(t, int64(size*(size-1)/2), v)
			}
		}(r)
	}
	wg.Wait()
}
