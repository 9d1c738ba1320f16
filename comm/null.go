package comm

import "context"

// Null is the mandatory single-process communicator: rank 0 of size 1.
// Every collective is the identity on the local value; point-to-point
// calls are programmer errors (there is no other rank to talk to) and
// panic rather than blocking forever.
type Null struct{}

func (Null) Rank() int { return 0 }
func (Null) Size() int { return 1 }

func (Null) Send(ctx context.Context, dest, tag int, data []byte) error {
	panic("comm: Null.Send has no valid peer")
}

func (Null) Recv(ctx context.Context, source, tag int) ([]byte, error) {
	panic("comm: Null.Recv has no valid peer")
}

func (Null) ISend(ctx context.Context, dest, tag int, data []byte) <-chan error {
	panic("comm: Null.ISend has no valid peer")
}

func (Null) IRecv(ctx context.Context, source, tag int) <-chan RecvResult {
	panic("comm: Null.IRecv has no valid peer")
}

func (Null) Barrier(ctx context.Context) error { return nil }

func (Null) AllReduce(ctx context.Context, local int64, op ReduceOp) (int64, error) {
	return local, nil
}

func (Null) AllGather(ctx context.Context, local []byte) ([][]byte, error) {
	return [][]byte{local}, nil
}

func (Null) Broadcast(ctx context.Context, root int, data []byte) ([]byte, error) {
	return data, nil
}

func (Null) Scan(ctx context.Context, local int64, op ReduceOp) (int64, error) {
	return local, nil
}
