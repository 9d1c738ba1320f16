package forest

// NewPayload returns a leaf's initial data slot. A zero size still
// returns a non-nil, zero-length slice rather than nil: Open Question
// (i) resolves that callbacks invoked over quadrants with data_size==0
// receive a valid (if empty) payload handle, not a skipped/nil one, so
// callback code never has to special-case "no user data configured".
func NewPayload(size int) []byte {
	return make([]byte, size)
}

// ResizePayload changes an existing tree's per-leaf payload size in
// place, truncating or zero-extending every leaf's slot. Used when a
// forest's DataSize changes between New calls is not a supported
// operation (DataSize is fixed at forest creation, mirroring p4est_new's
// contract); this helper exists for tests that want to construct a tree
// at one size and verify ErrDataSizeMismatch detection paths.
func ResizePayload(t *Tree, size int) {
	for i, d := range t.Data {
		if len(d) == size {
			continue
		}
		nd := make([]byte, size)
		copy(nd, d)
		t.Data[i] = nd
	}
	t.DataSize = size
}
