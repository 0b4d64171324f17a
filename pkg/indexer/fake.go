package indexer

import "context"

// FakeClient is a deterministic in-memory Client for tests: it returns
// whatever Snapshot/Err is configured regardless of the query.
type FakeClient struct {
	Snapshot *LockSnapshot
	Err      error
}

func (f *FakeClient) LockSnapshot(_ context.Context, _ Query) (*LockSnapshot, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Snapshot, nil
}

func (f *FakeClient) Health(_ context.Context) error { return nil }
