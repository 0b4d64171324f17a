package validator

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/the-compact/allocator-core/pkg/bitcodec"
	"github.com/the-compact/allocator-core/pkg/compact"
	"github.com/the-compact/allocator-core/pkg/indexer"
)

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

type fakeNonces struct {
	used map[string]bool
}

func newFakeNonces() *fakeNonces { return &fakeNonces{used: map[string]bool{}} }

func (f *fakeNonces) key(chainID string, sponsor [20]byte, high uint64, low uint32) string {
	return chainID + string(sponsor[:]) + string(rune(high)) + string(rune(low))
}

func (f *fakeNonces) CheckUsed(_ context.Context, chainID string, sponsor [20]byte, high uint64, low uint32) (bool, error) {
	return f.used[f.key(chainID, sponsor, high, low)], nil
}

func (f *fakeNonces) markUsed(chainID string, sponsor [20]byte, high uint64, low uint32) {
	f.used[f.key(chainID, sponsor, high, low)] = true
}

type fakeOutstanding struct {
	records []compact.Record
}

func (f *fakeOutstanding) OutstandingCandidates(_ context.Context, _ string, _ common.Address) ([]compact.Record, error) {
	return f.records, nil
}

type fakeThresholds struct{ d time.Duration }

func (f fakeThresholds) For(string) time.Duration { return f.d }

func exampleCompact(t *testing.T, amount string, expires uint64) compact.Compact {
	t.Helper()
	sponsor := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	id := bitcodec.PackID(bitcodec.CompactID{
		ResetPeriodIndex: 7,
		AllocatorID:      big.NewInt(1),
		TokenLockID:      big.NewInt(0),
	})
	amt, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		t.Fatalf("bad amount %q", amount)
	}
	return compact.Compact{
		Arbiter: common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
		Sponsor: sponsor,
		Nonce:   bitcodec.PackNonce(toArr(sponsor), 0, 0),
		Expires: expires,
		ID:      id,
		Amount:  amt,
	}
}

func toArr(a common.Address) [20]byte {
	var out [20]byte
	copy(out[:], a.Bytes())
	return out
}

func newValidator(idx indexer.Client, nonces *fakeNonces, outstanding *fakeOutstanding, now time.Time) *Validator {
	return NewValidator(nonces, idx, outstanding, fakeThresholds{d: time.Hour}, fixedClock{t: now})
}

func TestValidateHappyPath(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := exampleCompact(t, "1000000000000000000", uint64(now.Add(time.Hour).Unix()))
	balance, _ := new(big.Int).SetString("10000000000000000000", 10)
	idx := &indexer.FakeClient{Snapshot: &indexer.LockSnapshot{
		Balance:     balance,
		AllocatorID: big.NewInt(1),
	}}
	v := newValidator(idx, newFakeNonces(), &fakeOutstanding{}, now)

	if err := v.Validate(context.Background(), "1", c); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestValidateNonceUsed(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := exampleCompact(t, "1", uint64(now.Add(time.Hour).Unix()))
	nonces := newFakeNonces()
	nonces.markUsed("1", toArr(c.Sponsor), 0, 0)
	idx := &indexer.FakeClient{Snapshot: &indexer.LockSnapshot{Balance: big.NewInt(1), AllocatorID: big.NewInt(1)}}
	v := newValidator(idx, nonces, &fakeOutstanding{}, now)

	err := v.Validate(context.Background(), "1", c)
	assertKind(t, err, KindNonceUsed)
}

func TestValidateNonceMismatchSponsor(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := exampleCompact(t, "1", uint64(now.Add(time.Hour).Unix()))
	c.Nonce = bitcodec.PackNonce([20]byte{}, 0, 0)
	idx := &indexer.FakeClient{Snapshot: &indexer.LockSnapshot{Balance: big.NewInt(1), AllocatorID: big.NewInt(1)}}
	v := newValidator(idx, newFakeNonces(), &fakeOutstanding{}, now)

	err := v.Validate(context.Background(), "1", c)
	assertKind(t, err, KindNonceMismatchSponsor)
}

func TestValidateInsufficientBalance(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := exampleCompact(t, "1000000000000000000", uint64(now.Add(time.Hour).Unix()))
	idx := &indexer.FakeClient{Snapshot: &indexer.LockSnapshot{
		Balance:     big.NewInt(500_000000000000000),
		AllocatorID: big.NewInt(1),
	}}
	v := newValidator(idx, newFakeNonces(), &fakeOutstanding{}, now)

	err := v.Validate(context.Background(), "1", c)
	verr := assertKind(t, err, KindInsufficientBalance)
	if verr.Have != "500000000000000000" || verr.Need != "1000000000000000000" {
		t.Fatalf("unexpected have/need: %+v", verr)
	}
}

func TestValidateResetPeriodTooShort(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := exampleCompact(t, "1", uint64(now.Add(time.Hour).Unix()))
	c.ID = bitcodec.PackID(bitcodec.CompactID{ResetPeriodIndex: 0, AllocatorID: big.NewInt(1), TokenLockID: big.NewInt(0)})
	idx := &indexer.FakeClient{Snapshot: &indexer.LockSnapshot{Balance: big.NewInt(1), AllocatorID: big.NewInt(1)}}
	v := newValidator(idx, newFakeNonces(), &fakeOutstanding{}, now)

	err := v.Validate(context.Background(), "1", c)
	assertKind(t, err, KindResetPeriodTooShort)
}

func TestValidateExpiryBoundary(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	idx := &indexer.FakeClient{Snapshot: &indexer.LockSnapshot{Balance: big.NewInt(1), AllocatorID: big.NewInt(1)}}

	accepted := exampleCompact(t, "1", uint64(now.Add(7200*time.Second).Unix()))
	v := newValidator(idx, newFakeNonces(), &fakeOutstanding{}, now)
	if err := v.Validate(context.Background(), "1", accepted); err != nil {
		t.Fatalf("expires==now+7200 should be accepted, got %v", err)
	}

	rejected := exampleCompact(t, "1", uint64(now.Add(7201*time.Second).Unix()))
	v2 := newValidator(idx, newFakeNonces(), &fakeOutstanding{}, now)
	err := v2.Validate(context.Background(), "1", rejected)
	assertKind(t, err, KindExpiryTooFar)

	atNow := exampleCompact(t, "1", uint64(now.Unix()))
	v3 := newValidator(idx, newFakeNonces(), &fakeOutstanding{}, now)
	err = v3.Validate(context.Background(), "1", atNow)
	assertKind(t, err, KindExpired)
}

func assertKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	verr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T (%v)", err, err)
	}
	if verr.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, verr.Kind, verr)
	}
	return verr
}
