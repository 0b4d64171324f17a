// Integration tests for NonceRepository and CompactRepository. Uses a
// live Postgres test database; skipped when ALLOCATOR_TEST_DB is unset.

package database

import (
	"context"
	"database/sql"
	"io"
	"log"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/lib/pq"

	"github.com/the-compact/allocator-core/pkg/compact"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	connStr := os.Getenv("ALLOCATOR_TEST_DB")
	if connStr == "" {
		os.Exit(0)
	}

	var err error
	testDB, err = sql.Open("postgres", connStr)
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}

	client := newTestClient()
	if err := client.MigrateUp(context.Background()); err != nil {
		panic("failed to migrate test database: " + err.Error())
	}

	code := m.Run()
	testDB.Close()
	os.Exit(code)
}

func newTestClient() *Client {
	return &Client{db: testDB, logger: log.New(io.Discard, "", 0)}
}

func freshRepos(t *testing.T) *Repositories {
	t.Helper()
	if testDB == nil {
		t.Skip("test database not configured")
	}
	if _, err := testDB.Exec(`TRUNCATE nonces, compacts`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return NewRepositories(newTestClient())
}

func TestGenerateNextOnEmptyLedger(t *testing.T) {
	repos := freshRepos(t)
	var sponsor [20]byte
	high, low, err := repos.Nonces.GenerateNext(context.Background(), "1", sponsor)
	if err != nil {
		t.Fatalf("generate next: %v", err)
	}
	if high != 0 || low != 0 {
		t.Fatalf("expected (0,0), got (%d,%d)", high, low)
	}
}

func TestGenerateNextAfterZeroZero(t *testing.T) {
	repos := freshRepos(t)
	var sponsor [20]byte
	ctx := context.Background()

	tx, _ := testDB.BeginTx(ctx, nil)
	if err := repos.Nonces.CommitUsed(ctx, tx, "1", sponsor, 0, 0); err != nil {
		t.Fatalf("commit used: %v", err)
	}
	tx.Commit()

	high, low, err := repos.Nonces.GenerateNext(ctx, "1", sponsor)
	if err != nil {
		t.Fatalf("generate next: %v", err)
	}
	if high != 0 || low != 1 {
		t.Fatalf("expected (0,1), got (%d,%d)", high, low)
	}
}

func TestGenerateNextGapReuse(t *testing.T) {
	repos := freshRepos(t)
	var sponsor [20]byte
	ctx := context.Background()

	tx, _ := testDB.BeginTx(ctx, nil)
	repos.Nonces.CommitUsed(ctx, tx, "1", sponsor, 0, 0)
	repos.Nonces.CommitUsed(ctx, tx, "1", sponsor, 0, 2)
	tx.Commit()

	high, low, err := repos.Nonces.GenerateNext(ctx, "1", sponsor)
	if err != nil {
		t.Fatalf("generate next: %v", err)
	}
	if high != 0 || low != 1 {
		t.Fatalf("expected gap (0,1), got (%d,%d)", high, low)
	}

	tx2, _ := testDB.BeginTx(ctx, nil)
	repos.Nonces.CommitUsed(ctx, tx2, "1", sponsor, high, low)
	tx2.Commit()

	high2, low2, err := repos.Nonces.GenerateNext(ctx, "1", sponsor)
	if err != nil {
		t.Fatalf("generate next: %v", err)
	}
	if high2 != 0 || low2 != 3 {
		t.Fatalf("expected (0,3), got (%d,%d)", high2, low2)
	}
}

func TestCommitUsedRaceYieldsNonceTaken(t *testing.T) {
	repos := freshRepos(t)
	var sponsor [20]byte
	ctx := context.Background()

	tx, _ := testDB.BeginTx(ctx, nil)
	if err := repos.Nonces.CommitUsed(ctx, tx, "1", sponsor, 0, 0); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	tx.Commit()

	tx2, _ := testDB.BeginTx(ctx, nil)
	err := repos.Nonces.CommitUsed(ctx, tx2, "1", sponsor, 0, 0)
	tx2.Rollback()
	if err != ErrNonceTaken {
		t.Fatalf("expected ErrNonceTaken, got %v", err)
	}
}

func TestCompactInsertLookupListBySponsor(t *testing.T) {
	repos := freshRepos(t)
	ctx := context.Background()
	sponsor := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	record := compact.Record{
		ChainID: "1",
		Compact: compact.Compact{
			Arbiter: common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
			Sponsor: sponsor,
			Nonce:   big.NewInt(0),
			Expires: uint64(time.Now().Add(time.Hour).Unix()),
			ID:      big.NewInt(1),
			Amount:  big.NewInt(1000),
		},
		ClaimHash: [32]byte{1, 2, 3},
		Signature: [65]byte{4, 5, 6},
		CreatedAt: time.Now(),
	}

	tx, _ := testDB.BeginTx(ctx, nil)
	if err := repos.Compacts.Insert(ctx, tx, record); err != nil {
		t.Fatalf("insert: %v", err)
	}
	tx.Commit()

	tx2, _ := testDB.BeginTx(ctx, nil)
	err := repos.Compacts.Insert(ctx, tx2, record)
	tx2.Rollback()
	if err != ErrCompactExists {
		t.Fatalf("expected ErrCompactExists, got %v", err)
	}

	got, err := repos.Compacts.Lookup(ctx, "1", record.ClaimHash)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Compact.Amount.Cmp(record.Compact.Amount) != 0 {
		t.Fatalf("amount mismatch: got %s, want %s", got.Compact.Amount, record.Compact.Amount)
	}

	list, err := repos.Compacts.ListBySponsor(ctx, sponsor)
	if err != nil {
		t.Fatalf("list by sponsor: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 record, got %d", len(list))
	}
}
