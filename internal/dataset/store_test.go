package dataset

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/miilabs/auction-harvester/internal/storage/memory"
)

func newTestStore(t *testing.T, blobs *memory.BlobStore, retention int) *Store {
	t.Helper()
	s, err := NewStore(blobs, StoreConfig{
		ObjectKey:       "bat.csv",
		BackupPrefix:    "backups/bat",
		BackupRetention: retention,
	}, zap.NewNop())
	require.NoError(t, err)

	// Deterministic, strictly increasing backup timestamps.
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		base = base.Add(time.Second)
		return base
	}
	return s
}

func TestStore_FirstRunLoad(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, memory.New(), 0)
	require.NoError(t, s.Load(context.Background()))
	require.Zero(t, s.Size())
	require.False(t, s.Known("https://example.com/listing/a"))
}

func TestStore_LoadBuildsKeySet(t *testing.T) {
	t.Parallel()
	blobs := memory.New()
	ctx := context.Background()

	seed, err := EncodeCSV([]Record{rec("a", 1990, ""), rec("b", 0, "")})
	require.NoError(t, err)
	require.NoError(t, blobs.PutObject(ctx, "bat.csv", "text/csv", seed))

	s := newTestStore(t, blobs, 0)
	require.NoError(t, s.Load(ctx))
	require.Equal(t, 2, s.Size())
	require.True(t, s.Known("a"))
	require.True(t, s.Known("b"))
	require.False(t, s.Known("c"))
}

func TestStore_MergeAndPersistRoundTrip(t *testing.T) {
	t.Parallel()
	blobs := memory.New()
	ctx := context.Background()

	s := newTestStore(t, blobs, 0)
	require.NoError(t, s.Load(ctx))
	require.NoError(t, s.MergeAndPersist(ctx, []Record{rec("a", 2001, "first")}))
	require.NoError(t, s.MergeAndPersist(ctx, []Record{rec("b", 2010, "second")}))

	// A fresh store sees both checkpoints.
	reloaded := newTestStore(t, blobs, 0)
	require.NoError(t, reloaded.Load(ctx))
	require.Equal(t, 2, reloaded.Size())
	require.True(t, reloaded.Known("a"))
	require.True(t, reloaded.Known("b"))

	// No temp object left behind.
	keys, err := blobs.ListObjects(ctx, "bat.csv.tmp")
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestStore_BackupBeforeOverwrite(t *testing.T) {
	t.Parallel()
	blobs := memory.New()
	ctx := context.Background()

	s := newTestStore(t, blobs, 0)
	require.NoError(t, s.Load(ctx))

	// First persist: nothing durable yet, so no backup is taken.
	require.NoError(t, s.MergeAndPersist(ctx, []Record{rec("a", 1990, "v1")}))
	backups, err := blobs.ListObjects(ctx, "backups/bat")
	require.NoError(t, err)
	require.Empty(t, backups)

	// Second persist backs up the previous durable copy first.
	require.NoError(t, s.MergeAndPersist(ctx, []Record{rec("b", 1991, "")}))
	backups, err = blobs.ListObjects(ctx, "backups/bat")
	require.NoError(t, err)
	require.Len(t, backups, 1)

	data, err := blobs.GetObject(ctx, backups[0])
	require.NoError(t, err)
	records, err := DecodeCSV(data)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "a", records[0].AuctionURL)
}

func TestStore_PersistFailureKeepsLastKnownGood(t *testing.T) {
	t.Parallel()
	blobs := memory.New()
	ctx := context.Background()

	s := newTestStore(t, blobs, 0)
	require.NoError(t, s.Load(ctx))
	require.NoError(t, s.MergeAndPersist(ctx, []Record{rec("a", 1990, "good")}))

	blobs.FailPuts = true
	err := s.MergeAndPersist(ctx, []Record{rec("b", 2000, "")})
	require.Error(t, err)

	// Durable copy untouched, in-memory state not advanced.
	data, gerr := blobs.GetObject(ctx, "bat.csv")
	require.NoError(t, gerr)
	records, derr := DecodeCSV(data)
	require.NoError(t, derr)
	require.Len(t, records, 1)
	require.Equal(t, "a", records[0].AuctionURL)
	require.False(t, s.Known("b"))

	// The same batch succeeds once the store recovers.
	blobs.FailPuts = false
	require.NoError(t, s.MergeAndPersist(ctx, []Record{rec("b", 2000, "")}))
	require.True(t, s.Known("b"))
	require.Equal(t, 2, s.Size())
}

func TestStore_BackupRetention(t *testing.T) {
	t.Parallel()
	blobs := memory.New()
	ctx := context.Background()

	s := newTestStore(t, blobs, 2)
	require.NoError(t, s.Load(ctx))
	for i, key := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, s.MergeAndPersist(ctx, []Record{rec(key, 1990+i, "")}))
	}

	backups, err := blobs.ListObjects(ctx, "backups/bat")
	require.NoError(t, err)
	require.Len(t, backups, 2)
}

func TestStore_ScenarioKnownKeyUnchanged(t *testing.T) {
	t.Parallel()
	blobs := memory.New()
	ctx := context.Background()

	// Previous run captured B.
	seed := newTestStore(t, blobs, 0)
	require.NoError(t, seed.Load(ctx))
	require.NoError(t, seed.MergeAndPersist(ctx, []Record{rec("B", 1988, "original B")}))

	// This run processes A and C only; B stays as-is.
	s := newTestStore(t, blobs, 0)
	require.NoError(t, s.Load(ctx))
	require.True(t, s.Known("B"))
	require.NoError(t, s.MergeAndPersist(ctx, []Record{rec("A", 1995, ""), rec("C", 0, "")}))

	require.Equal(t, 3, s.Size())
	require.Equal(t, "original B", findByKey(t, s.Snapshot(), "B").Title)
}
