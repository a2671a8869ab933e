package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/miilabs/auction-harvester/internal/storage"
)

func newStore(t *testing.T) *BlobStore {
	t.Helper()
	s, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutObject(ctx, "bat.csv", "text/csv", []byte("a,b\n1,2\n")))
	data, err := s.GetObject(ctx, "bat.csv")
	require.NoError(t, err)
	require.Equal(t, "a,b\n1,2\n", string(data))
}

func TestGetMissing(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	_, err := s.GetObject(context.Background(), "nothing.csv")
	require.ErrorIs(t, err, storage.ErrNotExist)
}

func TestPutOverwrites(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutObject(ctx, "k", "", []byte("old")))
	require.NoError(t, s.PutObject(ctx, "k", "", []byte("new")))
	data, err := s.GetObject(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "new", string(data))
}

func TestCopyObject(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutObject(ctx, "src", "", []byte("payload")))
	require.NoError(t, s.CopyObject(ctx, "src", "backups/src_20250101"))

	data, err := s.GetObject(ctx, "backups/src_20250101")
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))

	require.ErrorIs(t, s.CopyObject(ctx, "absent", "dst"), storage.ErrNotExist)
}

func TestListObjects(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutObject(ctx, "backups/bat_1", "", []byte("x")))
	require.NoError(t, s.PutObject(ctx, "backups/bat_2", "", []byte("y")))
	require.NoError(t, s.PutObject(ctx, "bat.csv", "", []byte("z")))

	keys, err := s.ListObjects(ctx, "backups/")
	require.NoError(t, err)
	require.Equal(t, []string{"backups/bat_1", "backups/bat_2"}, keys)
}

func TestDeleteMissingIsNoop(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	require.NoError(t, s.DeleteObject(context.Background(), "ghost"))
}

func TestKeyTraversalRejected(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	err := s.PutObject(context.Background(), "../outside", "", []byte("x"))
	require.Error(t, err)
}
