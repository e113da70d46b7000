package client

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMirror(t *testing.T) {
	m := NewMemoryMirror()
	ctx := context.Background()
	require.NoError(t, m.RecordBooked(ctx, 30))
	require.NoError(t, m.RecordBooked(ctx, 10))
	require.NoError(t, m.RecordBooked(ctx, 30))

	got, err := m.BookedSlots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 30}, got)
}

func TestSQLiteMirrorPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "mirror.db")
	ctx := context.Background()

	m, err := OpenSQLiteMirror(path)
	require.NoError(t, err)
	require.NoError(t, m.RecordBooked(ctx, 2000))
	require.NoError(t, m.RecordBooked(ctx, 1000))
	require.NoError(t, m.RecordBooked(ctx, 2000))
	require.NoError(t, m.Close())

	reopened, err := OpenSQLiteMirror(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.BookedSlots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1000, 2000}, got)
}
