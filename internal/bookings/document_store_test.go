package bookings

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestFileStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, err := OpenDocumentStore(filepath.Join(t.TempDir(), "data", "bookings.json"))
		require.NoError(t, err)
		return s
	})
}

func TestOpenDocumentStoreCreatesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "bookings.json")
	_, err := OpenDocumentStore(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bookings": []}`, string(data))
}

func TestDocumentStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bookings.json")

	s, err := OpenDocumentStore(path)
	require.NoError(t, err)
	now := time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Insert(ctx, &Booking{
		ID: "BK-1", Timestamp: 1791993600000, ClientName: "Jane Doe", ClientEmail: "jane@example.com",
		PaymentStatus: PaymentCompleted, StripeSessionID: "RK-12345678", CreatedAt: now, UpdatedAt: now,
	}))

	reopened, err := OpenDocumentStore(path)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "BK-1")
	require.NoError(t, err)
	assert.Equal(t, "RK-12345678", got.StripeSessionID)

	taken, err := reopened.SlotTaken(ctx, 1791993600000)
	require.NoError(t, err)
	assert.True(t, taken)

	var raw map[string][]map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "completed", raw["bookings"][0]["paymentStatus"])
	assert.Equal(t, "2026-10-14T12:00:00Z", raw["bookings"][0]["createdAt"])
}

func TestOpenDocumentStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := OpenDocumentStore(path)
	assert.Error(t, err)
}

func TestDocumentStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Insert(ctx, &Booking{ID: "BK-1", Timestamp: 1, PaymentStatus: PaymentPending}))

	got, err := s.Get(ctx, "BK-1")
	require.NoError(t, err)
	got.PaymentStatus = PaymentCompleted

	taken, err := s.SlotTaken(ctx, 1)
	require.NoError(t, err)
	assert.False(t, taken)
}
