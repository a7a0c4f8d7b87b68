package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/fsuipc-bridge/pkg/logger"
)

func newTestStorage(t *testing.T) *CommandStorage {
	t.Helper()
	s, err := NewCommandStorage(filepath.Join(t.TempDir(), "commands.db"), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	records := []*CommandRecord{
		{CreatedAt: base, ClientID: "a", Name: "throttle", Value: "0.5", Address: 0x088C, Raw: 12288, OK: true},
		{CreatedAt: base.Add(time.Second), ClientID: "a", Name: "nope", Value: "1", Error: "unknown command"},
		{CreatedAt: base.Add(2 * time.Second), ClientID: "b", Name: "GEAR_HANDLE", Value: "true", Address: 0x0BE8, Raw: 16383, OK: true},
	}
	for _, r := range records {
		id, err := s.Record(ctx, r)
		require.NoError(t, err)
		assert.Equal(t, id, r.ID)
	}

	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "GEAR_HANDLE", got[0].Name)
	assert.Equal(t, "b", got[0].ClientID)
	assert.Equal(t, int64(16383), got[0].Raw)
	assert.Equal(t, 0x0BE8, got[0].Address)
	assert.True(t, got[0].OK)
	assert.True(t, got[0].CreatedAt.Equal(base.Add(2*time.Second)))

	assert.Equal(t, "nope", got[1].Name)
	assert.False(t, got[1].OK)
	assert.Equal(t, "unknown command", got[1].Error)
}

func TestRecordDefaultsTimestamp(t *testing.T) {
	s := newTestStorage(t)

	r := &CommandRecord{ClientID: "a", Name: "throttle", Value: "1", OK: true}
	_, err := s.Record(context.Background(), r)
	require.NoError(t, err)
	assert.False(t, r.CreatedAt.IsZero())

	got, err := s.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.WithinDuration(t, time.Now(), got[0].CreatedAt, time.Minute)
}

func TestPrune(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, age := range []time.Duration{48 * time.Hour, 25 * time.Hour, time.Hour} {
		_, err := s.Record(ctx, &CommandRecord{CreatedAt: now.Add(-age), ClientID: "a", Name: "throttle", OK: true})
		require.NoError(t, err)
	}

	n, err := s.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.db")

	s, err := NewCommandStorage(path, logger.NewNop())
	require.NoError(t, err)
	_, err = s.Record(context.Background(), &CommandRecord{ClientID: "a", Name: "throttle", OK: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewCommandStorage(path, logger.NewNop())
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
