// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daverunner/reflectd/internal/continuity"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := Open("sqlite", ":memory:", DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func saveTestReflection(t *testing.T, s Store, user, thread, session string, drift float64, at time.Time) int64 {
	t.Helper()
	r := &continuity.Reflection{
		UserID:     user,
		ThreadID:   thread,
		SessionID:  session,
		DriftScore: drift,
		CreatedAt:  at,
	}
	r.ApplyDefaults()
	r.SealChecksum()
	id, err := s.SaveReflection(context.Background(), r)
	require.NoError(t, err)
	return id
}

func TestOpenRejectsUnknownMigrationDir(t *testing.T) {
	_, err := Open("oracle", "dsn", DefaultConfig())
	require.Error(t, err)
}

func TestSaveAndGetReflection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := &continuity.Reflection{
		UserID:     "phil",
		SessionID:  "continuity",
		DriftScore: 0.02,
		Content:    "first lawful reflection",
	}
	r.ApplyDefaults()
	r.SealChecksum()

	id, err := s.SaveReflection(ctx, r)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, r.ID)

	got, err := s.GetReflection(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "phil", got.UserID)
	assert.Equal(t, continuity.DefaultThreadID, got.ThreadID)
	assert.Equal(t, "first lawful reflection", got.Content)
	assert.Equal(t, r.Checksum, got.Checksum)
	assert.Nil(t, got.VerifiedAt)
	assert.False(t, got.CreatedAt.IsZero())
	assert.True(t, got.VerifyChecksum(), "stored reflection must verify")
}

func TestGetReflectionNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetReflection(context.Background(), 4242)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecallWindowOrderingAndLimit(t *testing.T) {
	s := newTestStore(t)
	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		saveTestReflection(t, s, "phil", "continuity_diary", "continuity", 0.01, t0.Add(time.Duration(i)*time.Hour))
	}
	saveTestReflection(t, s, "dave", "continuity_diary", "continuity", 0.01, t0)

	window, err := s.RecallWindow(context.Background(), "phil", "continuity_diary", "", 5)
	require.NoError(t, err)
	require.Len(t, window, 5)

	for i := 1; i < len(window); i++ {
		assert.False(t, window[i].CreatedAt.After(window[i-1].CreatedAt), "window must be newest first")
	}
	for _, r := range window {
		assert.Equal(t, "phil", r.UserID)
	}
}

func TestRecallWindowSessionFilter(t *testing.T) {
	s := newTestStore(t)
	t0 := time.Now().UTC().Truncate(time.Second)

	saveTestReflection(t, s, "phil", "continuity_diary", "a", 0.01, t0)
	saveTestReflection(t, s, "phil", "continuity_diary", "b", 0.02, t0.Add(time.Minute))

	window, err := s.RecallWindow(context.Background(), "phil", "continuity_diary", "a", 10)
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "a", window[0].SessionID)
}

func TestListByUserEmpty(t *testing.T) {
	s := newTestStore(t)

	refs, err := s.ListByUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestMarkVerified(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Second)

	id1 := saveTestReflection(t, s, "phil", "t", "s", 0.01, t0)
	id2 := saveTestReflection(t, s, "phil", "t", "s", 0.02, t0)
	id3 := saveTestReflection(t, s, "phil", "t", "s", 0.03, t0)

	when := t0.Add(time.Minute)
	require.NoError(t, s.MarkVerified(ctx, []int64{id1, id3}, when))

	r1, err := s.GetReflection(ctx, id1)
	require.NoError(t, err)
	require.NotNil(t, r1.VerifiedAt)
	assert.Equal(t, when.Unix(), r1.VerifiedAt.Unix())

	r2, err := s.GetReflection(ctx, id2)
	require.NoError(t, err)
	assert.Nil(t, r2.VerifiedAt)
}

func TestMarkVerifiedNoIDs(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.MarkVerified(context.Background(), nil, time.Now()))
}

func TestCountReflections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.CountReflections(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	saveTestReflection(t, s, "phil", "t", "s", 0.01, time.Now().UTC())
	saveTestReflection(t, s, "phil", "t", "s", 0.01, time.Now().UTC())

	count, err = s.CountReflections(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	dsn := "file:" + dir + "/reflectd.sqlite"

	s1, err := Open("sqlite", dsn, DefaultConfig())
	require.NoError(t, err)
	saveTestReflection(t, s1, "phil", "t", "s", 0.01, time.Now().UTC())
	require.NoError(t, s1.Close())

	// Reopening must replay nothing and keep existing rows.
	s2, err := Open("sqlite", dsn, DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	count, err := s2.CountReflections(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
