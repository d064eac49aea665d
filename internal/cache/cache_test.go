package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramKey(t *testing.T) {
	a := ProgramKey("2024.example.org", "html", false)

	assert.Regexp(t, `^program-\d+$`, a)
	assert.Equal(t, a, ProgramKey("2024.example.org", "html", false))
	assert.NotEqual(t, a, ProgramKey("2024.example.org", "xml", false))
	assert.NotEqual(t, a, ProgramKey("2024.example.org", "html", true))
	assert.NotEqual(t, a, ProgramKey("2025.example.org", "html", false))
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v1"), time.Hour))

	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), got)

	now = now.Add(59 * time.Minute)
	_, ok, _ = m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryDefaultTTLAndPurge(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "long", []byte("a"), 0))
	require.NoError(t, m.Set(ctx, "short", []byte("b"), time.Minute))

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, m.Purge())
	assert.Equal(t, 1, m.Len())

	now = now.Add(time.Hour)
	assert.Equal(t, 1, m.Purge())
}

func TestMemoryCopiesValue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	buf := []byte("abc")

	require.NoError(t, m.Set(ctx, "k", buf, time.Minute))
	buf[0] = 'X'

	got, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
}

func TestRedisGetHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedis(db, "cp:")

	mock.ExpectGet("cp:k").SetVal("<table/>")

	got, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "<table/>", string(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisGetMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedis(db, "cp:")

	mock.ExpectGet("cp:k").RedisNil()

	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisGetError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedis(db, "")

	mock.ExpectGet("k").SetErr(errors.New("connection refused"))

	_, ok, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedisSet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedis(db, "cp:")

	mock.ExpectSet("cp:k", []byte("v"), DefaultTTL).SetVal("OK")

	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))
	assert.NoError(t, mock.ExpectationsWereMet())
}
