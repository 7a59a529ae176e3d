package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Ping(context.Background()).Err())
	return client, mr
}

func TestRedisStore_Contract(t *testing.T) {
	runContract(t, func(t *testing.T) Store {
		client, _ := setupTestRedis(t)
		s := NewRedisStore(client, "")
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestRedisStore_KeyLayout(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewRedisStore(client, "test:")
	require.NoError(t, s.Save(context.Background(), fullProject("p1", t0)))

	assert.True(t, mr.Exists("test:project:p1"))
	members, err := mr.Members("test:projects")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, members)
}

func TestRedisStore_CorruptValueIsReadError(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewRedisStore(client, "")
	require.NoError(t, mr.Set(DefaultRedisPrefix+"project:bad", "{not json"))
	_, err := mr.SetAdd(DefaultRedisPrefix+"projects", "bad")
	require.NoError(t, err)

	got, err := s.Load(context.Background())
	require.Error(t, err)
	assert.True(t, IsReadError(err))
	assert.Nil(t, got)
}

func TestRedisStore_ServerDownIsReadError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	s := NewRedisStore(client, "")
	defer s.Close()
	mr.Close()

	_, err = s.Load(context.Background())
	require.Error(t, err)
	assert.True(t, IsReadError(err))
}

func TestRedisStore_DanglingIndexEntrySkipped(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewRedisStore(client, "")
	require.NoError(t, s.Save(context.Background(), fullProject("p1", t0)))
	_, err := mr.SetAdd(DefaultRedisPrefix+"projects", "ghost")
	require.NoError(t, err)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
}
