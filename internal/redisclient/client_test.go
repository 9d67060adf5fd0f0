package redisclient

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, mr *miniredis.Miniredis) *Client {
	t.Helper()

	c, err := NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNextSequenceConcurrentCallsAreDistinct(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newTestClient(t, mr)
	ctx := context.Background()

	const n = 50
	results := make([]int64, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seq, err := c.NextSequence(ctx, "T1")
			assert.NoError(t, err)
			results[i] = seq
		}(i)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, seq := range results {
		assert.Equal(t, int64(i+1), seq)
	}

	current, err := c.CurrentSequence(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, int64(n), current)
}

func TestNextSequenceSurvivesReconnect(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	first := newTestClient(t, mr)
	v, err := first.NextSequence(ctx, "T1")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := newTestClient(t, mr)
	next, err := second.NextSequence(ctx, "T1")
	require.NoError(t, err)
	assert.Greater(t, next, v)
}

func TestNextSequenceIsPerTenant(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newTestClient(t, mr)
	ctx := context.Background()

	_, err := c.NextSequence(ctx, "T1")
	require.NoError(t, err)
	_, err = c.NextSequence(ctx, "T1")
	require.NoError(t, err)

	other, err := c.NextSequence(ctx, "T2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)

	none, err := c.CurrentSequence(ctx, "T3")
	require.NoError(t, err)
	assert.Zero(t, none)
}

func TestNextSequenceStorageDown(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newTestClient(t, mr)

	mr.Close()

	_, err := c.NextSequence(context.Background(), "T1")
	assert.Error(t, err)
}

func TestPresence(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newTestClient(t, mr)
	ctx := context.Background()

	require.NoError(t, c.MarkOnline(ctx, "T1", "u1", "admin"))
	require.NoError(t, c.MarkOnline(ctx, "T1", "u2", "manager"))
	require.NoError(t, c.MarkOffline(ctx, "T1", "u1"))

	users, err := c.OnlineUsers(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"u2": "manager"}, users)
	assert.True(t, mr.TTL("presence:T1") > 0)
}
