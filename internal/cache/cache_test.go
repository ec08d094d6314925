package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Text string   `json:"text"`
	Tags []string `json:"tags"`
}

func TestKeyIsDeterministic(t *testing.T) {
	assert.Equal(t, Key("summary", "v1"), Key("summary", "v1"))
	assert.NotEqual(t, Key("summary", "v1"), Key("summary", "v2"))
	assert.Len(t, Key("x"), len("nova:")+24)
}

func TestL1GetSetAndExpiry(t *testing.T) {
	c := New("", 20*time.Millisecond, 10, nil)
	defer c.Close()
	ctx := context.Background()

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	c.Set(ctx, "k", []byte("v"))
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	time.Sleep(30 * time.Millisecond)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestEvictsOldestWhenFull(t *testing.T) {
	c := New("", time.Minute, 2, nil)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"))
	time.Sleep(time.Millisecond)
	c.Set(ctx, "b", []byte("2"))
	time.Sleep(time.Millisecond)
	c.Set(ctx, "c", []byte("3"))

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestGetOrLoadCollapsesConcurrentLoads(t *testing.T) {
	c := New("", time.Minute, 10, nil)
	defer c.Close()

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (payload, error) {
		calls.Add(1)
		<-release
		return payload{Text: "s", Tags: []string{"a"}}, nil
	}

	var wg sync.WaitGroup
	results := make([]payload, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := GetOrLoad(context.Background(), c, "k", load)
			assert.NoError(t, err)
			results[i] = out
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "s", r.Text)
	}

	// Served from cache afterwards.
	out, err := GetOrLoad(context.Background(), c, "k", func(context.Context) (payload, error) {
		t.Fatal("loader called on a cached key")
		return payload{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, out.Tags)
}

func TestGetOrLoadSurvivesFirstCallerCancel(t *testing.T) {
	c := New("", time.Minute, 10, nil)
	defer c.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	load := func(ctx context.Context) (payload, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return payload{}, err
		}
		return payload{Text: "shared"}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := GetOrLoad(ctx, c, "k", load)
		first <- err
	}()
	<-started

	second := make(chan payload, 1)
	go func() {
		out, err := GetOrLoad(context.Background(), c, "k", func(context.Context) (payload, error) {
			return payload{Text: "second load"}, nil
		})
		assert.NoError(t, err)
		second <- out
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	close(release)

	assert.NoError(t, <-first)
	assert.Equal(t, "shared", (<-second).Text)

	data, ok := c.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Contains(t, string(data), "shared")
}

func TestGetOrLoadDoesNotCacheErrors(t *testing.T) {
	c := New("", time.Minute, 10, nil)
	defer c.Close()

	_, err := GetOrLoad(context.Background(), c, "k", func(context.Context) (payload, error) {
		return payload{}, errors.New("unavailable")
	})
	assert.Error(t, err)

	out, err := GetOrLoad(context.Background(), c, "k", func(context.Context) (payload, error) {
		return payload{Text: "ok"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Text)
}

func TestInvalidRedisURLDisablesL2(t *testing.T) {
	c := New("not a url", time.Minute, 10, nil)
	defer c.Close()
	assert.Nil(t, c.rdb)
	assert.NoError(t, c.Ping(context.Background()))
}
