package importer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBufferKeepsMostRecent(t *testing.T) {
	ctx := context.Background()
	buf := NewRingBuffer(DefaultAbstainCapacity)

	for i := 0; i < 21; i++ {
		buf.Record(ctx, AbstainEvent{Code: fmt.Sprintf("event-%d", i)})
	}

	events := buf.Recent(ctx)
	require.Len(t, events, 20)
	assert.Equal(t, 20, buf.Len())
	assert.Equal(t, "event-1", events[0].Code)
	assert.Equal(t, "event-20", events[19].Code)
}

func TestRingBufferPartial(t *testing.T) {
	ctx := context.Background()
	buf := NewRingBuffer(5)
	assert.Empty(t, buf.Recent(ctx))

	buf.Record(ctx, AbstainEvent{Code: "a"})
	buf.Record(ctx, AbstainEvent{Code: "b"})
	events := buf.Recent(ctx)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Code)
	assert.Equal(t, "b", events[1].Code)
}

func TestRingBufferSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	buf := NewRingBuffer(3)
	buf.Record(ctx, AbstainEvent{Code: "a", Support: &SupportRates{Ingredient: 0.1}})

	snap := buf.Recent(ctx)
	snap[0].Code = "changed"
	snap[0].Support.Ingredient = 0.9

	again := buf.Recent(ctx)
	assert.Equal(t, "a", again[0].Code)
	assert.Equal(t, 0.1, again[0].Support.Ingredient)
}

func TestRingBufferIndependentInstances(t *testing.T) {
	ctx := context.Background()
	a := NewRingBuffer(2)
	b := NewRingBuffer(2)
	a.Record(ctx, AbstainEvent{Code: "x"})

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, DefaultAbstainCapacity, NewRingBuffer(0).Capacity())
}

func TestRingBufferConcurrentRecord(t *testing.T) {
	ctx := context.Background()
	buf := NewRingBuffer(DefaultAbstainCapacity)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buf.Record(ctx, AbstainEvent{Code: fmt.Sprintf("event-%d", i)})
			_ = buf.Recent(ctx)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, DefaultAbstainCapacity, buf.Len())
}

func TestRedisRecorderFallsBackToLocal(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	rec := NewRedisRecorderWithClient(client, "", 2)
	defer rec.Close()

	ctx := context.Background()
	rec.Record(ctx, AbstainEvent{Code: "one"})
	rec.Record(ctx, AbstainEvent{Code: "two"})
	rec.Record(ctx, AbstainEvent{Code: "three"})

	events := rec.Recent(ctx)
	require.Len(t, events, 2)
	assert.Equal(t, "two", events[0].Code)
	assert.Equal(t, "three", events[1].Code)
	assert.Equal(t, "recipe-importer:abstains", rec.key)
	assert.Error(t, rec.Ping(ctx))
}
