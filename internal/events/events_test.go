package events

import (
	"sync"
	"testing"

	"github.com/racerl/racecore/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestQueue_DrainPreservesOrder(t *testing.T) {
	q := NewQueue()
	assert.True(t, q.Push(core.WorldEvent{Kind: core.EventCheckpoint, Tag: "cp1"}))
	assert.True(t, q.Push(core.WorldEvent{Kind: core.EventWall}))
	assert.Equal(t, 2, q.Len())

	got := q.Drain()
	assert.Equal(t, []core.WorldEvent{
		{Kind: core.EventCheckpoint, Tag: "cp1"},
		{Kind: core.EventWall},
	}, got)
	assert.Empty(t, q.Drain())
}

func TestQueue_DedupesContacts(t *testing.T) {
	q := NewQueue()
	ev := core.WorldEvent{Kind: core.EventWall, ContactID: 7}

	assert.True(t, q.Push(ev))
	assert.False(t, q.Push(ev))
	q.Drain()
	assert.False(t, q.Push(ev), "contact stays deduplicated across ticks")

	assert.True(t, q.Push(core.WorldEvent{Kind: core.EventWall}))
	assert.True(t, q.Push(core.WorldEvent{Kind: core.EventWall}), "zero ContactID is never deduplicated")
}

func TestQueue_ResetClearsContacts(t *testing.T) {
	q := NewQueue()
	ev := core.WorldEvent{Kind: core.EventCheckpoint, Tag: "cp1", ContactID: 3}
	q.Push(ev)

	q.Reset()
	assert.Equal(t, 0, q.Len())
	assert.True(t, q.Push(ev))
}

func TestQueue_RejectsUnknownKind(t *testing.T) {
	q := NewQueue()
	assert.False(t, q.Push(core.WorldEvent{Kind: "teleport"}))
	assert.Equal(t, 0, q.Len())
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(id uint64) {
			defer wg.Done()
			q.Push(core.WorldEvent{Kind: core.EventWall, ContactID: id})
		}(uint64(i + 1))
		go func(id uint64) {
			defer wg.Done()
			q.Push(core.WorldEvent{Kind: core.EventWall, ContactID: id})
		}(uint64(i + 1))
	}
	wg.Wait()
	assert.Len(t, q.Drain(), 50)
}
