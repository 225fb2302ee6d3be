package sync

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardedMutex_SameKeySerializes(t *testing.T) {
	m := NewShardedMutex()
	transitions := 0
	var wg sync.WaitGroup

	for range 100 {
		wg.Go(func() {
			m.Do("proof-7f3a", func() {
				transitions++
			})
		})
	}
	wg.Wait()

	assert.Equal(t, 100, transitions)
}

func TestShardedMutex_ShardIsStable(t *testing.T) {
	assert.Equal(t, shardFor("proof-1"), shardFor("proof-1"))
	assert.Equal(t, 0, shardFor(""))
	for _, key := range []string{"a", "proof-1", "0b5c9d7e-1111-4b1e-9d54-3c2f4f7f5a10"} {
		s := shardFor(key)
		assert.GreaterOrEqual(t, s, 0)
		assert.Less(t, s, shardCount)
	}
}

func TestShardedMutex_DistinctKeysDoNotDeadlock(t *testing.T) {
	m := NewShardedMutex()
	var wg sync.WaitGroup
	for i := range 64 {
		wg.Go(func() {
			key := string(rune('A' + i%26))
			m.Lock(key)
			defer m.Unlock(key)
		})
	}
	wg.Wait()
}
