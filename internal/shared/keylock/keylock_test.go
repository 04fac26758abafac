package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockSerializesSameKey(t *testing.T) {
	l := New()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("user-1")
			defer unlock()
			v := counter
			v++
			counter = v
		}()
	}
	wg.Wait()
	require.Equal(t, 50, counter)
	require.Equal(t, 0, l.Len())
}

func TestLockAllDedupAndRelease(t *testing.T) {
	l := New()
	unlock := l.LockAll("m2", "m1", "m2")
	require.Equal(t, 2, l.Len())
	unlock()
	require.Equal(t, 0, l.Len())

	// as chaves precisam estar livres de novo
	unlock = l.LockAll("m1", "m2")
	unlock()
}
