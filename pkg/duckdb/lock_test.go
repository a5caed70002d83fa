package duck

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockDatabase_SerializesSamePath(t *testing.T) {
	t.Parallel()

	var inside atomic.Int32
	var maxInside atomic.Int32
	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			LockDatabase("lock-test-same.db")
			defer UnlockDatabase("lock-test-same.db")

			n := inside.Add(1)
			if n > maxInside.Load() {
				maxInside.Store(n)
			}
			inside.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
}

func TestLockDatabase_PathsAreIndependent(t *testing.T) {
	t.Parallel()

	LockDatabase("lock-test-a.db")
	defer UnlockDatabase("lock-test-a.db")

	done := make(chan struct{})
	go func() {
		LockDatabase("lock-test-b.db")
		UnlockDatabase("lock-test-b.db")
		close(done)
	}()

	<-done
}
