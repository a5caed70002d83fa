package duck

import "sync"

// databaseLocks serializes access to a database file within the process. DuckDB allows a single writer per file,
// the clients of the same path share one lock.
var databaseLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: make(map[string]*sync.Mutex),
}

func lockFor(path string) *sync.Mutex {
	databaseLocks.Lock()
	defer databaseLocks.Unlock()

	lock, ok := databaseLocks.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		databaseLocks.locks[path] = lock
	}

	return lock
}

func LockDatabase(path string) {
	lockFor(path).Lock()
}

func UnlockDatabase(path string) {
	lockFor(path).Unlock()
}
