package workflow

import "sync"

// keyedMutex serializes action processing per request id. Cross-process
// writers are still caught by the aggregate version check; this keeps
// in-process handlers from burning retries against each other.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()

	lock, exists := k.locks[key]
	if !exists {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}

	k.mu.Unlock()

	lock.Lock()

	return lock.Unlock
}
