package services

import "sync"

// keyLocks serializes the read-decide-write critical section per
// (user, creator) key. Different keys never contend: locking is exactly at
// the granularity the data is partitioned at.
type keyLocks struct {
	locks sync.Map // key string -> *sync.Mutex
}

func engagementKey(userID, creatorID string) string {
	return userID + "|" + creatorID
}

// lock acquires the mutex for key and returns its unlock func.
func (k *keyLocks) lock(key string) func() {
	v, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
