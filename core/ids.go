package core

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// counter is a monotonic, persisted uint64 sequence. Each module keeps one
// (tribe_id, post_id, token_counter) so that ids survive process restarts
// and are strictly increasing across successful commits.
type counter struct {
	mu    sync.Mutex
	store KVStore
	key   []byte
}

func newCounter(store KVStore, key string) *counter {
	return &counter{store: store, key: []byte(key)}
}

// Next increments and returns the counter, starting from 1 so that ids are
// always non-zero for tribe_id and post_id.
func (c *counter) Next() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := c.store.Get(c.key)
	if err != nil {
		return 0, err
	}
	var v uint64
	if len(raw) == 8 {
		v = binary.BigEndian.Uint64(raw)
	}
	v++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	if err := c.store.Set(c.key, buf); err != nil {
		return 0, err
	}
	return v, nil
}

// idSuffix zero-pads an id for lexical-order-equals-numeric-order key
// suffixes, so PrefixIterator yields ascending creation order.
func idSuffix(id uint64) string {
	return fmt.Sprintf("%020d", id)
}
