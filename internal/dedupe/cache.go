// ABOUTME: Thread-safe TTL cache keyed by (conversation, content) submissions.
// ABOUTME: Size-limited with O(1) oldest-first eviction via a linked list.

package dedupe

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// cacheEntry stores the timestamp and list element for a cached key.
type cacheEntry struct {
	timestamp time.Time
	element   *list.Element
}

// Cache tracks recently submitted messages per conversation. A submission
// seen again within the TTL is reported as a duplicate. Eviction is
// oldest-first once maxSize is reached.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*cacheEntry
	order   *list.List // keys in insertion order, oldest at front
	ttl     time.Duration
	maxSize int
}

// New creates a dedupe cache with the given TTL and maximum size.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		seen:    make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// submissionKey hashes the content so arbitrary-length messages produce
// fixed-size cache keys.
func submissionKey(conversationID, content string) string {
	sum := sha256.Sum256([]byte(content))
	return conversationID + ":" + hex.EncodeToString(sum[:])
}

// CheckAndMark atomically reports whether this exact submission was already
// seen within the TTL, marking it if not. Returns true for duplicates.
func (c *Cache) CheckAndMark(conversationID, content string) bool {
	key := submissionKey(conversationID, content)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.seen[key]; ok {
		if time.Since(entry.timestamp) < c.ttl {
			return true
		}
		// Expired entry: refresh in place.
		entry.timestamp = time.Now()
		c.order.MoveToBack(entry.element)
		return false
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &cacheEntry{timestamp: time.Now(), element: elem}
	return false
}

// Forget drops a submission, re-allowing an identical send. Called once a
// turn resolves, success or failure, so only the in-flight text is guarded.
func (c *Cache) Forget(conversationID, content string) {
	key := submissionKey(conversationID, content)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.seen[key]; ok {
		c.order.Remove(entry.element)
		delete(c.seen, key)
	}
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

// Len returns the number of tracked submissions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
