package postcode

import (
	"container/list"
	"context"
	"sync"

	"github.com/couchcryptid/crime-map/internal/domain"
	"github.com/couchcryptid/crime-map/internal/observability"
)

// CachedLookup wraps an AreaLookup with an in-memory LRU cache keyed by the
// normalised postcode.
type CachedLookup struct {
	inner   domain.AreaLookup
	cache   *postcodeLRU
	metrics *observability.Metrics
}

// NewCachedLookup creates a cache decorator around a lookup.
func NewCachedLookup(inner domain.AreaLookup, maxEntries int, metrics *observability.Metrics) *CachedLookup {
	return &CachedLookup{
		inner:   inner,
		cache:   newPostcodeLRU(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedLookup) LookupArea(ctx context.Context, postcode string) (string, error) {
	key := domain.NormalizePostcode(postcode)
	if area, ok := c.cache.area(key); ok {
		c.metrics.PostcodeCache.WithLabelValues("lru", "hit").Inc()
		return area, nil
	}
	c.metrics.PostcodeCache.WithLabelValues("lru", "miss").Inc()

	area, err := c.inner.LookupArea(ctx, postcode)
	if err != nil {
		return "", err
	}
	// Misses are not cached so the user can retry.
	if area != "" {
		c.cache.remember(key, area)
	}
	return area, nil
}

// postcodeLRU holds the most recently resolved postcodes. The front of order
// is the most recent; index maps a normalised postcode to its element.
type postcodeLRU struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

type resolvedPostcode struct {
	postcode string
	area     string
}

func newPostcodeLRU(capacity int) *postcodeLRU {
	return &postcodeLRU{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// area returns the cached area for postcode and marks it most recent.
func (l *postcodeLRU) area(postcode string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	el, ok := l.index[postcode]
	if !ok {
		return "", false
	}
	l.order.MoveToFront(el)
	return el.Value.(*resolvedPostcode).area, true
}

// remember stores a resolved area, dropping the least recent postcode once
// capacity is exceeded. A non-positive capacity stores nothing.
func (l *postcodeLRU) remember(postcode, area string) {
	if l.capacity <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if el, ok := l.index[postcode]; ok {
		el.Value.(*resolvedPostcode).area = area
		l.order.MoveToFront(el)
		return
	}
	l.index[postcode] = l.order.PushFront(&resolvedPostcode{postcode: postcode, area: area})

	for l.order.Len() > l.capacity {
		oldest := l.order.Back()
		l.order.Remove(oldest)
		delete(l.index, oldest.Value.(*resolvedPostcode).postcode)
	}
}

func (l *postcodeLRU) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}
