package state

import (
	"sort"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Deduplicator remembers script URLs using a Bloom filter backed by an exact
// set. URLs are normalized with NormalizeScriptURL before they are stored.
type Deduplicator struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	exact  map[string]struct{}
	fpRate float64
}

// NewDeduplicator creates a deduplicator sized for estimatedItems.
func NewDeduplicator(estimatedItems int) *Deduplicator {
	if estimatedItems < 1000 {
		estimatedItems = 1000
	}

	fpRate := 0.001

	return &Deduplicator{
		filter: bloom.NewWithEstimates(uint(estimatedItems), fpRate),
		exact:  make(map[string]struct{}),
		fpRate: fpRate,
	}
}

// Add records rawURL and reports whether it was new.
func (d *Deduplicator) Add(rawURL string) bool {
	key := NormalizeScriptURL(rawURL)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.filter.TestString(key) {
		if _, exists := d.exact[key]; exists {
			return false
		}
	}
	d.filter.AddString(key)
	d.exact[key] = struct{}{}
	return true
}

// HasSeen reports whether rawURL was added before.
func (d *Deduplicator) HasSeen(rawURL string) bool {
	key := NormalizeScriptURL(rawURL)

	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.filter.TestString(key) {
		return false
	}
	_, exists := d.exact[key]
	return exists
}

// AddBatch adds several URLs and returns how many were new.
func (d *Deduplicator) AddBatch(urls []string) int {
	added := 0
	for _, u := range urls {
		if d.Add(u) {
			added++
		}
	}
	return added
}

// Count returns the number of unique URLs seen.
func (d *Deduplicator) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.exact)
}

// List returns every normalized URL in lexical order.
func (d *Deduplicator) List() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	urls := make([]string, 0, len(d.exact))
	for u := range d.exact {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// Reset forgets everything.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.filter.ClearAll()
	d.exact = make(map[string]struct{})
}

// FalsePositiveRate returns the filter's configured false positive rate.
func (d *Deduplicator) FalsePositiveRate() float64 {
	return d.fpRate
}
