// Package state tracks what one scan has already fetched and analyzed, and
// persists finished runs so a later scan of the same target can build on them.
package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/PentesterFlow/JSRecon/internal/aggregate"
)

// Manager owns the per-run dedup state and the optional store.
type Manager struct {
	mu        sync.RWMutex
	store     Store
	scripts   *Deduplicator
	content   *ContentIndex
	target    string
	startTime time.Time
}

// NewManager creates a manager. store may be nil, in which case nothing is
// persisted.
func NewManager(store Store, estimatedScripts int) *Manager {
	return &Manager{
		store:     store,
		scripts:   NewDeduplicator(estimatedScripts),
		content:   NewContentIndex(),
		startTime: time.Now(),
	}
}

// Start begins a run for target and forgets the previous run's state.
func (m *Manager) Start(target string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.target = target
	m.startTime = time.Now()
	m.scripts.Reset()
	m.content = NewContentIndex()
}

// Target returns the current run's target.
func (m *Manager) Target() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.target
}

// MarkScript records a script URL and reports whether it was new.
func (m *Manager) MarkScript(rawURL string) bool {
	return m.scripts.Add(rawURL)
}

// HasScript reports whether a script URL was already recorded.
func (m *Manager) HasScript(rawURL string) bool {
	return m.scripts.HasSeen(rawURL)
}

// Scripts returns the script URL deduplicator.
func (m *Manager) Scripts() *Deduplicator {
	return m.scripts
}

// DuplicateContent reports whether content was already claimed by another
// file, returning that file's name.
func (m *Manager) DuplicateContent(name, content string) (string, bool) {
	m.mu.RLock()
	idx := m.content
	m.mu.RUnlock()
	return idx.Claim(name, ComputeContentHash(content))
}

// Seed returns an Aggregator holding the stored result for the current
// target, or an empty one when nothing is stored.
func (m *Manager) Seed() (*aggregate.Aggregator, error) {
	if m.store == nil {
		return aggregate.New(), nil
	}
	run, err := m.store.Load(m.Target())
	if err != nil {
		return nil, fmt.Errorf("failed to load previous run: %w", err)
	}
	if run == nil {
		return aggregate.New(), nil
	}
	return aggregate.FromResult(run.Result), nil
}

// Save stamps run with the current target and times and persists it.
func (m *Manager) Save(run *Run) error {
	if m.store == nil {
		return nil
	}

	m.mu.RLock()
	if run.Target == "" {
		run.Target = m.target
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = m.startTime
	}
	m.mu.RUnlock()
	run.FinishedAt = time.Now()

	return m.store.Save(run)
}

// List summarizes the stored runs.
func (m *Manager) List() ([]RunSummary, error) {
	if m.store == nil {
		return []RunSummary{}, nil
	}
	return m.store.List()
}

// Elapsed returns the time since Start.
func (m *Manager) Elapsed() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Since(m.startTime)
}
