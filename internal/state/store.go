package state

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DefaultRunFile is where FileStore keeps its run unless told otherwise.
const DefaultRunFile = "jsrecon_run.json"

var bucketRuns = []byte("runs")

// Store persists runs keyed by target. Load returns nil, nil when no run is
// stored for the target.
type Store interface {
	Save(run *Run) error
	Load(target string) (*Run, error)
	List() ([]RunSummary, error)
	Close() error
}

// BoltStore implements Store using BoltDB. It keeps the latest run per target.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// NewBoltStore opens (or creates) the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *BoltStore) Path() string {
	return s.path
}

// Save stores run under its target, replacing any earlier run.
func (s *BoltStore) Save(run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put([]byte(run.Target), data)
	})
}

// Load returns the run stored for target.
func (s *BoltStore) Load(target string) (*Run, error) {
	var run *Run

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		data := b.Get([]byte(target))
		if data == nil {
			return nil
		}

		run = &Run{}
		return json.Unmarshal(data, run)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load run %q: %w", target, err)
	}

	return run, nil
}

// List summarizes every stored run in target order.
func (s *BoltStore) List() ([]RunSummary, error) {
	summaries := make([]RunSummary, 0)

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.ForEach(func(k, v []byte) error {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("failed to unmarshal run %q: %w", k, err)
			}
			summaries = append(summaries, run.Summary())
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return summaries, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// FileStore implements Store with a single JSON file holding one run,
// optionally gzip-compressed (the file then gets a .gz suffix).
type FileStore struct {
	path       string
	compressed bool
}

// NewFileStore creates a file-based store. An empty path means
// DefaultRunFile.
func NewFileStore(path string, compressed bool) *FileStore {
	if path == "" {
		path = DefaultRunFile
	}
	return &FileStore{
		path:       path,
		compressed: compressed,
	}
}

func (s *FileStore) file() string {
	if s.compressed {
		return s.path + ".gz"
	}
	return s.path
}

// Save writes run, replacing whatever the file held.
func (s *FileStore) Save(run *Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if s.compressed {
		return s.saveCompressed(data)
	}

	return os.WriteFile(s.path, data, 0644)
}

func (s *FileStore) saveCompressed(data []byte) error {
	file, err := os.Create(s.file())
	if err != nil {
		return err
	}
	defer file.Close()

	gw := gzip.NewWriter(file)
	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}

func (s *FileStore) read() (*Run, error) {
	var data []byte
	var err error

	if s.compressed {
		data, err = s.loadCompressed()
	} else {
		data, err = os.ReadFile(s.path)
	}

	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}

	return &run, nil
}

func (s *FileStore) loadCompressed() ([]byte, error) {
	file, err := os.Open(s.file())
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gr, err := gzip.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	return io.ReadAll(gr)
}

// Load returns the stored run when it belongs to target. An empty target
// matches any run.
func (s *FileStore) Load(target string) (*Run, error) {
	run, err := s.read()
	if err != nil || run == nil {
		return nil, err
	}
	if target != "" && run.Target != target {
		return nil, nil
	}
	return run, nil
}

// List returns the single stored run, if any.
func (s *FileStore) List() ([]RunSummary, error) {
	run, err := s.read()
	if err != nil {
		return nil, err
	}
	if run == nil {
		return []RunSummary{}, nil
	}
	return []RunSummary{run.Summary()}, nil
}

// Close is a no-op for FileStore.
func (s *FileStore) Close() error {
	return nil
}

// MemoryStore implements Store in memory.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*Run)}
}

// Save stores run under its target.
func (s *MemoryStore) Save(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.Target] = run
	return nil
}

// Load returns the run stored for target.
func (s *MemoryStore) Load(target string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runs[target], nil
}

// List summarizes every stored run in target order.
func (s *MemoryStore) List() ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]RunSummary, 0, len(s.runs))
	for _, run := range s.runs {
		summaries = append(summaries, run.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Target < summaries[j].Target })
	return summaries, nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}
