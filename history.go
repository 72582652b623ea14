package depadvise

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// historyPermissions keeps history documents owner read/write only.
const historyPermissions = 0o600

// File names inside the history directory.
const (
	configurationsFile = "configurations.json"
	testHistoryFile    = "test_history.json"
)

// HistoryStore persists configurations and their test outcomes across
// runs. Two JSON documents live side by side in one directory:
// configurations keyed by content hash, and test results keyed by
// configuration identity. Every mutation rewrites the affected document
// wholesale with deterministic key ordering, so the files diff cleanly
// under version control.
type HistoryStore struct {
	mu      sync.Mutex
	dir     string
	configs map[string]ConfigurationSet
	results map[string][]TestResult
}

// NewHistoryStore opens the history directory, creating it when absent,
// and loads both documents. Missing documents are treated as empty.
func NewHistoryStore(dir string) (*HistoryStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	s := &HistoryStore{
		dir:     dir,
		configs: make(map[string]ConfigurationSet),
		results: make(map[string][]TestResult),
	}
	if err := loadDocument(filepath.Join(dir, configurationsFile), &s.configs); err != nil {
		return nil, fmt.Errorf("loading %s: %w", configurationsFile, err)
	}
	if err := loadDocument(filepath.Join(dir, testHistoryFile), &s.results); err != nil {
		return nil, fmt.Errorf("loading %s: %w", testHistoryFile, err)
	}
	return s, nil
}

// loadDocument reads one JSON document into dst. A missing file leaves
// dst untouched.
func loadDocument(path string, dst any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// SaveConfiguration records a configuration keyed by its content hash.
// Saving the same contents twice overwrites the earlier record.
func (s *HistoryStore) SaveConfiguration(cfg ConfigurationSet) error {
	if cfg.ID == "" {
		return ErrMissingConfigID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.ContentHash()] = cfg
	return s.writeConfigsLocked()
}

// Configuration returns the stored configuration with the given content
// hash.
func (s *HistoryStore) Configuration(hash string) (ConfigurationSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[hash]
	return cfg, ok
}

// RecordResult appends a test outcome under its configuration identity.
func (s *HistoryStore) RecordResult(result TestResult) error {
	id := result.Configuration.ID
	if id == "" {
		return ErrMissingConfigID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[id] = append(s.results[id], result)
	return s.writeResultsLocked()
}

// ResultsFor returns all recorded outcomes for one configuration, in
// recording order. The slice is a copy.
func (s *HistoryStore) ResultsFor(configID string) []TestResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	recorded := s.results[configID]
	if len(recorded) == 0 {
		return nil
	}
	out := make([]TestResult, len(recorded))
	copy(out, recorded)
	return out
}

// SuccessRate returns the fraction of recorded outcomes that succeeded
// for one configuration. The second return is false when nothing is on
// record.
func (s *HistoryStore) SuccessRate(configID string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recorded := s.results[configID]
	if len(recorded) == 0 {
		return 0, false
	}
	passed := 0
	for _, r := range recorded {
		if r.Success {
			passed++
		}
	}
	return float64(passed) / float64(len(recorded)), true
}

// Replay invokes fn for every stored configuration paired with each of
// its recorded outcomes, in deterministic hash order. Configurations
// without outcomes and outcomes whose configuration was never saved are
// skipped.
func (s *HistoryStore) Replay(fn func(ConfigurationSet, TestResult)) {
	s.mu.Lock()
	pairs := make([]struct {
		cfg ConfigurationSet
		res TestResult
	}, 0, len(s.results))
	for _, hash := range sortedKeys(s.configs) {
		cfg := s.configs[hash]
		for _, res := range s.results[cfg.ID] {
			pairs = append(pairs, struct {
				cfg ConfigurationSet
				res TestResult
			}{cfg, res})
		}
	}
	s.mu.Unlock()

	for _, p := range pairs {
		fn(p.cfg, p.res)
	}
}

// Size returns the number of stored configurations.
func (s *HistoryStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.configs)
}

func (s *HistoryStore) writeConfigsLocked() error {
	data, err := marshalOrdered(s.configs)
	if err != nil {
		return fmt.Errorf("encoding configurations: %w", err)
	}
	return os.WriteFile(filepath.Join(s.dir, configurationsFile), data, historyPermissions)
}

func (s *HistoryStore) writeResultsLocked() error {
	data, err := marshalOrdered(s.results)
	if err != nil {
		return fmt.Errorf("encoding test history: %w", err)
	}
	return os.WriteFile(filepath.Join(s.dir, testHistoryFile), data, historyPermissions)
}

// marshalOrdered produces JSON with sorted keys for reproducibility.
func marshalOrdered[V any](m map[string]V) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(orderedMap[V]{m}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// orderedMap marshals a string-keyed map with sorted keys.
type orderedMap[V any] struct {
	values map[string]V
}

func (o orderedMap[V]) MarshalJSON() ([]byte, error) {
	if len(o.values) == 0 {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range sortedKeys(o.values) {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(k)
		valJSON, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
