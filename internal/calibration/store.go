package calibration

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Store persists the calibration factor.
type Store interface {
	// Load returns the stored factor, or DefaultFactor when absent or corrupt.
	Load() float64
	// Save persists factor.
	Save(factor float64) error
}

type fileDoc struct {
	Factor float64 `yaml:"factor"`
}

// FileStore keeps the factor in a small YAML file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the factor file.
func (s *FileStore) Load() float64 {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logrus.WithError(err).Warn("failed to read calibration file")
		}
		return DefaultFactor
	}
	var doc fileDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		logrus.WithError(err).Warn("failed to parse calibration file")
		return DefaultFactor
	}
	if doc.Factor <= 0 || math.IsNaN(doc.Factor) || math.IsInf(doc.Factor, 0) {
		logrus.WithField("factor", doc.Factor).Warn("ignoring invalid stored calibration factor")
		return DefaultFactor
	}
	return doc.Factor
}

// Save writes the factor atomically (temp file + rename).
func (s *FileStore) Save(factor float64) error {
	b, err := yaml.Marshal(fileDoc{Factor: factor})
	if err != nil {
		return fmt.Errorf("marshal calibration: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".calibration-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write calibration: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync calibration: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close calibration: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename calibration: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory Store for tests and dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	factor  float64
	saves   int
	SaveErr error
}

// NewMemoryStore returns a store holding factor (0 means nothing stored).
func NewMemoryStore(factor float64) *MemoryStore {
	return &MemoryStore{factor: factor}
}

// Load returns the held factor or DefaultFactor.
func (m *MemoryStore) Load() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.factor <= 0 {
		return DefaultFactor
	}
	return m.factor
}

// Save stores factor unless SaveErr is set.
func (m *MemoryStore) Save(factor float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.factor = factor
	m.saves++
	return nil
}

// Saves returns the number of successful saves.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
