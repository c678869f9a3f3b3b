package typefinder

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Logger is the subset of the runtime logger used by the type finder.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// cacheFile is the persisted record of one capability scan.
type cacheFile struct {
	Capability string    `yaml:"capability"`
	Hash       string    `yaml:"hash"`
	Types      []string  `yaml:"types"`
	ScannedAt  time.Time `yaml:"scannedAt"`
}

// TypeFinder enumerates implementations of a capability. Results are cached
// in memory for the process and recorded under the local temp storage so a
// changed set of types between runs is visible in the logs.
type TypeFinder struct {
	registry *Registry
	cacheDir string
	logger   Logger

	mu    sync.Mutex
	cache map[Capability][]Descriptor
}

// New creates a TypeFinder scanning registry. cacheDir may be empty, in
// which case nothing is persisted.
func New(registry *Registry, tempPath string, logger Logger) *TypeFinder {
	cacheDir := ""
	if tempPath != "" {
		cacheDir = filepath.Join(tempPath, "typefinder")
	}
	return &TypeFinder{
		registry: registry,
		cacheDir: cacheDir,
		logger:   logger,
		cache:    make(map[Capability][]Descriptor),
	}
}

// CacheDir returns the directory holding persisted scans.
func (f *TypeFinder) CacheDir() string { return f.cacheDir }

// Find returns the implementations of capability in declaration order.
func (f *TypeFinder) Find(capability Capability) []Descriptor {
	f.mu.Lock()
	defer f.mu.Unlock()

	if found, ok := f.cache[capability]; ok {
		return append([]Descriptor(nil), found...)
	}

	found := f.registry.Scan(capability)
	f.cache[capability] = found

	if err := f.persist(capability, found); err != nil {
		f.logger.Warn("Failed to persist type cache", "capability", capability, "error", err)
	}

	f.logger.Debug("Discovered types", "capability", capability, "count", len(found))
	return append([]Descriptor(nil), found...)
}

// Invalidate clears the in-memory cache.
func (f *TypeFinder) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = make(map[Capability][]Descriptor)
}

// persist writes the scan for capability, logging when it differs from the
// previous run.
func (f *TypeFinder) persist(capability Capability, found []Descriptor) error {
	if f.cacheDir == "" {
		return nil
	}

	names := make([]string, len(found))
	for i, d := range found {
		names[i] = d.Name
	}
	hash := hashNames(names)

	path := filepath.Join(f.cacheDir, string(capability)+".yaml")
	previous, err := readCache(path)
	switch {
	case err == nil && previous.Hash == hash:
		f.logger.Debug("Type cache is current", "capability", capability, "path", path)
		return nil
	case err == nil:
		f.logger.Info("Type cache changed since last scan", "capability", capability,
			"previous", previous.Types, "current", names)
	case !errors.Is(err, fs.ErrNotExist):
		f.logger.Warn("Discarding unreadable type cache", "path", path, "error", err)
	}

	if err := os.MkdirAll(f.cacheDir, 0o750); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}
	data, err := yaml.Marshal(cacheFile{
		Capability: string(capability),
		Hash:       hash,
		Types:      names,
		ScannedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode type cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}
	return nil
}

func readCache(path string) (*cacheFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c cacheFile
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode type cache: %w", err)
	}
	return &c, nil
}

func hashNames(names []string) string {
	h := sha256.New()
	for _, n := range names {
		h.Write([]byte(n))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
