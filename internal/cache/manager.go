package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Manager coordinates the memory and disk levels. Reads promote disk hits
// into memory; writes go to both levels.
type Manager struct {
	l1 *MemoryCache
	l2 *DiskCache // nil when the disk cache is disabled

	config Config
	logger *log.Logger

	cleanupStop chan struct{}
	cleanupWg   sync.WaitGroup
	closeOnce   sync.Once

	mu    sync.Mutex
	stats ManagerStats
}

// ManagerStats aggregates hit counters across levels.
type ManagerStats struct {
	Hits        int64
	Misses      int64
	L1Hits      int64
	L2Hits      int64
	Promotions  int64
	CleanupRuns int64
	LastCleanup time.Time
	L1          Stats
	L2          Stats
}

// HitRate returns hits / (hits + misses).
func (s ManagerStats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// NewManager creates a cache manager. The disk level is only created when
// both a path and a disk capacity are configured.
func NewManager(config Config, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{
		l1:          NewMemoryCache(config.MemoryCapacity, config.TTL),
		config:      config,
		logger:      logger,
		cleanupStop: make(chan struct{}),
	}

	if config.DiskPath != "" && config.DiskCapacity > 0 {
		l2, err := NewDiskCache(config.DiskPath, config.DiskCapacity, config.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create disk cache: %w", err)
		}
		m.l2 = l2
	}

	if config.CleanupInterval > 0 && config.TTL > 0 {
		m.startCleanup()
	}
	return m, nil
}

// Get looks up key in memory, then on disk.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.l1.Get(key); ok {
		m.record(func(s *ManagerStats) { s.Hits++; s.L1Hits++ })
		return data, true
	}

	if m.l2 != nil {
		if data, ok := m.l2.Get(key); ok {
			m.record(func(s *ManagerStats) { s.Hits++; s.L2Hits++; s.Promotions++ })
			_ = m.l1.Put(key, data)
			return data, true
		}
	}

	m.record(func(s *ManagerStats) { s.Misses++ })
	return nil, false
}

// Put stores value in both levels. Entries too large for a level are
// skipped there.
func (m *Manager) Put(key string, value []byte) error {
	if err := m.l1.Put(key, value); err != nil && err != ErrItemTooLarge {
		return fmt.Errorf("L1 cache error: %w", err)
	}
	if m.l2 != nil {
		if err := m.l2.Put(key, value); err != nil && err != ErrItemTooLarge {
			m.logger.Warn("disk cache write failed", "key", key, "error", err)
		}
	}
	return nil
}

// Delete removes key from all levels.
func (m *Manager) Delete(key string) {
	m.l1.Delete(key)
	if m.l2 != nil {
		m.l2.Delete(key)
	}
}

// Clear removes every entry from all levels.
func (m *Manager) Clear() error {
	m.l1.Clear()
	if m.l2 != nil {
		if err := m.l2.Clear(); err != nil {
			return fmt.Errorf("L2 clear: %w", err)
		}
	}
	return nil
}

// Stats returns aggregated statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	s := m.stats
	m.mu.Unlock()

	s.L1 = m.l1.Stats()
	if m.l2 != nil {
		s.L2 = m.l2.Stats()
	}
	return s
}

// Cleanup prunes expired entries from both levels.
func (m *Manager) Cleanup() {
	m.record(func(s *ManagerStats) {
		s.CleanupRuns++
		s.LastCleanup = time.Now()
	})
	if m.config.TTL <= 0 {
		return
	}

	pruned := m.l1.Prune()
	if m.l2 != nil {
		pruned += m.l2.RemoveOlderThan(time.Now().Add(-m.config.TTL))
	}
	if pruned > 0 {
		m.logger.Debug("cache cleanup", "removed", pruned)
	}
}

// Close stops the cleanup routine and saves the disk index.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.cleanupStop)
		m.cleanupWg.Wait()
		if m.l2 != nil {
			if cerr := m.l2.Close(); cerr != nil {
				err = fmt.Errorf("failed to close disk cache: %w", cerr)
			}
		}
	})
	return err
}

func (m *Manager) record(fn func(*ManagerStats)) {
	m.mu.Lock()
	fn(&m.stats)
	m.mu.Unlock()
}

func (m *Manager) startCleanup() {
	ticker := time.NewTicker(m.config.CleanupInterval)
	m.cleanupWg.Add(1)

	go func() {
		defer m.cleanupWg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Cleanup()
			case <-m.cleanupStop:
				return
			}
		}
	}()
}
