// Package store holds the canonical slot snapshots and the append-only
// transition log. BadgerDB is the durable tier; a mutex-guarded in-memory
// mirror is the read path and keeps serving last-known-good state whenever
// the durable tier is unavailable. Durable-tier failures are logged, never
// returned to callers.
package store

import (
	"encoding/binary"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"spotd/pkg/types"
)

// Config holds storage parameters.
type Config struct {
	// Dir is the BadgerDB directory. Empty selects local-only mode unless
	// InMemory is set.
	Dir string
	// InMemory runs Badger without disk persistence. Used by tests.
	InMemory bool
	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool
	// SlotCount is the fixed number of physical slots.
	SlotCount int
	// LoadWindow bounds how far back persisted events are mirrored into
	// memory at startup. Zero disables the initial load.
	LoadWindow time.Duration
	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration
}

const (
	slotPrefix  = "slot/"
	eventPrefix = "event/"
)

// Store is the single holder of slot snapshots and transition events.
// Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	slots  []types.SlotSnapshot
	events []types.TransitionEvent
	seq    uint64

	db        *badger.DB
	gcStop    chan struct{}
	closeOnce sync.Once
	log       zerolog.Logger
}

// Open creates a Store with SlotCount seeded snapshots, over a Badger
// directory when configured and reachable. It never fails: any durable-tier
// problem degrades to memory-only operation with a warning.
func Open(cfg Config, log zerolog.Logger) *Store {
	if cfg.SlotCount <= 0 {
		cfg.SlotCount = 2
	}
	s := &Store{
		db:  openBadger(cfg, log),
		log: log,
	}
	s.slots = seedSlots(cfg.SlotCount)
	if s.db != nil {
		s.loadSlots(cfg.SlotCount)
		s.loadEvents(cfg.LoadWindow)
		if cfg.GCInterval > 0 {
			s.gcStop = make(chan struct{})
			go runGC(s.db, cfg.GCInterval, s.gcStop)
		}
		log.Info().Str("dir", cfg.Dir).Bool("in_memory", cfg.InMemory).Msg("durable store ready")
	}
	return s
}

// Close stops the GC loop and releases the durable tier. Safe to call more
// than once.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.gcStop != nil {
			close(s.gcStop)
		}
		if s.db != nil {
			err = s.db.Close()
		}
	})
	return err
}

func seedSlots(n int) []types.SlotSnapshot {
	slots := make([]types.SlotSnapshot, n)
	for i := range slots {
		slots[i] = types.SlotSnapshot{
			SlotID:     i + 1,
			Occupied:   false,
			DistanceCM: types.SentinelDistanceCM,
		}
	}
	return slots
}

// GetAll returns a copy of the current snapshots in slot id order.
func (s *Store) GetAll() []types.SlotSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.SlotSnapshot, len(s.slots))
	copy(out, s.slots)
	return out
}

// PutAll atomically replaces the full snapshot set. The memory mirror is
// always updated; the durable write is best-effort.
func (s *Store) PutAll(snaps []types.SlotSnapshot) {
	next := make([]types.SlotSnapshot, len(snaps))
	copy(next, snaps)
	sort.Slice(next, func(i, j int) bool { return next[i].SlotID < next[j].SlotID })

	s.mu.Lock()
	s.slots = next
	s.mu.Unlock()

	if s.db == nil {
		return
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, snap := range next {
			b, err := json.Marshal(snap)
			if err != nil {
				return err
			}
			if err := txn.Set(slotKey(snap.SlotID), b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("persist snapshots failed, keeping local state")
	}
}

// loadSlots replaces seeded snapshots with persisted ones, where present.
func (s *Store) loadSlots(slotCount int) {
	err := s.db.View(func(txn *badger.Txn) error {
		for i := 1; i <= slotCount; i++ {
			item, err := txn.Get(slotKey(i))
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			var snap types.SlotSnapshot
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &snap) }); err != nil {
				return err
			}
			if snap.SlotID >= 1 && snap.SlotID <= slotCount {
				s.slots[snap.SlotID-1] = snap
			}
		}
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("load persisted snapshots failed, starting from seed state")
	}
}

func slotKey(id int) []byte {
	key := make([]byte, len(slotPrefix)+4)
	copy(key, slotPrefix)
	binary.BigEndian.PutUint32(key[len(slotPrefix):], uint32(id))
	return key
}
