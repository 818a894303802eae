package store

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"spotd/pkg/types"
)

// Append records transition events in arrival order. Events get an id here
// if one was not assigned. The memory mirror is always updated; the durable
// append is best-effort.
func (s *Store) Append(events []types.TransitionEvent) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	keyed := make([]keyedEvent, 0, len(events))
	for i := range events {
		if events[i].ID == "" {
			events[i].ID = uuid.New().String()
		}
		s.seq++
		keyed = append(keyed, keyedEvent{key: eventKey(events[i].OccurredAt, s.seq), ev: events[i]})
		s.events = append(s.events, events[i])
	}
	s.mu.Unlock()

	if s.db == nil {
		return
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, ke := range keyed {
			b, err := json.Marshal(ke.ev)
			if err != nil {
				return err
			}
			if err := txn.Set(ke.key, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("persist transition events failed, keeping local log")
	}
}

// Range returns events that occurred at or after since, oldest first, ties in
// arrival order. Served from the durable tier when available, otherwise from
// the memory mirror.
func (s *Store) Range(since time.Time) []types.TransitionEvent {
	if s.db != nil {
		out, err := s.rangeBadger(since)
		if err == nil {
			return out
		}
		s.log.Warn().Err(err).Msg("event range query failed, serving from local log")
	}
	return s.rangeMemory(since)
}

func (s *Store) rangeBadger(since time.Time) ([]types.TransitionEvent, error) {
	var out []types.TransitionEvent
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(eventPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(eventKey(since, 0)); it.ValidForPrefix([]byte(eventPrefix)); it.Next() {
			var ev types.TransitionEvent
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &ev) }); err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) rangeMemory(since time.Time) []types.TransitionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.TransitionEvent, 0, len(s.events))
	for _, ev := range s.events {
		if !ev.OccurredAt.Before(since) {
			out = append(out, ev)
		}
	}
	return out
}

// loadEvents mirrors the recent persisted window into memory so Range keeps
// answering if the durable tier goes away later.
func (s *Store) loadEvents(window time.Duration) {
	if window <= 0 {
		return
	}
	out, err := s.rangeBadger(time.Now().Add(-window))
	if err != nil {
		s.log.Warn().Err(err).Msg("load persisted events failed, starting with empty log")
		return
	}
	s.mu.Lock()
	s.events = out
	s.seq = uint64(len(out))
	s.mu.Unlock()
}

type keyedEvent struct {
	key []byte
	ev  types.TransitionEvent
}

// eventKey orders entries by occurrence time, ties broken by arrival
// sequence, so Badger iteration order equals insertion order. Times before
// the Unix epoch (including the zero Time) clamp to nanos 0 so the key
// stays monotonic and a Range from the zero Time means "everything".
func eventKey(t time.Time, seq uint64) []byte {
	var nanos int64
	if t.After(time.Unix(0, 0)) {
		nanos = t.UnixNano()
	}
	key := make([]byte, len(eventPrefix)+16)
	copy(key, eventPrefix)
	binary.BigEndian.PutUint64(key[len(eventPrefix):], uint64(nanos))
	binary.BigEndian.PutUint64(key[len(eventPrefix)+8:], seq)
	return key
}
