package memory

import (
	"sort"
	"sync"

	"http-inspector/internal/domain"
)

type entry struct {
	tx  domain.Transaction
	seq uint64 // insertion order, breaks timestamp ties
}

// Store is a bounded in-memory transaction store. Entries are kept ordered by
// (timestamp, insertion) so the oldest is always at the head and eviction is
// a FIFO pop.
type Store struct {
	mu    sync.RWMutex
	order []entry
	ids   map[string]uint64
	seq   uint64

	maxTransactions int
	onEvict         func(n int)
}

func NewStore(maxTransactions int) *Store {
	if maxTransactions <= 0 {
		maxTransactions = 1
	}
	return &Store{
		order:           make([]entry, 0, maxTransactions+1),
		ids:             make(map[string]uint64, maxTransactions+1),
		maxTransactions: maxTransactions,
	}
}

// OnEvict registers a callback invoked, outside the lock, with the number of
// transactions dropped by each over-capacity store.
func (s *Store) OnEvict(fn func(n int)) {
	s.mu.Lock()
	s.onEvict = fn
	s.mu.Unlock()
}

func (s *Store) Capacity() int { return s.maxTransactions }

// Store inserts tx, or replaces the stored transaction with the same ID, then
// evicts the oldest entries beyond capacity.
func (s *Store) Store(tx domain.Transaction) {
	s.mu.Lock()
	seq, ok := s.ids[tx.ID]
	if ok {
		i := s.indexLocked(tx.ID)
		if i >= 0 && s.order[i].tx.Timestamp.Equal(tx.Timestamp) {
			s.order[i].tx = tx
			s.mu.Unlock()
			return
		}
		if i >= 0 {
			s.order = append(s.order[:i], s.order[i+1:]...)
		}
	} else {
		s.seq++
		seq = s.seq
		s.ids[tx.ID] = seq
	}
	s.insertLocked(entry{tx: tx, seq: seq})
	evicted := s.evictLocked()
	hook := s.onEvict
	s.mu.Unlock()

	if evicted > 0 && hook != nil {
		hook(evicted)
	}
}

func (s *Store) Get(id string) (domain.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.order[i].tx, true
	}
	return domain.Transaction{}, false
}

// All returns every stored transaction, newest first.
func (s *Store) All() []domain.Transaction {
	return s.Filtered(nil)
}

// Filtered returns the transactions accepted by pred, newest first. A nil pred
// accepts everything.
func (s *Store) Filtered(pred func(domain.Transaction) bool) []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Transaction, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		tx := s.order[i].tx
		if pred != nil && !pred(tx) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Store) ErrorCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for i := range s.order {
		if s.order[i].tx.Error != nil {
			n++
		}
	}
	return n
}

// ClearAll removes every transaction. The insertion counter keeps running.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order[:0]
	s.ids = make(map[string]uint64, s.maxTransactions+1)
}

func (s *Store) insertLocked(e entry) {
	pos := sort.Search(len(s.order), func(i int) bool { return before(e, s.order[i]) })
	s.order = append(s.order, entry{})
	copy(s.order[pos+1:], s.order[pos:])
	s.order[pos] = e
}

func (s *Store) evictLocked() int {
	n := len(s.order) - s.maxTransactions
	if n <= 0 {
		return 0
	}
	for _, e := range s.order[:n] {
		delete(s.ids, e.tx.ID)
	}
	// drop-from-head; copy so evicted values are not retained by the backing array
	kept := make([]entry, len(s.order)-n, s.maxTransactions+1)
	copy(kept, s.order[n:])
	s.order = kept
	return n
}

func (s *Store) indexLocked(id string) int {
	if _, ok := s.ids[id]; !ok {
		return -1
	}
	for i := range s.order {
		if s.order[i].tx.ID == id {
			return i
		}
	}
	return -1
}

func before(a, b entry) bool {
	if !a.tx.Timestamp.Equal(b.tx.Timestamp) {
		return a.tx.Timestamp.Before(b.tx.Timestamp)
	}
	return a.seq < b.seq
}
