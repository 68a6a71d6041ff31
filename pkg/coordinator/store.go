package coordinator

import (
	"sync"
	"time"

	"github.com/chaosgomoku/solive/pkg/persistence"
)

// Store keeps room audit records and the head-count peak.
type Store interface {
	SaveRoom(r persistence.Record) (persistence.Record, error)
	Peak() (persistence.Peak, error)
	UpdatePeak(count int) (persistence.Peak, error)
}

// memStore is the Store of a server without a database.
type memStore struct {
	mu   sync.Mutex
	peak persistence.Peak
}

func (s *memStore) SaveRoom(r persistence.Record) (persistence.Record, error) { return r, nil }

func (s *memStore) Peak() (persistence.Peak, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peak.At.IsZero() {
		return persistence.Peak{}, persistence.ErrNotFound
	}
	return s.peak, nil
}

func (s *memStore) UpdatePeak(count int) (persistence.Peak, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peak.At.IsZero() || count > s.peak.Count {
		s.peak = persistence.Peak{Count: count, At: time.Now()}
	}
	return s.peak, nil
}
