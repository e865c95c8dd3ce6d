// Package memory is the in-memory store implementation. It backs demo
// stations and tests; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openmensa/rfid-station/internal/store"
	"github.com/openmensa/rfid-station/internal/types"
)

// Store keeps all records in maps guarded by one RWMutex. Values are copied
// on the way in and out so callers can never mutate shared state.
type Store struct {
	mu           sync.RWMutex
	users        map[string]types.User // keyed by ID
	byUID        map[string]string     // canonical UID -> user ID
	reservations map[string]types.Reservation
	purchases    map[string]types.Purchase
}

var _ store.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		users:        make(map[string]types.User),
		byUID:        make(map[string]string),
		reservations: make(map[string]types.Reservation),
		purchases:    make(map[string]types.Purchase),
	}
}

func (s *Store) CreateUser(_ context.Context, u *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = *u
	s.byUID[u.UID] = u.ID
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := u
	return &cp, nil
}

func (s *Store) GetUserByUID(_ context.Context, uid string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUID[uid]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := s.users[id]
	cp := u
	return &cp, nil
}

func (s *Store) UpdateUser(_ context.Context, u *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.users[u.ID]
	if !ok {
		return store.ErrNotFound
	}
	if old.UID != u.UID {
		delete(s.byUID, old.UID)
		s.byUID[u.UID] = u.ID
	}
	s.users[u.ID] = *u
	return nil
}

func (s *Store) RecordScan(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	ts := at
	u.LastScanAt = &ts
	u.ScanCount++
	u.UpdatedAt = at
	s.users[id] = u
	return nil
}

func (s *Store) CreateReservation(_ context.Context, r *types.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[r.ID] = *r
	return nil
}

func (s *Store) GetReservation(_ context.Context, id string) (*types.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := r
	return &cp, nil
}

func (s *Store) UpdateReservation(_ context.Context, r *types.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[r.ID]; !ok {
		return store.ErrNotFound
	}
	s.reservations[r.ID] = *r
	return nil
}

func (s *Store) ReservationsForDay(_ context.Context, studentID string, day time.Time, statuses []string) ([]types.Reservation, error) {
	key := store.DayKey(day)

	allowed := map[string]bool{}
	for _, st := range statuses {
		allowed[st] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Reservation
	for _, r := range s.reservations {
		if r.StudentID != studentID || store.DayKey(r.Date) != key {
			continue
		}
		if len(allowed) > 0 && !allowed[r.Status] {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreatePurchase(_ context.Context, p *types.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purchases[p.ID] = *p
	return nil
}

// Purchases returns all recorded purchases, for tests.
func (s *Store) Purchases() []types.Purchase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		out = append(out, p)
	}
	return out
}

func (s *Store) Close() error { return nil }
