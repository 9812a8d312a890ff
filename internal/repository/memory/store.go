// Package memory is a process-local store used for development and tests.
// Transactions are serialized behind one lock and rolled back from a snapshot.
package memory

import (
	"context"
	"sync"

	"rental-reservation-backend/internal/domain"
	"rental-reservation-backend/internal/repository"
)

type txKey struct{}

type txState struct {
	store *Store
	hooks []func()
}

type Store struct {
	mu                sync.RWMutex
	products          map[int32]*domain.Product
	reservations      map[int32]*domain.Reservation
	nextProductID     int32
	nextReservationID int32

	productRepo     *productRepository
	reservationRepo *reservationRepository
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	s := &Store{
		products:     make(map[int32]*domain.Product),
		reservations: make(map[int32]*domain.Reservation),
	}
	s.productRepo = &productRepository{s: s}
	s.reservationRepo = &reservationRepository{s: s}
	return s
}

func (s *Store) Products() repository.ProductRepository         { return s.productRepo }
func (s *Store) Reservations() repository.ReservationRepository { return s.reservationRepo }

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) inTx(ctx context.Context) bool {
	st, ok := ctx.Value(txKey{}).(*txState)
	return ok && st.store == s
}

// write takes the exclusive lock unless ctx already holds it through WithinTx.
func (s *Store) write(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) read(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

type snapshot struct {
	products          map[int32]domain.Product
	reservations      map[int32]domain.Reservation
	nextProductID     int32
	nextReservationID int32
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		products:          make(map[int32]domain.Product, len(s.products)),
		reservations:      make(map[int32]domain.Reservation, len(s.reservations)),
		nextProductID:     s.nextProductID,
		nextReservationID: s.nextReservationID,
	}
	for id, p := range s.products {
		snap.products[id] = *p
	}
	for id, r := range s.reservations {
		snap.reservations[id] = *r
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.products = make(map[int32]*domain.Product, len(snap.products))
	for id, p := range snap.products {
		p := p
		s.products[id] = &p
	}
	s.reservations = make(map[int32]*domain.Reservation, len(snap.reservations))
	for id, r := range snap.reservations {
		r := r
		s.reservations[id] = &r
	}
	s.nextProductID = snap.nextProductID
	s.nextReservationID = snap.nextReservationID
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	st := &txState{store: s}
	err := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		snap := s.snapshot()
		defer func() {
			if p := recover(); p != nil {
				s.restore(snap)
				panic(p)
			}
		}()
		if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
			s.restore(snap)
			return err
		}
		return nil
	}()
	if err != nil {
		return err
	}
	for _, hook := range st.hooks {
		hook()
	}
	return nil
}

func (s *Store) AfterCommit(ctx context.Context, fn func()) {
	if st, ok := ctx.Value(txKey{}).(*txState); ok && st.store == s {
		st.hooks = append(st.hooks, fn)
		return
	}
	fn()
}
