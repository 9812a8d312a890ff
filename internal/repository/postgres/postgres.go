package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rental-reservation-backend/internal/domain"
	"rental-reservation-backend/internal/logger"
	"rental-reservation-backend/internal/repository"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

type txState struct {
	tx    *sql.Tx
	hooks []func()
}

// conn returns the transaction carried by ctx, or the pool.
func conn(ctx context.Context, db *sql.DB) querier {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return st.tx
	}
	return db
}

type Store struct {
	db           *sql.DB
	products     repository.ProductRepository
	reservations repository.ReservationRepository
}

var _ repository.Store = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:           db,
		products:     NewProductRepository(db),
		reservations: NewReservationRepository(db),
	}
}

func (s *Store) Products() repository.ProductRepository         { return s.products }
func (s *Store) Reservations() repository.ReservationRepository { return s.reservations }

func (s *Store) Ping(ctx context.Context) error {
	return classify("ping", s.db.PingContext(ctx))
}

func (s *Store) Close() error {
	return s.db.Close()
}

// WithinTx joins an existing transaction on ctx instead of nesting.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin tx", err)
	}
	st := &txState{tx: tx}
	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Warn("Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify("commit tx", err)
	}
	for _, hook := range st.hooks {
		hook()
	}
	return nil
}

func (s *Store) AfterCommit(ctx context.Context, fn func()) {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		st.hooks = append(st.hooks, fn)
		return
	}
	fn()
}

// classify maps driver errors onto the domain taxonomy. Only failures of the
// store itself become PersistenceError; those are the retryable ones.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57", "58":
			return domain.NewPersistenceError(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return domain.NewPersistenceError(op, err)
}
