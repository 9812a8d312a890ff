package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"rental-reservation-backend/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var reservationRowColumns = reservationColumns

func reservationRow(rows *sqlmock.Rows, id int32, status string) *sqlmock.Rows {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	return rows.AddRow(id, 2, 3, 4, "c@example.com", "chk-1", 1,
		start, start.Add(48*time.Hour), 2, "day", 100, 200,
		status, "pending", nil, nil, 0, true,
		start, start)
}

func TestClassify(t *testing.T) {
	t.Run("No rows is not found", func(t *testing.T) {
		err := classify("get", sql.ErrNoRows)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NotErrorIs(t, err, domain.ErrPersistence)
	})

	t.Run("Serialization failure is persistence", func(t *testing.T) {
		err := classify("consume", &pq.Error{Code: "40001"})
		assert.ErrorIs(t, err, domain.ErrPersistence)
	})

	t.Run("Connection failure is persistence", func(t *testing.T) {
		err := classify("consume", &pq.Error{Code: "08006"})
		var pe *domain.PersistenceError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "consume", pe.Op)
	})

	t.Run("Constraint violation is not retryable", func(t *testing.T) {
		err := classify("create", &pq.Error{Code: "23505"})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrPersistence)
	})

	t.Run("Driver error is persistence", func(t *testing.T) {
		assert.ErrorIs(t, classify("ping", errors.New("connection reset by peer")), domain.ErrPersistence)
	})

	t.Run("Cancelled context is not retried", func(t *testing.T) {
		assert.NotErrorIs(t, classify("ping", context.Canceled), domain.ErrPersistence)
	})

	assert.NoError(t, classify("noop", nil))
}

func TestProductRepository_ConsumeStock(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery("UPDATE products").
			WithArgs(int32(1), sqlmock.AnyArg(), int32(5)).
			WillReturnRows(sqlmock.NewRows([]string{"quantity_available", "availability"}).AddRow(0, false))

		level, err := repo.ConsumeStock(ctx, 5, 1)
		assert.NoError(t, err)
		assert.Equal(t, int32(0), level.QuantityAvailable)
		assert.False(t, level.Availability)
	})

	t.Run("Insufficient stock", func(t *testing.T) {
		mock.ExpectQuery("UPDATE products").
			WithArgs(int32(3), sqlmock.AnyArg(), int32(5)).
			WillReturnRows(sqlmock.NewRows([]string{"quantity_available", "availability"}))
		mock.ExpectQuery("SELECT quantity_available FROM products WHERE id = \\$1").
			WithArgs(int32(5)).
			WillReturnRows(sqlmock.NewRows([]string{"quantity_available"}).AddRow(1))

		_, err := repo.ConsumeStock(ctx, 5, 3)
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		var se *domain.StockError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, int32(3), se.Requested)
		assert.Equal(t, int32(1), se.Available)
	})

	t.Run("Missing product", func(t *testing.T) {
		mock.ExpectQuery("UPDATE products").
			WillReturnRows(sqlmock.NewRows([]string{"quantity_available", "availability"}))
		mock.ExpectQuery("SELECT quantity_available FROM products").
			WithArgs(int32(9)).
			WillReturnRows(sqlmock.NewRows([]string{"quantity_available"}))

		_, err := repo.ConsumeStock(ctx, 9, 1)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Store unavailable", func(t *testing.T) {
		mock.ExpectQuery("UPDATE products").WillReturnError(&pq.Error{Code: "57P01"})

		_, err := repo.ConsumeStock(ctx, 5, 1)
		assert.ErrorIs(t, err, domain.ErrPersistence)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_RestoreStock(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)

	mock.ExpectQuery("UPDATE products").
		WithArgs(int32(1), sqlmock.AnyArg(), int32(5)).
		WillReturnRows(sqlmock.NewRows([]string{"quantity_available", "availability"}).AddRow(1, true))

	level, err := repo.RestoreStock(context.Background(), 5, 1)
	assert.NoError(t, err)
	assert.Equal(t, domain.StockLevel{ProductID: 5, QuantityAvailable: 1, Availability: true}, level)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)
	now := time.Now().UTC()

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows(productColumns).
			AddRow(1, 7, "Drill", "Cordless", 0, 1500, 6000, 0, 0, 3, 2, true, 1, 5, now, now, nil)
		mock.ExpectQuery("SELECT (.+) FROM products WHERE id = \\$1 AND deleted_on IS NULL").
			WithArgs(int32(1)).
			WillReturnRows(rows)

		p, err := repo.GetByID(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Drill", p.Name)
		assert.Equal(t, int64(1500), p.Prices.DayCents)
		assert.Equal(t, int32(2), p.QuantityAvailable)
		assert.Nil(t, p.DeletedOn)
	})

	t.Run("Not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM products").
			WithArgs(int32(2)).
			WillReturnRows(sqlmock.NewRows(productColumns))

		_, err := repo.GetByID(context.Background(), 2)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestProductRepository_SetLimits(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)

	mock.ExpectExec("UPDATE products SET min_quantity").
		WithArgs(int32(1), int32(4), sqlmock.AnyArg(), int32(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.SetLimits(context.Background(), 3, 1, 4))

	mock.ExpectExec("UPDATE products SET min_quantity").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.SetLimits(context.Background(), 4, 1, 4), domain.ErrNotFound)
}

func TestReservationRepository_ListByProductAndStatus(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepository(db)

	rows := reservationRow(sqlmock.NewRows(reservationRowColumns), 11, "confirmed")
	rows = reservationRow(rows, 12, "delivered")
	mock.ExpectQuery("SELECT (.+) FROM reservations WHERE (.+)product_id(.+)status IN").
		WithArgs(int32(2), "confirmed", "reserved", "delivered").
		WillReturnRows(rows)

	items, err := repo.ListByProductAndStatus(context.Background(), 2, domain.ActiveStatuses)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, domain.ReservationStatusDelivered, items[1].Status)
	assert.Equal(t, domain.DurationUnitDay, items[0].DurationUnit)
	assert.Equal(t, "chk-1", items[0].CheckoutID)
	assert.Nil(t, items[0].PickupDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepository(db)
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	res := &domain.Reservation{
		ProductID: 2, CustomerID: 3, OwnerID: 4, Quantity: 1,
		StartDate: start, EndDate: start.Add(24 * time.Hour), Duration: 1, DurationUnit: domain.DurationUnitDay,
		UnitPriceCents: 100, TotalPriceCents: 100,
		Status: domain.ReservationStatusConfirmed, PaymentStatus: domain.PaymentStatusPending, StockHeld: true,
	}
	mock.ExpectQuery("INSERT INTO reservations").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	require.NoError(t, repo.Create(context.Background(), res))
	assert.Equal(t, int32(42), res.ID)
	assert.False(t, res.CreatedOn.IsZero())
}

func TestReservationRepository_Update(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepository(db)

	mock.ExpectExec("UPDATE reservations SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), &domain.Reservation{ID: 5})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_WithinTx(t *testing.T) {
	t.Run("Commit runs hooks", func(t *testing.T) {
		db, mock := newMock(t)
		store := NewStore(db)

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE products").
			WillReturnRows(sqlmock.NewRows([]string{"quantity_available", "availability"}).AddRow(2, true))
		mock.ExpectCommit()

		ran := false
		err := store.WithinTx(context.Background(), func(ctx context.Context) error {
			if _, err := store.Products().ConsumeStock(ctx, 1, 1); err != nil {
				return err
			}
			store.AfterCommit(ctx, func() { ran = true })
			assert.False(t, ran)
			return nil
		})
		assert.NoError(t, err)
		assert.True(t, ran)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error rolls back and drops hooks", func(t *testing.T) {
		db, mock := newMock(t)
		store := NewStore(db)

		mock.ExpectBegin()
		mock.ExpectRollback()

		ran := false
		boom := errors.New("boom")
		err := store.WithinTx(context.Background(), func(ctx context.Context) error {
			store.AfterCommit(ctx, func() { ran = true })
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.False(t, ran)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Begin failure is persistence", func(t *testing.T) {
		db, mock := newMock(t)
		store := NewStore(db)

		mock.ExpectBegin().WillReturnError(errors.New("connection refused"))
		err := store.WithinTx(context.Background(), func(ctx context.Context) error { return nil })
		assert.ErrorIs(t, err, domain.ErrPersistence)
	})

	t.Run("Hook outside a transaction runs immediately", func(t *testing.T) {
		db, _ := newMock(t)
		ran := false
		NewStore(db).AfterCommit(context.Background(), func() { ran = true })
		assert.True(t, ran)
	})
}
