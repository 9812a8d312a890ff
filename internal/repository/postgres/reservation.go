package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"rental-reservation-backend/internal/domain"
	"rental-reservation-backend/internal/logger"
	"rental-reservation-backend/internal/repository"

	sq "github.com/Masterminds/squirrel"
)

const reservationTable = "reservations"

var reservationColumns = []string{
	"id", "product_id", "customer_id", "owner_id", "customer_email", "checkout_id", "quantity",
	"start_date", "end_date", "duration", "duration_unit", "unit_price_cents", "total_price_cents",
	"status", "payment_status", "pickup_date", "return_date", "late_fees_cents", "stock_held",
	"created_on", "updated_on",
}

var reservationSelect = "SELECT " + strings.Join(reservationColumns, ", ") + " FROM " + reservationTable

func scanReservation(row scanner) (*domain.Reservation, error) {
	res := &domain.Reservation{}
	var checkoutID sql.NullString
	err := row.Scan(&res.ID, &res.ProductID, &res.CustomerID, &res.OwnerID, &res.CustomerEmail, &checkoutID, &res.Quantity,
		&res.StartDate, &res.EndDate, &res.Duration, &res.DurationUnit, &res.UnitPriceCents, &res.TotalPriceCents,
		&res.Status, &res.PaymentStatus, &res.PickupDate, &res.ReturnDate, &res.LateFeesCents, &res.StockHeld,
		&res.CreatedOn, &res.UpdatedOn)
	if err != nil {
		return nil, err
	}
	res.CheckoutID = checkoutID.String
	return res, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type reservationRepository struct {
	db *sql.DB
}

func NewReservationRepository(db *sql.DB) repository.ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	logger.EnterMethod("reservationRepository.Create", "productID", res.ProductID, "customerID", res.CustomerID)

	now := time.Now().UTC()
	res.CreatedOn, res.UpdatedOn = now, now

	query, args, err := qb.Insert(reservationTable).
		Columns(reservationColumns[1:]...).
		Values(res.ProductID, res.CustomerID, res.OwnerID, res.CustomerEmail, nullString(res.CheckoutID), res.Quantity,
			res.StartDate, res.EndDate, res.Duration, res.DurationUnit, res.UnitPriceCents, res.TotalPriceCents,
			res.Status, res.PaymentStatus, res.PickupDate, res.ReturnDate, res.LateFeesCents, res.StockHeld,
			now, now).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&res.ID); err != nil {
		logger.ExitMethodWithError("reservationRepository.Create", err)
		return classify("create reservation", err)
	}

	logger.ExitMethod("reservationRepository.Create", "reservationID", res.ID)
	return nil
}

func (r *reservationRepository) GetByID(ctx context.Context, id int32) (*domain.Reservation, error) {
	res, err := scanReservation(conn(ctx, r.db).QueryRowContext(ctx, reservationSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, classify("get reservation", err)
	}
	return res, nil
}

func (r *reservationRepository) GetForUpdate(ctx context.Context, id int32) (*domain.Reservation, error) {
	res, err := scanReservation(conn(ctx, r.db).QueryRowContext(ctx, reservationSelect+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, classify("lock reservation", err)
	}
	return res, nil
}

func (r *reservationRepository) Update(ctx context.Context, res *domain.Reservation) error {
	res.UpdatedOn = time.Now().UTC()
	query, args, err := qb.Update(reservationTable).
		SetMap(map[string]any{
			"start_date":        res.StartDate,
			"end_date":          res.EndDate,
			"duration":          res.Duration,
			"duration_unit":     res.DurationUnit,
			"total_price_cents": res.TotalPriceCents,
			"status":            res.Status,
			"payment_status":    res.PaymentStatus,
			"pickup_date":       res.PickupDate,
			"return_date":       res.ReturnDate,
			"late_fees_cents":   res.LateFeesCents,
			"stock_held":        res.StockHeld,
			"updated_on":        res.UpdatedOn,
		}).
		Where(sq.Eq{"id": res.ID}).
		ToSql()
	if err != nil {
		return err
	}
	result, err := conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return classify("update reservation", err)
	}
	return requireRow("update reservation", result)
}

func statusStrings(statuses []domain.ReservationStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *reservationRepository) list(ctx context.Context, op string, builder sq.SelectBuilder) ([]domain.Reservation, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	logger.DatabaseCall(op, query)
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, *res)
	}
	return out, classify(op, rows.Err())
}

func (r *reservationRepository) ListByProductAndStatus(ctx context.Context, productID int32, statuses []domain.ReservationStatus) ([]domain.Reservation, error) {
	return r.list(ctx, "list reservations by product",
		qb.Select(reservationColumns...).From(reservationTable).
			Where(sq.And{sq.Eq{"product_id": productID}, sq.Eq{"status": statusStrings(statuses)}}).
			OrderBy("start_date", "id"))
}

func (r *reservationRepository) ListByCheckout(ctx context.Context, checkoutID string) ([]domain.Reservation, error) {
	return r.list(ctx, "list reservations by checkout",
		qb.Select(reservationColumns...).From(reservationTable).
			Where(sq.Eq{"checkout_id": checkoutID}).
			OrderBy("id"))
}

func (r *reservationRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	return r.list(ctx, "list overdue reservations",
		qb.Select(reservationColumns...).From(reservationTable).
			Where(sq.And{sq.Eq{"status": string(domain.ReservationStatusDelivered)}, sq.Lt{"end_date": now}}).
			OrderBy("end_date", "id"))
}

func (r *reservationRepository) ListByCustomer(ctx context.Context, customerID int32, page, pageSize int32) ([]domain.Reservation, int32, error) {
	var count int32
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT count(*) FROM reservations WHERE customer_id = $1`, customerID).Scan(&count)
	if err != nil {
		return nil, 0, classify("count reservations", err)
	}
	items, err := r.list(ctx, "list reservations by customer",
		qb.Select(reservationColumns...).From(reservationTable).
			Where(sq.Eq{"customer_id": customerID}).
			OrderBy("created_on DESC", "id DESC").
			Limit(uint64(pageSize)).
			Offset(uint64((page-1)*pageSize)))
	if err != nil {
		return nil, 0, err
	}
	return items, count, nil
}

func (r *reservationRepository) CountActiveByProduct(ctx context.Context, productID int32) (int32, error) {
	query, args, err := qb.Select("count(*)").From(reservationTable).
		Where(sq.And{sq.Eq{"product_id": productID}, sq.Eq{"status": statusStrings(domain.ActiveStatuses)}}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var n int32
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, classify("count active reservations", err)
	}
	return n, nil
}
