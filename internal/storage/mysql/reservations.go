package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"jetstay/internal/domain"
)

type reservationTx struct{ tx *sql.Tx }

func (t *reservationTx) LockInventory(ctx context.Context, ref domain.UnitRef) (domain.InventoryUnit, error) {
	q := lockRoomTypeSQL
	if ref.Kind == domain.KindTripType {
		q = lockTripTypeSQL
	}
	u, err := scanUnit(t.tx.QueryRowContext(ctx, q, ref.ID), ref.Kind)
	switch {
	case err == nil:
		return u, nil
	case errors.Is(err, sql.ErrNoRows):
		return domain.InventoryUnit{}, notFound(ref)
	case isLockFailure(err):
		return domain.InventoryUnit{}, &domain.TransientLockError{Unit: ref, Err: err}
	default:
		return domain.InventoryUnit{}, wrap("lock inventory", ref, err)
	}
}

func (t *reservationTx) CommittedUnits(ctx context.Context, ref domain.UnitRef, scope domain.Scope) (int, error) {
	n, err := committedUnits(ctx, t.tx, ref, scope)
	return n, wrap("committed units", ref, err)
}

func (t *reservationTx) InsertBooking(ctx context.Context, bt *domain.BookingTransaction) error {
	res, err := t.tx.ExecContext(ctx, insertBookingSQL,
		bt.Reference,
		bt.UserID,
		string(bt.Kind),
		bt.OwnerID,
		string(bt.Status),
		bt.TotalCents,
		bt.Guests,
		valDate(bt.Dates, false),
		valDate(bt.Dates, true),
		bt.BookingDate,
		bt.Paid,
	)
	if err != nil {
		return wrap("insert booking", domain.UnitRef{}, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return &domain.PersistenceError{Op: "insert booking", Err: err}
	}
	bt.ID = id

	for i := range bt.Reservations {
		rr := &bt.Reservations[i]
		if rr.Unit.Kind == domain.KindTripType {
			res, err = t.tx.ExecContext(ctx, insertTicketSQL, bt.ID, rr.Unit.ID, rr.PriceCents)
		} else {
			res, err = t.tx.ExecContext(ctx, insertRoomBookingSQL,
				bt.ID, rr.Unit.ID, rr.Units, valDate(rr.Dates, false), valDate(rr.Dates, true), rr.PriceCents)
		}
		if err != nil {
			return wrap("insert reservation", rr.Unit, err)
		}
		if rr.ID, err = res.LastInsertId(); err != nil {
			return &domain.PersistenceError{Op: "insert reservation", Err: err}
		}
	}
	return nil
}

func (t *reservationTx) LockBooking(ctx context.Context, id int64) (domain.BookingTransaction, error) {
	bt, err := scanBooking(t.tx.QueryRowContext(ctx, lockBookingSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BookingTransaction{}, &domain.NotFoundError{Entity: "booking", ID: id}
		}
		return domain.BookingTransaction{}, wrap("lock booking", domain.UnitRef{}, err)
	}
	if bt.Reservations, err = loadReservations(ctx, t.tx, bt); err != nil {
		return domain.BookingTransaction{}, wrap("load reservations", domain.UnitRef{}, err)
	}
	return bt, nil
}

func (t *reservationTx) UpdateStatus(ctx context.Context, id int64, status domain.Status) error {
	res, err := t.tx.ExecContext(ctx, updateStatusSQL, string(status), id)
	if err != nil {
		return wrap("update status", domain.UnitRef{}, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Entity: "booking", ID: id}
	}
	return nil
}

// ---- unlocked reads ----

func (r *Repo) GetInventory(ctx context.Context, ref domain.UnitRef) (domain.InventoryUnit, error) {
	q := getRoomTypeSQL
	if ref.Kind == domain.KindTripType {
		q = getTripTypeSQL
	}
	u, err := scanUnit(r.db.QueryRowContext(ctx, q, ref.ID), ref.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.InventoryUnit{}, notFound(ref)
	}
	if err != nil {
		return domain.InventoryUnit{}, &domain.PersistenceError{Op: "get inventory", Err: err}
	}
	return u, nil
}

func (r *Repo) CommittedUnits(ctx context.Context, ref domain.UnitRef, scope domain.Scope) (int, error) {
	n, err := committedUnits(ctx, r.db, ref, scope)
	if err != nil {
		return 0, &domain.PersistenceError{Op: "committed units", Err: err}
	}
	return n, nil
}

func (r *Repo) GetBooking(ctx context.Context, id int64) (domain.BookingTransaction, error) {
	bt, err := scanBooking(r.db.QueryRowContext(ctx, getBookingSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BookingTransaction{}, &domain.NotFoundError{Entity: "booking", ID: id}
		}
		return domain.BookingTransaction{}, &domain.PersistenceError{Op: "get booking", Err: err}
	}
	if bt.Reservations, err = loadReservations(ctx, r.db, bt); err != nil {
		return domain.BookingTransaction{}, &domain.PersistenceError{Op: "load reservations", Err: err}
	}
	return bt, nil
}

func (r *Repo) ListBookings(ctx context.Context, userID int64, q domain.BookingsQuery) ([]domain.BookingTransaction, error) {
	query := upcomingBookingsSQL
	if q.Scope == domain.ScopePast {
		query = pastBookingsSQL
	}
	rows, err := r.db.QueryContext(ctx, query, userID, q.Today, q.Limit)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list bookings", Err: err}
	}
	defer rows.Close()

	out := []domain.BookingTransaction{}
	for rows.Next() {
		bt, err := scanBooking(rows)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "list bookings", Err: err}
		}
		out = append(out, bt)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "list bookings", Err: err}
	}
	rows.Close()

	for i := range out {
		if out[i].Reservations, err = loadReservations(ctx, r.db, out[i]); err != nil {
			return nil, &domain.PersistenceError{Op: "load reservations", Err: err}
		}
	}
	return out, nil
}

func (r *Repo) ListExpiringPending(ctx context.Context, before time.Time, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, expiringPendingSQL, before, limit)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list expiring", Err: err}
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, &domain.PersistenceError{Op: "list expiring", Err: err}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "list expiring", Err: err}
	}
	return ids, nil
}

// ---- helpers ----

func notFound(ref domain.UnitRef) error {
	name := "room type"
	if ref.Kind == domain.KindTripType {
		name = "trip type"
	}
	return &domain.NotFoundError{Entity: name, ID: ref.ID}
}

func committedUnits(ctx context.Context, q querier, ref domain.UnitRef, scope domain.Scope) (int, error) {
	var row *sql.Row
	switch {
	case ref.Kind == domain.KindTripType:
		row = q.QueryRowContext(ctx, committedTicketsSQL, ref.ID)
	case scope.Dates == nil:
		row = q.QueryRowContext(ctx, committedRoomsAllSQL, ref.ID)
	default:
		row = q.QueryRowContext(ctx, committedRoomsSQL, ref.ID, scope.Dates.End, scope.Dates.Start)
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUnit(row scanner, kind domain.UnitKind) (domain.InventoryUnit, error) {
	u := domain.InventoryUnit{Kind: kind}
	var err error
	if kind == domain.KindTripType {
		err = row.Scan(&u.ID, &u.OwnerID, &u.Capacity, &u.PriceCents, &u.Name, &u.FlightDate)
	} else {
		err = row.Scan(&u.ID, &u.OwnerID, &u.Capacity, &u.PriceCents, &u.Name)
	}
	return u, err
}

func scanBooking(row scanner) (domain.BookingTransaction, error) {
	var (
		bt                domain.BookingTransaction
		kind, status      string
		checkIn, checkOut sql.NullTime
	)
	if err := row.Scan(
		&bt.ID,
		&bt.Reference,
		&bt.UserID,
		&kind,
		&bt.OwnerID,
		&status,
		&bt.TotalCents,
		&bt.Guests,
		&checkIn,
		&checkOut,
		&bt.BookingDate,
		&bt.Paid,
	); err != nil {
		return domain.BookingTransaction{}, err
	}
	bt.Kind = domain.BookingKind(kind)
	bt.Status = domain.Status(status)
	if checkIn.Valid && checkOut.Valid {
		d := domain.NewDateRange(checkIn.Time, checkOut.Time)
		bt.Dates = &d
	}
	return bt, nil
}

func loadReservations(ctx context.Context, q querier, bt domain.BookingTransaction) ([]domain.ReservationRecord, error) {
	if bt.Kind == domain.BookingFlight {
		return loadTickets(ctx, q, bt.ID)
	}
	rows, err := q.QueryContext(ctx, roomReservationsSQL, bt.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReservationRecord
	for rows.Next() {
		var (
			rr                domain.ReservationRecord
			checkIn, checkOut time.Time
		)
		rr.Unit.Kind = domain.KindRoomType
		if err := rows.Scan(&rr.ID, &rr.Unit.ID, &rr.Units, &checkIn, &checkOut, &rr.PriceCents); err != nil {
			return nil, err
		}
		d := domain.NewDateRange(checkIn, checkOut)
		rr.Dates = &d
		out = append(out, rr)
	}
	return out, rows.Err()
}

func loadTickets(ctx context.Context, q querier, bookingID int64) ([]domain.ReservationRecord, error) {
	rows, err := q.QueryContext(ctx, ticketReservationsSQL, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReservationRecord
	for rows.Next() {
		rr := domain.ReservationRecord{Unit: domain.UnitRef{Kind: domain.KindTripType}, Units: 1}
		if err := rows.Scan(&rr.ID, &rr.Unit.ID, &rr.PriceCents); err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}
