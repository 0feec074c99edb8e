package mysql

import (
	"context"
	"database/sql"
	"errors"

	"jetstay/internal/domain"
)

// unitHotel labels lock failures on a hotel row.
const unitHotel domain.UnitKind = "hotel"

func (r *Repo) GetHotel(ctx context.Context, id int64) (domain.HotelView, error) {
	var (
		hv            domain.HotelView
		city, country sql.NullString
		rate          sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, getHotelSQL, id).
		Scan(&hv.ID, &hv.Name, &city, &country, &rate, &hv.NumberOfRates)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.HotelView{}, &domain.NotFoundError{Entity: "hotel", ID: id}
		}
		return domain.HotelView{}, &domain.PersistenceError{Op: "get hotel", Err: err}
	}
	if city.Valid {
		cy := city.String
		hv.City = &cy
	}
	if country.Valid {
		cs := country.String
		hv.Country = &cs
	}
	if rate.Valid {
		rt := rate.Float64
		hv.Rate = &rt
	}

	rows, err := r.db.QueryContext(ctx, hotelRoomTypesSQL, id)
	if err != nil {
		return domain.HotelView{}, &domain.PersistenceError{Op: "list room types", Err: err}
	}
	defer rows.Close()

	hv.RoomTypes = []domain.RoomTypeView{}
	for rows.Next() {
		var rt domain.RoomTypeView
		if err := rows.Scan(&rt.ID, &rt.Name, &rt.Guests, &rt.Quantity, &rt.PriceCents); err != nil {
			return domain.HotelView{}, &domain.PersistenceError{Op: "list room types", Err: err}
		}
		hv.RoomTypes = append(hv.RoomTypes, rt)
	}
	if err := rows.Err(); err != nil {
		return domain.HotelView{}, &domain.PersistenceError{Op: "list room types", Err: err}
	}
	return hv, nil
}

func (r *Repo) ListReviews(ctx context.Context, hotelID int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	limit := pg.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, listReviewsSQL, hotelID, limit)
	if err != nil {
		return domain.ReviewsPage{}, &domain.PersistenceError{Op: "list reviews", Err: err}
	}
	defer rows.Close()

	out := []domain.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return domain.ReviewsPage{}, &domain.PersistenceError{Op: "list reviews", Err: err}
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return domain.ReviewsPage{}, &domain.PersistenceError{Op: "list reviews", Err: err}
	}
	return domain.ReviewsPage{Items: out}, nil
}

func (r *Repo) GetReview(ctx context.Context, bookingID int64) (domain.Review, error) {
	rv, err := scanReview(r.db.QueryRowContext(ctx, getReviewSQL, bookingID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Review{}, &domain.NotFoundError{Entity: "review", ID: bookingID}
		}
		return domain.Review{}, &domain.PersistenceError{Op: "get review", Err: err}
	}
	return rv, nil
}

// SaveReview inserts rv and refreshes the hotel aggregate in one tx, with
// the hotel row locked so concurrent reviews apply one after another.
func (r *Repo) SaveReview(ctx context.Context, rv *domain.Review) error {
	return r.withHotelLocked(ctx, rv.HotelID, "save review", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, insertReviewSQL,
			rv.HotelID,
			rv.UserID,
			rv.BookingID,
			rv.Staff,
			rv.Comfort,
			rv.Facilities,
			rv.Cleanliness,
			rv.ValueForMoney,
			rv.Location,
			rv.Rating,
			valStr(rv.Comment),
		)
		if err != nil {
			if isDuplicate(err) {
				return domain.ErrConflict
			}
			return err
		}
		if rv.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		stored, err := scanReview(tx.QueryRowContext(ctx, getReviewSQL, rv.BookingID))
		if err != nil {
			return err
		}
		rv.CreatedAt = stored.CreatedAt
		return nil
	})
}

func (r *Repo) DeleteReview(ctx context.Context, bookingID int64) (domain.Review, error) {
	rv, err := r.GetReview(ctx, bookingID)
	if err != nil {
		return domain.Review{}, err
	}
	err = r.withHotelLocked(ctx, rv.HotelID, "delete review", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, deleteReviewSQL, bookingID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &domain.NotFoundError{Entity: "review", ID: bookingID}
		}
		return nil
	})
	if err != nil {
		return domain.Review{}, err
	}
	return rv, nil
}

// withHotelLocked runs fn after taking the hotel row lock, then recomputes
// rate and number_of_rates before committing.
func (r *Repo) withHotelLocked(ctx context.Context, hotelID int64, op string, fn func(tx *sql.Tx) error) error {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var locked int64
	if err := tx.QueryRowContext(ctx, lockHotelSQL, hotelID).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.NotFoundError{Entity: "hotel", ID: hotelID}
		}
		return wrap(op, domain.UnitRef{Kind: unitHotel, ID: hotelID}, err)
	}
	if err := fn(tx); err != nil {
		var nf *domain.NotFoundError
		if errors.Is(err, domain.ErrConflict) || errors.As(err, &nf) {
			return err
		}
		return &domain.PersistenceError{Op: op, Err: err}
	}
	if _, err := tx.ExecContext(ctx, refreshHotelRateSQL, hotelID, hotelID); err != nil {
		return &domain.PersistenceError{Op: op, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &domain.PersistenceError{Op: op, Err: err}
	}
	committed = true
	return nil
}

func scanReview(row scanner) (domain.Review, error) {
	var (
		rv      domain.Review
		comment sql.NullString
	)
	if err := row.Scan(
		&rv.ID,
		&rv.HotelID,
		&rv.UserID,
		&rv.BookingID,
		&rv.Staff,
		&rv.Comfort,
		&rv.Facilities,
		&rv.Cleanliness,
		&rv.ValueForMoney,
		&rv.Location,
		&rv.Rating,
		&comment,
		&rv.CreatedAt,
	); err != nil {
		return domain.Review{}, err
	}
	if comment.Valid {
		c := comment.String
		rv.Comment = &c
	}
	return rv, nil
}
