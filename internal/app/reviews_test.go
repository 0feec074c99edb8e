package app_test

import (
	"context"
	"errors"
	"testing"

	"jetstay/internal/app"
	"jetstay/internal/domain"
)

func review(bookingID int64, rate int) domain.ReviewRequest {
	return domain.ReviewRequest{
		BookingID: bookingID, Staff: rate, Comfort: rate, Facilities: rate,
		Cleanliness: rate, ValueForMoney: rate, Location: rate,
	}
}

func TestReviews_SubmitAndDelete(t *testing.T) {
	svc, st, cache, _ := newService(t)
	repo := &fakeHotelRepo{}
	rs := app.NewReviewService(repo, st, cache)
	ctx := context.Background()

	res, err := svc.BookRooms(ctx, roomReq(1, 2, 1), user)
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	req := review(res.BookingID, 8)
	req.Location = 2
	rv, err := rs.Submit(ctx, user, req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if rv.HotelID != hotelID || rv.Rating != 7 {
		t.Fatalf("review: %+v", rv)
	}
	if !cache.deleted("hotel:10") {
		t.Fatalf("hotel view not evicted")
	}
	if _, err := rs.Submit(ctx, user, req); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate review: %v", err)
	}

	if err := rs.Delete(ctx, 99, res.BookingID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("delete by stranger: %v", err)
	}
	if err := rs.Delete(ctx, user, res.BookingID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := rs.Delete(ctx, user, res.BookingID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("delete twice: %v", err)
	}
}

func TestReviews_Rules(t *testing.T) {
	svc, st, cache, _ := newService(t)
	rs := app.NewReviewService(&fakeHotelRepo{}, st, cache)
	ctx := context.Background()

	stay, _ := svc.BookRooms(ctx, roomReq(1, 2, 1), user)
	flight, _ := svc.BookTickets(ctx, domain.TicketBookingRequest{FlightID: flightID, TripTypeID: economy, Quantity: 1}, user)
	gone, _ := svc.BookRooms(ctx, roomReq(3, 4, 1), user)
	if _, err := svc.CancelBooking(ctx, gone.BookingID, user); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	var verrs domain.ValidationErrors
	if _, err := rs.Submit(ctx, user, review(stay.BookingID, 11)); !errors.As(err, &verrs) {
		t.Fatalf("rate out of range: %v", err)
	}
	if _, err := rs.Submit(ctx, 99, review(stay.BookingID, 5)); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("someone else's booking: %v", err)
	}
	if _, err := rs.Submit(ctx, user, review(flight.BookingID, 5)); !errors.As(err, &verrs) {
		t.Fatalf("flight booking: %v", err)
	}
	if _, err := rs.Submit(ctx, user, review(gone.BookingID, 5)); !errors.As(err, &verrs) {
		t.Fatalf("cancelled booking: %v", err)
	}
	if _, err := rs.Submit(ctx, user, review(4242, 5)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing booking: %v", err)
	}
}
