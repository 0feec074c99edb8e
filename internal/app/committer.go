package app

import (
	"context"
	"time"

	"jetstay/internal/domain"
)

type lockedLine struct {
	unit  domain.InventoryUnit
	units int
}

// commitRooms writes one booking transaction and one room reservation per
// line. It must run in the tx that locked and checked every line.
func (s *BookingService) commitRooms(ctx context.Context, tx domain.ReservationTx, req domain.RoomBookingRequest, userID int64, lines []lockedLine) (*domain.BookingTransaction, error) {
	dates := req.Dates()
	nights := int64(dates.Nights())
	bt := s.newBooking(domain.BookingHotel, req.HotelID, userID)
	bt.Guests = req.Guests
	bt.Dates = &dates
	for _, l := range lines {
		d := dates
		bt.Reservations = append(bt.Reservations, domain.ReservationRecord{
			Unit:       l.unit.Ref(),
			Units:      l.units,
			Dates:      &d,
			PriceCents: l.unit.PriceCents,
		})
		bt.TotalCents += l.unit.PriceCents * int64(l.units) * nights
	}
	if err := tx.InsertBooking(ctx, bt); err != nil {
		return nil, err
	}
	return bt, nil
}

// commitTickets writes one booking transaction holding quantity tickets of
// one unit each.
func (s *BookingService) commitTickets(ctx context.Context, tx domain.ReservationTx, req domain.TicketBookingRequest, userID int64, u domain.InventoryUnit) (*domain.BookingTransaction, error) {
	bt := s.newBooking(domain.BookingFlight, req.FlightID, userID)
	bt.Guests = req.Quantity
	bt.Reservations = make([]domain.ReservationRecord, 0, req.Quantity)
	for i := 0; i < req.Quantity; i++ {
		bt.Reservations = append(bt.Reservations, domain.ReservationRecord{
			Unit:       u.Ref(),
			Units:      1,
			PriceCents: u.PriceCents,
		})
	}
	bt.TotalCents = u.PriceCents * int64(req.Quantity)
	if err := tx.InsertBooking(ctx, bt); err != nil {
		return nil, err
	}
	return bt, nil
}

func (s *BookingService) newBooking(kind domain.BookingKind, ownerID, userID int64) *domain.BookingTransaction {
	return &domain.BookingTransaction{
		Reference:   s.newRef(),
		UserID:      userID,
		Kind:        kind,
		OwnerID:     ownerID,
		Status:      domain.StatusPending,
		BookingDate: domain.Day(s.now()),
	}
}

func formatDay(t time.Time) string { return t.Format(time.DateOnly) }
