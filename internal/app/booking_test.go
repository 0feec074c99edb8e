package app_test

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"jetstay/internal/app"
	"jetstay/internal/domain"
	"jetstay/internal/storage/memory"
)

const (
	hotelID  = 10
	roomType = 100
	suite    = 101
	flightID = 20
	economy  = 200
	user     = 7
)

var today = time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return today }

// day returns today shifted by n days.
func day(n int) time.Time { return domain.Day(today).AddDate(0, 0, n) }

func newService(t *testing.T) (*app.BookingService, *memory.Store, *fakeCache, *fakeEvents) {
	t.Helper()
	st := memory.New(2 * time.Second)
	st.AddRoomType(hotelID, roomType, 10, 10000)
	st.AddRoomType(hotelID, suite, 2, 25000)
	st.AddTripType(flightID, economy, 10, 4500, day(30))
	c := &fakeCache{}
	ev := &fakeEvents{}
	return app.NewBookingService(st, c, ev).WithClock(fixedClock), st, c, ev
}

func roomReq(in, out, rooms int) domain.RoomBookingRequest {
	return domain.RoomBookingRequest{
		HotelID:  hotelID,
		CheckIn:  day(in),
		CheckOut: day(out),
		Guests:   2,
		Lines:    []domain.RoomLine{{RoomTypeID: roomType, Rooms: rooms}},
	}
}

func committedRooms(t *testing.T, st *memory.Store, id int64, in, out int) int {
	t.Helper()
	n, err := st.CommittedUnits(context.Background(), domain.UnitRef{Kind: domain.KindRoomType, ID: id},
		domain.RangeScope(domain.NewDateRange(day(in), day(out))))
	if err != nil {
		t.Fatalf("committed: %v", err)
	}
	return n
}

func TestBookRooms_OverCapacityRejected(t *testing.T) {
	svc, st, _, ev := newService(t)

	_, err := svc.BookRooms(context.Background(), roomReq(1, 3, 11), user)
	var ii *domain.InsufficientInventoryError
	if !errors.As(err, &ii) {
		t.Fatalf("want InsufficientInventoryError, got %v", err)
	}
	if ii.Requested != 11 || ii.Available != 10 {
		t.Fatalf("details: %+v", ii)
	}
	if n := committedRooms(t, st, roomType, 0, 100); n != 0 {
		t.Fatalf("records created: %d", n)
	}
	if len(ev.evs) != 0 {
		t.Fatalf("no event expected on rejection")
	}
}

func TestBookRooms_OverlappingRangesShareCapacity(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.BookRooms(ctx, roomReq(1, 3, 5), user); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := svc.BookRooms(ctx, roomReq(2, 4, 5), user); err != nil {
		t.Fatalf("second: %v", err)
	}
	var ii *domain.InsufficientInventoryError
	if _, err := svc.BookRooms(ctx, roomReq(2, 4, 1), user); !errors.As(err, &ii) {
		t.Fatalf("third: want insufficient, got %v", err)
	}
	if ii.Available != 0 {
		t.Fatalf("available = %d", ii.Available)
	}
}

func TestBookRooms_DisjointRangesDoNotCompete(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.BookRooms(ctx, roomReq(1, 3, 10), user); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := svc.BookRooms(ctx, roomReq(5, 7, 10), user); err != nil {
		t.Fatalf("disjoint: %v", err)
	}
	// checking in on the other stay's check-out day shares no night
	if _, err := svc.BookRooms(ctx, roomReq(3, 5, 10), user); err != nil {
		t.Fatalf("adjacent: %v", err)
	}
}

func TestBookRooms_ResultAndSideEffects(t *testing.T) {
	svc, st, c, ev := newService(t)
	ctx := context.Background()
	c.store = map[string][]byte{}
	_ = c.Set(ctx, "bookings:7:upcoming", []int{1}, 60)

	req := roomReq(1, 4, 2)
	req.Lines = append(req.Lines, domain.RoomLine{RoomTypeID: suite, Rooms: 1})
	res, err := svc.BookRooms(ctx, req, user)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	// 3 nights: 2 doubles at 100.00 and one suite at 250.00
	if want := int64(3 * (2*10000 + 25000)); res.TotalCents != want {
		t.Fatalf("total = %d, want %d", res.TotalCents, want)
	}
	if len(res.ReservationIDs) != 2 || res.Reference == "" {
		t.Fatalf("result: %+v", res)
	}

	bt, err := st.GetBooking(ctx, res.BookingID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if bt.Status != domain.StatusPending || bt.UserID != user || bt.Kind != domain.BookingHotel {
		t.Fatalf("stored: %+v", bt)
	}
	if !bt.BookingDate.Equal(domain.Day(today)) {
		t.Fatalf("booking date = %v", bt.BookingDate)
	}

	confirmed := ev.ofType("booking.confirmed")
	if len(confirmed) != 1 || confirmed[0].BookingID != res.BookingID || confirmed[0].CheckIn != "2030-01-02" {
		t.Fatalf("events: %+v", confirmed)
	}
	if !c.deleted("bookings:7:upcoming") {
		t.Fatalf("user bookings cache not invalidated")
	}
}

func TestBookRooms_MultiLineIsAllOrNothing(t *testing.T) {
	svc, st, _, _ := newService(t)
	ctx := context.Background()

	req := roomReq(1, 2, 3)
	req.Lines = append(req.Lines, domain.RoomLine{RoomTypeID: suite, Rooms: 3})
	_, err := svc.BookRooms(ctx, req, user)
	var ii *domain.InsufficientInventoryError
	if !errors.As(err, &ii) || ii.Unit.ID != suite {
		t.Fatalf("want suite shortage, got %v", err)
	}
	if n := committedRooms(t, st, roomType, 1, 2); n != 0 {
		t.Fatalf("first line leaked %d rooms", n)
	}
}

func TestBookRooms_RepeatedLinesAreMerged(t *testing.T) {
	svc, _, _, _ := newService(t)

	req := roomReq(1, 2, 6)
	req.Lines = append(req.Lines, domain.RoomLine{RoomTypeID: roomType, Rooms: 5})
	_, err := svc.BookRooms(context.Background(), req, user)
	var ii *domain.InsufficientInventoryError
	if !errors.As(err, &ii) || ii.Requested != 11 {
		t.Fatalf("want merged request of 11, got %v", err)
	}
}

func TestBookRooms_Validation(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	cases := map[string]domain.RoomBookingRequest{
		"reversed dates": roomReq(3, 1, 1),
		"zero nights":    roomReq(3, 3, 1),
		"zero rooms":     roomReq(1, 2, 0),
		"no lines":       {HotelID: hotelID, CheckIn: day(1), CheckOut: day(2), Guests: 1},
		"no guests":      {HotelID: hotelID, CheckIn: day(1), CheckOut: day(2), Lines: []domain.RoomLine{{RoomTypeID: roomType, Rooms: 1}}},
	}
	for name, req := range cases {
		_, err := svc.BookRooms(ctx, req, user)
		var verrs domain.ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("%s: want validation error, got %v", name, err)
		}
	}

	var verrs domain.ValidationErrors
	if _, err := svc.BookRooms(ctx, roomReq(1, 2, 1), 0); !errors.As(err, &verrs) {
		t.Fatalf("anonymous requester: %v", err)
	}
}

func TestBookRooms_OversizedRequestsNeverCommit(t *testing.T) {
	svc, st, _, _ := newService(t)
	ctx := context.Background()

	cases := map[string]domain.RoomBookingRequest{
		"huge single line": roomReq(1, 3, math.MaxInt),
		"huge repeated lines": func() domain.RoomBookingRequest {
			r := roomReq(1, 3, math.MaxInt)
			r.Lines = append(r.Lines, domain.RoomLine{RoomTypeID: roomType, Rooms: math.MaxInt})
			return r
		}(),
		"merged lines over the bound": func() domain.RoomBookingRequest {
			r := roomReq(1, 3, 6000)
			r.Lines = append(r.Lines, domain.RoomLine{RoomTypeID: roomType, Rooms: 6000})
			return r
		}(),
		"stay longer than a year": roomReq(1, 1+domain.MaxStayNights+1, 1),
	}
	for name, req := range cases {
		_, err := svc.BookRooms(ctx, req, user)
		var verrs domain.ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("%s: want validation error, got %v", name, err)
		}
		if n := committedRooms(t, st, roomType, 0, 1000); n != 0 {
			t.Fatalf("%s: committed %d rooms", name, n)
		}
	}

	// capacity still holds afterwards
	if _, err := svc.BookRooms(ctx, roomReq(1, 3, 10), user); err != nil {
		t.Fatalf("full booking: %v", err)
	}
	var ii *domain.InsufficientInventoryError
	if _, err := svc.BookRooms(ctx, roomReq(1, 3, 2), user); !errors.As(err, &ii) {
		t.Fatalf("over capacity: want insufficient, got %v", err)
	}
	if n := committedRooms(t, st, roomType, 1, 3); n != 10 {
		t.Fatalf("committed = %d, want 10", n)
	}

	var verrs domain.ValidationErrors
	_, err := svc.BookTickets(ctx, domain.TicketBookingRequest{FlightID: flightID, TripTypeID: economy, Quantity: math.MaxInt}, user)
	if !errors.As(err, &verrs) {
		t.Fatalf("huge ticket quantity: %v", err)
	}
}

func TestBookRooms_UnknownOrForeignRoomType(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	req := roomReq(1, 2, 1)
	req.Lines[0].RoomTypeID = 999
	if _, err := svc.BookRooms(ctx, req, user); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown room type: %v", err)
	}

	req = roomReq(1, 2, 1)
	req.HotelID = 11
	if _, err := svc.BookRooms(ctx, req, user); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("room type of another hotel: %v", err)
	}
}

func TestBookTickets_ConcurrentRequestsNeverOversell(t *testing.T) {
	svc, st, _, _ := newService(t)

	var ok, full atomic.Int64
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 3; i++ {
		g.Go(func() error {
			_, err := svc.BookTickets(ctx, domain.TicketBookingRequest{FlightID: flightID, TripTypeID: economy, Quantity: 5}, user)
			var ii *domain.InsufficientInventoryError
			switch {
			case err == nil:
				ok.Add(1)
			case errors.As(err, &ii):
				full.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok.Load() != 2 || full.Load() != 1 {
		t.Fatalf("ok=%d full=%d", ok.Load(), full.Load())
	}
	n, _ := st.CommittedUnits(context.Background(), domain.UnitRef{Kind: domain.KindTripType, ID: economy}, domain.TotalScope())
	if n != int(ok.Load())*5 {
		t.Fatalf("booked tickets = %d", n)
	}
}

func TestBookTickets_SoldOutAlwaysRejects(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	res, err := svc.BookTickets(ctx, domain.TicketBookingRequest{FlightID: flightID, TripTypeID: economy, Quantity: 10}, user)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if len(res.TicketIDs) != 10 || res.TotalCents != 10*4500 {
		t.Fatalf("result: %+v", res)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			_, err := svc.BookTickets(gctx, domain.TicketBookingRequest{FlightID: flightID, TripTypeID: economy, Quantity: 1}, user)
			var ii *domain.InsufficientInventoryError
			if !errors.As(err, &ii) {
				return errors.New("sold-out trip type accepted a ticket")
			}
			if err.Error() != "not enough tickets available" {
				return errors.New("unexpected message: " + err.Error())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestBookRooms_ManyConcurrentSingleRooms(t *testing.T) {
	svc, st, _, _ := newService(t)

	var ok atomic.Int64
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 40; i++ {
		in := i % 3
		g.Go(func() error {
			_, err := svc.BookRooms(ctx, roomReq(in, in+2, 1), user)
			if err == nil {
				ok.Add(1)
				return nil
			}
			var ii *domain.InsufficientInventoryError
			if errors.As(err, &ii) {
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// every night in [0,4) must stay within capacity
	for n := 0; n < 4; n++ {
		if c := committedRooms(t, st, roomType, n, n+1); c > 10 {
			t.Fatalf("night %d oversold: %d", n, c)
		}
	}
	if ok.Load() == 0 {
		t.Fatalf("no booking succeeded")
	}
}

func TestBookRooms_LockTimeoutIsTransient(t *testing.T) {
	st := memory.New(30 * time.Millisecond)
	st.AddRoomType(hotelID, roomType, 10, 10000)
	svc := app.NewBookingService(st, nil, nil)
	ctx := context.Background()

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = st.WithinTx(ctx, func(ctx context.Context, tx domain.ReservationTx) error {
			_, _ = tx.LockInventory(ctx, domain.UnitRef{Kind: domain.KindRoomType, ID: roomType})
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	_, err := svc.BookRooms(ctx, roomReq(1, 2, 1), user)
	close(release)
	<-done
	if !domain.IsTransient(err) {
		t.Fatalf("want transient, got %v", err)
	}
	// nothing was written; a retry succeeds
	if _, err := svc.BookRooms(ctx, roomReq(1, 2, 1), user); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestBookRooms_PublishFailureKeepsBooking(t *testing.T) {
	svc, st, _, ev := newService(t)
	ev.err = errors.New("broker down")

	res, err := svc.BookRooms(context.Background(), roomReq(1, 2, 1), user)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := st.GetBooking(context.Background(), res.BookingID); err != nil {
		t.Fatalf("booking lost: %v", err)
	}
}
