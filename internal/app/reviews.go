package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"jetstay/internal/domain"
)

type ReviewService struct {
	repo  domain.HotelRepository
	store domain.ReservationStore
	cache domain.Cache
}

func NewReviewService(r domain.HotelRepository, st domain.ReservationStore, c domain.Cache) *ReviewService {
	return &ReviewService{repo: r, store: st, cache: c}
}

// Submit records the requester's review of one of their hotel bookings.
func (s *ReviewService) Submit(ctx context.Context, userID int64, req domain.ReviewRequest) (domain.Review, error) {
	if err := validateRequester(userID); err != nil {
		return domain.Review{}, err
	}
	if err := validateReviewRequest(req); err != nil {
		return domain.Review{}, err
	}
	bt, err := s.store.GetBooking(ctx, req.BookingID)
	if err != nil {
		return domain.Review{}, err
	}
	if bt.UserID != userID {
		return domain.Review{}, domain.ErrForbidden
	}
	if bt.Kind != domain.BookingHotel {
		return domain.Review{}, domain.ValidationErrors{{Field: "booking_id", Message: "is not a hotel booking"}}
	}
	if bt.Status == domain.StatusCancelled {
		return domain.Review{}, domain.ValidationErrors{{Field: "booking_id", Message: "booking was cancelled"}}
	}

	r := domain.Review{
		HotelID:       bt.OwnerID,
		UserID:        userID,
		BookingID:     bt.ID,
		Staff:         req.Staff,
		Comfort:       req.Comfort,
		Facilities:    req.Facilities,
		Cleanliness:   req.Cleanliness,
		ValueForMoney: req.ValueForMoney,
		Location:      req.Location,
		Comment:       req.Comment,
	}
	r.Rating = r.OverallRate()
	if err := s.repo.SaveReview(ctx, &r); err != nil {
		return domain.Review{}, err
	}
	s.invalidateHotel(ctx, r.HotelID)
	log.Info().Int64("hotel_id", r.HotelID).Int64("booking_id", r.BookingID).Float64("rating", r.Rating).Msg("review saved")
	return r, nil
}

func (s *ReviewService) Delete(ctx context.Context, userID, bookingID int64) error {
	r, err := s.repo.GetReview(ctx, bookingID)
	if err != nil {
		return err
	}
	if r.UserID != userID {
		return domain.ErrForbidden
	}
	if _, err := s.repo.DeleteReview(ctx, bookingID); err != nil {
		return err
	}
	s.invalidateHotel(ctx, r.HotelID)
	return nil
}

// invalidateHotel drops the hotel view and the common review page variants.
func (s *ReviewService) invalidateHotel(ctx context.Context, hotelID int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, hotelKey(hotelID))
	for _, lim := range []int{50, 100, 200} {
		_ = s.cache.Del(ctx, reviewsKey(hotelID, lim, "-created_at"))
	}
}
