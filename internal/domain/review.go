package domain

import "time"

type Review struct {
	ID            int64     `json:"id"`
	HotelID       int64     `json:"hotel_id"`
	UserID        int64     `json:"user_id"`
	BookingID     int64     `json:"booking_id"`
	Staff         int       `json:"staff"`
	Comfort       int       `json:"comfort"`
	Facilities    int       `json:"facilities"`
	Cleanliness   int       `json:"cleanliness"`
	ValueForMoney int       `json:"value_for_money"`
	Location      int       `json:"location"`
	Rating        float64   `json:"rating"`
	Comment       *string   `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// OverallRate is the plain mean of the six sub-rates.
func (r Review) OverallRate() float64 {
	sum := r.Staff + r.Comfort + r.Facilities + r.Cleanliness + r.ValueForMoney + r.Location
	return float64(sum) / 6.0
}

type ReviewRequest struct {
	BookingID     int64   `json:"booking_id" validate:"required,gt=0"`
	Staff         int     `json:"staff" validate:"min=1,max=10"`
	Comfort       int     `json:"comfort" validate:"min=1,max=10"`
	Facilities    int     `json:"facilities" validate:"min=1,max=10"`
	Cleanliness   int     `json:"cleanliness" validate:"min=1,max=10"`
	ValueForMoney int     `json:"value_for_money" validate:"min=1,max=10"`
	Location      int     `json:"location" validate:"min=1,max=10"`
	Comment       *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
}
