package domain

type HotelView struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	City          *string        `json:"city,omitempty"`
	Country       *string        `json:"country,omitempty"`
	Rate          *float64       `json:"rate,omitempty"`
	NumberOfRates int            `json:"number_of_rates"`
	RoomTypes     []RoomTypeView `json:"room_types"`
}

type RoomTypeView struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Guests     int    `json:"guests"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// Availability is an advisory, unlocked reading.
type Availability struct {
	Unit      UnitRef `json:"-"`
	UnitID    int64   `json:"unit_id"`
	Capacity  int     `json:"capacity"`
	Committed int     `json:"committed"`
	Available int     `json:"available"`
}
