package mysql

// -----------------------------------------------------------------------------
// INVENTORY
// -----------------------------------------------------------------------------

const lockRoomTypeSQL = `
SELECT id, hotel_id, quantity, price_cents, name
FROM room_types
WHERE id = ?
FOR UPDATE
`

// The flight row is not locked; only the trip type is the contended unit.
const lockTripTypeSQL = `
SELECT t.id, t.flight_id, t.quantity, t.price_cents, t.name, f.departure_date
FROM trip_types t
JOIN flights f ON f.id = t.flight_id
WHERE t.id = ?
FOR UPDATE OF t
`

const getRoomTypeSQL = `
SELECT id, hotel_id, quantity, price_cents, name
FROM room_types
WHERE id = ?
`

const getTripTypeSQL = `
SELECT t.id, t.flight_id, t.quantity, t.price_cents, t.name, f.departure_date
FROM trip_types t
JOIN flights f ON f.id = t.flight_id
WHERE t.id = ?
`

// Half-open overlap: existing [check_in, check_out) meets requested [?, ?).
const committedRoomsSQL = `
SELECT COALESCE(SUM(rb.no_of_rooms), 0)
FROM room_bookings rb
JOIN booking_transactions bt ON bt.id = rb.booking_transaction_id
WHERE rb.room_type_id = ?
  AND bt.status <> 'CANCELLED'
  AND rb.check_in < ?
  AND rb.check_out > ?
`

const committedRoomsAllSQL = `
SELECT COALESCE(SUM(rb.no_of_rooms), 0)
FROM room_bookings rb
JOIN booking_transactions bt ON bt.id = rb.booking_transaction_id
WHERE rb.room_type_id = ?
  AND bt.status <> 'CANCELLED'
`

const committedTicketsSQL = `
SELECT COUNT(*)
FROM flight_tickets ft
JOIN booking_transactions bt ON bt.id = ft.booking_transaction_id
WHERE ft.trip_type_id = ?
  AND bt.status <> 'CANCELLED'
`

// -----------------------------------------------------------------------------
// BOOKINGS
// -----------------------------------------------------------------------------

const insertBookingSQL = `
INSERT INTO booking_transactions
  (reference, user_id, kind, owner_id, status, total_cents, guests, check_in, check_out, booking_date, paid)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const insertRoomBookingSQL = `
INSERT INTO room_bookings
  (booking_transaction_id, room_type_id, no_of_rooms, check_in, check_out, price_cents)
VALUES
  (?, ?, ?, ?, ?, ?)
`

const insertTicketSQL = `
INSERT INTO flight_tickets
  (booking_transaction_id, trip_type_id, price_cents)
VALUES
  (?, ?, ?)
`

const bookingColumns = `
  id, reference, user_id, kind, owner_id, status, total_cents, guests,
  check_in, check_out, booking_date, paid
`

const getBookingSQL = `SELECT` + bookingColumns + `FROM booking_transactions WHERE id = ?`

const lockBookingSQL = getBookingSQL + ` FOR UPDATE`

const roomReservationsSQL = `
SELECT id, room_type_id, no_of_rooms, check_in, check_out, price_cents
FROM room_bookings
WHERE booking_transaction_id = ?
ORDER BY id
`

const ticketReservationsSQL = `
SELECT id, trip_type_id, price_cents
FROM flight_tickets
WHERE booking_transaction_id = ?
ORDER BY id
`

const updateStatusSQL = `UPDATE booking_transactions SET status = ? WHERE id = ?`

// Flight bookings have no check-in; they sort by booking date instead.
const upcomingBookingsSQL = `SELECT` + bookingColumns + `
FROM booking_transactions
WHERE user_id = ?
  AND COALESCE(check_in, booking_date) >= ?
ORDER BY COALESCE(check_in, booking_date) ASC, id ASC
LIMIT ?
`

const pastBookingsSQL = `SELECT` + bookingColumns + `
FROM booking_transactions
WHERE user_id = ?
  AND COALESCE(check_in, booking_date) < ?
ORDER BY COALESCE(check_in, booking_date) DESC, id DESC
LIMIT ?
`

const expiringPendingSQL = `
SELECT id
FROM booking_transactions
WHERE status = 'PENDING'
  AND kind = 'HOTEL'
  AND check_in < ?
ORDER BY check_in, id
LIMIT ?
`

// -----------------------------------------------------------------------------
// HOTELS & REVIEWS
// -----------------------------------------------------------------------------

const getHotelSQL = `
SELECT id, name, city, country, rate, number_of_rates
FROM hotels
WHERE id = ?
`

const lockHotelSQL = `SELECT id FROM hotels WHERE id = ? FOR UPDATE`

const hotelRoomTypesSQL = `
SELECT id, name, guests, quantity, price_cents
FROM room_types
WHERE hotel_id = ?
ORDER BY id
`

const reviewColumns = `
  id, hotel_id, user_id, booking_transaction_id, staff, comfort, facilities,
  cleanliness, value_for_money, location, rating, comment, created_at
`

const listReviewsSQL = `SELECT` + reviewColumns + `
FROM hotel_reviews
WHERE hotel_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`

const getReviewSQL = `SELECT` + reviewColumns + `FROM hotel_reviews WHERE booking_transaction_id = ?`

const insertReviewSQL = `
INSERT INTO hotel_reviews
  (hotel_id, user_id, booking_transaction_id, staff, comfort, facilities,
   cleanliness, value_for_money, location, rating, comment)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const deleteReviewSQL = `DELETE FROM hotel_reviews WHERE booking_transaction_id = ?`

// Recomputed from the stored reviews so concurrent writers cannot drift
// the aggregate; callers hold the hotel row lock.
const refreshHotelRateSQL = `
UPDATE hotels h
JOIN (
  SELECT COUNT(*) AS n, AVG(rating) AS avg_rating
  FROM hotel_reviews
  WHERE hotel_id = ?
) agg
SET h.number_of_rates = agg.n,
    h.rate = agg.avg_rating
WHERE h.id = ?
`
