package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"jetstay/internal/adapters/observability"
	"jetstay/internal/domain"
)

// CancelBooking marks the requester's booking CANCELLED, which releases its
// units. Cancelling an already cancelled booking returns it unchanged.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, requesterID int64) (domain.BookingTransaction, error) {
	if err := validateRequester(requesterID); err != nil {
		return domain.BookingTransaction{}, err
	}
	bt, changed, err := s.cancel(ctx, bookingID, requesterID, "")
	if err != nil {
		return domain.BookingTransaction{}, err
	}
	if changed {
		s.afterCommit(ctx, &bt, "booking.cancelled")
	}
	return bt, nil
}

// cancel runs the cancellation protocol: lock the booking row, then its
// units in the same order bookers use, then flip the status. requesterID 0
// is the system actor. A non-empty onlyIf skips bookings whose status has
// moved on since they were selected.
func (s *BookingService) cancel(ctx context.Context, bookingID, requesterID int64, onlyIf domain.Status) (domain.BookingTransaction, bool, error) {
	start := time.Now()
	var (
		bt      domain.BookingTransaction
		changed bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.ReservationTx) error {
		var err error
		bt, err = tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if requesterID != 0 && bt.UserID != requesterID {
			return domain.ErrForbidden
		}
		switch {
		case bt.Status == domain.StatusCancelled:
			return nil
		case onlyIf != "" && bt.Status != onlyIf:
			return nil
		case bt.Status == domain.StatusCompleted:
			return domain.ErrConflict
		}

		refs := bt.UnitRefs()
		sortRefs(refs)
		for _, ref := range refs {
			if _, err := locate(ctx, tx, ref, 0); err != nil {
				return err
			}
		}
		if err := tx.UpdateStatus(ctx, bookingID, domain.StatusCancelled); err != nil {
			return err
		}
		bt.Status = domain.StatusCancelled
		changed = true
		return nil
	})
	if err != nil {
		err = classify("cancel booking", err)
		observability.ObserveBooking("cancel", outcomeOf(err), time.Since(start))
		return domain.BookingTransaction{}, false, err
	}
	if changed {
		observability.ObserveBooking("cancel", "cancelled", time.Since(start))
		log.Info().Int64("booking_id", bookingID).Int64("requester", requesterID).Msg("booking cancelled")
	}
	return bt, changed, nil
}

// ExpirePending cancels PENDING hotel bookings that check in within days of
// today, running at most workers cancellations at once. It returns how many
// bookings were cancelled.
func (s *BookingService) ExpirePending(ctx context.Context, days, workers, batch int) (int, error) {
	if workers <= 0 {
		workers = 1
	}
	cutoff := domain.Day(s.now()).AddDate(0, 0, days)
	ids, err := s.store.ListExpiringPending(ctx, cutoff, batch)
	if err != nil {
		return 0, classify("list expiring bookings", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg        sync.WaitGroup
		cancelled atomic.Int64
	)
	for _, id := range ids {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(bookingID int64) {
			defer wg.Done()
			defer sem.Release(1)

			bt, changed, err := s.cancel(ctx, bookingID, 0, domain.StatusPending)
			if err != nil {
				log.Warn().Err(err).Int64("booking_id", bookingID).Msg("expire pending booking failed")
				return
			}
			if changed {
				cancelled.Add(1)
				s.afterCommit(ctx, &bt, "booking.cancelled")
			}
		}(id)
	}
	wg.Wait()
	log.Info().Int("candidates", len(ids)).Int64("cancelled", cancelled.Load()).Time("cutoff", cutoff).Msg("pending bookings expired")
	return int(cancelled.Load()), ctx.Err()
}
