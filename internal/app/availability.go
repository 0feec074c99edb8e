package app

import (
	"context"

	"jetstay/internal/domain"
)

// committedReader is satisfied by both domain.ReservationTx (locked path)
// and domain.ReservationStore (advisory reads).
type committedReader interface {
	CommittedUnits(ctx context.Context, ref domain.UnitRef, scope domain.Scope) (int, error)
}

// availableUnits returns committed usage and what is left of u's capacity
// for scope. On the booking path r must be the tx holding u's lock.
func availableUnits(ctx context.Context, r committedReader, u domain.InventoryUnit, scope domain.Scope) (committed, available int, err error) {
	committed, err = r.CommittedUnits(ctx, u.Ref(), scope)
	if err != nil {
		return 0, 0, err
	}
	return committed, domain.AvailableUnits(u.Capacity, committed), nil
}

// reserve checks that requested units fit into u for scope.
func reserve(ctx context.Context, tx domain.ReservationTx, u domain.InventoryUnit, scope domain.Scope, requested int) error {
	committed, _, err := availableUnits(ctx, tx, u, scope)
	if err != nil {
		return err
	}
	return domain.CheckCapacity(u, committed, requested)
}
