package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"jetstay/internal/adapters/observability"
	"jetstay/internal/domain"
)

func entityName(k domain.UnitKind) string {
	if k == domain.KindTripType {
		return "trip type"
	}
	return "room type"
}

// locate takes the exclusive lock on ref for the rest of tx and checks that
// the unit belongs to ownerID. A unit of another hotel or flight is reported
// as not found so tenants cannot probe each other's inventory.
func locate(ctx context.Context, tx domain.ReservationTx, ref domain.UnitRef, ownerID int64) (domain.InventoryUnit, error) {
	start := time.Now()
	u, err := tx.LockInventory(ctx, ref)
	observability.ObserveLockWait(string(ref.Kind), time.Since(start))
	if err != nil {
		return domain.InventoryUnit{}, err
	}
	if ownerID != 0 && u.OwnerID != ownerID {
		return domain.InventoryUnit{}, &domain.NotFoundError{Entity: entityName(ref.Kind), ID: ref.ID}
	}
	return u, nil
}

// sortRefs orders refs so every transaction acquires unit locks in the
// same order.
func sortRefs(refs []domain.UnitRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind < refs[j].Kind
		}
		return refs[i].ID < refs[j].ID
	})
}

// mergeLines folds repeated room types into one line and sorts by room
// type id. A merged line above domain.MaxUnitsPerRequest is rejected.
func mergeLines(lines []domain.RoomLine) ([]domain.RoomLine, error) {
	byID := make(map[int64]int, len(lines))
	for _, l := range lines {
		cur := byID[l.RoomTypeID]
		if l.Rooms <= 0 || l.Rooms > domain.MaxUnitsPerRequest-cur {
			return nil, domain.ValidationErrors{{
				Field:   "lines",
				Message: fmt.Sprintf("rooms per room type must be between 1 and %d", domain.MaxUnitsPerRequest),
			}}
		}
		byID[l.RoomTypeID] = cur + l.Rooms
	}
	out := make([]domain.RoomLine, 0, len(byID))
	for id, n := range byID {
		out = append(out, domain.RoomLine{RoomTypeID: id, Rooms: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomTypeID < out[j].RoomTypeID })
	return out, nil
}
