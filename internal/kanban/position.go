package kanban

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"taskboard/api/internal/store"
)

// PositionIndex keeps items of a scope in a total order using integer
// positions. Every call must run inside the transaction that writes the item.
type PositionIndex struct{}

// Insert reserves a position for a new item and returns it. The caller
// inserts the item at the returned position in the same transaction.
func (PositionIndex) Insert(ctx context.Context, tx Tx, scope store.Scope, desired *int) (int, error) {
	if err := lockScope(ctx, tx, scope); err != nil {
		return 0, err
	}
	count, maxPosition, err := tx.ScopeStats(ctx, scope)
	if err != nil {
		return 0, err
	}
	if desired == nil {
		return maxPosition + 1, nil
	}
	k := clamp(*desired, 0, count)
	if err := tx.ShiftPositions(ctx, scope, k, 1, ""); err != nil {
		return 0, err
	}
	return k, nil
}

// Move re-homes itemID from one scope into another, or within one scope
// when from equals to. The current position is read after the scopes are
// locked. Moving an item onto its own position writes nothing.
func (p PositionIndex) Move(ctx context.Context, tx Tx, itemID string, from, to store.Scope, desired *int) (int, error) {
	if from.Equal(to) {
		return p.moveWithin(ctx, tx, itemID, from, desired)
	}

	if err := lockScopes(ctx, tx, from, to); err != nil {
		return 0, err
	}
	current, err := lockedPosition(ctx, tx, from, itemID)
	if err != nil {
		return 0, err
	}

	if err := tx.ShiftPositions(ctx, from, current+1, -1, itemID); err != nil {
		return 0, err
	}
	count, maxPosition, err := tx.ScopeStats(ctx, to)
	if err != nil {
		return 0, err
	}
	k := maxPosition + 1
	if desired != nil {
		k = clamp(*desired, 0, count)
		if err := tx.ShiftPositions(ctx, to, k, 1, itemID); err != nil {
			return 0, err
		}
	}
	if err := tx.PlaceItem(ctx, to, itemID, k); err != nil {
		return 0, err
	}
	return k, nil
}

func (PositionIndex) moveWithin(ctx context.Context, tx Tx, itemID string, scope store.Scope, desired *int) (int, error) {
	if err := lockScope(ctx, tx, scope); err != nil {
		return 0, err
	}
	current, err := lockedPosition(ctx, tx, scope, itemID)
	if err != nil {
		return 0, err
	}
	count, _, err := tx.ScopeStats(ctx, scope)
	if err != nil {
		return 0, err
	}
	k := count - 1
	if desired != nil {
		k = clamp(*desired, 0, count-1)
	}
	if k == current {
		return current, nil
	}
	if err := tx.ShiftPositions(ctx, scope, current+1, -1, itemID); err != nil {
		return 0, err
	}
	if err := tx.ShiftPositions(ctx, scope, k, 1, itemID); err != nil {
		return 0, err
	}
	if err := tx.PlaceItem(ctx, scope, itemID, k); err != nil {
		return 0, err
	}
	return k, nil
}

// Remove closes the gap left by itemID. It must run before the item row is
// deleted.
func (PositionIndex) Remove(ctx context.Context, tx Tx, scope store.Scope, itemID string) error {
	if err := lockScope(ctx, tx, scope); err != nil {
		return err
	}
	current, err := lockedPosition(ctx, tx, scope, itemID)
	if err != nil {
		return err
	}
	return tx.ShiftPositions(ctx, scope, current+1, -1, itemID)
}

// Drain appends itemIDs, in order, to the end of to. The source scope is
// left as is since its parent is about to be deleted.
func (PositionIndex) Drain(ctx context.Context, tx Tx, from, to store.Scope, itemIDs []string) error {
	if err := lockScopes(ctx, tx, from, to); err != nil {
		return err
	}
	_, maxPosition, err := tx.ScopeStats(ctx, to)
	if err != nil {
		return err
	}
	for i, id := range itemIDs {
		if err := tx.PlaceItem(ctx, to, id, maxPosition+1+i); err != nil {
			return err
		}
	}
	return nil
}

// lockScopes locks each distinct scope parent once, in key order.
func lockScopes(ctx context.Context, tx Tx, scopes ...store.Scope) error {
	sorted := append([]store.Scope(nil), scopes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key() < sorted[j].Key() })
	locked := map[string]bool{}
	for _, scope := range sorted {
		if locked[scope.Key()] {
			continue
		}
		if err := lockScope(ctx, tx, scope); err != nil {
			return err
		}
		locked[scope.Key()] = true
	}
	return nil
}

// lockedPosition reads itemID's position in a scope the caller has locked.
// An item that left the scope since it was resolved is a conflict.
func lockedPosition(ctx context.Context, tx Tx, scope store.Scope, itemID string) (int, error) {
	current, err := tx.ItemPosition(ctx, scope, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, Conflictf("%s changed while it was being moved, try again", scope)
	}
	return current, err
}

func lockScope(ctx context.Context, tx Tx, scope store.Scope) error {
	return classify(tx.LockScope(ctx, scope), scope.String())
}

func clamp(value, low, high int) int {
	if high < low {
		high = low
	}
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
