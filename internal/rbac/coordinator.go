package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/warden-app/warden/internal/platform/httpx"
)

var errBatchFailed = errors.New("rbac: batch mutation failed")

// Coordinator applies bulk attach and single detach operations to the
// many-to-many relations of the access-control graph.
//
// Attach guarantees an all-or-nothing existence pre-check: no relation row
// is written unless every counterpart id resolves. The mutation phase runs
// inside a single transaction, so an item failure rolls the whole batch
// back and is reported per item.
type Coordinator struct {
	store Store
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(store Store) *Coordinator {
	return &Coordinator{store: store}
}

// Attach links every counterpart id to the anchor. Already-linked pairs are
// absorbed silently and excluded from the added count.
func (c *Coordinator) Attach(ctx context.Context, rel Relation, anchorID int64, counterpartIDs []int64) (AttachResult, error) {
	if len(counterpartIDs) == 0 {
		return AttachResult{}, fmt.Errorf("%w: %s ids are required", httpx.ErrInvalidArgument, rel.CounterpartNoun)
	}
	ids := dedupeIDs(counterpartIDs)

	ok, err := c.store.AnchorExists(ctx, rel, anchorID)
	if err != nil {
		return AttachResult{}, err
	}
	if !ok {
		return AttachResult{}, fmt.Errorf("%w: %s %d", httpx.ErrNotFound, rel.AnchorNoun, anchorID)
	}

	existing, err := c.store.ExistingCounterparts(ctx, rel, ids)
	if err != nil {
		return AttachResult{}, err
	}
	if missing := missingIDs(ids, existing); len(missing) > 0 {
		return AttachResult{}, &MissingCounterpartsError{Noun: rel.CounterpartNoun, IDs: missing}
	}

	var (
		added    int
		failures []ItemFailure
	)
	err = c.store.WithTx(ctx, func(txCtx context.Context, tx TxStore) error {
		for _, id := range ids {
			created, err := tx.Attach(txCtx, rel, anchorID, id)
			if err != nil {
				failures = append(failures, ItemFailure{
					CounterpartID: id,
					Reason:        fmt.Sprintf("could not attach %s %d", rel.CounterpartNoun, id),
				})
				continue
			}
			if created {
				added++
			}
		}
		if len(failures) > 0 {
			return errBatchFailed
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errBatchFailed) {
			return AttachResult{}, &BatchError{Failures: failures}
		}
		return AttachResult{}, err
	}

	counterparts, err := c.store.CounterpartIDs(ctx, rel, anchorID)
	if err != nil {
		return AttachResult{}, err
	}
	return AttachResult{AnchorID: anchorID, Added: added, CounterpartIDs: counterparts}, nil
}

// Detach removes a single relation pair. Removing an absent pair is
// reported as NotFound, unlike attach, which absorbs duplicates.
func (c *Coordinator) Detach(ctx context.Context, rel Relation, anchorID, counterpartID int64) error {
	removed, err := c.store.Detach(ctx, rel, anchorID, counterpartID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s %d is not attached to %s %d",
			httpx.ErrNotFound, rel.CounterpartNoun, counterpartID, rel.AnchorNoun, anchorID)
	}
	return nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(requested, existing []int64) []int64 {
	present := make(map[int64]struct{}, len(existing))
	for _, id := range existing {
		present[id] = struct{}{}
	}
	var missing []int64
	for _, id := range requested {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
