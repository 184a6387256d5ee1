package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/banjarejo/greensmart/internal/domain/models"
)

// MutationRequest carries the caller's intent to move stock against an
// inventory item. Ref is a client-generated handle for idempotent retry; one
// is assigned when absent.
type MutationRequest struct {
	ItemID        string
	Kind          models.MutationKind
	Quantity      int
	EvidencePhoto string
	Ref           string
}

func (r *MutationRequest) validate() error {
	if r.ItemID == "" {
		return &models.ValidationError{Field: "namaBarangId", Reason: "an inventory item is required"}
	}
	if r.Kind != models.MutationInflow && r.Kind != models.MutationOutflow {
		return &models.ValidationError{Field: "jenisMutasi", Reason: fmt.Sprintf("unknown mutation kind %q", r.Kind)}
	}
	if r.Quantity <= 0 {
		return &models.ValidationError{Field: "jumlah", Reason: "quantity must be positive"}
	}
	return nil
}

// RecordMutation snapshots the referenced item's unit price and name, builds
// the mutation record and the adjusted item up front, and commits both plus
// the audit log entry in a single transaction. A failure anywhere leaves the
// item and the mutation history untouched.
func (s *Synchronizer) RecordMutation(ctx context.Context, req MutationRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	if req.Ref == "" {
		req.Ref = uuid.NewString()
	}

	var id string
	err := s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		var item models.InventoryItem
		if err := s.store.FindByID(txCtx, s.identity.UserID, string(models.CollectionInventory), req.ItemID, &item); err != nil {
			return fmt.Errorf("resolve item %s: %w", req.ItemID, err)
		}

		mutation := s.buildMutation(req, &item)
		applyDelta(&item, mutation, 1)

		if err := s.store.Replace(txCtx, s.identity.UserID, string(models.CollectionInventory), req.ItemID, &item); err != nil {
			return err
		}

		var err error
		id, err = s.store.Insert(txCtx, s.identity.UserID, string(models.CollectionMutations), mutation)
		if err != nil {
			return err
		}

		description := fmt.Sprintf("added stock mutation (%s): %s", mutation.Kind, mutation.ItemName)
		return s.appendLog(txCtx, models.LogActionAdd, description)
	})
	if err != nil {
		return "", &models.WriteError{Collection: models.CollectionMutations, Op: "record", Err: err}
	}

	s.logger.Info("mutation recorded",
		zap.String("id", id),
		zap.String("item_id", req.ItemID),
		zap.String("kind", string(req.Kind)),
		zap.Int("quantity", req.Quantity))
	return id, nil
}

// UpdateMutation replaces an existing mutation. The stored mutation's effect
// on its item is reversed before the new delta is applied, inside the same
// transaction, so repeated edits never compound. If the originally referenced
// item has since been deleted the reversal is skipped; the orphaned history
// stays harmless.
func (s *Synchronizer) UpdateMutation(ctx context.Context, id string, req MutationRequest) error {
	if err := req.validate(); err != nil {
		return err
	}

	err := s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		var old models.Mutation
		if err := s.store.FindByID(txCtx, s.identity.UserID, string(models.CollectionMutations), id, &old); err != nil {
			return fmt.Errorf("resolve mutation %s: %w", id, err)
		}
		if req.Ref == "" {
			req.Ref = old.Ref
		}

		var target models.InventoryItem
		if err := s.store.FindByID(txCtx, s.identity.UserID, string(models.CollectionInventory), req.ItemID, &target); err != nil {
			return fmt.Errorf("resolve item %s: %w", req.ItemID, err)
		}

		if old.ItemID == req.ItemID {
			applyDelta(&target, &old, -1)
		} else {
			// The edit moved the mutation to a different item; reverse the
			// old one separately if it still exists.
			var previous models.InventoryItem
			err := s.store.FindByID(txCtx, s.identity.UserID, string(models.CollectionInventory), old.ItemID, &previous)
			switch {
			case err == nil:
				applyDelta(&previous, &old, -1)
				if err := s.store.Replace(txCtx, s.identity.UserID, string(models.CollectionInventory), old.ItemID, &previous); err != nil {
					return err
				}
			case errors.Is(err, models.ErrNotFound):
				s.logger.Warn("skipping reversal against deleted item",
					zap.String("mutation_id", id), zap.String("item_id", old.ItemID))
			default:
				return err
			}
		}

		replacement := s.buildMutation(req, &target)
		replacement.ID = id
		applyDelta(&target, replacement, 1)

		if err := s.store.Replace(txCtx, s.identity.UserID, string(models.CollectionInventory), req.ItemID, &target); err != nil {
			return err
		}
		if err := s.store.Replace(txCtx, s.identity.UserID, string(models.CollectionMutations), id, replacement); err != nil {
			return err
		}

		description := fmt.Sprintf("updated stock mutation (%s): %s", replacement.Kind, replacement.ItemName)
		return s.appendLog(txCtx, models.LogActionEdit, description)
	})
	if err != nil {
		return &models.WriteError{Collection: models.CollectionMutations, Op: "update", ID: id, Err: err}
	}

	s.logger.Info("mutation updated", zap.String("id", id), zap.String("item_id", req.ItemID))
	return nil
}

// DeleteMutation removes a mutation and reverses its effect on the referenced
// item, inside the same transaction, so the item lands back on its
// pre-mutation quantity and budget. If the item has since been deleted the
// reversal is skipped and only the history record goes away.
func (s *Synchronizer) DeleteMutation(ctx context.Context, id string) error {
	err := s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		var old models.Mutation
		if err := s.store.FindByID(txCtx, s.identity.UserID, string(models.CollectionMutations), id, &old); err != nil {
			return fmt.Errorf("resolve mutation %s: %w", id, err)
		}

		var item models.InventoryItem
		err := s.store.FindByID(txCtx, s.identity.UserID, string(models.CollectionInventory), old.ItemID, &item)
		switch {
		case err == nil:
			applyDelta(&item, &old, -1)
			if err := s.store.Replace(txCtx, s.identity.UserID, string(models.CollectionInventory), old.ItemID, &item); err != nil {
				return err
			}
		case errors.Is(err, models.ErrNotFound):
			s.logger.Warn("skipping reversal against deleted item",
				zap.String("mutation_id", id), zap.String("item_id", old.ItemID))
		default:
			return err
		}

		if err := s.store.Delete(txCtx, s.identity.UserID, string(models.CollectionMutations), id); err != nil {
			return err
		}

		description := fmt.Sprintf("deleted stock mutation (%s): %s", old.Kind, old.ItemName)
		return s.appendLog(txCtx, models.LogActionDelete, description)
	})
	if err != nil {
		return &models.WriteError{Collection: models.CollectionMutations, Op: "delete", ID: id, Err: err}
	}

	s.logger.Info("mutation deleted", zap.String("id", id))
	return nil
}

// buildMutation assembles the full candidate record with its write-time
// snapshots of the item's name and unit price.
func (s *Synchronizer) buildMutation(req MutationRequest, item *models.InventoryItem) *models.Mutation {
	return &models.Mutation{
		Ref:           req.Ref,
		ItemID:        req.ItemID,
		ItemName:      item.Name,
		Kind:          req.Kind,
		Quantity:      req.Quantity,
		UnitPrice:     item.UnitPrice,
		TotalBudget:   float64(req.Quantity) * item.UnitPrice,
		EvidencePhoto: req.EvidencePhoto,
		CreatedAt:     s.now(),
	}
}

// applyDelta adjusts the item's quantity and budget by the mutation's signed
// deltas. direction is 1 to apply and -1 to reverse. Quantity and budget are
// the only item fields a mutation write may touch.
func applyDelta(item *models.InventoryItem, m *models.Mutation, direction int) {
	item.Quantity += direction * m.QuantityDelta()
	item.TotalBudget += float64(direction) * m.BudgetDelta()
}
