package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/banjarejo/greensmart/internal/domain/models"
	"github.com/banjarejo/greensmart/internal/repository"
)

// Synchronizer keeps the six record collections of one identity consistent
// with the authoritative store. It owns every live subscription for that
// identity and applies the inventory-consistency rule on mutation writes.
// A new synchronizer is built per identity; Close tears the whole thing down,
// which is the only lifecycle boundary in the system.
type Synchronizer struct {
	store    repository.Store
	identity models.Identity
	codes    *CodeGenerator
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

// New wires a synchronizer for the given identity. The store handle and
// identity are explicit; nothing is ambient.
func New(store repository.Store, identity models.Identity, codes *CodeGenerator, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		store:    store,
		identity: identity,
		codes:    codes,
		logger:   logger,
		now:      time.Now,
		subs:     make(map[*subscription]struct{}),
	}
}

// Identity returns the identity this synchronizer is scoped to.
func (s *Synchronizer) Identity() models.Identity { return s.identity }

// Create writes a new record plus exactly one audit log entry, committed
// together. Derived fields are computed on the candidate record before any
// store call. Mutations must go through RecordMutation; log entries are
// append-only and written only as a side effect of other operations.
func (s *Synchronizer) Create(ctx context.Context, coll models.Collection, rec models.Record) (string, error) {
	if err := s.checkWritable(coll, rec); err != nil {
		return "", err
	}
	if err := s.prepare(ctx, coll, rec); err != nil {
		return "", err
	}
	rec.Stamp(s.now())

	var id string
	err := s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		id, err = s.store.Insert(txCtx, s.identity.UserID, string(coll), rec)
		if err != nil {
			return err
		}
		return s.appendLog(txCtx, models.LogActionAdd, s.describe("added", coll, rec.DisplayName()))
	})
	if err != nil {
		return "", &models.WriteError{Collection: coll, Op: "create", Err: err}
	}

	s.logger.Info("record created",
		zap.String("collection", string(coll)), zap.String("id", id))
	return id, nil
}

// Update overwrites the full document with the given id; the caller supplies
// the complete merged record. The inventory code is immutable and carried
// over from the stored record regardless of what the caller sent; the lookup
// runs inside the same transaction as the write so a concurrent edit cannot
// slip between them.
func (s *Synchronizer) Update(ctx context.Context, coll models.Collection, id string, rec models.Record) error {
	if err := s.checkWritable(coll, rec); err != nil {
		return err
	}

	err := s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		if item, ok := rec.(*models.InventoryItem); ok {
			var existing models.InventoryItem
			if err := s.store.FindByID(txCtx, s.identity.UserID, string(coll), id, &existing); err != nil {
				return err
			}
			item.Code = existing.Code
		}

		if err := s.prepare(txCtx, coll, rec); err != nil {
			return err
		}
		rec.Stamp(s.now())

		if err := s.store.Replace(txCtx, s.identity.UserID, string(coll), id, rec); err != nil {
			return err
		}
		return s.appendLog(txCtx, models.LogActionEdit, s.describe("updated", coll, rec.DisplayName()))
	})
	if err != nil {
		return &models.WriteError{Collection: coll, Op: "update", ID: id, Err: err}
	}

	s.logger.Info("record updated",
		zap.String("collection", string(coll)), zap.String("id", id))
	return nil
}

// Delete removes the record and appends one audit log entry naming it.
// Deleting an inventory item does not cascade to its historical mutations or
// progress entries; those keep their write-time snapshots. Stock mutations
// must go through DeleteMutation, which also reverses their effect on the
// item; log entries are append-only.
func (s *Synchronizer) Delete(ctx context.Context, coll models.Collection, id string) error {
	if !coll.Valid() {
		return &models.ValidationError{Field: "collection", Reason: fmt.Sprintf("unknown collection %q", coll)}
	}
	switch coll {
	case models.CollectionLog:
		return &models.ValidationError{Field: "collection", Reason: "log entries are append-only"}
	case models.CollectionMutations:
		return &models.ValidationError{Field: "collection", Reason: "stock mutations must be deleted through the mutation endpoint"}
	}

	rec, err := newRecord(coll)
	if err != nil {
		return err
	}

	err = s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.store.FindByID(txCtx, s.identity.UserID, string(coll), id, rec); err != nil {
			return err
		}
		if err := s.store.Delete(txCtx, s.identity.UserID, string(coll), id); err != nil {
			return err
		}
		return s.appendLog(txCtx, models.LogActionDelete, s.describe("deleted", coll, rec.DisplayName()))
	})
	if err != nil {
		return &models.WriteError{Collection: coll, Op: "delete", ID: id, Err: err}
	}

	s.logger.Info("record deleted",
		zap.String("collection", string(coll)), zap.String("id", id))
	return nil
}

// List reads the full record set of one collection.
func List[T any](ctx context.Context, s *Synchronizer, coll models.Collection) ([]T, error) {
	var out []T
	if err := s.store.FindAll(ctx, s.identity.UserID, string(coll), &out); err != nil {
		return nil, fmt.Errorf("list %s: %w", coll, err)
	}
	return out, nil
}

// Get reads one record by id.
func Get[T any](ctx context.Context, s *Synchronizer, coll models.Collection, id string) (*T, error) {
	var out T
	if err := s.store.FindByID(ctx, s.identity.UserID, string(coll), id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Close cancels every live subscription held by this synchronizer. It is
// called when the identity logs out or changes so no stale listener keeps
// running against the wrong namespace.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	s.logger.Info("synchronizer closed", zap.String("user", s.identity.UserID))
}

// checkWritable rejects writes that must not go through the generic path.
func (s *Synchronizer) checkWritable(coll models.Collection, rec models.Record) error {
	if !coll.Valid() {
		return &models.ValidationError{Field: "collection", Reason: fmt.Sprintf("unknown collection %q", coll)}
	}
	switch coll {
	case models.CollectionLog:
		return &models.ValidationError{Field: "collection", Reason: "log entries are append-only"}
	case models.CollectionMutations:
		if _, ok := rec.(*models.Mutation); ok {
			return &models.ValidationError{Field: "collection", Reason: "stock mutations must be recorded through the mutation endpoint"}
		}
	}
	return nil
}

// prepare computes derived fields and write-time snapshots on the candidate
// record so the document handed to the store is already consistent.
func (s *Synchronizer) prepare(ctx context.Context, coll models.Collection, rec models.Record) error {
	switch r := rec.(type) {
	case *models.InventoryItem:
		if r.Name == "" {
			return &models.ValidationError{Field: "namaBarang", Reason: "name is required"}
		}
		if r.Code == "" {
			r.Code = s.codes.ItemCode()
		}
		r.Recalculate()
	case *models.ProgressEntry:
		if r.ItemID == "" {
			return &models.ValidationError{Field: "namaBarangId", Reason: "an inventory item is required"}
		}
		var item models.InventoryItem
		if err := s.store.FindByID(ctx, s.identity.UserID, string(models.CollectionInventory), r.ItemID, &item); err != nil {
			return &models.WriteError{Collection: coll, Op: "prepare", Err: fmt.Errorf("resolve item %s: %w", r.ItemID, err)}
		}
		r.ItemName = item.Name
	case *models.ActivityReport:
		if r.Name == "" {
			return &models.ValidationError{Field: "namaKegiatan", Reason: "name is required"}
		}
	case *models.Partnership:
		if r.PartnerName == "" {
			return &models.ValidationError{Field: "namaPihak3", Reason: "partner name is required"}
		}
		if err := r.DeriveEndDate(); err != nil {
			return &models.ValidationError{Field: "tanggalMulai", Reason: err.Error()}
		}
	}
	return nil
}

// appendLog writes the single audit trail entry for a mutating operation.
func (s *Synchronizer) appendLog(ctx context.Context, action models.LogAction, description string) error {
	entry := &models.LogEntry{
		Action:      action,
		Actor:       s.identity.DisplayName,
		Description: description,
		CreatedAt:   s.now(),
	}
	if _, err := s.store.Insert(ctx, s.identity.UserID, string(models.CollectionLog), entry); err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

func (s *Synchronizer) describe(verb string, coll models.Collection, name string) string {
	return fmt.Sprintf("%s %s: %s", verb, collectionNoun(coll), name)
}

func collectionNoun(coll models.Collection) string {
	switch coll {
	case models.CollectionInventory:
		return "inventory item"
	case models.CollectionMutations:
		return "stock mutation"
	case models.CollectionProgress:
		return "progress entry"
	case models.CollectionActivities:
		return "activity report"
	case models.CollectionPartnerships:
		return "partnership"
	case models.CollectionLog:
		return "log entry"
	}
	return string(coll)
}

func newRecord(coll models.Collection) (models.Record, error) {
	switch coll {
	case models.CollectionInventory:
		return &models.InventoryItem{}, nil
	case models.CollectionMutations:
		return &models.Mutation{}, nil
	case models.CollectionProgress:
		return &models.ProgressEntry{}, nil
	case models.CollectionActivities:
		return &models.ActivityReport{}, nil
	case models.CollectionPartnerships:
		return &models.Partnership{}, nil
	case models.CollectionLog:
		return &models.LogEntry{}, nil
	}
	return nil, &models.ValidationError{Field: "collection", Reason: fmt.Sprintf("unknown collection %q", coll)}
}
