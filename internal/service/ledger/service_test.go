package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banjarejo/greensmart/internal/domain/models"
	"github.com/banjarejo/greensmart/internal/repository/memory"
)

func newTestSynchronizer(t *testing.T) *Synchronizer {
	t.Helper()

	codes, err := NewCodeGenerator(1)
	require.NoError(t, err)

	identity := models.Identity{UserID: "admin", DisplayName: "Admin Banjarejo"}
	return New(memory.New(), identity, codes, nil)
}

func createItem(t *testing.T, s *Synchronizer, name string, quantity int, unitPrice float64) string {
	t.Helper()

	id, err := s.Create(context.Background(), models.CollectionInventory, &models.InventoryItem{
		Name:      name,
		Quantity:  quantity,
		Source:    "Hibah",
		UnitPrice: unitPrice,
		Category:  models.CategoryHorticulture,
	})
	require.NoError(t, err)
	return id
}

func logEntries(t *testing.T, s *Synchronizer) []models.LogEntry {
	t.Helper()

	entries, err := List[models.LogEntry](context.Background(), s, models.CollectionLog)
	require.NoError(t, err)
	return entries
}

func TestCreateInventoryItem_DerivesBudgetAndCode(t *testing.T) {
	s := newTestSynchronizer(t)
	ctx := context.Background()

	id := createItem(t, s, "Pupuk", 10, 5000)

	item, err := Get[models.InventoryItem](ctx, s, models.CollectionInventory, id)
	require.NoError(t, err)

	assert.Equal(t, 50000.0, item.TotalBudget)
	assert.True(t, strings.HasPrefix(item.Code, "INV-"), "code %q should carry the INV- prefix", item.Code)
	assert.False(t, item.CreatedAt.IsZero())

	entries := logEntries(t, s)
	require.Len(t, entries, 1)
	assert.Equal(t, models.LogActionAdd, entries[0].Action)
	assert.Contains(t, entries[0].Description, "Pupuk")
	assert.Equal(t, "Admin Banjarejo", entries[0].Actor)
}

func TestRecordMutation_OutflowScenario(t *testing.T) {
	s := newTestSynchronizer(t)
	ctx := context.Background()

	itemID := createItem(t, s, "Pupuk", 10, 5000)

	mutID, err := s.RecordMutation(ctx, MutationRequest{
		ItemID:   itemID,
		Kind:     models.MutationOutflow,
		Quantity: 3,
	})
	require.NoError(t, err)

	item, err := Get[models.InventoryItem](ctx, s, models.CollectionInventory, itemID)
	require.NoError(t, err)
	assert.Equal(t, 7, item.Quantity)
	assert.Equal(t, 35000.0, item.TotalBudget)
	assert.Equal(t, item.UnitPrice*float64(item.Quantity), item.TotalBudget)

	mut, err := Get[models.Mutation](ctx, s, models.CollectionMutations, mutID)
	require.NoError(t, err)
	assert.Equal(t, "Pupuk", mut.ItemName)
	assert.Equal(t, 5000.0, mut.UnitPrice)
	assert.Equal(t, 15000.0, mut.TotalBudget)
	assert.NotEmpty(t, mut.Ref)

	entries := logEntries(t, s)
	require.Len(t, entries, 2)
	last := entries[len(entries)-1]
	assert.Equal(t, models.LogActionAdd, last.Action)
	assert.Contains(t, last.Description, "Pupuk")
	assert.Contains(t, last.Description, string(models.MutationOutflow))
}

func TestRecordMutation_InflowArithmetic(t *testing.T) {
	s := newTestSynchronizer(t)
	ctx := context.Background()

	itemID := createItem(t, s, "Bibit Lele", 20, 1500)

	_, err := s.RecordMutation(ctx, MutationRequest{
		ItemID:   itemID,
		Kind:     models.MutationInflow,
		Quantity: 5,
	})
	require.NoError(t, err)

	item, err := Get[models.InventoryItem](ctx, s, models.CollectionInventory, itemID)
	require.NoError(t, err)
	assert.Equal(t, 25, item.Quantity)
	assert.Equal(t, 30000.0+5*1500.0, item.TotalBudget)
}

func TestRecordMutation_SnapshotInvariantToLaterItemEdits(t *testing.T) {
	s := newTestSynchronizer(t)
	ctx := context.Background()

	itemID := createItem(t, s, "Jagung", 10, 2000)
	mutID, err := s.RecordMutation(ctx, MutationRequest{
		ItemID:   itemID,
		Kind:     models.MutationInflow,
		Quantity: 2,
	})
	require.NoError(t, err)

	item, err := Get[models.InventoryItem](ctx, s, models.CollectionInventory, itemID)
	require.NoError(t, err)
	item.Name = "Jagung Manis"
	item.UnitPrice = 9999
	require.NoError(t, s.Update(ctx, models.CollectionInventory, itemID, item))

	mut, err := Get[models.Mutation](ctx, s, models.CollectionMutations, mutID)
	require.NoError(t, err)
	assert.Equal(t, "Jagung", mut.ItemName)
	assert.Equal(t, 2000.0, mut.UnitPrice)
}

func TestRecordMutation_MissingItemLeavesNothingBehind(t *testing.T) {
	s := newTestSynchronizer(t)
	ctx := context.Background()

	_, err := s.RecordMutation(ctx, MutationRequest{
		ItemID:   "nope",
		Kind:     models.MutationOutflow,
		Quantity: 1,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	mutations, err := List[models.Mutation](ctx, s, models.CollectionMutations)
	require.NoError(t, err)
	assert.Empty(t, mutations)
	assert.Empty(t, logEntries(t, s))
}

func TestRecordMutation_Validation(t *testing.T) {
	s := newTestSynchronizer(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  MutationRequest
	}{
		{"missing item", MutationRequest{Kind: models.MutationInflow, Quantity: 1}},
		{"unknown kind", MutationRequest{ItemID: "x", Kind: "Transfer", Quantity: 1}},
		{"zero quantity", MutationRequest{ItemID: "x", Kind: models.MutationInflow, Quantity: 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.RecordMutation(ctx, tc.req)
			var validationErr *models.ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestUpdateMutation_ReversesOldDeltaBeforeApplyingNew(t *testing.T) {
	s := newTestSynchronizer(t)
	ctx := context.Background()

	itemID := createItem(t, s, "Pakan", 10, 1000)
	mutID, err := s.RecordMutation(ctx, MutationRequest{
		ItemID:   itemID,
		Kind:     models.MutationOutflow,
		Quantity: 3,
	})
	require.NoError(t, err)

	// Editing the outflow from 3 to 5 must land on 10-5, not on 7-5.
	require.NoError(t, s.UpdateMutation(ctx, mutID, MutationRequest{
		ItemID:   itemID,
		Kind:     models.MutationOutflow,
		Quantity: 5,
	}))

	item, err := Get[models.InventoryItem](ctx, s, models.CollectionInventory, itemID)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)
	assert.Equal(t, 5000.0, item.TotalBudget)

	mut, err := Get[models.Mutation](ctx, s, models.CollectionMutations, mutID)
	require.NoError(t, err)
	assert.Equal(t, 5, mut.Quantity)
}

func TestUpdateMutation_MovedToAnotherItem(t *testing.T) {
	s := newTestSynchronizer(t)
	ctx := context.Background()

	firstID := createItem(t, s, "Benih Cabai", 10, 100)
	secondID := createItem(t, s, "Benih Tomat", 10, 200)

	mutID, err := s.RecordMutation(ctx, MutationRequest{
		ItemID:   firstID,
		Kind:     models.MutationOutflow,
		Quantity: 4,
	})
	require.NoError(t, err)

	require.NoError(t, s.UpdateMutation(ctx, mutID, MutationRequest{
		ItemID:   secondID,
		Kind:     models.MutationOutflow,
		Quantity: 4,
	}))

	first, err := Get[models.InventoryItem](ctx, s, models.CollectionInventory, firstID)
	require.NoError(t, err)
	assert.Equal(t, 10, first.Quantity)
	assert.Equal(t, 1000.0, first.TotalBudget)

	second, err := Get[models.InventoryItem](ctx, s, models.CollectionInventory, secondID)
	require.NoError(t, err)
	assert.Equal(t, 6, second.Quantity)
	assert.Equal(t, 200.0, second.UnitPrice)

	mut, err := Get[models.Mutation](ctx, s, models.CollectionMutations, mutID)
	require.NoError(t, err)
	assert.Equal(t, secondID, mut.ItemID)
	assert.Equal(t, "Benih Tomat", mut.ItemName)
	assert.Equal(t, 200.0, mut.UnitPrice)
}

func TestDeleteItem_DoesNotCascade(t *testing.T) {
	s := newTestSynchronizer(t)
	ctx := context.Background()

	itemID := createItem(t, s, "Ayam Kampung", 30, 40000)
	mutID, err := s.RecordMutation(ctx, MutationRequest{
		ItemID:   itemID,
		Kind:     models.MutationOutflow,
		Quantity: 5,
	})
	require.NoError(t, err)

	progressID, err := s.Create(ctx, models.CollectionProgress, &models.ProgressEntry{
		ItemID:           itemID,
		Process:          "Pembesaran",
		EstimatedHarvest: "2026-11-01",
	})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, models.CollectionInventory, itemID))

	mut, err := Get[models.Mutation](ctx, s, models.CollectionMutations, mutID)
	require.NoError(t, err)
	assert.Equal(t, "Ayam Kampung", mut.ItemName)

	progress, err := Get[models.ProgressEntry](ctx, s, models.CollectionProgress, progressID)
	require.NoError(t, err)
	assert.Equal(t, itemID, progress.ItemID)
}

func TestEveryWriteAppendsExactlyOneLogEntry(t *testing.T) {
	s := newTestSynchronizer(t)
	ctx := context.Background()

	itemID := createItem(t, s, "Bibit Nila", 100, 500)

	item, err := Get[models.InventoryItem](ctx, s, models.CollectionInventory, itemID)
	require.NoError(t, err)
	item.Quantity = 120
	require.NoError(t, s.Update(ctx, models.CollectionInventory, itemID, item))

	mutID, err := s.RecordMutation(ctx, MutationRequest{
		ItemID:   itemID,
		Kind:     models.MutationInflow,
		Quantity: 10,
	})
	require.NoError(t, err)
	require.NoError(t, s.UpdateMutation(ctx, mutID, MutationRequest{
		ItemID:   itemID,
		Kind:     models.MutationInflow,
		Quantity: 12,
	}))
	require.NoError(t, s.DeleteMutation(ctx, mutID))

	reportID, err := s.Create(ctx, models.CollectionActivities, &models.ActivityReport{
		Name:      "Panen Raya",
		Date:      "2026-08-01",
		Category:  "Sosial",
		Recipient: "Warga Banjarejo",
	})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, models.CollectionActivities, reportID))

	entries := logEntries(t, s)
	assert.Len(t, entries, 7)

	actions := map[models.LogAction]int{}
	for _, entry := range entries {
		actions[entry.Action]++
		assert.NotEmpty(t, entry.Description)
	}
	assert.Equal(t, 3, actions[models.LogActionAdd])
	assert.Equal(t, 2, actions[models.LogActionEdit])
	assert.Equal(t, 2, actions[models.LogActionDelete])
}

func TestPartnershipEndDateDerivedAtWriteTime(t *testing.T) {
	s := newTestSynchronizer(t)
	ctx := context.Background()

	id, err := s.Create(ctx, models.CollectionPartnerships, &models.Partnership{
		PartnerName:    "CV Tani Makmur",
		Kind:           "Pemasok bibit",
		StartDate:      "2024-01-15",
		ContractMonths: 6,
	})
	require.NoError(t, err)

	record, err := Get[models.Partnership](ctx, s, models.CollectionPartnerships, id)
	require.NoError(t, err)
	assert.Equal(t, "2024-07-15", record.EndDate)
}

func TestInventoryCodeImmutableOnUpdate(t *testing.T) {
	s := newTestSynchronizer(t)
	ctx := context.Background()

	itemID := createItem(t, s, "Cangkul", 5, 75000)
	original, err := Get[models.InventoryItem](ctx, s, models.CollectionInventory, itemID)
	require.NoError(t, err)

	edited := *original
	edited.Code = "INV-forged"
	edited.Quantity = 6
	require.NoError(t, s.Update(ctx, models.CollectionInventory, itemID, &edited))

	stored, err := Get[models.InventoryItem](ctx, s, models.CollectionInventory, itemID)
	require.NoError(t, err)
	assert.Equal(t, original.Code, stored.Code)
	assert.Equal(t, 6*75000.0, stored.TotalBudget)
}

func TestGenericPathRejectsLogAndMutationWrites(t *testing.T) {
	s := newTestSynchronizer(t)
	ctx := context.Background()

	var validationErr *models.ValidationError

	_, err := s.Create(ctx, models.CollectionLog, &models.LogEntry{Description: "forged"})
	assert.ErrorAs(t, err, &validationErr)

	_, err = s.Create(ctx, models.CollectionMutations, &models.Mutation{ItemID: "x", Quantity: 1})
	assert.ErrorAs(t, err, &validationErr)

	err = s.Delete(ctx, models.CollectionLog, "some-id")
	assert.ErrorAs(t, err, &validationErr)

	err = s.Delete(ctx, models.CollectionMutations, "some-id")
	assert.ErrorAs(t, err, &validationErr)
}

func TestProgressEntrySnapshotsItemName(t *testing.T) {
	s := newTestSynchronizer(t)
	ctx := context.Background()

	itemID := createItem(t, s, "Selada", 200, 300)

	id, err := s.Create(ctx, models.CollectionProgress, &models.ProgressEntry{
		ItemID:           itemID,
		Process:          "Semai",
		EstimatedHarvest: "2026-10-20",
	})
	require.NoError(t, err)

	entry, err := Get[models.ProgressEntry](ctx, s, models.CollectionProgress, id)
	require.NoError(t, err)
	assert.Equal(t, "Selada", entry.ItemName)
}

func waitForSnapshot[T any](t *testing.T, ch <-chan Snapshot[T], ok func([]T) bool) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, open := <-ch:
			require.True(t, open, "snapshot channel closed early")
			require.NoError(t, snap.Err)
			if ok(snap.Records) {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func waitForClose[T any](t *testing.T, ch <-chan Snapshot[T]) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-ch:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for channel close")
		}
	}
}

func TestSubscribe_DeliversFullSnapshots(t *testing.T) {
	s := newTestSynchronizer(t)
	ctx := context.Background()

	snapshots, cancel, err := Subscribe[models.InventoryItem](ctx, s, models.CollectionInventory)
	require.NoError(t, err)
	defer cancel()

	waitForSnapshot(t, snapshots, func(records []models.InventoryItem) bool {
		return len(records) == 0
	})

	createItem(t, s, "Terong", 15, 800)

	waitForSnapshot(t, snapshots, func(records []models.InventoryItem) bool {
		return len(records) == 1 && records[0].Name == "Terong"
	})

	cancel()
	waitForClose(t, snapshots)
}

func TestClose_TearsDownEverySubscription(t *testing.T) {
	s := newTestSynchronizer(t)
	ctx := context.Background()

	var channels []<-chan Snapshot[models.LogEntry]
	for i := 0; i < 3; i++ {
		snapshots, _, err := Subscribe[models.LogEntry](ctx, s, models.CollectionLog)
		require.NoError(t, err)
		channels = append(channels, snapshots)
	}

	s.Close()

	for _, ch := range channels {
		waitForClose(t, ch)
	}

	_, _, err := Subscribe[models.LogEntry](ctx, s, models.CollectionLog)
	var subErr *models.SubscriptionError
	assert.ErrorAs(t, err, &subErr)
}

func TestDeleteMutation_ReversesDelta(t *testing.T) {
	s := newTestSynchronizer(t)
	ctx := context.Background()

	itemID := createItem(t, s, "Pupuk", 10, 5000)
	mutID, err := s.RecordMutation(ctx, MutationRequest{
		ItemID:   itemID,
		Kind:     models.MutationOutflow,
		Quantity: 3,
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteMutation(ctx, mutID))

	item, err := Get[models.InventoryItem](ctx, s, models.CollectionInventory, itemID)
	require.NoError(t, err)
	assert.Equal(t, 10, item.Quantity)
	assert.Equal(t, 50000.0, item.TotalBudget)

	_, err = Get[models.Mutation](ctx, s, models.CollectionMutations, mutID)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	entries := logEntries(t, s)
	require.Len(t, entries, 3)
	last := entries[len(entries)-1]
	assert.Equal(t, models.LogActionDelete, last.Action)
	assert.Contains(t, last.Description, "Pupuk")
}

func TestDeleteMutation_SkipsReversalWhenItemGone(t *testing.T) {
	s := newTestSynchronizer(t)
	ctx := context.Background()

	itemID := createItem(t, s, "Benih", 10, 100)
	mutID, err := s.RecordMutation(ctx, MutationRequest{
		ItemID:   itemID,
		Kind:     models.MutationOutflow,
		Quantity: 2,
	})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, models.CollectionInventory, itemID))
	require.NoError(t, s.DeleteMutation(ctx, mutID))

	mutations, err := List[models.Mutation](ctx, s, models.CollectionMutations)
	require.NoError(t, err)
	assert.Empty(t, mutations)
}

func TestDeleteMutation_MissingMutation(t *testing.T) {
	s := newTestSynchronizer(t)

	err := s.DeleteMutation(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.Empty(t, logEntries(t, s))
}

// txTrackingStore records whether inventory lookups happen inside an open
// transaction.
type txTrackingStore struct {
	*memory.Store
	inTx       bool
	lookupInTx bool
}

func (s *txTrackingStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.inTx = true
	defer func() { s.inTx = false }()
	return s.Store.WithTransaction(ctx, fn)
}

func (s *txTrackingStore) FindByID(ctx context.Context, owner, collection, id string, out any) error {
	if collection == string(models.CollectionInventory) && s.inTx {
		s.lookupInTx = true
	}
	return s.Store.FindByID(ctx, owner, collection, id, out)
}

func TestUpdate_CodeLookupRunsInsideTransaction(t *testing.T) {
	codes, err := NewCodeGenerator(1)
	require.NoError(t, err)

	store := &txTrackingStore{Store: memory.New()}
	s := New(store, models.Identity{UserID: "admin", DisplayName: "Admin Banjarejo"}, codes, nil)
	ctx := context.Background()

	itemID := createItem(t, s, "Cangkul", 5, 75000)
	store.lookupInTx = false

	item, err := Get[models.InventoryItem](ctx, s, models.CollectionInventory, itemID)
	require.NoError(t, err)
	item.Quantity = 6
	require.NoError(t, s.Update(ctx, models.CollectionInventory, itemID, item))

	assert.True(t, store.lookupInTx, "code-preserving lookup must share the write's transaction")
}

// flakyStore breaks collection reads on demand to exercise mid-stream
// subscription failures.
type flakyStore struct {
	*memory.Store
	mu   sync.Mutex
	fail bool
}

func (f *flakyStore) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *flakyStore) FindAll(ctx context.Context, owner, collection string, out any) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail && collection == string(models.CollectionInventory) {
		return errors.New("store offline")
	}
	return f.Store.FindAll(ctx, owner, collection, out)
}

func TestSubscribe_SurfacesMidStreamFailure(t *testing.T) {
	codes, err := NewCodeGenerator(1)
	require.NoError(t, err)

	store := &flakyStore{Store: memory.New()}
	s := New(store, models.Identity{UserID: "admin", DisplayName: "Admin Banjarejo"}, codes, nil)
	ctx := context.Background()

	snapshots, cancel, err := Subscribe[models.InventoryItem](ctx, s, models.CollectionInventory)
	require.NoError(t, err)
	defer cancel()

	waitForSnapshot(t, snapshots, func(records []models.InventoryItem) bool {
		return len(records) == 0
	})

	store.setFail(true)
	_, err = store.Store.Insert(ctx, "admin", string(models.CollectionInventory), &models.InventoryItem{Name: "Terong"})
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, open := <-snapshots:
			require.True(t, open, "channel closed without a terminal error")
			if snap.Err == nil {
				continue
			}
			var subErr *models.SubscriptionError
			assert.ErrorAs(t, snap.Err, &subErr)
			waitForClose(t, snapshots)
			return
		case <-deadline:
			t.Fatal("timed out waiting for the terminal error")
		}
	}
}

// failingStore rejects mutation inserts so the surrounding transaction must
// roll back.
type failingStore struct {
	*memory.Store
}

func (f *failingStore) Insert(ctx context.Context, owner, collection string, doc any) (string, error) {
	if collection == string(models.CollectionMutations) {
		return "", errors.New("simulated store rejection")
	}
	return f.Store.Insert(ctx, owner, collection, doc)
}

func TestRecordMutation_RollsBackItemAdjustmentOnFailure(t *testing.T) {
	codes, err := NewCodeGenerator(1)
	require.NoError(t, err)

	store := &failingStore{Store: memory.New()}
	s := New(store, models.Identity{UserID: "admin", DisplayName: "Admin Banjarejo"}, codes, nil)
	ctx := context.Background()

	itemID := createItem(t, s, "Pupuk", 10, 5000)

	_, err = s.RecordMutation(ctx, MutationRequest{
		ItemID:   itemID,
		Kind:     models.MutationOutflow,
		Quantity: 3,
	})
	require.Error(t, err)

	var writeErr *models.WriteError
	assert.ErrorAs(t, err, &writeErr)

	item, err := Get[models.InventoryItem](ctx, s, models.CollectionInventory, itemID)
	require.NoError(t, err)
	assert.Equal(t, 10, item.Quantity)
	assert.Equal(t, 50000.0, item.TotalBudget)
}
