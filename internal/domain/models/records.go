package models

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for user-entered dates (HTML date inputs).
const DateLayout = "2006-01-02"

// Collection identifies one of the six per-user record collections. The wire
// names are kept from the original deployment so existing documents remain
// addressable.
type Collection string

const (
	CollectionInventory    Collection = "inventaris"
	CollectionMutations    Collection = "mutasi"
	CollectionProgress     Collection = "progres"
	CollectionActivities   Collection = "kegiatan"
	CollectionPartnerships Collection = "kerjaSama"
	CollectionLog          Collection = "log"
)

// Collections lists every collection managed by the synchronizer.
func Collections() []Collection {
	return []Collection{
		CollectionInventory,
		CollectionMutations,
		CollectionProgress,
		CollectionActivities,
		CollectionPartnerships,
		CollectionLog,
	}
}

// Valid reports whether c names a known collection.
func (c Collection) Valid() bool {
	switch c {
	case CollectionInventory, CollectionMutations, CollectionProgress,
		CollectionActivities, CollectionPartnerships, CollectionLog:
		return true
	}
	return false
}

// ItemCategory classifies inventory items.
type ItemCategory string

const (
	CategoryLivestock    ItemCategory = "Peternakan"
	CategoryFishery      ItemCategory = "Perikanan"
	CategoryHorticulture ItemCategory = "Sayuran/Holtikultura"
)

// MutationKind is the direction of a stock mutation.
type MutationKind string

const (
	MutationInflow  MutationKind = "Pemasukan"
	MutationOutflow MutationKind = "Pengeluaran"
)

// Sign returns +1 for inflow and -1 for outflow.
func (k MutationKind) Sign() int {
	if k == MutationOutflow {
		return -1
	}
	return 1
}

// LogAction is the kind of change an audit log entry records.
type LogAction string

const (
	LogActionAdd    LogAction = "add"
	LogActionEdit   LogAction = "edit"
	LogActionDelete LogAction = "delete"
)

// Record is any document the synchronizer writes. DisplayName feeds the audit
// log description; Stamp sets the creation timestamp on the candidate record.
type Record interface {
	DisplayName() string
	Stamp(at time.Time)
}

// InventoryItem is a physical asset tracked by the cooperative.
type InventoryItem struct {
	ID           string       `bson:"_id,omitempty" json:"id"`
	Code         string       `bson:"kodeBarang" json:"kodeBarang"`
	Name         string       `bson:"namaBarang" json:"namaBarang"`
	Quantity     int          `bson:"jumlah" json:"jumlah"`
	Source       string       `bson:"sumberBarang" json:"sumberBarang"`
	UnitPrice    float64      `bson:"hargaSatuan" json:"hargaSatuan"`
	Category     ItemCategory `bson:"jenisBarang" json:"jenisBarang"`
	EvidenceLink string       `bson:"buktiTransaksi,omitempty" json:"buktiTransaksi,omitempty"`
	TotalBudget  float64      `bson:"totalAnggaran" json:"totalAnggaran"`
	CreatedAt    time.Time    `bson:"createdAt" json:"createdAt"`
}

func (i *InventoryItem) DisplayName() string { return i.Name }
func (i *InventoryItem) Stamp(at time.Time)  { i.CreatedAt = at }

// Recalculate derives the budget from quantity and unit price. It must run on
// the candidate record before any store call so no document is ever written
// with mismatched derived fields.
func (i *InventoryItem) Recalculate() {
	i.TotalBudget = i.UnitPrice * float64(i.Quantity)
}

// Mutation is a directional stock movement against an inventory item. ItemName
// and UnitPrice are snapshots taken when the mutation is recorded and are
// never re-synced if the item later changes.
type Mutation struct {
	ID            string       `bson:"_id,omitempty" json:"id"`
	Ref           string       `bson:"ref" json:"ref"`
	ItemID        string       `bson:"namaBarangId" json:"namaBarangId"`
	ItemName      string       `bson:"namaBarang" json:"namaBarang"`
	Kind          MutationKind `bson:"jenisMutasi" json:"jenisMutasi"`
	Quantity      int          `bson:"jumlah" json:"jumlah"`
	UnitPrice     float64      `bson:"hargaSatuan" json:"hargaSatuan"`
	TotalBudget   float64      `bson:"totalAnggaran" json:"totalAnggaran"`
	EvidencePhoto string       `bson:"buktiFoto,omitempty" json:"buktiFoto,omitempty"`
	CreatedAt     time.Time    `bson:"createdAt" json:"createdAt"`
}

func (m *Mutation) DisplayName() string { return m.ItemName }
func (m *Mutation) Stamp(at time.Time)  { m.CreatedAt = at }

// QuantityDelta is the signed quantity adjustment this mutation applies to its
// item: positive for inflow, negative for outflow.
func (m *Mutation) QuantityDelta() int {
	return m.Kind.Sign() * m.Quantity
}

// BudgetDelta is the signed budget adjustment at the snapshotted unit price.
func (m *Mutation) BudgetDelta() float64 {
	return float64(m.Kind.Sign()) * float64(m.Quantity) * m.UnitPrice
}

// ProgressEntry tracks crop progress for an inventory item. ItemName is a
// write-time snapshot like on Mutation.
type ProgressEntry struct {
	ID               string    `bson:"_id,omitempty" json:"id"`
	ItemID           string    `bson:"namaBarangId" json:"namaBarangId"`
	ItemName         string    `bson:"namaBarang" json:"namaBarang"`
	Process          string    `bson:"proses" json:"proses"`
	EstimatedHarvest string    `bson:"perkiraanPanen" json:"perkiraanPanen"`
	CreatedAt        time.Time `bson:"createdAt" json:"createdAt"`
}

func (p *ProgressEntry) DisplayName() string { return p.ItemName }
func (p *ProgressEntry) Stamp(at time.Time)  { p.CreatedAt = at }

// ActivityReport documents a cooperative activity.
type ActivityReport struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Name         string    `bson:"namaKegiatan" json:"namaKegiatan"`
	Date         string    `bson:"tanggalKegiatan" json:"tanggalKegiatan"`
	Category     string    `bson:"jenisKegiatan" json:"jenisKegiatan"`
	Recipient    string    `bson:"penerima" json:"penerima"`
	EvidenceLink string    `bson:"buktiKegiatan,omitempty" json:"buktiKegiatan,omitempty"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

func (a *ActivityReport) DisplayName() string { return a.Name }
func (a *ActivityReport) Stamp(at time.Time)  { a.CreatedAt = at }

// Partnership records a third-party collaboration contract.
type Partnership struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	PartnerName    string    `bson:"namaPihak3" json:"namaPihak3"`
	Kind           string    `bson:"jenisKerjaSama" json:"jenisKerjaSama"`
	StartDate      string    `bson:"tanggalMulai" json:"tanggalMulai"`
	ContractMonths int       `bson:"lamaKontrak" json:"lamaKontrak"`
	EndDate        string    `bson:"tanggalBerakhir" json:"tanggalBerakhir"`
	EvidenceLink   string    `bson:"buktiKerjaSama,omitempty" json:"buktiKerjaSama,omitempty"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
}

func (p *Partnership) DisplayName() string { return p.PartnerName }
func (p *Partnership) Stamp(at time.Time)  { p.CreatedAt = at }

// DeriveEndDate computes the contract end date from start date plus length in
// months. It is derived at write time only; an edited contract length takes
// effect when the record is re-submitted.
func (p *Partnership) DeriveEndDate() error {
	start, err := time.Parse(DateLayout, p.StartDate)
	if err != nil {
		return fmt.Errorf("parse start date %q: %w", p.StartDate, err)
	}
	p.EndDate = start.AddDate(0, p.ContractMonths, 0).Format(DateLayout)
	return nil
}

// LogEntry is one append-only audit trail document. Application logic never
// edits or deletes log entries.
type LogEntry struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	Action      LogAction `bson:"type" json:"type"`
	Actor       string    `bson:"namaAkun" json:"namaAkun"`
	Description string    `bson:"keterangan" json:"keterangan"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}

func (l *LogEntry) DisplayName() string { return l.Description }
func (l *LogEntry) Stamp(at time.Time)  { l.CreatedAt = at }

// Identity is the per-session scope under which all six collections are
// namespaced. No cross-identity sharing occurs.
type Identity struct {
	UserID      string
	DisplayName string
}
