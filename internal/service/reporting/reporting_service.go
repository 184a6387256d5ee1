package reporting

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/banjarejo/greensmart/internal/domain/models"
	"github.com/banjarejo/greensmart/internal/repository"
)

const dateLayout = "2006-01-02"

// Summary aggregates the state of one identity's ledger at a point in time.
type Summary struct {
	Date             time.Time `json:"date"`
	ItemCount        int       `json:"itemCount"`
	TotalBudget      float64   `json:"totalBudget"`
	MutationCount    int       `json:"mutationCount"`
	ActivityCount    int       `json:"activityCount"`
	PartnershipCount int       `json:"partnershipCount"`
}

// Service computes ledger summaries for the scheduler and the dashboard.
type Service struct {
	store  repository.Store
	logger *zap.Logger
}

// NewService wires a new reporting service instance.
func NewService(store repository.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// DailySummary reads the owner's collections and aggregates item counts and
// the running budget total.
func (s *Service) DailySummary(ctx context.Context, owner string, at time.Time) (Summary, error) {
	var items []models.InventoryItem
	if err := s.store.FindAll(ctx, owner, string(models.CollectionInventory), &items); err != nil {
		return Summary{}, fmt.Errorf("load inventory: %w", err)
	}

	summary := Summary{Date: at, ItemCount: len(items)}
	for _, item := range items {
		summary.TotalBudget += item.TotalBudget
	}

	counts := []struct {
		coll models.Collection
		dst  *int
	}{
		{models.CollectionMutations, &summary.MutationCount},
		{models.CollectionActivities, &summary.ActivityCount},
		{models.CollectionPartnerships, &summary.PartnershipCount},
	}
	for _, c := range counts {
		n, err := s.count(ctx, owner, c.coll)
		if err != nil {
			return Summary{}, err
		}
		*c.dst = n
	}

	s.logger.Debug("daily summary computed",
		zap.String("owner", owner),
		zap.Int("items", summary.ItemCount),
		zap.Float64("total_budget", summary.TotalBudget))
	return summary, nil
}

func (s *Service) count(ctx context.Context, owner string, coll models.Collection) (int, error) {
	var docs []map[string]any
	if err := s.store.FindAll(ctx, owner, string(coll), &docs); err != nil {
		return 0, fmt.Errorf("load %s: %w", coll, err)
	}
	return len(docs), nil
}

// Format renders the summary as the operator-channel message.
func (s *Service) Format(sum Summary) string {
	return fmt.Sprintf(
		"Ledger summary %s: %d inventory items, total budget %.2f, %d mutations, %d activity reports, %d partnerships.",
		sum.Date.Format(dateLayout), sum.ItemCount, sum.TotalBudget,
		sum.MutationCount, sum.ActivityCount, sum.PartnershipCount)
}

// Row renders the summary as a spreadsheet row for the Sheets mirror.
func (s *Service) Row(sum Summary) []interface{} {
	return []interface{}{
		sum.Date.Format(dateLayout),
		sum.ItemCount,
		sum.TotalBudget,
		sum.MutationCount,
		sum.ActivityCount,
		sum.PartnershipCount,
	}
}
