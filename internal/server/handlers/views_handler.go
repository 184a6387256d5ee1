package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/banjarejo/greensmart/internal/domain/models"
	"github.com/banjarejo/greensmart/internal/service/ledger"
)

// ViewsHandler serves the derived read-only views: dashboard totals and the
// evidence photo gallery.
type ViewsHandler struct {
	logger *zap.Logger
}

// NewViewsHandler constructs the HTTP handler adapter.
func NewViewsHandler(logger *zap.Logger) *ViewsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewsHandler{logger: logger}
}

// Dashboard aggregates the headline numbers: running budget total and record
// counts per collection.
func (h *ViewsHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	sync := syncFrom(c)

	items, err := ledger.List[models.InventoryItem](ctx, sync, models.CollectionInventory)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var totalBudget float64
	for _, item := range items {
		totalBudget += item.TotalBudget
	}

	mutations, err := ledger.List[models.Mutation](ctx, sync, models.CollectionMutations)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	activities, err := ledger.List[models.ActivityReport](ctx, sync, models.CollectionActivities)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	partnerships, err := ledger.List[models.Partnership](ctx, sync, models.CollectionPartnerships)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"totalAnggaran":    totalBudget,
		"jumlahInventaris": len(items),
		"jumlahMutasi":     len(mutations),
		"jumlahKegiatan":   len(activities),
		"jumlahKerjaSama":  len(partnerships),
	})
}

// galleryPhoto is one evidence photo with its caption.
type galleryPhoto struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Gallery collects the evidence photo links from mutations and activity
// reports. Orphaned references render like any other entry; a mutation whose
// item was deleted still shows its snapshotted name.
func (h *ViewsHandler) Gallery(c *gin.Context) {
	ctx := c.Request.Context()
	sync := syncFrom(c)

	mutations, err := ledger.List[models.Mutation](ctx, sync, models.CollectionMutations)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	activities, err := ledger.List[models.ActivityReport](ctx, sync, models.CollectionActivities)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	photos := make([]galleryPhoto, 0, len(mutations)+len(activities))
	for _, m := range mutations {
		if m.EvidencePhoto != "" {
			photos = append(photos, galleryPhoto{
				URL:         m.EvidencePhoto,
				Description: fmt.Sprintf("mutation: %s", m.ItemName),
			})
		}
	}
	for _, a := range activities {
		if a.EvidenceLink != "" {
			photos = append(photos, galleryPhoto{
				URL:         a.EvidenceLink,
				Description: fmt.Sprintf("activity: %s", a.Name),
			})
		}
	}

	c.JSON(http.StatusOK, photos)
}
