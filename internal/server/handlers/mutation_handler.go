package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/banjarejo/greensmart/internal/domain/models"
	"github.com/banjarejo/greensmart/internal/service/ledger"
)

// MutationHandler serves the stock mutation write path, which is the one
// operation that adjusts two documents at once.
type MutationHandler struct {
	logger *zap.Logger
}

// NewMutationHandler constructs the HTTP handler adapter.
func NewMutationHandler(logger *zap.Logger) *MutationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MutationHandler{logger: logger}
}

type mutationPayload struct {
	ItemID        string              `json:"namaBarangId" binding:"required"`
	Kind          models.MutationKind `json:"jenisMutasi" binding:"required"`
	Quantity      int                 `json:"jumlah" binding:"required,gt=0"`
	EvidencePhoto string              `json:"buktiFoto"`
	Ref           string              `json:"ref"`
}

func (p *mutationPayload) toRequest() ledger.MutationRequest {
	return ledger.MutationRequest{
		ItemID:        p.ItemID,
		Kind:          p.Kind,
		Quantity:      p.Quantity,
		EvidencePhoto: p.EvidencePhoto,
		Ref:           p.Ref,
	}
}

// Record applies a new inflow or outflow mutation.
func (h *MutationHandler) Record(c *gin.Context) {
	var payload mutationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Warn("invalid mutation payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id, err := syncFrom(c).RecordMutation(c.Request.Context(), payload.toRequest())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// Update replaces an existing mutation, reversing its previous effect on the
// item before the new delta is applied.
func (h *MutationHandler) Update(c *gin.Context) {
	var payload mutationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Warn("invalid mutation payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := syncFrom(c).UpdateMutation(c.Request.Context(), c.Param("id"), payload.toRequest()); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete removes a mutation and reverses its effect on the referenced item.
func (h *MutationHandler) Delete(c *gin.Context) {
	if err := syncFrom(c).DeleteMutation(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
