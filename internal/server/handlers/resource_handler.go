package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/banjarejo/greensmart/internal/domain/models"
	"github.com/banjarejo/greensmart/internal/service/ledger"
)

type recordPtr[T any] interface {
	*T
	models.Record
}

// Resource serves the CRUD and live-snapshot surface of one collection. The
// six collections share identical transport semantics, so one parameterized
// handler covers them all.
type Resource[T any, PT recordPtr[T]] struct {
	coll   models.Collection
	logger *zap.Logger
}

// NewResource builds the handler set for one collection.
func NewResource[T any, PT recordPtr[T]](coll models.Collection, logger *zap.Logger) *Resource[T, PT] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resource[T, PT]{coll: coll, logger: logger}
}

// List returns the full current record set.
func (r *Resource[T, PT]) List(c *gin.Context) {
	records, err := ledger.List[T](c.Request.Context(), syncFrom(c), r.coll)
	if err != nil {
		respondError(c, r.logger, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// Create inserts a new record and returns its id.
func (r *Resource[T, PT]) Create(c *gin.Context) {
	rec := PT(new(T))
	if err := c.ShouldBindJSON(rec); err != nil {
		r.logger.Warn("invalid payload", zap.String("collection", string(r.coll)), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id, err := syncFrom(c).Create(c.Request.Context(), r.coll, rec)
	if err != nil {
		respondError(c, r.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// Update overwrites the record with the caller's complete merged document.
func (r *Resource[T, PT]) Update(c *gin.Context) {
	rec := PT(new(T))
	if err := c.ShouldBindJSON(rec); err != nil {
		r.logger.Warn("invalid payload", zap.String("collection", string(r.coll)), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := syncFrom(c).Update(c.Request.Context(), r.coll, c.Param("id"), rec); err != nil {
		respondError(c, r.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete removes the record. Confirmation is the caller's responsibility.
func (r *Resource[T, PT]) Delete(c *gin.Context) {
	if err := syncFrom(c).Delete(c.Request.Context(), r.coll, c.Param("id")); err != nil {
		respondError(c, r.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stream pushes full-collection snapshots over SSE: the current record set
// immediately, then one snapshot per remote change, until the client
// disconnects or the session is closed.
func (r *Resource[T, PT]) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	snapshots, cancel, err := ledger.Subscribe[T](ctx, syncFrom(c), r.coll)
	if err != nil {
		respondError(c, r.logger, err)
		return
	}
	defer cancel()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return false
			}
			if snap.Err != nil {
				r.logger.Error("stream broken", zap.String("collection", string(r.coll)), zap.Error(snap.Err))
				c.SSEvent("error", gin.H{"error": "live updates unavailable"})
				return false
			}
			c.SSEvent("snapshot", snap.Records)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
