package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/banjarejo/greensmart/internal/domain/models"
	"github.com/banjarejo/greensmart/internal/service/ledger"
	"github.com/banjarejo/greensmart/internal/service/session"
)

const synchronizerKey = "greensmart.synchronizer"

// IdentityMiddleware resolves the session token into the caller's
// synchronizer. SSE consumers cannot set headers from EventSource, so the
// token is also accepted as a query parameter.
func IdentityMiddleware(sessions *session.Manager, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
			return
		}

		sync, err := sessions.Resolve(token)
		if err != nil {
			logger.Warn("session resolution failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown or expired session"})
			return
		}

		c.Set(synchronizerKey, sync)
		c.Next()
	}
}

func syncFrom(c *gin.Context) *ledger.Synchronizer {
	return c.MustGet(synchronizerKey).(*ledger.Synchronizer)
}

// respondError maps the typed error taxonomy onto HTTP statuses. Failure
// information always reaches the caller; nothing is swallowed.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		validationErr *models.ValidationError
		authErr       *models.AuthError
		subErr        *models.SubscriptionError
		writeErr      *models.WriteError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.As(err, &authErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.As(err, &subErr):
		logger.Error("subscription failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "live updates unavailable"})
	case errors.As(err, &writeErr):
		logger.Error("store write rejected", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "the store rejected the operation"})
	default:
		logger.Error("unexpected failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
