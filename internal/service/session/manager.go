package session

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/banjarejo/greensmart/internal/config"
	"github.com/banjarejo/greensmart/internal/domain/models"
	"github.com/banjarejo/greensmart/internal/repository"
	"github.com/banjarejo/greensmart/internal/service/ledger"
)

// Manager owns the identity lifecycle. Each login builds a fresh synchronizer
// scoped to that identity; logout closes it, which tears down all six live
// subscriptions before anything can listen against the wrong namespace.
//
// The credential check is a local comparison against configured values, kept
// from the original application; there is no delegated authentication.
type Manager struct {
	store  repository.Store
	codes  *ledger.CodeGenerator
	cfg    config.AuthConfig
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*ledger.Synchronizer
}

// NewManager wires a session manager.
func NewManager(store repository.Store, codes *ledger.CodeGenerator, cfg config.AuthConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:    store,
		codes:    codes,
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*ledger.Synchronizer),
	}
}

// Login checks the credentials and opens a session. The returned token scopes
// every subsequent call to the signed-in identity.
func (m *Manager) Login(username, password string) (string, models.Identity, error) {
	if username != m.cfg.Username || password != m.cfg.Password {
		return "", models.Identity{}, &models.AuthError{Reason: "wrong username or password"}
	}

	identity := models.Identity{
		UserID:      m.cfg.UserID,
		DisplayName: m.cfg.DisplayName,
	}
	token := uuid.NewString()
	sync := ledger.New(m.store, identity, m.codes, m.logger.Named("svc.ledger"))

	m.mu.Lock()
	m.sessions[token] = sync
	m.mu.Unlock()

	m.logger.Info("session opened", zap.String("user", identity.UserID))
	return token, identity, nil
}

// Resolve returns the synchronizer bound to the session token.
func (m *Manager) Resolve(token string) (*ledger.Synchronizer, error) {
	m.mu.Lock()
	sync, ok := m.sessions[token]
	m.mu.Unlock()

	if !ok {
		return nil, &models.AuthError{Reason: "unknown or expired session"}
	}
	return sync, nil
}

// Logout closes the session's synchronizer and forgets the token.
func (m *Manager) Logout(token string) error {
	m.mu.Lock()
	sync, ok := m.sessions[token]
	delete(m.sessions, token)
	m.mu.Unlock()

	if !ok {
		return &models.AuthError{Reason: "unknown or expired session"}
	}

	sync.Close()
	m.logger.Info("session closed", zap.String("user", sync.Identity().UserID))
	return nil
}

// Shutdown closes every live session. Used on server shutdown.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	syncs := make([]*ledger.Synchronizer, 0, len(m.sessions))
	for _, sync := range m.sessions {
		syncs = append(syncs, sync)
	}
	m.sessions = make(map[string]*ledger.Synchronizer)
	m.mu.Unlock()

	for _, sync := range syncs {
		sync.Close()
	}
}
