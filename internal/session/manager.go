package session

import (
	"context"

	"github.com/camuig/chartvision-agent/internal/logger"
	"github.com/camuig/chartvision-agent/internal/platform"
)

// Session is the client's view of its platform session. ID is empty when
// neither recovery nor creation succeeded; session-scoped actions must then
// be disabled rather than failing the process.
type Session struct {
	ID              string `json:"id"`
	BrokerConnected bool   `json:"broker_connected"`
	BrokerType      string `json:"broker_type,omitempty"`
	TradingMode     string `json:"trading_mode"`
}

func (s *Session) Active() bool {
	return s.ID != ""
}

// API is the slice of the platform client the manager needs.
type API interface {
	SetSessionID(id string)
	CreateSession(ctx context.Context) (string, error)
	GetSessionInfo(ctx context.Context) (*platform.SessionInfo, error)
}

// Store persists the session identifier between runs.
type Store interface {
	LoadSessionID() (string, error)
	SaveSessionID(sessionID string) error
	ClearSessionID() error
}

type Manager struct {
	api    API
	store  Store
	logger *logger.Logger
}

func NewManager(api API, store Store, log *logger.Logger) *Manager {
	return &Manager{api: api, store: store, logger: log}
}

// Acquire recovers the persisted session if the platform still accepts it,
// otherwise requests a new one and persists it. Each path is tried exactly
// once; if both fail the returned session is session-less, never an error.
func (m *Manager) Acquire(ctx context.Context) *Session {
	if saved, err := m.store.LoadSessionID(); err != nil {
		m.logger.Error("load persisted session", "error", err)
	} else if saved != "" {
		m.api.SetSessionID(saved)
		info, err := m.api.GetSessionInfo(ctx)
		if err == nil {
			m.logger.Info("session recovered", "broker_connected", info.BrokerConnected, "mode", info.TradingMode)
			return &Session{
				ID:              saved,
				BrokerConnected: info.BrokerConnected,
				BrokerType:      info.BrokerType,
				TradingMode:     info.TradingMode,
			}
		}
		m.logger.Warn("persisted session rejected, requesting a new one", "error", err)
		m.api.SetSessionID("")
		if err := m.store.ClearSessionID(); err != nil {
			m.logger.Error("clear persisted session", "error", err)
		}
	}

	id, err := m.api.CreateSession(ctx)
	if err != nil {
		m.logger.Error("create session failed, continuing session-less", "error", err)
		return &Session{TradingMode: "paper"}
	}

	m.api.SetSessionID(id)
	if err := m.store.SaveSessionID(id); err != nil {
		m.logger.Error("persist session", "error", err)
	}

	m.logger.Info("session created")
	return &Session{ID: id, TradingMode: "paper"}
}
