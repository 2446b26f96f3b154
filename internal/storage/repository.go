package storage

import (
	"errors"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Sessions

// SaveSessionID replaces the persisted session identifier. Only the most
// recent one matters; stale records are removed.
func (r *Repository) SaveSessionID(sessionID string) error {
	if err := r.db.Where("session_id <> ?", sessionID).Delete(&SessionRecord{}).Error; err != nil {
		return err
	}
	rec := &SessionRecord{SessionID: sessionID}
	return r.db.Where("session_id = ?", sessionID).FirstOrCreate(rec).Error
}

func (r *Repository) LoadSessionID() (string, error) {
	var rec SessionRecord
	err := r.db.Order("updated_at DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.SessionID, nil
}

func (r *Repository) ClearSessionID() error {
	return r.db.Where("1 = 1").Delete(&SessionRecord{}).Error
}

// Signals

func (r *Repository) SaveSignalLog(log *SignalLog) error {
	return r.db.Create(log).Error
}

func (r *Repository) GetRecentSignals(limit int) ([]SignalLog, error) {
	var logs []SignalLog
	err := r.db.Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// Trades

func (r *Repository) SaveTrade(trade *TradeLog) error {
	return r.db.Create(trade).Error
}

func (r *Repository) UpdateTrade(trade *TradeLog) error {
	return r.db.Save(trade).Error
}

func (r *Repository) GetOpenTrade() (*TradeLog, error) {
	var trade TradeLog
	err := r.db.Where("status = ?", "open").Order("created_at DESC").First(&trade).Error
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

func (r *Repository) GetRecentTrades(limit int) ([]TradeLog, error) {
	var trades []TradeLog
	err := r.db.Order("created_at DESC").Limit(limit).Find(&trades).Error
	return trades, err
}

func (r *Repository) GetTotalPnL() (float64, error) {
	var total float64
	err := r.db.Model(&TradeLog{}).
		Where("status = ?", "closed").
		Select("COALESCE(SUM(pnl), 0)").Scan(&total).Error
	return total, err
}

// Analysis logs

func (r *Repository) SaveAnalysisLog(log *AnalysisLog) error {
	return r.db.Create(log).Error
}
