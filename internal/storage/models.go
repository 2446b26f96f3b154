package storage

import "time"

// SessionRecord persists the platform session identifier between runs
// so the agent can resume an existing session instead of creating one.
type SessionRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SessionID string `gorm:"uniqueIndex;not null" json:"session_id"`
}

type SignalLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Decision    string  `gorm:"index" json:"decision"`
	Confidence  int     `json:"confidence"`
	SafetyScore int     `json:"safety_score"`
	Entry       float64 `json:"entry"`
	Stoploss    float64 `json:"stoploss"`
	Target      float64 `json:"target"`
	Source      string  `json:"source"` // push or analysis
	RawJSON     string  `gorm:"type:text" json:"raw_json"`
}

type TradeLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Symbol   string  `gorm:"index;not null" json:"symbol"`
	Side     string  `gorm:"not null" json:"side"` // LONG or SHORT
	Entry    float64 `json:"entry"`
	Stoploss float64 `json:"stoploss"`
	Target   float64 `json:"target"`
	Quantity int     `gorm:"not null" json:"quantity"`
	OrderID  string  `json:"order_id"`

	ExitPrice  float64 `json:"exit_price"`
	ExitReason string  `json:"exit_reason"`
	PnL        float64 `gorm:"column:pnl" json:"pnl"`
	Status     string  `gorm:"not null;default:'open'" json:"status"` // open, closed
}

type AnalysisLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ChartsCount int    `json:"charts_count"`
	RawResponse string `gorm:"type:text" json:"raw_response"`
	Error       string `json:"error"`
}
