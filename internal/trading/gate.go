package trading

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/camuig/chartvision-agent/internal/config"
	"github.com/camuig/chartvision-agent/internal/logger"
	"github.com/camuig/chartvision-agent/internal/notify"
	"github.com/camuig/chartvision-agent/internal/platform"
	"github.com/camuig/chartvision-agent/internal/safety"
	"github.com/camuig/chartvision-agent/internal/signal"
	"github.com/camuig/chartvision-agent/internal/storage"
)

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Position is the single open position. At most one exists at a time.
type Position struct {
	Side     Side      `json:"side"`
	Entry    float64   `json:"entry"`
	Stoploss float64   `json:"stoploss"`
	Target   float64   `json:"target"`
	Quantity int       `json:"quantity"`
	OpenedAt time.Time `json:"opened_at"`
}

var (
	ErrInterlockEngaged = errors.New("kill switch engaged")
	ErrPositionOpen     = errors.New("a position is already open")
	ErrNoPosition       = errors.New("no open position")
	ErrInvalidEntry     = errors.New("entry price must be positive")
	ErrInvalidSide      = errors.New("side must be LONG or SHORT")
)

// OrderPlacer is the slice of the platform client the gate needs.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req *platform.OrderRequest) (*platform.OrderResult, error)
}

// TradeStore records entries and exits.
type TradeStore interface {
	SaveTrade(trade *storage.TradeLog) error
	UpdateTrade(trade *storage.TradeLog) error
}

// Gate decides whether a signal may open a position and tracks the single
// open position through FLAT -> OPEN -> FLAT. State only advances on a
// confirmed order acknowledgment; any failure leaves it unchanged.
type Gate struct {
	orders    OrderPlacer
	interlock *safety.Interlock
	store     TradeStore
	queue     *notify.Queue
	cfg       *config.Config
	logger    *logger.Logger

	mu        sync.Mutex
	autoTrade bool
	position  *Position
	openTrade *storage.TradeLog
}

func NewGate(
	orders OrderPlacer,
	interlock *safety.Interlock,
	store TradeStore,
	queue *notify.Queue,
	cfg *config.Config,
	log *logger.Logger,
) *Gate {
	return &Gate{
		orders:    orders,
		interlock: interlock,
		store:     store,
		queue:     queue,
		cfg:       cfg,
		logger:    log,
		autoTrade: cfg.Trading.AutoTrade,
	}
}

// OnSignal evaluates the auto-entry rule for a newly normalized signal.
// Every condition must hold: interlock clear, auto-trade enabled, confidence
// and safety at or above the configured minimums, a directional decision,
// and no open position.
func (g *Gate) OnSignal(ctx context.Context, sig *signal.Signal) {
	if g.interlock.Engaged() {
		g.logger.Info("auto-entry skipped: kill switch engaged")
		return
	}
	if !g.AutoTrade() {
		g.logger.Debug("auto-entry skipped: auto-trade disabled")
		return
	}
	if !sig.Decision.Directional() {
		g.logger.Debug("auto-entry skipped: no directional decision")
		return
	}
	if sig.Confidence < g.cfg.Trading.MinConfidence {
		g.logger.Info("auto-entry skipped: low confidence",
			"confidence", sig.Confidence, "min", g.cfg.Trading.MinConfidence)
		return
	}
	if sig.SafetyScore < g.cfg.Trading.MinSafetyScore {
		g.logger.Info("auto-entry skipped: low safety score",
			"safety_score", sig.SafetyScore, "min", g.cfg.Trading.MinSafetyScore)
		return
	}

	side := SideLong
	if sig.Decision == signal.DecisionShort {
		side = SideShort
	}

	if err := g.enter(ctx, side, sig.Entry, sig.Stoploss, sig.Target1); err != nil {
		if errors.Is(err, ErrPositionOpen) {
			g.logger.Info("auto-entry skipped: position already open")
			return
		}
		g.logger.Error("auto-entry failed", "error", err)
	}
}

// EnterManual opens a position on operator request. It bypasses the
// confidence and safety thresholds but still respects the kill switch and
// the single-position invariant.
func (g *Gate) EnterManual(ctx context.Context, side Side, entry, stoploss, target float64) error {
	if side != SideLong && side != SideShort {
		return ErrInvalidSide
	}
	if g.interlock.Engaged() {
		return ErrInterlockEngaged
	}
	return g.enter(ctx, side, entry, stoploss, target)
}

func (g *Gate) enter(ctx context.Context, side Side, entry, stoploss, target float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.position != nil {
		return ErrPositionOpen
	}
	if entry <= 0 {
		return ErrInvalidEntry
	}

	qty := quantityFor(g.cfg.Trading.Capital, g.cfg.Trading.RiskPercent, entry)

	txType := "BUY"
	if side == SideShort {
		txType = "SELL"
	}

	result, err := g.orders.PlaceOrder(ctx, &platform.OrderRequest{
		Symbol:          g.cfg.Trading.Symbol,
		Exchange:        g.cfg.Trading.Exchange,
		TransactionType: txType,
		OrderType:       "MARKET",
		Quantity:        qty,
		Product:         g.cfg.Trading.Product,
	})
	if err != nil {
		g.queue.Push(notify.LevelError, "Entry failed", err.Error())
		return fmt.Errorf("entry order: %w", err)
	}

	g.position = &Position{
		Side:     side,
		Entry:    entry,
		Stoploss: stoploss,
		Target:   target,
		Quantity: qty,
		OpenedAt: time.Now(),
	}

	trade := &storage.TradeLog{
		Symbol:   g.cfg.Trading.Symbol,
		Side:     string(side),
		Entry:    entry,
		Stoploss: stoploss,
		Target:   target,
		Quantity: qty,
		OrderID:  result.OrderID,
		Status:   "open",
	}
	if g.store != nil {
		if err := g.store.SaveTrade(trade); err != nil {
			g.logger.Error("save trade", "error", err)
		}
	}
	g.openTrade = trade

	g.queue.Push(notify.LevelSuccess, fmt.Sprintf("%s entry", side),
		fmt.Sprintf("%s x%d @ %.2f (SL %.2f, T %.2f)", g.cfg.Trading.Symbol, qty, entry, stoploss, target))
	g.logger.Info("position opened",
		"side", side, "entry", entry, "qty", qty, "sl", stoploss, "target", target)

	return nil
}

// Exit closes the open position with the stored quantity, direction inverted
// from the open side. The reason is a free-form label (MANUAL, SL_HIT,
// TARGET_HIT, KILL_SWITCH). exitPrice is the fill price reported by the
// caller; the platform ack carries none. Zero means unknown and leaves PnL
// unset. On failure the position stays open so exit can be retried. Exit is
// deliberately not gated on the interlock: the operator can always flatten.
func (g *Gate) Exit(ctx context.Context, reason string, exitPrice float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.position == nil {
		return ErrNoPosition
	}

	txType := "SELL"
	if g.position.Side == SideShort {
		txType = "BUY"
	}

	_, err := g.orders.PlaceOrder(ctx, &platform.OrderRequest{
		Symbol:          g.cfg.Trading.Symbol,
		Exchange:        g.cfg.Trading.Exchange,
		TransactionType: txType,
		OrderType:       "MARKET",
		Quantity:        g.position.Quantity,
		Product:         g.cfg.Trading.Product,
	})
	if err != nil {
		g.queue.Push(notify.LevelError, "Exit failed", err.Error())
		return fmt.Errorf("exit order: %w", err)
	}

	side := g.position.Side
	entry := g.position.Entry
	qty := g.position.Quantity
	g.position = nil

	pnl := 0.0
	if exitPrice > 0 {
		pnl = realizedPnL(side, entry, exitPrice, qty)
	}

	if g.openTrade != nil {
		g.openTrade.Status = "closed"
		g.openTrade.ExitReason = reason
		if exitPrice > 0 {
			g.openTrade.ExitPrice = exitPrice
			g.openTrade.PnL = pnl
		}
		if g.store != nil {
			if err := g.store.UpdateTrade(g.openTrade); err != nil {
				g.logger.Error("update trade", "error", err)
			}
		}
		g.openTrade = nil
	}

	msg := fmt.Sprintf("%s %s x%d (%s)", g.cfg.Trading.Symbol, side, qty, reason)
	if exitPrice > 0 {
		msg = fmt.Sprintf("%s %s x%d @ %.2f (%s, PnL %.2f)",
			g.cfg.Trading.Symbol, side, qty, exitPrice, reason, pnl)
	}
	g.queue.Push(notify.LevelInfo, "Position closed", msg)
	g.logger.Info("position closed",
		"side", side, "qty", qty, "reason", reason, "exit_price", exitPrice, "pnl", pnl)

	return nil
}

// realizedPnL is side-aware: a LONG profits when exit > entry, a SHORT when
// exit < entry.
func realizedPnL(side Side, entry, exit float64, qty int) float64 {
	pnl := (exit - entry) * float64(qty)
	if side == SideShort {
		pnl = -pnl
	}
	return pnl
}

// Position returns a snapshot of the open position, or nil when flat.
func (g *Gate) Position() *Position {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.position == nil {
		return nil
	}
	pos := *g.position
	return &pos
}

// Describe summarizes the gate state for the analysis strategy context.
func (g *Gate) Describe() string {
	pos := g.Position()
	if pos == nil {
		return "FLAT"
	}
	return fmt.Sprintf("%s x%d @ %.2f (SL %.2f, T %.2f)",
		pos.Side, pos.Quantity, pos.Entry, pos.Stoploss, pos.Target)
}

func (g *Gate) AutoTrade() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.autoTrade
}

func (g *Gate) SetAutoTrade(enabled bool) {
	g.mu.Lock()
	g.autoTrade = enabled
	g.mu.Unlock()
	g.logger.Info("auto-trade configuration changed", "enabled", enabled)
}

// quantityFor sizes the position as floor(capital * riskPercent / 100 /
// entry), floored to a minimum of one unit.
func quantityFor(capital, riskPercent, entry float64) int {
	qty := int(math.Floor(capital * riskPercent / 100 / entry))
	if qty < 1 {
		qty = 1
	}
	return qty
}
