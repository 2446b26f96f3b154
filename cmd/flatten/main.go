package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/camuig/chartvision-agent/internal/config"
	"github.com/camuig/chartvision-agent/internal/logger"
	"github.com/camuig/chartvision-agent/internal/platform"
	"github.com/camuig/chartvision-agent/internal/storage"
)

// flatten closes the recorded open position directly through the platform,
// independent of the running agent. Use when the agent is down or wedged.
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dbPath := flag.String("db", "data/chartvision-agent.db", "path to SQLite database")
	dryRun := flag.Bool("dry-run", false, "show the open position without closing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)

	db, err := storage.NewDatabase(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database error: %v\n", err)
		os.Exit(1)
	}
	repo := storage.NewRepository(db)

	trade, err := repo.GetOpenTrade()
	if err != nil {
		fmt.Println("No open position recorded.")
		return
	}

	fmt.Printf("Open position: %s %s x%d @ %.2f (SL %.2f, T %.2f)\n",
		trade.Side, trade.Symbol, trade.Quantity, trade.Entry, trade.Stoploss, trade.Target)

	if *dryRun {
		fmt.Println("Dry run, no order placed.")
		return
	}

	sessionID, err := repo.LoadSessionID()
	if err != nil || sessionID == "" {
		fmt.Fprintln(os.Stderr, "no persisted session; cannot reach the platform")
		os.Exit(1)
	}

	client := platform.NewClient(cfg, log)
	client.SetSessionID(sessionID)

	txType := "SELL"
	if trade.Side == "SHORT" {
		txType = "BUY"
	}

	ctx := context.Background()
	result, err := client.PlaceOrder(ctx, &platform.OrderRequest{
		Symbol:          trade.Symbol,
		Exchange:        cfg.Trading.Exchange,
		TransactionType: txType,
		OrderType:       "MARKET",
		Quantity:        trade.Quantity,
		Product:         cfg.Trading.Product,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "close order failed: %v\n", err)
		os.Exit(1)
	}

	trade.Status = "closed"
	trade.ExitReason = "MANUAL"
	if err := repo.UpdateTrade(trade); err != nil {
		fmt.Fprintf(os.Stderr, "warning: position closed but trade record not updated: %v\n", err)
	}

	fmt.Printf("Closed %s x%d (%s), order %s\n", trade.Symbol, trade.Quantity, txType, result.OrderID)
}
