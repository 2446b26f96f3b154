package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/camuig/chartvision-agent/internal/config"
	"github.com/camuig/chartvision-agent/internal/logger"
)

func newTestClient(baseURL string) *Client {
	cfg := &config.Config{
		Platform: config.PlatformConfig{BaseURL: baseURL, TimeoutSeconds: 5},
	}
	return NewClient(cfg, logger.New("error"))
}

func TestSessionHeaderAttached(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Session-ID")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"session_id":"s","broker_connected":false,"trading_mode":"paper"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	if _, err := c.GetSessionInfo(context.Background()); err != nil {
		t.Fatalf("GetSessionInfo: %v", err)
	}
	if gotHeader != "" {
		t.Errorf("header sent without a session id: %q", gotHeader)
	}

	c.SetSessionID("sess-42")
	if _, err := c.GetSessionInfo(context.Background()); err != nil {
		t.Fatalf("GetSessionInfo: %v", err)
	}
	if gotHeader != "sess-42" {
		t.Errorf("X-Session-ID = %q, want sess-42", gotHeader)
	}
}

func TestCreateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/session/create" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","session_id":"sess-new"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	id, err := c.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if id != "sess-new" {
		t.Errorf("session id = %q, want sess-new", id)
	}
}

func TestCreateSessionEmptyID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).CreateSession(context.Background()); err == nil {
		t.Error("expected an error for a response without a session id")
	}
}

func TestPlaceOrderSurfacesPlatformMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode order request: %v", err)
		}
		if req.TransactionType != "BUY" || req.OrderType != "MARKET" {
			t.Errorf("unexpected order body: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"error","message":"insufficient funds in margin account"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.PlaceOrder(context.Background(), &OrderRequest{
		Symbol:          "NIFTY",
		Exchange:        "NSE",
		TransactionType: "BUY",
		OrderType:       "MARKET",
		Quantity:        10,
		Product:         "MIS",
	})
	if err == nil {
		t.Fatal("expected an order rejection error")
	}
	if !strings.Contains(err.Error(), "insufficient funds in margin account") {
		t.Errorf("error %q must carry the platform message verbatim", err)
	}
}

func TestPlaceOrderSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","order_id":"ord-77"}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).PlaceOrder(context.Background(), &OrderRequest{
		Symbol: "NIFTY", Exchange: "NSE", TransactionType: "SELL",
		OrderType: "MARKET", Quantity: 5, Product: "MIS",
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if res.OrderID != "ord-77" {
		t.Errorf("order id = %q, want ord-77", res.OrderID)
	}
}

func TestSubmitAnalysisChartLimits(t *testing.T) {
	c := newTestClient("http://localhost:1")

	if _, err := c.SubmitAnalysis(context.Background(), &AnalysisRequest{}); err == nil {
		t.Error("zero charts must be rejected before any network call")
	}

	charts := make([]ChartImage, MaxChartsPerRequest+1)
	for i := range charts {
		charts[i] = ChartImage{ChartType: ChartSpot, ImageBase64: "aW1n", Symbol: "NIFTY", Timeframe: "5m"}
	}
	if _, err := c.SubmitAnalysis(context.Background(), &AnalysisRequest{Charts: charts}); err == nil {
		t.Errorf("more than %d charts must be rejected", MaxChartsPerRequest)
	}
}

func TestSubmitAnalysisReturnsRawPayload(t *testing.T) {
	payload := `{"decision":"LONG","confidence":82}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analyze/multi-chart" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	raw, err := newTestClient(srv.URL).SubmitAnalysis(context.Background(), &AnalysisRequest{
		Charts: []ChartImage{{ChartType: ChartSpot, ImageBase64: "aW1n", Symbol: "NIFTY", Timeframe: "5m"}},
	})
	if err != nil {
		t.Fatalf("SubmitAnalysis: %v", err)
	}
	if string(raw) != payload {
		t.Errorf("raw payload = %s, want untouched body", raw)
	}
}

func TestSetTradingModeValidation(t *testing.T) {
	c := newTestClient("http://localhost:1")
	if err := c.SetTradingMode(context.Background(), "demo"); err == nil {
		t.Error("invalid mode must be rejected locally")
	}
}

func TestPushURLScheme(t *testing.T) {
	cases := []struct{ base, want string }{
		{"http://localhost:8000", "ws://localhost:8000/ws/sess-1"},
		{"https://chartvision.example.com", "wss://chartvision.example.com/ws/sess-1"},
	}
	for _, tc := range cases {
		if got := newTestClient(tc.base).PushURL("sess-1"); got != tc.want {
			t.Errorf("PushURL(%s) = %s, want %s", tc.base, got, tc.want)
		}
	}
}
