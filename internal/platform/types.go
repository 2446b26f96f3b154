package platform

// Wire types for the ChartVision platform API. All bodies are JSON.

// ChartType values accepted by the analyze endpoint.
const (
	ChartSpot          = "spot"
	ChartMarketProfile = "market_profile"
	ChartOrderflow     = "orderflow"
	ChartOptionChain   = "option_chain"
)

// MaxChartsPerRequest is the backend's per-request chart limit.
const MaxChartsPerRequest = 6

type ChartImage struct {
	ChartType   string `json:"chart_type"`
	ImageBase64 string `json:"image_base64"`
	Symbol      string `json:"symbol"`
	Timeframe   string `json:"timeframe"`
}

type AnalysisRequest struct {
	Charts           []ChartImage `json:"charts"`
	StrategyContext  string       `json:"strategy_context"`
	PreviousAnalysis string       `json:"previous_analysis,omitempty"`
}

type OrderRequest struct {
	Symbol          string `json:"symbol"`
	Exchange        string `json:"exchange"`
	TransactionType string `json:"transaction_type"` // BUY or SELL
	OrderType       string `json:"order_type"`       // MARKET
	Quantity        int    `json:"quantity"`
	Product         string `json:"product"`
}

type OrderResult struct {
	Status  string `json:"status"`
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

type SessionInfo struct {
	SessionID       string `json:"session_id"`
	BrokerConnected bool   `json:"broker_connected"`
	BrokerType      string `json:"broker_type"`
	TradingMode     string `json:"trading_mode"` // paper or live
}

type BrokerCredentials struct {
	Broker     string `json:"broker"`
	APIKey     string `json:"api_key"`
	APISecret  string `json:"api_secret"`
	UserID     string `json:"user_id,omitempty"`
	Password   string `json:"password,omitempty"`
	TOTPSecret string `json:"totp_secret,omitempty"`
	PIN        string `json:"pin,omitempty"`
}

type BrokerStatus struct {
	Status        string `json:"status"`
	UserID        string `json:"user_id"`
	HasMarketData bool   `json:"has_market_data"`
	Message       string `json:"message"`
}
