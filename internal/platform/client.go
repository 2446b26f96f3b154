package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"

	"github.com/camuig/chartvision-agent/internal/config"
	"github.com/camuig/chartvision-agent/internal/logger"
)

const sessionHeader = "X-Session-ID"

// Client talks to the ChartVision platform over HTTP. The session identifier
// is attached as a header on every call once one is held.
type Client struct {
	http   *resty.Client
	logger *logger.Logger

	mu        sync.RWMutex
	sessionID string
}

func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	c := &Client{logger: log}

	c.http = resty.New().
		SetBaseURL(strings.TrimRight(cfg.Platform.BaseURL, "/")).
		SetTimeout(cfg.PlatformTimeout()).
		OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			if sid := c.SessionID(); sid != "" {
				req.SetHeader(sessionHeader, sid)
			}
			return nil
		})

	return c
}

func (c *Client) SetSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// PushURL derives the push-channel endpoint for the given session.
func (c *Client) PushURL(sessionID string) string {
	base := c.http.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws/" + sessionID
}

func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var out struct {
		Status    string `json:"status"`
		SessionID string `json:"session_id"`
	}

	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Post("/api/session/create")
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("create session: platform returned status %d", resp.StatusCode())
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("create session: empty session id in response")
	}
	return out.SessionID, nil
}

func (c *Client) GetSessionInfo(ctx context.Context) (*SessionInfo, error) {
	var out SessionInfo

	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/api/session/info")
	if err != nil {
		return nil, fmt.Errorf("session info: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("session info: platform returned status %d", resp.StatusCode())
	}
	return &out, nil
}

func (c *Client) ConfigureGemini(ctx context.Context, apiKey, model string) error {
	body := map[string]string{"api_key": apiKey, "model": model}

	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post("/api/config/gemini")
	if err != nil {
		return fmt.Errorf("configure gemini: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("configure gemini: platform returned status %d", resp.StatusCode())
	}
	return nil
}

// SubmitAnalysis sends captured chart frames for AI analysis and returns the
// raw signal payload. The payload is untrusted; normalization happens in the
// signal package.
func (c *Client) SubmitAnalysis(ctx context.Context, req *AnalysisRequest) (json.RawMessage, error) {
	if len(req.Charts) == 0 {
		return nil, fmt.Errorf("submit analysis: no charts in request")
	}
	if len(req.Charts) > MaxChartsPerRequest {
		return nil, fmt.Errorf("submit analysis: %d charts exceeds limit of %d", len(req.Charts), MaxChartsPerRequest)
	}

	resp, err := c.http.R().SetContext(ctx).SetBody(req).Post("/api/analyze/multi-chart")
	if err != nil {
		return nil, fmt.Errorf("submit analysis: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("submit analysis: platform returned status %d: %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}
	return json.RawMessage(resp.Body()), nil
}

func (c *Client) PlaceOrder(ctx context.Context, req *OrderRequest) (*OrderResult, error) {
	var out OrderResult

	resp, err := c.http.R().SetContext(ctx).SetBody(req).SetResult(&out).Post("/api/orders/place")
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("place order: platform returned status %d: %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}
	if out.Status != "success" {
		msg := out.Message
		if msg == "" {
			msg = "order rejected with status " + out.Status
		}
		return &out, fmt.Errorf("place order: %s", msg)
	}
	return &out, nil
}

func (c *Client) ConnectBroker(ctx context.Context, creds *BrokerCredentials) (*BrokerStatus, error) {
	var out BrokerStatus

	resp, err := c.http.R().SetContext(ctx).SetBody(creds).SetResult(&out).Post("/api/broker/connect")
	if err != nil {
		return nil, fmt.Errorf("broker connect: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("broker connect: platform returned status %d: %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}
	return &out, nil
}

func (c *Client) DisconnectBroker(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Post("/api/broker/disconnect")
	if err != nil {
		return fmt.Errorf("broker disconnect: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("broker disconnect: platform returned status %d", resp.StatusCode())
	}
	return nil
}

func (c *Client) SetTradingMode(ctx context.Context, mode string) error {
	if mode != "paper" && mode != "live" {
		return fmt.Errorf("set trading mode: invalid mode %q", mode)
	}

	resp, err := c.http.R().SetContext(ctx).SetBody(map[string]string{"mode": mode}).Post("/api/config/mode")
	if err != nil {
		return fmt.Errorf("set trading mode: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("set trading mode: platform returned status %d", resp.StatusCode())
	}
	return nil
}
