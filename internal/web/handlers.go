package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/camuig/chartvision-agent/internal/notify"
	"github.com/camuig/chartvision-agent/internal/platform"
	"github.com/camuig/chartvision-agent/internal/session"
	"github.com/camuig/chartvision-agent/internal/trading"
)

type statusResponse struct {
	Session    sessionView       `json:"session"`
	Connection string            `json:"connection"`
	Scheduler  interface{}       `json:"scheduler"`
	Position   *trading.Position `json:"position"`
	AutoTrade  bool              `json:"auto_trade"`
	KillSwitch bool              `json:"kill_switch"`
	Inputs     int               `json:"active_inputs"`
}

type sessionView struct {
	Active          bool   `json:"active"`
	BrokerConnected bool   `json:"broker_connected"`
	BrokerType      string `json:"broker_type,omitempty"`
	TradingMode     string `json:"trading_mode"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	sess := s.session()

	connection := "DISCONNECTED"
	if s.streamMgr != nil {
		connection = s.streamMgr.State().String()
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Session: sessionView{
			Active:          sess.Active(),
			BrokerConnected: sess.BrokerConnected,
			BrokerType:      sess.BrokerType,
			TradingMode:     sess.TradingMode,
		},
		Connection: connection,
		Scheduler:  s.sched.Snapshot(),
		Position:   s.gate.Position(),
		AutoTrade:  s.gate.AutoTrade(),
		KillSwitch: s.interlock.Engaged(),
		Inputs:     s.frames.ActiveInputs(),
	})
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var img platform.ChartImage
	if err := json.NewDecoder(r.Body).Decode(&img); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.frames.Put(img); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "success",
		"active_inputs": s.frames.ActiveInputs(),
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	// Detached from the request context: an analysis, once started, is
	// never aborted mid-flight.
	go s.sched.TriggerAnalysis(s.baseCtx)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

func (s *Server) handleAutoStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var body struct {
		IntervalSeconds int `json:"interval_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.IntervalSeconds == 0 {
		body.IntervalSeconds = s.config.Analysis.IntervalSeconds
	}

	if err := s.sched.StartAuto(s.baseCtx, body.IntervalSeconds); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sched.Snapshot())
}

func (s *Server) handleAutoStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.sched.StopAuto()
	writeJSON(w, http.StatusOK, s.sched.Snapshot())
}

func (s *Server) handleKillSwitch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var body struct {
		Engaged bool `json:"engaged"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if body.Engaged {
		if s.interlock.Engage() {
			s.queue.Push(notify.LevelWarning, "Kill switch engaged", "All automated trading suspended")
		}
	} else {
		if s.interlock.Reset() {
			s.queue.Push(notify.LevelInfo, "Kill switch reset", "Automation may be re-armed manually")
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"engaged": s.interlock.Engaged()})
}

func (s *Server) handleTradeEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var body struct {
		Side     string  `json:"side"`
		Entry    float64 `json:"entry"`
		Stoploss float64 `json:"stoploss"`
		Target   float64 `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := s.gate.EnterManual(s.baseCtx, trading.Side(body.Side), body.Entry, body.Stoploss, body.Target)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.gate.Position())
	case errors.Is(err, trading.ErrInvalidSide), errors.Is(err, trading.ErrInvalidEntry):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, trading.ErrInterlockEngaged), errors.Is(err, trading.ErrPositionOpen):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) handleTradeExit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var body struct {
		Reason    string  `json:"reason"`
		ExitPrice float64 `json:"exit_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Reason == "" {
		body.Reason = "MANUAL"
	}

	err := s.gate.Exit(s.baseCtx, body.Reason, body.ExitPrice)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
	case errors.Is(err, trading.ErrNoPosition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.signals.History())
}

// handleSignalLog serves the persisted signal log, which survives restarts
// unlike the in-memory history.
func (s *Server) handleSignalLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	logs, err := s.repo.GetRecentSignals(50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	trades, err := s.repo.GetRecentTrades(50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.repo.GetTotalPnL()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades":    trades,
		"total_pnl": total,
	})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.queue.Recent())
}

func (s *Server) handleStreamRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.streamMgr == nil {
		writeError(w, http.StatusConflict, "no active session, push channel unavailable")
		return
	}
	s.streamMgr.Restart()
	writeJSON(w, http.StatusOK, map[string]string{"connection": s.streamMgr.State().String()})
}

func (s *Server) handleBrokerConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if sess := s.session(); !sess.Active() {
		writeError(w, http.StatusConflict, "no active session")
		return
	}

	var creds platform.BrokerCredentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	status, err := s.client.ConnectBroker(r.Context(), &creds)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.updateSession(func(sess *session.Session) {
		sess.BrokerConnected = true
		sess.BrokerType = creds.Broker
	})
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleBrokerDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if sess := s.session(); !sess.Active() {
		writeError(w, http.StatusConflict, "no active session")
		return
	}

	if err := s.client.DisconnectBroker(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.updateSession(func(sess *session.Session) {
		sess.BrokerConnected = false
		sess.BrokerType = ""
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.client.SetTradingMode(r.Context(), body.Mode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.updateSession(func(sess *session.Session) {
		sess.TradingMode = body.Mode
	})
	writeJSON(w, http.StatusOK, map[string]string{"trading_mode": body.Mode})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
