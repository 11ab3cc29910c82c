package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/vitos/perp_sim/internal/domain"
	"github.com/vitos/perp_sim/internal/usecase"
	"go.uber.org/zap"
)

const defaultTradesLimit = 50

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidLeverage),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidDirection),
		errors.Is(err, domain.ErrInvalidCondition),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrUnknownPair):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrPositionNotFound),
		errors.Is(err, domain.ErrAlertNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrWalletNotConnected),
		errors.Is(err, domain.ErrMarketNotLoaded):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrFaucetCooldown):
		status = http.StatusTooManyRequests
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return nil
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

// Market

func (s *Server) handlePairs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.trading.Pairs())
}

func (s *Server) handleLoadMarket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pair      string `json:"pair"`
		Timeframe string `json:"timeframe"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	m, err := s.trading.LoadPair(r.Context(), req.Pair, req.Timeframe)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.trading.Candles())
}

func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.trading.OrderBook())
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	m := s.trading.Market()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"pair":      m.Pair.Name,
		"timeframe": m.Timeframe,
		"price":     m.Price(),
	})
}

// Positions

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.trading.Positions())
}

func (s *Server) handleOpenPosition(w http.ResponseWriter, r *http.Request) {
	// Leverage defaults to 1 only when the field is absent.
	var req struct {
		usecase.OpenRequest
		Leverage *int `json:"leverage"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	req.OpenRequest.Leverage = 1
	if req.Leverage != nil {
		req.OpenRequest.Leverage = *req.Leverage
	}
	pos, err := s.trading.OpenPosition(r.Context(), req.OpenRequest)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, pos)
}

func (s *Server) handleUpdatePosition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StopLoss   *float64 `json:"stop_loss"`
		TakeProfit *float64 `json:"take_profit"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	pos, err := s.trading.UpdateRiskLimits(r.Context(), r.PathValue("id"), req.StopLoss, req.TakeProfit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	record, err := s.trading.ClosePosition(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

// Trades

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := defaultTradesLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.badRequest(w, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	history := s.trading.History()
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.trading.Stats())
}

// Alerts

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.trading.Alerts())
}

func (s *Server) handleAddAlert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pair      string                `json:"pair"`
		Price     float64               `json:"price"`
		Condition domain.AlertCondition `json:"condition"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	alert, err := s.trading.AddAlert(r.Context(), req.Pair, req.Price, req.Condition)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, alert)
}

func (s *Server) handleToggleAlert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	if req.IsActive == nil {
		s.badRequest(w, errors.New("is_active is required"))
		return
	}
	alert, err := s.trading.ToggleAlert(r.Context(), r.PathValue("id"), *req.IsActive)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.trading.DeleteAlert(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Wallet

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.wallet.Wallet()
	if !ok {
		s.writeJSON(w, http.StatusOK, map[string]any{"connected": false})
		return
	}
	s.writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleConnectWallet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type domain.WalletType `json:"type"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	wallet, err := s.wallet.Connect(r.Context(), req.Type)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleDisconnectWallet(w http.ResponseWriter, r *http.Request) {
	if err := s.wallet.Disconnect(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token  domain.Token `json:"token"`
		Amount float64      `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	wallet, err := s.wallet.Withdraw(r.Context(), req.Token, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	wallet, err := s.wallet.ClaimFaucet(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, wallet)
}

// Status

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	m := s.trading.Market()
	remaining, err := s.wallet.FaucetRemaining(r.Context())
	if err != nil {
		s.logger.Warn("Failed to read faucet cooldown", zap.Error(err))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"pair":             m.Pair.Name,
		"timeframe":        m.Timeframe,
		"price":            m.Price(),
		"ticks":            m.Ticks,
		"wallet_connected": s.wallet.Connected(),
		"faucet_remaining": remaining.Round(time.Second).String(),
		"open_positions":   len(s.trading.Positions()),
	})
}
