package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/vitos/perp_sim/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	router   *http.ServeMux
	server   *http.Server
	trading  *usecase.TradingService
	wallet   *usecase.WalletService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewServer(
	port int,
	trading *usecase.TradingService,
	wallet *usecase.WalletService,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:  http.NewServeMux(),
		trading: trading,
		wallet:  wallet,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Demo UI may be served from another origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	// Market
	s.router.HandleFunc("GET /api/pairs", s.handlePairs)
	s.router.HandleFunc("POST /api/market", s.handleLoadMarket)
	s.router.HandleFunc("GET /api/candles", s.handleCandles)
	s.router.HandleFunc("GET /api/orderbook", s.handleOrderBook)
	s.router.HandleFunc("GET /api/price", s.handlePrice)

	// Positions
	s.router.HandleFunc("GET /api/positions", s.handleListPositions)
	s.router.HandleFunc("POST /api/positions", s.handleOpenPosition)
	s.router.HandleFunc("PATCH /api/positions/{id}", s.handleUpdatePosition)
	s.router.HandleFunc("DELETE /api/positions/{id}", s.handleClosePosition)

	// Trades
	s.router.HandleFunc("GET /api/trades", s.handleTrades)
	s.router.HandleFunc("GET /api/stats", s.handleStats)

	// Alerts
	s.router.HandleFunc("GET /api/alerts", s.handleListAlerts)
	s.router.HandleFunc("POST /api/alerts", s.handleAddAlert)
	s.router.HandleFunc("PATCH /api/alerts/{id}", s.handleToggleAlert)
	s.router.HandleFunc("DELETE /api/alerts/{id}", s.handleDeleteAlert)

	// Wallet
	s.router.HandleFunc("GET /api/wallet", s.handleGetWallet)
	s.router.HandleFunc("POST /api/wallet/connect", s.handleConnectWallet)
	s.router.HandleFunc("POST /api/wallet/disconnect", s.handleDisconnectWallet)
	s.router.HandleFunc("POST /api/wallet/withdraw", s.handleWithdraw)
	s.router.HandleFunc("POST /api/wallet/faucet", s.handleFaucet)

	// Stream
	s.router.HandleFunc("GET /ws", s.handleStream)

	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
