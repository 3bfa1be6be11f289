package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"HedgeLedger/internal/core"
	"HedgeLedger/internal/observability"
	"HedgeLedger/internal/query"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Server wires the HTTP API around the engine and the query service.
// Commands carry the acting wallet in the request body; this surface
// performs no authentication of its own and is meant to sit behind a
// gateway that does.
type Server struct {
	Router  *gin.Engine
	engine  *core.Engine
	queries *query.Service
	health  *observability.HealthChecker
	metrics *observability.Metrics
	log     zerolog.Logger

	httpSrv *http.Server
}

func NewServer(engine *core.Engine, queries *query.Service, health *observability.HealthChecker, metrics *observability.Metrics, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		Router:  r,
		engine:  engine,
		queries: queries,
		health:  health,
		metrics: metrics,
		log:     log.With().Str("component", "http").Logger(),
	}
	r.Use(s.requestLogger())
	r.Use(s.requestMetrics())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/healthz", gin.WrapF(s.health.LivenessHandler))
	s.Router.GET("/readyz", gin.WrapF(s.health.ReadinessHandler))

	api := s.Router.Group("/api/v1")
	{
		// Read side
		api.GET("/balances/:wallet", s.getBalances)
		api.GET("/balances/:wallet/:asset", s.getBalance)
		api.GET("/hedges", s.listHedges)
		api.GET("/hedges/:id", s.getHedge)
		api.GET("/wallets/:wallet/created", s.listCreatedBy)
		api.GET("/wallets/:wallet/taken", s.listTakenBy)
		api.GET("/wallets/:wallet/bookmarks", s.listBookmarks)
		api.GET("/wallets/:wallet/pnl", s.getPnL)
		api.GET("/assets/:asset/hedges", s.listByAsset)
		api.GET("/assets/:asset/settled", s.listSettledByAsset)
		api.GET("/assets/:asset/activity", s.getAssetActivity)
		api.GET("/assets/:asset/totals", s.getProtocolTotals)
		api.GET("/stats", s.getCounters)
		api.GET("/fees/rate", s.getFeeRate)

		// Command side
		api.POST("/deposits", s.postDeposit)
		api.POST("/withdrawals", s.postWithdrawal)
		api.POST("/hedges", s.postCreateHedge)
		api.POST("/hedges/:id/take", s.postTakeHedge)
		api.POST("/hedges/:id/settle", s.postSettleHedge)
		api.POST("/hedges/:id/zap", s.postRequestZap)
		api.POST("/hedges/:id/topups", s.postRequestTopUp)
		api.DELETE("/hedges/:id", s.deleteHedge)
		api.POST("/topups/:id/increase", s.postIncreaseTopUp)
		api.POST("/topups/:id/accept", s.postAcceptTopUp)
		api.POST("/topups/:id/reject", s.postRejectTopUp)
		api.POST("/topups/:id/cancel", s.postCancelTopUp)
		api.POST("/bookmarks/:id/toggle", s.postToggleBookmark)

		// Operator controls
		api.PUT("/fees/rate", s.putFeeRate)
		api.POST("/assets", s.postRegisterAsset)
	}
}

// Start runs the HTTP server until the context is canceled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}
