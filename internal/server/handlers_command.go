package server

import (
	"context"
	"net/http"
	"time"

	"HedgeLedger/internal/core"
	"HedgeLedger/internal/hedge"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fundsRequest struct {
	Wallet uuid.UUID `json:"wallet" binding:"required"`
	Asset  string    `json:"asset" binding:"required"`
	Amount int64     `json:"amount" binding:"gt=0"`
}

type createHedgeRequest struct {
	Wallet      uuid.UUID `json:"wallet" binding:"required"`
	Instrument  string    `json:"instrument" binding:"required,oneof=call put swap"`
	Asset       string    `json:"asset" binding:"required"`
	Amount      int64     `json:"amount" binding:"gt=0"`
	Cost        int64     `json:"cost" binding:"gt=0"`
	StrikePrice int64     `json:"strike_price"`
	Expiry      time.Time `json:"expiry" binding:"required"`
}

type actorRequest struct {
	Wallet uuid.UUID `json:"wallet" binding:"required"`
}

type topUpRequest struct {
	Wallet uuid.UUID `json:"wallet" binding:"required"`
	Amount int64     `json:"amount" binding:"gt=0"`
}

type feeRateRequest struct {
	Wallet      uuid.UUID `json:"wallet" binding:"required"`
	Numerator   int64     `json:"numerator" binding:"gte=0"`
	Denominator int64     `json:"denominator" binding:"gt=0"`
}

type registerAssetRequest struct {
	Wallet uuid.UUID `json:"wallet" binding:"required"`
	Symbol string    `json:"symbol" binding:"required,min=1,max=16"`
}

func parseInstrument(s string) hedge.Instrument {
	switch s {
	case "call":
		return hedge.InstrumentCall
	case "put":
		return hedge.InstrumentPut
	default:
		return hedge.InstrumentSwap
	}
}

func (s *Server) postDeposit(c *gin.Context) {
	var req fundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	asset, err := s.queries.ResolveAsset(req.Asset)
	if err != nil {
		respondError(c, http.StatusNotFound, err.Error())
		return
	}
	received, err := s.engine.Deposit(c.Request.Context(), req.Wallet, asset, req.Amount)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requested": req.Amount, "received": received})
}

func (s *Server) postWithdrawal(c *gin.Context) {
	var req fundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	asset, err := s.queries.ResolveAsset(req.Asset)
	if err != nil {
		respondError(c, http.StatusNotFound, err.Error())
		return
	}
	if err := s.engine.Withdraw(c.Request.Context(), req.Wallet, asset, req.Amount); err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawn": req.Amount})
}

func (s *Server) postCreateHedge(c *gin.Context) {
	var req createHedgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	asset, err := s.queries.ResolveAsset(req.Asset)
	if err != nil {
		respondError(c, http.StatusNotFound, err.Error())
		return
	}
	id, err := s.engine.CreateHedge(c.Request.Context(), req.Wallet, core.CreateParams{
		Instrument:  parseInstrument(req.Instrument),
		Asset:       asset,
		Amount:      req.Amount,
		Cost:        req.Cost,
		StrikePrice: req.StrikePrice,
		Expiry:      req.Expiry,
	})
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) postTakeHedge(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.TakeHedge(c.Request.Context(), req.Wallet, id); err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": hedge.StatusTaken.String()})
}

func (s *Server) postSettleHedge(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.engine.Settle(c.Request.Context(), req.Wallet, id)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) deleteHedge(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.DeleteHedge(c.Request.Context(), req.Wallet, id); err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}

func (s *Server) postRequestZap(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.RequestZap(c.Request.Context(), req.Wallet, id); err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "zap": true})
}

func (s *Server) postRequestTopUp(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	topUpID, err := s.engine.RequestTopUp(c.Request.Context(), req.Wallet, id, req.Amount)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"topup_id": topUpID})
}

func (s *Server) postIncreaseTopUp(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.IncreaseTopUp(c.Request.Context(), req.Wallet, id, req.Amount); err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topup_id": id})
}

func (s *Server) postAcceptTopUp(c *gin.Context) {
	s.resolveTopUp(c, s.engine.AcceptTopUp)
}

func (s *Server) postRejectTopUp(c *gin.Context) {
	s.resolveTopUp(c, s.engine.RejectTopUp)
}

func (s *Server) postCancelTopUp(c *gin.Context) {
	s.resolveTopUp(c, s.engine.CancelTopUp)
}

func (s *Server) resolveTopUp(c *gin.Context, op func(ctx context.Context, caller uuid.UUID, topUpID uint64) error) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := op(c.Request.Context(), req.Wallet, id); err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topup_id": id})
}

func (s *Server) postToggleBookmark(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	bookmarked, err := s.engine.ToggleBookmark(req.Wallet, id)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "bookmarked": bookmarked})
}

func (s *Server) putFeeRate(c *gin.Context) {
	var req feeRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.SetFeeRate(req.Wallet, req.Numerator, req.Denominator); err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"numerator": req.Numerator, "denominator": req.Denominator})
}

func (s *Server) postRegisterAsset(c *gin.Context) {
	var req registerAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.engine.RegisterAsset(req.Wallet, req.Symbol)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"asset_id": id, "symbol": req.Symbol})
}
