package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type pageQuery struct {
	Start int `form:"start"`
	Limit int `form:"limit"`
}

func walletParam(c *gin.Context) (uuid.UUID, bool) {
	w, err := uuid.Parse(c.Param("wallet"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid wallet id")
		return uuid.Nil, false
	}
	return w, true
}

func idParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (s *Server) getBalances(c *gin.Context) {
	wallet, ok := walletParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": s.queries.Balances(wallet)})
}

func (s *Server) getBalance(c *gin.Context) {
	wallet, ok := walletParam(c)
	if !ok {
		return
	}
	bal, err := s.queries.Balance(wallet, c.Param("asset"))
	if err != nil {
		respondError(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, bal)
}

func (s *Server) getHedge(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	h, err := s.queries.Hedge(id)
	if err != nil {
		respondError(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, h)
}

// listHedges pages the global indices, selected by ?scope=created|taken|settled.
func (s *Server) listHedges(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	switch c.DefaultQuery("scope", "created") {
	case "created":
		c.JSON(http.StatusOK, s.queries.AllCreated(q.Start, q.Limit))
	case "taken":
		c.JSON(http.StatusOK, s.queries.AllTaken(q.Start, q.Limit))
	case "settled":
		c.JSON(http.StatusOK, s.queries.AllSettled(q.Start, q.Limit))
	default:
		respondError(c, http.StatusBadRequest, "scope must be created, taken or settled")
	}
}

func (s *Server) listCreatedBy(c *gin.Context) {
	wallet, ok := walletParam(c)
	if !ok {
		return
	}
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, s.queries.CreatedBy(wallet, q.Start, q.Limit))
}

func (s *Server) listTakenBy(c *gin.Context) {
	wallet, ok := walletParam(c)
	if !ok {
		return
	}
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, s.queries.TakenBy(wallet, q.Start, q.Limit))
}

func (s *Server) listBookmarks(c *gin.Context) {
	wallet, ok := walletParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarks": s.queries.Bookmarks(wallet)})
}

func (s *Server) getPnL(c *gin.Context) {
	wallet, ok := walletParam(c)
	if !ok {
		return
	}
	currency := c.DefaultQuery("currency", "USDT")
	pnl, err := s.queries.PnL(wallet, currency)
	if err != nil {
		respondError(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"currency": currency,
		"profits":  pnl.Profits,
		"losses":   pnl.Losses,
	})
}

func (s *Server) listByAsset(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	page, err := s.queries.ByAsset(c.Param("asset"), q.Start, q.Limit)
	if err != nil {
		respondError(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) listSettledByAsset(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	page, err := s.queries.SettledByAsset(c.Param("asset"), q.Start, q.Limit)
	if err != nil {
		respondError(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) getAssetActivity(c *gin.Context) {
	stats, err := s.queries.AssetActivity(c.Param("asset"))
	if err != nil {
		respondError(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) getProtocolTotals(c *gin.Context) {
	totals, err := s.queries.ProtocolTotals(c.Param("asset"))
	if err != nil {
		respondError(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, totals)
}

func (s *Server) getCounters(c *gin.Context) {
	c.JSON(http.StatusOK, s.queries.Counters())
}

func (s *Server) getFeeRate(c *gin.Context) {
	num, den := s.engine.FeeRate()
	c.JSON(http.StatusOK, gin.H{"numerator": num, "denominator": den})
}
