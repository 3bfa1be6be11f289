package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"HedgeLedger/internal/core"
	"HedgeLedger/internal/fee"
	"HedgeLedger/internal/ledger"
	"HedgeLedger/internal/oracle"

	"github.com/gin-gonic/gin"
)

// requestLogger logs completed requests at debug, failures at warn.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := s.log.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = s.log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}

// requestMetrics records per-endpoint counters and latency.
func (s *Server) requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if s.metrics == nil {
			return
		}
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		s.metrics.QueryRequests.WithLabelValues(endpoint, status).Inc()
		s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// respondEngineError maps the engine error taxonomy onto HTTP statuses.
func respondEngineError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrInvalidParameters):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, core.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, core.ErrInsufficientCollateral),
		errors.Is(err, fee.ErrAmountTooSmall):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, oracle.ErrNoMarketPair),
		errors.Is(err, oracle.ErrStaleQuote),
		errors.Is(err, core.ErrOracle):
		status = http.StatusServiceUnavailable
	}
	respondError(c, status, err.Error())
}
