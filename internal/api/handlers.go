package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleBotStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.botAPI.Status())
}

func (s *Server) handleBotState(c *gin.Context) {
	c.JSON(http.StatusOK, s.botAPI.State())
}

func (s *Server) handleLastDecision(c *gin.Context) {
	status := s.botAPI.Status()
	if status.LastDecision == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no decision recorded yet"})
		return
	}
	c.JSON(http.StatusOK, status.LastDecision)
}

// handleBotConfig returns the running configuration minus credentials.
func (s *Server) handleBotConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"market":  s.cfg.MarketConfig,
		"trading": s.cfg.TradingConfig,
		"risk":    s.cfg.RiskConfig,
		"signals": s.cfg.SignalConfig,
	})
}

func (s *Server) handleBotStop(c *gin.Context) {
	s.botAPI.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "stopping"})
}

func (s *Server) handleListTrades(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade history requires the database"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = parsed
	}

	trades, err := s.repo.ListTrades(c.Request.Context(), s.cfg.MarketConfig.Market, limit)
	if err != nil {
		s.logger.Error("Failed to list trades", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list trades"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (s *Server) handleSessionStats(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session stats require the database"})
		return
	}

	stats, err := s.repo.GetSessionStats(c.Request.Context(), s.cfg.MarketConfig.Market)
	if err != nil {
		s.logger.Error("Failed to load session stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
