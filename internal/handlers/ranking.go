package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"ecopoints/internal/scoring"
	"ecopoints/internal/services"

	"github.com/gin-gonic/gin"
)

type RankingHandler struct {
	ranking *services.RankingService
	logger  *slog.Logger
}

func NewRankingHandler(ranking *services.RankingService, logger *slog.Logger) *RankingHandler {
	return &RankingHandler{ranking: ranking, logger: logger}
}

// Top returns the leaderboard. ?limit= is clamped to [1, MaxRankingLimit].
func (h *RankingHandler) Top(c *gin.Context) {
	limit := services.DefaultRankingLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "limit debe ser un número")
			return
		}
		limit = n
	}
	entries, err := h.ranking.Top(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Levels lists the level table. The open top tier has a null max.
func (h *RankingHandler) Levels(c *gin.Context) {
	out := make([]gin.H, 0, len(scoring.Levels))
	for _, l := range scoring.Levels {
		var upper any = l.Max
		if l.Open() {
			upper = nil
		}
		out = append(out, gin.H{"name": l.Name, "min": l.Min, "max": upper})
	}
	c.JSON(http.StatusOK, out)
}
