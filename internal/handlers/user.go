package handlers

import (
	"log/slog"
	"net/http"

	"ecopoints/internal/services"
	"ecopoints/internal/utils"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	accounts *services.AccountService
	stats    *services.StatsService
	logger   *slog.Logger
}

func NewUserHandler(accounts *services.AccountService, stats *services.StatsService, logger *slog.Logger) *UserHandler {
	return &UserHandler{accounts: accounts, stats: stats, logger: logger}
}

func (h *UserHandler) Profile(c *gin.Context) {
	user, err := h.accounts.GetUser(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, userPayload(user))
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var upd services.ProfileUpdate
	if !bindJSON(c, &upd) {
		return
	}
	user, err := h.accounts.UpdateProfile(c.Request.Context(), currentUser(c).ID, upd)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Perfil actualizado",
		"user":    userPayload(user),
	})
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	var in struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if !bindJSON(c, &in) {
		return
	}
	err := h.accounts.ChangePassword(c.Request.Context(), currentUser(c).ID, in.OldPassword, in.NewPassword)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Contraseña actualizada"})
}

func (h *UserHandler) Dashboard(c *gin.Context) {
	dash, err := h.stats.UserDashboard(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

// History lists the caller's latest activity records, newest first.
func (h *UserHandler) History(c *gin.Context) {
	limit := utils.StringToInt(c.DefaultQuery("limit", "50"))
	records, err := h.stats.History(c.Request.Context(), currentUser(c).ID, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, records)
}
