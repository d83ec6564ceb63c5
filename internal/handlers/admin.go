package handlers

import (
	"log/slog"
	"net/http"

	"ecopoints/internal/services"
	"ecopoints/internal/utils"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	accounts *services.AccountService
	tasks    *services.TaskService
	stats    *services.StatsService
	logger   *slog.Logger
}

func NewAdminHandler(accounts *services.AccountService, tasks *services.TaskService, stats *services.StatsService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{accounts: accounts, tasks: tasks, stats: stats, logger: logger}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.accounts.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// UpdateUser runs a moderation action on one account.
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	var in struct {
		UserID uint   `json:"user_id"`
		Action string `json:"action"`
	}
	if !bindJSON(c, &in) {
		return
	}
	if in.UserID == 0 {
		badRequest(c, "user_id es obligatorio")
		return
	}
	actor := currentUser(c)
	ctx := c.Request.Context()

	switch in.Action {
	case "toggle_active":
		user, err := h.accounts.ToggleActive(ctx, actor, in.UserID)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		message := "Usuario suspendido"
		if user.IsActive {
			message = "Usuario reactivado"
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": message, "is_active": user.IsActive})
	case "reset_password":
		if err := h.accounts.AdminResetPassword(ctx, actor, in.UserID); err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Contraseña temporal enviada"})
	default:
		badRequest(c, "acción no válida")
	}
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := utils.ParseUint(c.Param("id"))
	if !ok {
		badRequest(c, "id inválido")
		return
	}
	if err := h.accounts.DeleteUser(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Usuario eliminado"})
}

func (h *AdminHandler) CreateTask(c *gin.Context) {
	var in services.TaskInput
	if !bindJSON(c, &in) {
		return
	}
	task, err := h.tasks.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Tarea creada", "task": task})
}

func (h *AdminHandler) UpdateTask(c *gin.Context) {
	id, ok := utils.ParseUint(c.Param("id"))
	if !ok {
		badRequest(c, "id inválido")
		return
	}
	var patch services.TaskPatch
	if !bindJSON(c, &patch) {
		return
	}
	task, err := h.tasks.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Tarea actualizada", "task": task})
}

func (h *AdminHandler) DeleteTask(c *gin.Context) {
	id, ok := utils.ParseUint(c.Param("id"))
	if !ok {
		badRequest(c, "id inválido")
		return
	}
	if err := h.tasks.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Tarea eliminada"})
}

func (h *AdminHandler) Dashboard(c *gin.Context) {
	dash, err := h.stats.AdminDashboard(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}
