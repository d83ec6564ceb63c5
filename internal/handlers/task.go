package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"ecopoints/internal/services"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	tasks  *services.TaskService
	ledger *services.LedgerService
	logger *slog.Logger
}

func NewTaskHandler(tasks *services.TaskService, ledger *services.LedgerService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, ledger: ledger, logger: logger}
}

func (h *TaskHandler) List(c *gin.Context) {
	tasks, err := h.tasks.List(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) Complete(c *gin.Context) {
	var in struct {
		TaskID uint `json:"task_id"`
	}
	if !bindJSON(c, &in) {
		return
	}
	if in.TaskID == 0 {
		badRequest(c, "task_id es obligatorio")
		return
	}
	res, err := h.ledger.ApplyCompletedTask(c.Request.Context(), currentUser(c).ID, in.TaskID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ledgerPayload(res, fmt.Sprintf("¡Tarea completada! +%d puntos", res.Points)))
}

// CustomTask records a manual recycling entry.
func (h *TaskHandler) CustomTask(c *gin.Context) {
	var entry services.ManualEntry
	if !bindJSON(c, &entry) {
		return
	}
	res, err := h.ledger.ApplyManualEntry(c.Request.Context(), currentUser(c).ID, entry)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ledgerPayload(res, fmt.Sprintf("¡Reciclaje registrado! +%d puntos", res.Points)))
}

func ledgerPayload(res *services.LedgerResult, message string) gin.H {
	return gin.H{
		"success":        true,
		"message":        message,
		"points_earned":  res.Points,
		"co2_earned":     res.CO2Saved,
		"total_points":   res.TotalPoints,
		"total_co2":      res.TotalCO2,
		"level":          res.Level,
		"progress":       res.Progress,
		"previous_level": res.PreviousLevel,
		"level_up":       res.LevelUp,
		"record":         res.Record,
	}
}
