package handlers

import (
	"log/slog"
	"net/http"

	"ecopoints/internal/middleware"
	"ecopoints/internal/models"
	"ecopoints/internal/scoring"
	"ecopoints/internal/services"

	"github.com/gin-gonic/gin"
)

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindConflict:
		return http.StatusConflict
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": msg} with the status matching the error kind.
// Internal causes are logged and never sent to the client.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	kind := services.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError && logger != nil {
		logger.Error("request failed",
			slog.String("request_id", c.GetString(middleware.RequestIDKey)),
			slog.String("route", c.FullPath()),
			slog.String("error", err.Error()),
		)
	}
	c.JSON(status, gin.H{"error": services.Message(err)})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

// bindJSON decodes the body into dst and answers 400 on malformed input.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "cuerpo de la solicitud inválido")
		return false
	}
	return true
}

func currentUser(c *gin.Context) *models.User {
	return middleware.CurrentUser(c)
}

// userPayload is the public view of an account with its profile totals.
func userPayload(u *models.User) gin.H {
	points, co2 := 0, 0.0
	if u.Profile != nil {
		points, co2 = u.Profile.Points, u.Profile.CO2Saved
	}
	level, progress, err := scoring.LevelFor(points)
	if err != nil {
		level = scoring.Levels[0]
	}
	return gin.H{
		"id":                   u.ID,
		"email":                u.Email,
		"name":                 u.Name,
		"role":                 u.Role(),
		"is_staff":             u.IsStaff,
		"is_superuser":         u.IsSuperuser,
		"must_change_password": u.MustChangePassword,
		"points":               points,
		"co2_saved":            co2,
		"level":                level.Name,
		"progress":             progress,
		"date_joined":          u.CreatedAt,
	}
}
