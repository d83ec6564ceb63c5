package router

import (
	"ecopoints/internal/handlers"
	"ecopoints/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups every HTTP handler the API exposes.
type Handlers struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	User    *handlers.UserHandler
	Task    *handlers.TaskHandler
	Ranking *handlers.RankingHandler
	Admin   *handlers.AdminHandler
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	r.GET("/healthz", h.Health.Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// Public
	api.POST("/register/", h.Auth.Register)
	api.POST("/login/", h.Auth.Login)
	api.POST("/recover/", h.Auth.Recover)
	api.POST("/token/refresh/", h.Auth.Refresh)
	api.POST("/logout/", h.Auth.Logout)
	api.GET("/ranking/", h.Ranking.Top)
	api.GET("/levels/", h.Ranking.Levels)

	// Profile stays reachable while a temporary password is pending.
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/profile/", h.User.Profile)
		authorized.PUT("/profile/", h.User.UpdateProfile)
		authorized.PUT("/profile/password/", h.User.ChangePassword)
	}

	fresh := authorized.Group("")
	fresh.Use(middleware.PasswordFresh())
	{
		fresh.GET("/dashboard/", h.User.Dashboard)
		fresh.GET("/history/", h.User.History)
		fresh.GET("/tasks/", h.Task.List)
		fresh.POST("/task/complete/", h.Task.Complete)
		fresh.POST("/custom-task/", h.Task.CustomTask)
	}

	admin := fresh.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.GET("/users/", h.Admin.ListUsers)
		admin.PUT("/users/", h.Admin.UpdateUser)
		admin.DELETE("/users/:id/", h.Admin.DeleteUser)
		admin.POST("/tasks/create/", h.Admin.CreateTask)
		admin.PUT("/tasks/:id/", h.Admin.UpdateTask)
		admin.DELETE("/tasks/:id/", h.Admin.DeleteTask)
		admin.GET("/dashboard/", h.Admin.Dashboard)
	}
}
