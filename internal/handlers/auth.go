package handlers

import (
	"log/slog"
	"net/http"

	"ecopoints/internal/middleware"
	"ecopoints/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	accounts *services.AccountService
	tokens   *services.TokenService
	logger   *slog.Logger
}

func NewAuthHandler(accounts *services.AccountService, tokens *services.TokenService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, tokens: tokens, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Register creates an account and signs it in.
func (h *AuthHandler) Register(c *gin.Context) {
	var in services.RegisterInput
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.accounts.Register(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	pair, err := h.tokens.Issue(c.Request.Context(), user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.startSession(c, user.ID)
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Usuario registrado exitosamente",
		"user":    userPayload(user),
		"tokens":  pair,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var in loginRequest
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.accounts.Authenticate(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	pair, err := h.tokens.Issue(c.Request.Context(), user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.startSession(c, user.ID)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    userPayload(user),
		"tokens":  pair,
	})
}

// Recover always answers success so account existence is not disclosed.
func (h *AuthHandler) Recover(c *gin.Context) {
	var in struct {
		Email string `json:"email"`
	}
	if !bindJSON(c, &in) {
		return
	}
	if in.Email == "" {
		badRequest(c, "el email es obligatorio")
		return
	}
	_ = h.accounts.RecoverPassword(c.Request.Context(), in.Email)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Si el correo está registrado, recibirás una contraseña temporal",
	})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var in refreshRequest
	if !bindJSON(c, &in) {
		return
	}
	pair, _, err := h.tokens.Refresh(c.Request.Context(), in.Refresh)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tokens": pair})
}

// Logout revokes the given refresh token, if any, and clears the session.
func (h *AuthHandler) Logout(c *gin.Context) {
	var in refreshRequest
	_ = c.ShouldBindJSON(&in)
	if in.Refresh != "" {
		if err := h.tokens.Revoke(c.Request.Context(), in.Refresh); err != nil {
			h.logger.Warn("revoke refresh token failed", slog.String("error", err.Error()))
		}
	}
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		h.logger.Warn("clear session failed", slog.String("error", err.Error()))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Sesión cerrada"})
}

func (h *AuthHandler) startSession(c *gin.Context, userID uint) {
	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, userID)
	if err := session.Save(); err != nil {
		h.logger.Warn("save session failed", slog.String("error", err.Error()))
	}
}
