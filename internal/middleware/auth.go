package middleware

import (
	"context"
	"net/http"
	"strings"

	"ecopoints/internal/models"
	"ecopoints/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	CheckUserKey   = "user"
	SessionUserKey = "user_id"
)

// UserLoader resolves an account by ID.
type UserLoader interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
}

// TokenParser validates access tokens.
type TokenParser interface {
	Parse(token string) (uint, string, error)
}

// LoadUser resolves the caller from a Bearer access token or, failing that,
// from the session cookie, and stores it under CheckUserKey.
func LoadUser(users UserLoader, tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID uint
		if raw, ok := bearerToken(c); ok {
			if id, _, err := tokens.Parse(raw); err == nil {
				userID = id
			}
		} else if v := sessions.Default(c).Get(SessionUserKey); v != nil {
			if id, ok := v.(uint); ok {
				userID = id
			}
		}

		if userID != 0 {
			if user, err := users.GetUser(c.Request.Context(), userID); err == nil {
				c.Set(CheckUserKey, user)
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[7:])
	return tok, tok != ""
}

// CurrentUser returns the authenticated account or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(CheckUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// AuthRequired rejects anonymous and suspended callers.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "autenticación requerida"})
			return
		}
		if !user.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "la cuenta está suspendida"})
			return
		}
		c.Next()
	}
}

// PasswordFresh blocks accounts that must replace a temporary password.
func PasswordFresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := CurrentUser(c); user != nil && user.MustChangePassword {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":                "debes cambiar tu contraseña temporal",
				"must_change_password": true,
			})
			return
		}
		c.Next()
	}
}

// AdminRequired allows staff and superusers only. Run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "acceso restringido a administradores"})
			return
		}
		c.Next()
	}
}

var (
	_ UserLoader  = (*services.AccountService)(nil)
	_ TokenParser = (*services.TokenService)(nil)
)
