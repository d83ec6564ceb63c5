package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ecopoints/internal/models"
	"ecopoints/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

// TokenPair is returned on login and refresh.
type TokenPair struct {
	Access           string    `json:"access"`
	Refresh          string    `json:"refresh"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Claims is the access token payload. Subject holds the user ID.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues HS256 access tokens and rotating refresh tokens.
type TokenService struct {
	db         *gorm.DB
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(db *gorm.DB, secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		db:         db,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Issue creates a new pair for user and stores the refresh token hash.
func (s *TokenService) Issue(ctx context.Context, user *models.User) (*TokenPair, error) {
	return s.issue(s.db.WithContext(ctx), user)
}

func (s *TokenService) issue(tx *gorm.DB, user *models.User) (*TokenPair, error) {
	now := s.now().UTC()
	accessExp := now.Add(s.accessTTL)
	claims := Claims{
		Role: user.Role(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, Internal("sign access token", err)
	}

	raw, err := utils.RandomHex(32)
	if err != nil {
		return nil, Internal("generate refresh token", err)
	}
	refreshExp := now.Add(s.refreshTTL)
	rt := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: utils.HashToken(raw),
		ExpiresAt: refreshExp,
	}
	if err := tx.Create(&rt).Error; err != nil {
		return nil, Internal("store refresh token", err)
	}

	return &TokenPair{
		Access:           access,
		Refresh:          raw,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Parse validates an access token and returns its user ID and role.
func (s *TokenService) Parse(token string) (uint, string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return 0, "", Unauthorized("token inválido o expirado")
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, "", Unauthorized("token inválido")
	}
	return uint(id), claims.Role, nil
}

// Refresh exchanges a refresh token for a new pair, revoking the old one.
func (s *TokenService) Refresh(ctx context.Context, raw string) (*TokenPair, *models.User, error) {
	if raw == "" {
		return nil, nil, Unauthorized("refresh token requerido")
	}
	var (
		pair *TokenPair
		user models.User
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rt models.RefreshToken
		if err := tx.Where("token_hash = ?", utils.HashToken(raw)).First(&rt).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Unauthorized("refresh token inválido")
			}
			return Internal("load refresh token", err)
		}
		now := s.now().UTC()
		if !rt.Usable(now) {
			return Unauthorized("refresh token expirado o revocado")
		}

		// conditional update so two concurrent refreshes cannot both win
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", rt.ID).
			Update("revoked_at", now)
		if res.Error != nil {
			return Internal("revoke refresh token", res.Error)
		}
		if res.RowsAffected == 0 {
			return Unauthorized("refresh token expirado o revocado")
		}

		if err := tx.First(&user, rt.UserID).Error; err != nil {
			return Unauthorized("usuario no encontrado")
		}
		if !user.IsActive {
			return Forbidden("la cuenta está suspendida")
		}

		var err error
		pair, err = s.issue(tx, &user)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return pair, &user, nil
}

// Revoke invalidates one refresh token. Unknown tokens are ignored.
func (s *TokenService) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", utils.HashToken(raw)).
		Update("revoked_at", s.now().UTC()).Error
	if err != nil {
		return Internal("revoke refresh token", err)
	}
	return nil
}

// RevokeAll invalidates every refresh token of a user.
func (s *TokenService) RevokeAll(ctx context.Context, userID uint) error {
	err := s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", s.now().UTC()).Error
	if err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}
