package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"ecopoints/internal/events"
	"ecopoints/internal/models"
	"ecopoints/internal/scoring"
	"ecopoints/internal/utils"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var validate = validator.New()

// AccountMailer is the part of MailService the account flows need.
type AccountMailer interface {
	SendWelcomeEmail(email, name string)
	SendTemporaryPassword(email, name, tempPassword string)
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// ProfileUpdate changes only the fields that are set.
type ProfileUpdate struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// UserSummary is one row of the admin user list.
type UserSummary struct {
	ID                 uint      `json:"id"`
	Email              string    `json:"email"`
	Name               string    `json:"name"`
	IsActive           bool      `json:"is_active"`
	IsStaff            bool      `json:"is_staff"`
	MustChangePassword bool      `json:"must_change_password"`
	Points             int       `json:"points"`
	CO2Saved           float64   `json:"co2_saved"`
	Level              string    `json:"level"`
	CreatedAt          time.Time `json:"created_at"`
}

type AccountService struct {
	db         *gorm.DB
	bcryptCost int
	mail       AccountMailer
	tokens     *TokenService
	ranking    *RankingService
	pub        events.Publisher
	logger     *slog.Logger
}

func NewAccountService(db *gorm.DB, bcryptCost int, mail AccountMailer, tokens *TokenService, ranking *RankingService, pub events.Publisher, logger *slog.Logger) *AccountService {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &AccountService{
		db:         db,
		bcryptCost: bcryptCost,
		mail:       mail,
		tokens:     tokens,
		ranking:    ranking,
		pub:        pub,
		logger:     logger,
	}
}

func validateEmail(email string) error {
	if email == "" {
		return Validation("el correo es obligatorio")
	}
	if err := validate.Var(email, "email,max=254"); err != nil {
		return Validation("el correo no es válido")
	}
	return nil
}

// ValidatePassword enforces at least 8 characters with one upper-case letter
// and one digit.
func ValidatePassword(p string) error {
	if len([]rune(p)) < 8 {
		return Validation("la contraseña debe tener al menos 8 caracteres")
	}
	if len(p) > 72 {
		return Validation("la contraseña es demasiado larga")
	}
	var upper, digit bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !digit {
		return Validation("la contraseña debe incluir una mayúscula y un número")
	}
	return nil
}

func cleanName(name, email string) (string, error) {
	name = utils.SanitizeText(name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	if len([]rune(name)) > 100 {
		return "", Validation("el nombre es demasiado largo")
	}
	return name, nil
}

func (s *AccountService) emailTaken(tx *gorm.DB, email string, exceptID uint) (bool, error) {
	var count int64
	q := tx.Model(&models.User{}).Where("LOWER(email) = ?", email)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Register creates an active account with an empty profile.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := utils.NormalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	name, err := cleanName(in.Name, email)
	if err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, Internal("hash password", err)
	}

	user := models.User{Email: email, Name: name, Password: hash, IsActive: true}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := s.emailTaken(tx, email, 0)
		if err != nil {
			return Internal("check email", err)
		}
		if taken {
			return Conflict("el correo ya está registrado")
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return Conflict("el correo ya está registrado")
			}
			return Internal("create user", err)
		}
		level, _ := scoring.LevelName(0)
		profile := models.Profile{UserID: user.ID, Level: level}
		if err := tx.Create(&profile).Error; err != nil {
			return Internal("create profile", err)
		}
		user.Profile = &profile
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.ranking.Invalidate()
	if s.mail != nil {
		s.mail.SendWelcomeEmail(user.Email, user.Name)
	}
	ev := events.New(events.TypeUserRegistered, user.ID)
	ev.Email, ev.Name = user.Email, user.Name
	events.PublishAsync(s.pub, s.logger, ev)
	return &user, nil
}

// Authenticate checks credentials. Suspended accounts are reported only
// once the password matched.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", utils.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Unauthorized("credenciales inválidas")
		}
		return nil, Internal("load user", err)
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, Unauthorized("credenciales inválidas")
	}
	if !s.IsActive(&user) {
		return nil, Forbidden("la cuenta está suspendida")
	}
	return &user, nil
}

func (s *AccountService) IsActive(user *models.User) bool {
	return user != nil && user.IsActive
}

// GetUser loads an account with its profile.
func (s *AccountService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Profile").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("usuario no encontrado")
		}
		return nil, Internal("load user", err)
	}
	return &user, nil
}

// RecoverPassword emails a temporary password when the account exists. The
// caller always sees success.
func (s *AccountService) RecoverPassword(ctx context.Context, email string) error {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", utils.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("recover password lookup failed", slog.String("error", err.Error()))
		}
		return nil
	}
	if err := s.issueTemporaryPassword(ctx, &user); err != nil {
		s.logger.Error("recover password failed", slog.Uint64("user_id", uint64(user.ID)), slog.String("error", err.Error()))
	}
	return nil
}

func (s *AccountService) issueTemporaryPassword(ctx context.Context, user *models.User) error {
	temp, err := utils.GenerateTempPassword(10)
	if err != nil {
		return Internal("generate password", err)
	}
	hash, err := utils.HashPassword(temp, s.bcryptCost)
	if err != nil {
		return Internal("hash password", err)
	}
	err = s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"password":             hash,
		"must_change_password": true,
	}).Error
	if err != nil {
		return Internal("store temporary password", err)
	}
	if s.tokens != nil {
		if err := s.tokens.RevokeAll(ctx, user.ID); err != nil {
			s.logger.Warn("revoke tokens failed", slog.String("error", err.Error()))
		}
	}
	if s.mail != nil {
		s.mail.SendTemporaryPassword(user.Email, user.Name, temp)
	}
	return nil
}

// ChangePassword replaces the password after checking the current one and
// lifts the forced-change flag.
func (s *AccountService) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFound("usuario no encontrado")
		}
		return Internal("load user", err)
	}
	if !utils.CheckPasswordHash(oldPassword, user.Password) {
		return Validation("la contraseña actual no es correcta")
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	if oldPassword == newPassword {
		return Validation("la nueva contraseña debe ser distinta")
	}
	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return Internal("hash password", err)
	}
	err = s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"password":             hash,
		"must_change_password": false,
	}).Error
	if err != nil {
		return Internal("update password", err)
	}
	return nil
}

// UpdateProfile changes name and/or email. A new email must be unused.
func (s *AccountService) UpdateProfile(ctx context.Context, userID uint, upd ProfileUpdate) (*models.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if upd.Email != nil {
		email := utils.NormalizeEmail(*upd.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		if email != user.Email {
			changes["email"] = email
			user.Email = email
		}
	}
	if upd.Name != nil {
		name, err := cleanName(*upd.Name, user.Email)
		if err != nil {
			return nil, err
		}
		changes["name"] = name
		user.Name = name
	}
	if len(changes) == 0 {
		return user, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if email, ok := changes["email"].(string); ok {
			taken, err := s.emailTaken(tx, email, user.ID)
			if err != nil {
				return Internal("check email", err)
			}
			if taken {
				return Conflict("el correo ya está registrado")
			}
		}
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(changes).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return Conflict("el correo ya está registrado")
			}
			return Internal("update profile", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.ranking.Invalidate()
	return user, nil
}

// ListUsers returns every non-superuser account with its totals.
func (s *AccountService) ListUsers(ctx context.Context) ([]UserSummary, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Preload("Profile").
		Where("is_superuser = ?", false).
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, Internal("load users", err)
	}

	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		sum := UserSummary{
			ID:                 u.ID,
			Email:              u.Email,
			Name:               u.Name,
			IsActive:           u.IsActive,
			IsStaff:            u.IsStaff,
			MustChangePassword: u.MustChangePassword,
			CreatedAt:          u.CreatedAt,
		}
		if u.Profile != nil {
			sum.Points = u.Profile.Points
			sum.CO2Saved = u.Profile.CO2Saved
		}
		sum.Level, _ = scoring.LevelName(sum.Points)
		out = append(out, sum)
	}
	return out, nil
}

// moderationTarget loads targetID and rejects self-targeting and superusers.
func (s *AccountService) moderationTarget(ctx context.Context, actor *models.User, targetID uint) (*models.User, error) {
	if actor.ID == targetID {
		return nil, Forbidden("no puedes aplicar esta acción a tu propia cuenta")
	}
	var target models.User
	if err := s.db.WithContext(ctx).First(&target, targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("usuario no encontrado")
		}
		return nil, Internal("load user", err)
	}
	if target.IsSuperuser {
		return nil, Forbidden("no se puede modificar a un superusuario")
	}
	return &target, nil
}

// ToggleActive suspends or reactivates an account.
func (s *AccountService) ToggleActive(ctx context.Context, actor *models.User, targetID uint) (*models.User, error) {
	target, err := s.moderationTarget(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}
	target.IsActive = !target.IsActive
	if err := s.db.WithContext(ctx).Model(target).UpdateColumn("is_active", target.IsActive).Error; err != nil {
		return nil, Internal("toggle active", err)
	}
	if !target.IsActive && s.tokens != nil {
		if err := s.tokens.RevokeAll(ctx, target.ID); err != nil {
			s.logger.Warn("revoke tokens failed", slog.String("error", err.Error()))
		}
	}
	s.ranking.Invalidate()
	s.logger.Info("account active flag toggled",
		slog.Uint64("actor_id", uint64(actor.ID)),
		slog.Uint64("user_id", uint64(target.ID)),
		slog.Bool("is_active", target.IsActive))
	return target, nil
}

// AdminResetPassword runs the recovery flow on behalf of an administrator.
func (s *AccountService) AdminResetPassword(ctx context.Context, actor *models.User, targetID uint) error {
	target, err := s.moderationTarget(ctx, actor, targetID)
	if err != nil {
		return err
	}
	return s.issueTemporaryPassword(ctx, target)
}

// DeleteUser removes an account and everything it owns.
func (s *AccountService) DeleteUser(ctx context.Context, actor *models.User, targetID uint) error {
	target, err := s.moderationTarget(ctx, actor, targetID)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", target.ID).Delete(&models.ActivityRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", target.ID).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", target.ID).Delete(&models.Profile{}).Error; err != nil {
			return err
		}
		return tx.Delete(target).Error
	})
	if err != nil {
		return Internal("delete user", err)
	}
	s.ranking.Invalidate()
	s.logger.Info("account deleted", slog.Uint64("actor_id", uint64(actor.ID)), slog.Uint64("user_id", uint64(target.ID)))
	return nil
}

// EnsureSuperuser creates the bootstrap administrator, or promotes an
// existing account with that email. An empty password skips creation.
func (s *AccountService) EnsureSuperuser(ctx context.Context, email, password, name string) error {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return nil
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err == nil {
		if user.IsSuperuser && user.IsStaff {
			return nil
		}
		return s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
			"is_superuser": true,
			"is_staff":     true,
		}).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if password == "" {
		s.logger.Warn("admin password not set, superuser not created", slog.String("email", email))
		return nil
	}

	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return err
	}
	if name = utils.SanitizeText(name); name == "" {
		name = "Admin"
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user = models.User{
			Email:       email,
			Name:        name,
			Password:    hash,
			IsActive:    true,
			IsStaff:     true,
			IsSuperuser: true,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		level, _ := scoring.LevelName(0)
		if err := tx.Create(&models.Profile{UserID: user.ID, Level: level}).Error; err != nil {
			return err
		}
		s.logger.Info("superuser created", slog.String("email", email))
		return nil
	})
}
