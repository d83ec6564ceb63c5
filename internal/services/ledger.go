package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ecopoints/internal/events"
	"ecopoints/internal/metrics"
	"ecopoints/internal/models"
	"ecopoints/internal/scoring"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxManualQuantity bounds a single manual entry.
const MaxManualQuantity = 1000

// ManualEntry is a self-reported recycling action. Barcode is accepted for
// client compatibility and does not affect scoring.
type ManualEntry struct {
	Material string `json:"material"`
	Quantity int    `json:"quantity"`
	Barcode  string `json:"barcode,omitempty"`
}

// LedgerResult describes one applied entry and the resulting totals.
type LedgerResult struct {
	Record        models.ActivityRecord `json:"record"`
	Points        int                   `json:"points"`
	CO2Saved      float64               `json:"co2_saved"`
	TotalPoints   int                   `json:"total_points"`
	TotalCO2      float64               `json:"total_co2"`
	Level         string                `json:"level"`
	Progress      int                   `json:"progress"`
	PreviousLevel string                `json:"previous_level"`
	LevelUp       bool                  `json:"level_up"`
}

// LedgerService is the only writer of profile totals.
type LedgerService struct {
	db      *gorm.DB
	cfg     scoring.Config
	ranking *RankingService
	pub     events.Publisher
	logger  *slog.Logger
	now     func() time.Time
}

func NewLedgerService(db *gorm.DB, cfg scoring.Config, ranking *RankingService, pub events.Publisher, logger *slog.Logger) *LedgerService {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &LedgerService{db: db, cfg: cfg, ranking: ranking, pub: pub, logger: logger, now: time.Now}
}

// ApplyCompletedTask credits the task's points and points * TaskCO2PerPoint
// kg of CO2 to the user.
func (s *LedgerService) ApplyCompletedTask(ctx context.Context, userID, taskID uint) (*LedgerResult, error) {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var task models.TaskDefinition
	if err := s.db.WithContext(ctx).First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("tarea no encontrada")
		}
		return nil, Internal("load task", err)
	}

	return s.apply(ctx, user, task, task.Points, s.cfg.TaskCO2(task.Points), 1, "task")
}

// ApplyManualEntry credits quantity units of material, creating the
// synthetic "Reciclaje de <material>" task on first use.
func (s *LedgerService) ApplyManualEntry(ctx context.Context, userID uint, entry ManualEntry) (*LedgerResult, error) {
	material := scoring.NormalizeMaterial(entry.Material)
	if material == "" {
		return nil, Validation("el material es obligatorio")
	}
	if entry.Quantity <= 0 {
		return nil, Validation("la cantidad debe ser mayor que cero")
	}
	if entry.Quantity > MaxManualQuantity {
		return nil, Validation("la cantidad excede el máximo permitido")
	}

	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	perUnit, _ := s.cfg.UnitPoints(material)
	task, err := s.materialTask(ctx, material, perUnit)
	if err != nil {
		return nil, err
	}

	return s.apply(ctx, user, task, perUnit*entry.Quantity, s.cfg.ManualCO2(entry.Quantity), entry.Quantity, "manual")
}

func (s *LedgerService) activeUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("usuario no encontrado")
		}
		return nil, Internal("load user", err)
	}
	if !user.IsActive {
		return nil, Forbidden("la cuenta está suspendida")
	}
	return &user, nil
}

// materialTask finds or creates the custom task for material. A concurrent
// creation is resolved by reading the winner's row.
func (s *LedgerService) materialTask(ctx context.Context, material string, perUnit int) (models.TaskDefinition, error) {
	title := "Reciclaje de " + material
	var task models.TaskDefinition

	err := s.db.WithContext(ctx).Where("title = ?", title).First(&task).Error
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return task, Internal("load material task", err)
	}

	task = models.TaskDefinition{
		Title:      title,
		Points:     perUnit,
		Difficulty: models.DifficultyManual,
		IconType:   scoring.MaterialIcon(material),
		Custom:     true,
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return task, Internal("create material task", err)
		}
		task = models.TaskDefinition{}
		if err := s.db.WithContext(ctx).Where("title = ?", title).First(&task).Error; err != nil {
			return task, Internal("reload material task", err)
		}
	}
	return task, nil
}

func (s *LedgerService) apply(ctx context.Context, user *models.User, task models.TaskDefinition, points int, co2 float64, quantity int, source string) (*LedgerResult, error) {
	res := &LedgerResult{Points: points, CO2Saved: co2}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. append the activity record
		res.Record = models.ActivityRecord{
			UserID:      user.ID,
			TaskID:      task.ID,
			Points:      points,
			CO2Saved:    co2,
			Quantity:    quantity,
			CompletedAt: s.now().UTC(),
		}
		if err := tx.Create(&res.Record).Error; err != nil {
			return err
		}

		// 2. increment totals in SQL, never read-modify-write
		increment := func() (int64, error) {
			upd := tx.Model(&models.Profile{}).
				Where("user_id = ?", user.ID).
				UpdateColumns(map[string]any{
					"points":    gorm.Expr("points + ?", points),
					"co2_saved": gorm.Expr("co2_saved + ?", co2),
				})
			return upd.RowsAffected, upd.Error
		}
		n, err := increment()
		if err != nil {
			return err
		}
		if n == 0 {
			// a concurrent apply may create the profile first
			level, _ := scoring.LevelName(0)
			empty := models.Profile{UserID: user.ID, Level: level}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoNothing: true,
			}).Create(&empty).Error
			if err != nil {
				return err
			}
			if n, err = increment(); err != nil {
				return err
			}
			if n == 0 {
				return errors.New("profile missing after create")
			}
		}

		// 3. re-read and refresh the cached level
		var profile models.Profile
		if err := tx.Where("user_id = ?", user.ID).First(&profile).Error; err != nil {
			return err
		}
		level, progress, err := scoring.LevelFor(profile.Points)
		if err != nil {
			return err
		}
		if profile.Level != level.Name {
			if err := tx.Model(&profile).UpdateColumn("level", level.Name).Error; err != nil {
				return err
			}
		}

		res.TotalPoints = profile.Points
		res.TotalCO2 = profile.CO2Saved
		res.Level = level.Name
		res.Progress = progress
		res.PreviousLevel, _ = scoring.LevelName(profile.Points - points)
		res.LevelUp = res.PreviousLevel != level.Name
		return nil
	})
	if err != nil {
		return nil, Internal("apply ledger entry", err)
	}
	res.Record.Task = task

	s.ranking.Invalidate()
	metrics.ActivitiesTotal.WithLabelValues(source).Inc()
	metrics.PointsAwardedTotal.Add(float64(points))
	metrics.CO2SavedKgTotal.Add(co2)
	s.publish(user, task, res)

	if s.logger != nil {
		s.logger.Info("ledger entry applied",
			slog.Uint64("user_id", uint64(user.ID)),
			slog.Uint64("task_id", uint64(task.ID)),
			slog.String("source", source),
			slog.Int("points", points),
			slog.Int("total", res.TotalPoints),
			slog.String("level", res.Level))
	}
	return res, nil
}

func (s *LedgerService) publish(user *models.User, task models.TaskDefinition, res *LedgerResult) {
	ev := events.New(events.TypeActivityRecorded, user.ID)
	ev.TaskID = task.ID
	ev.Points = res.Points
	ev.Total = res.TotalPoints
	ev.CO2Saved = res.CO2Saved
	ev.Level = res.Level
	evs := []events.Event{ev}

	if res.LevelUp {
		metrics.LevelUpsTotal.WithLabelValues(res.Level).Inc()
		up := events.New(events.TypeLevelUp, user.ID)
		up.Email = user.Email
		up.Name = user.Name
		up.Points = res.Points
		up.Total = res.TotalPoints
		up.CO2Saved = res.TotalCO2
		up.Level = res.Level
		up.PreviousLevel = res.PreviousLevel
		evs = append(evs, up)
	}
	events.PublishAsync(s.pub, s.logger, evs...)
}
