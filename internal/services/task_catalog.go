package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ecopoints/internal/models"
	"ecopoints/internal/utils"

	"gorm.io/gorm"
)

// TaskView is a catalog entry as seen by one user.
type TaskView struct {
	models.TaskDefinition
	CompletedToday bool `json:"completed_today"`
}

type TaskInput struct {
	Title      string `json:"title"`
	Points     int    `json:"points"`
	Difficulty string `json:"difficulty"`
	IconType   string `json:"icon_type"`
}

// TaskPatch updates only the fields that are set.
type TaskPatch struct {
	Title      *string `json:"title"`
	Points     *int    `json:"points"`
	Difficulty *string `json:"difficulty"`
	IconType   *string `json:"icon_type"`
}

type TaskService struct {
	db     *gorm.DB
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

func NewTaskService(db *gorm.DB, loc *time.Location, logger *slog.Logger) *TaskService {
	if loc == nil {
		loc = time.UTC
	}
	return &TaskService{db: db, loc: loc, logger: logger, now: time.Now}
}

// DefaultTasks is the catalog seeded on an empty database.
var DefaultTasks = []models.TaskDefinition{
	{Title: "Reciclar 2 botellas de plástico", Points: 50, Difficulty: "Fácil", IconType: models.IconPlastic},
	{Title: "Juntar 3 cajas de cartón", Points: 30, Difficulty: "Fácil", IconType: models.IconBox},
	{Title: "Llevar ropa a punto limpio", Points: 100, Difficulty: "Medio", IconType: models.IconShirt},
	{Title: "Usar bolsas reutilizables", Points: 20, Difficulty: "Diario", IconType: models.IconBag},
	{Title: "Reciclar latas de aluminio", Points: 60, Difficulty: "Fácil", IconType: models.IconCan},
}

// SeedDefaults inserts DefaultTasks when the catalog has no public task.
func (s *TaskService) SeedDefaults(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.TaskDefinition{}).Where("custom = ?", false).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		if s.logger != nil {
			s.logger.Debug("tasks already seeded, skipping")
		}
		return nil
	}
	for _, t := range DefaultTasks {
		task := t
		if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return err
		}
	}
	if s.logger != nil {
		s.logger.Info("default tasks created", slog.Int("count", len(DefaultTasks)))
	}
	return nil
}

// List returns the public catalog, flagging tasks the user already completed
// today.
func (s *TaskService) List(ctx context.Context, userID uint) ([]TaskView, error) {
	var tasks []models.TaskDefinition
	if err := s.db.WithContext(ctx).Where("custom = ?", false).Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, Internal("load tasks", err)
	}

	now := s.now().In(s.loc)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	var doneIDs []uint
	err := s.db.WithContext(ctx).Model(&models.ActivityRecord{}).
		Where("user_id = ? AND completed_at >= ?", userID, startOfDay.UTC()).
		Distinct().
		Pluck("task_id", &doneIDs).Error
	if err != nil {
		return nil, Internal("load today's activity", err)
	}
	done := make(map[uint]bool, len(doneIDs))
	for _, id := range doneIDs {
		done[id] = true
	}

	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskView{TaskDefinition: t, CompletedToday: done[t.ID]})
	}
	return out, nil
}

// ListAll returns every task including the synthetic material ones.
func (s *TaskService) ListAll(ctx context.Context) ([]models.TaskDefinition, error) {
	var tasks []models.TaskDefinition
	if err := s.db.WithContext(ctx).Order("custom ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, Internal("load tasks", err)
	}
	return tasks, nil
}

func validateTask(t *models.TaskDefinition) error {
	t.Title = utils.SanitizeText(t.Title)
	t.Difficulty = utils.SanitizeText(t.Difficulty)
	t.IconType = strings.ToLower(strings.TrimSpace(t.IconType))
	if t.Title == "" {
		return Validation("el título es obligatorio")
	}
	if len([]rune(t.Title)) > 200 {
		return Validation("el título es demasiado largo")
	}
	if t.Points <= 0 {
		return Validation("los puntos deben ser mayores que cero")
	}
	if t.Difficulty == "" {
		t.Difficulty = models.DifficultyEasy
	}
	if t.IconType == "" {
		t.IconType = models.IconRecycle
	}
	if !models.ValidIcon(t.IconType) {
		return Validation("tipo de icono no válido")
	}
	return nil
}

func (s *TaskService) Create(ctx context.Context, in TaskInput) (*models.TaskDefinition, error) {
	task := models.TaskDefinition{
		Title:      in.Title,
		Points:     in.Points,
		Difficulty: in.Difficulty,
		IconType:   in.IconType,
	}
	if err := validateTask(&task); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, Conflict("ya existe una tarea con ese título")
		}
		return nil, Internal("create task", err)
	}
	return &task, nil
}

func (s *TaskService) Update(ctx context.Context, id uint, patch TaskPatch) (*models.TaskDefinition, error) {
	var task models.TaskDefinition
	if err := s.db.WithContext(ctx).First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("tarea no encontrada")
		}
		return nil, Internal("load task", err)
	}

	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Points != nil {
		task.Points = *patch.Points
	}
	if patch.Difficulty != nil {
		task.Difficulty = *patch.Difficulty
	}
	if patch.IconType != nil {
		task.IconType = *patch.IconType
	}
	if err := validateTask(&task); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Model(&task).Select("title", "points", "difficulty", "icon_type").Updates(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, Conflict("ya existe una tarea con ese título")
		}
		return nil, Internal("update task", err)
	}
	return &task, nil
}

// Delete removes a task nobody has completed yet. Referenced tasks are kept
// so activity history stays intact.
func (s *TaskService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.TaskDefinition
		if err := tx.First(&task, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("tarea no encontrada")
			}
			return Internal("load task", err)
		}
		var refs int64
		if err := tx.Model(&models.ActivityRecord{}).Where("task_id = ?", id).Count(&refs).Error; err != nil {
			return Internal("count task references", err)
		}
		if refs > 0 {
			return Conflict("la tarea tiene actividad registrada y no puede eliminarse")
		}
		if err := tx.Delete(&task).Error; err != nil {
			return Internal("delete task", err)
		}
		return nil
	})
}
