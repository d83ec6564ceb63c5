package services

import (
	"context"
	"errors"
	"time"

	"ecopoints/internal/models"
	"ecopoints/internal/scoring"
	"ecopoints/internal/utils"

	"gorm.io/gorm"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

var weekdayLabels = [...]string{"Dom", "Lun", "Mar", "Mié", "Jue", "Vie", "Sáb"}

// DayStat is one bar of the weekly chart.
type DayStat struct {
	Date   string  `json:"date"`
	Label  string  `json:"name"`
	Points int     `json:"points"`
	CO2    float64 `json:"co2"`
	Tasks  int     `json:"tasks"`
}

type UserDashboard struct {
	Points     int       `json:"points"`
	CO2        float64   `json:"co2"`
	Level      string    `json:"level"`
	Progress   int       `json:"progress"`
	NextLevel  string    `json:"next_level,omitempty"`
	NextAt     int       `json:"next_level_at,omitempty"`
	WeeklyData []DayStat `json:"weekly_data"`
}

type AdminDashboard struct {
	TotalPoints     int       `json:"total_points"`
	TotalCO2        float64   `json:"total_co2"`
	TotalUsers      int64     `json:"total_users"`
	ActiveUsers     int64     `json:"active_users"`
	TotalActivities int64     `json:"total_activities"`
	ChartData       []DayStat `json:"chart_data"`
}

type StatsService struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

func NewStatsService(db *gorm.DB, loc *time.Location) *StatsService {
	if loc == nil {
		loc = time.UTC
	}
	return &StatsService{db: db, loc: loc, now: time.Now}
}

// Weekly returns exactly seven days ending today in the service time zone,
// oldest first. A nil userID aggregates every account.
func (s *StatsService) Weekly(ctx context.Context, userID *uint) ([]DayStat, error) {
	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	start := today.AddDate(0, 0, -6)

	days := make([]DayStat, 7)
	index := make(map[string]int, 7)
	for i := range days {
		d := start.AddDate(0, 0, i)
		key := d.Format("2006-01-02")
		days[i] = DayStat{Date: key, Label: weekdayLabels[d.Weekday()]}
		index[key] = i
	}

	q := s.db.WithContext(ctx).
		Model(&models.ActivityRecord{}).
		Select("points", "co2_saved", "completed_at").
		Where("completed_at >= ?", start.UTC())
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	var rows []models.ActivityRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, Internal("load weekly activity", err)
	}

	for _, r := range rows {
		i, ok := index[r.CompletedAt.In(s.loc).Format("2006-01-02")]
		if !ok {
			continue
		}
		days[i].Points += r.Points
		days[i].CO2 += r.CO2Saved
		days[i].Tasks++
	}
	return days, nil
}

// UserDashboard combines the profile totals, level progress and weekly chart.
func (s *StatsService) UserDashboard(ctx context.Context, userID uint) (*UserDashboard, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Internal("load profile", err)
	}

	level, progress, err := scoring.LevelFor(profile.Points)
	if err != nil {
		return nil, err
	}
	weekly, err := s.Weekly(ctx, &userID)
	if err != nil {
		return nil, err
	}

	d := &UserDashboard{
		Points:     profile.Points,
		CO2:        profile.CO2Saved,
		Level:      level.Name,
		Progress:   progress,
		WeeklyData: weekly,
	}
	if next, ok := scoring.Next(level); ok {
		d.NextLevel = next.Name
		d.NextAt = next.Min
	}
	return d, nil
}

// AdminDashboard totals regular accounts and charts global activity.
func (s *StatsService) AdminDashboard(ctx context.Context) (*AdminDashboard, error) {
	d := &AdminDashboard{}
	conn := s.db.WithContext(ctx)

	var totals struct {
		Points int
		CO2    float64
	}
	err := conn.Table("profiles").
		Select("COALESCE(SUM(profiles.points), 0) AS points, COALESCE(SUM(profiles.co2_saved), 0) AS co2").
		Joins("JOIN users ON users.id = profiles.user_id").
		Where("users.is_staff = ? AND users.is_superuser = ?", false, false).
		Scan(&totals).Error
	if err != nil {
		return nil, Internal("sum profiles", err)
	}
	d.TotalPoints = totals.Points
	d.TotalCO2 = totals.CO2

	regular := conn.Model(&models.User{}).Where("is_staff = ? AND is_superuser = ?", false, false)
	if err := regular.Session(&gorm.Session{}).Count(&d.TotalUsers).Error; err != nil {
		return nil, Internal("count users", err)
	}
	if err := regular.Session(&gorm.Session{}).Where("is_active = ?", true).Count(&d.ActiveUsers).Error; err != nil {
		return nil, Internal("count active users", err)
	}
	if err := conn.Model(&models.ActivityRecord{}).Count(&d.TotalActivities).Error; err != nil {
		return nil, Internal("count activities", err)
	}

	if d.ChartData, err = s.Weekly(ctx, nil); err != nil {
		return nil, err
	}
	return d, nil
}

// History lists the user's entries, newest first.
func (s *StatsService) History(ctx context.Context, userID uint, limit int) ([]models.ActivityRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = utils.ClampInt(limit, 1, MaxHistoryLimit)

	var records []models.ActivityRecord
	err := s.db.WithContext(ctx).
		Preload("Task").
		Where("user_id = ?", userID).
		Order("completed_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, Internal("load history", err)
	}
	return records, nil
}
