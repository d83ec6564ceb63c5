package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"ecopoints/internal/metrics"
	"ecopoints/internal/scoring"
	"ecopoints/internal/utils"

	"gorm.io/gorm"
)

const (
	DefaultRankingLimit = 10
	MaxRankingLimit     = 100
)

type RankingEntry struct {
	Position int     `json:"position"`
	UserID   uint    `json:"id"`
	Name     string  `json:"name"`
	Points   int     `json:"points"`
	CO2Saved float64 `json:"co2_saved"`
	Level    string  `json:"level"`
}

type rankingRow struct {
	UserID   uint
	Name     string
	Points   int
	CO2Saved float64 `gorm:"column:co2_saved"`
}

// RankingService serves the leaderboard of regular accounts. Results are
// kept in a TTL cache that every ledger or account mutation purges.
type RankingService struct {
	db    *gorm.DB
	cache *utils.TTLCache[[]RankingEntry]

	// gen counts invalidations; a page read before one is never cached.
	mu  sync.Mutex
	gen uint64
}

func NewRankingService(db *gorm.DB, cacheSize int, ttl time.Duration) (*RankingService, error) {
	cache, err := utils.NewTTLCache[[]RankingEntry](cacheSize, ttl)
	if err != nil {
		return nil, err
	}
	return &RankingService{db: db, cache: cache}, nil
}

// Top returns up to limit accounts ordered by points, ties broken by the
// lower account ID. limit <= 0 means the default; larger values are clamped.
func (s *RankingService) Top(ctx context.Context, limit int) ([]RankingEntry, error) {
	if limit <= 0 {
		limit = DefaultRankingLimit
	}
	limit = utils.ClampInt(limit, 1, MaxRankingLimit)

	key := strconv.Itoa(limit)
	if cached, ok := s.cache.Get(key); ok {
		metrics.RankingCacheTotal.WithLabelValues("hit").Inc()
		return append([]RankingEntry(nil), cached...), nil
	}
	metrics.RankingCacheTotal.WithLabelValues("miss").Inc()
	gen := s.generation()

	var rows []rankingRow
	err := s.db.WithContext(ctx).
		Table("profiles").
		Select("users.id AS user_id, users.name, profiles.points, profiles.co2_saved").
		Joins("JOIN users ON users.id = profiles.user_id").
		Where("users.is_staff = ? AND users.is_superuser = ?", false, false).
		Order("profiles.points DESC, users.id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, Internal("load ranking", err)
	}

	out := make([]RankingEntry, 0, len(rows))
	for i, r := range rows {
		level, _ := scoring.LevelName(r.Points)
		out = append(out, RankingEntry{
			Position: i + 1,
			UserID:   r.UserID,
			Name:     r.Name,
			Points:   r.Points,
			CO2Saved: r.CO2Saved,
			Level:    level,
		})
	}
	s.mu.Lock()
	if s.gen == gen {
		s.cache.Set(key, out)
	}
	s.mu.Unlock()
	return append([]RankingEntry(nil), out...), nil
}

func (s *RankingService) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Invalidate drops every cached page, including pages whose query is still
// in flight.
func (s *RankingService) Invalidate() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.gen++
	s.cache.Purge()
	s.mu.Unlock()
}
