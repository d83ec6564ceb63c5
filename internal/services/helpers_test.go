package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"ecopoints/internal/db"
	"ecopoints/internal/events"
	"ecopoints/internal/logger"
	"ecopoints/internal/models"
	"ecopoints/internal/scoring"
	"ecopoints/internal/utils"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeMailer struct {
	mu      sync.Mutex
	welcome []string
	temps   map[string]string
}

func (m *fakeMailer) SendWelcomeEmail(email, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcome = append(m.welcome, email)
}

func (m *fakeMailer) SendTemporaryPassword(email, _, temp string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.temps == nil {
		m.temps = map[string]string{}
	}
	m.temps[email] = temp
}

func (m *fakeMailer) tempFor(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.temps[email]
}

type testEnv struct {
	db       *gorm.DB
	ranking  *RankingService
	ledger   *LedgerService
	stats    *StatsService
	tasks    *TaskService
	tokens   *TokenService
	accounts *AccountService
	mailer   *fakeMailer
	events   *events.Recorder
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn := newTestDB(t)
	log := logger.Discard()

	ranking, err := NewRankingService(conn, 16, time.Minute)
	require.NoError(t, err)

	env := &testEnv{
		db:      conn,
		ranking: ranking,
		mailer:  &fakeMailer{},
		events:  &events.Recorder{},
	}
	env.ledger = NewLedgerService(conn, scoring.DefaultConfig(), ranking, env.events, log)
	env.stats = NewStatsService(conn, time.UTC)
	env.tasks = NewTaskService(conn, time.UTC, log)
	env.tokens = NewTokenService(conn, "test-secret", 15*time.Minute, time.Hour)
	env.accounts = NewAccountService(conn, 4, env.mailer, env.tokens, ranking, env.events, log)
	return env
}

type userOpt func(*models.User)

func staff(u *models.User)    { u.IsStaff = true }
func inactive(u *models.User) { u.IsActive = false }

func superuser(u *models.User) {
	u.IsSuperuser = true
	u.IsStaff = true
}

// createUser inserts an account and its profile directly.
func (e *testEnv) createUser(t *testing.T, email string, points int, opts ...userOpt) *models.User {
	t.Helper()
	hash, err := utils.HashPassword("Password1", 4)
	require.NoError(t, err)

	u := &models.User{Email: email, Name: email, Password: hash, IsActive: true}
	for _, o := range opts {
		o(u)
	}
	active := u.IsActive
	require.NoError(t, e.db.Create(u).Error)
	if !active {
		// Create skips a false value for a column with a default and reads
		// the stored true back into the struct.
		require.NoError(t, e.db.Model(u).UpdateColumn("is_active", false).Error)
		var stored models.User
		require.NoError(t, e.db.First(&stored, u.ID).Error)
		require.False(t, stored.IsActive)
		u.IsActive = false
	}
	level, err := scoring.LevelName(points)
	require.NoError(t, err)
	require.NoError(t, e.db.Create(&models.Profile{UserID: u.ID, Points: points, Level: level}).Error)
	return u
}

func (e *testEnv) createTask(t *testing.T, title string, points int) *models.TaskDefinition {
	t.Helper()
	task, err := e.tasks.Create(context.Background(), TaskInput{Title: title, Points: points, IconType: models.IconRecycle})
	require.NoError(t, err)
	return task
}

func (e *testEnv) profile(t *testing.T, userID uint) models.Profile {
	t.Helper()
	var p models.Profile
	require.NoError(t, e.db.Where("user_id = ?", userID).First(&p).Error)
	return p
}
