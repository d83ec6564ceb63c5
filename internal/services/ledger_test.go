package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"ecopoints/internal/events"
	"ecopoints/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyCompletedTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "ana@eco.cl", 0)
	task := env.createTask(t, "Reciclar botellas", 50)

	res, err := env.ledger.ApplyCompletedTask(ctx, u.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, res.Points)
	assert.InDelta(t, 2.5, res.CO2Saved, 1e-9)
	assert.Equal(t, 50, res.TotalPoints)
	assert.Equal(t, "Eco-Iniciado", res.Level)
	assert.Equal(t, 10, res.Progress)
	assert.False(t, res.LevelUp)

	p := env.profile(t, u.ID)
	assert.Equal(t, 50, p.Points)
	assert.InDelta(t, 2.5, p.CO2Saved, 1e-9)
	assert.Equal(t, "Eco-Iniciado", p.Level)

	var records []models.ActivityRecord
	require.NoError(t, env.db.Where("user_id = ?", u.ID).Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, task.ID, records[0].TaskID)
	assert.Equal(t, 50, records[0].Points)
}

func TestApplyCompletedTask_LevelUp(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "leo@eco.cl", 480)
	task := env.createTask(t, "Llevar ropa", 100)

	res, err := env.ledger.ApplyCompletedTask(context.Background(), u.ID, task.ID)
	require.NoError(t, err)
	assert.True(t, res.LevelUp)
	assert.Equal(t, "Eco-Iniciado", res.PreviousLevel)
	assert.Equal(t, "Eco-Explorador", res.Level)
	assert.Equal(t, "Eco-Explorador", env.profile(t, u.ID).Level)

	require.Eventually(t, func() bool {
		return len(env.events.OfType(events.TypeLevelUp)) == 1
	}, time.Second, 10*time.Millisecond)
	up := env.events.OfType(events.TypeLevelUp)[0]
	assert.Equal(t, u.ID, up.UserID)
	assert.Equal(t, "leo@eco.cl", up.Email)
	assert.Equal(t, 580, up.Total)
}

func TestApplyCompletedTask_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "ana@eco.cl", 0)
	blocked := env.createUser(t, "bloq@eco.cl", 0, inactive)
	task := env.createTask(t, "Reciclar botellas", 50)

	_, err := env.ledger.ApplyCompletedTask(ctx, u.ID, 9999)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = env.ledger.ApplyCompletedTask(ctx, 9999, task.ID)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = env.ledger.ApplyCompletedTask(ctx, blocked.ID, task.ID)
	assert.Equal(t, KindForbidden, KindOf(err))

	assert.Equal(t, 0, env.profile(t, u.ID).Points)
	var count int64
	env.db.Model(&models.ActivityRecord{}).Count(&count)
	assert.Zero(t, count)
}

func TestApplyCompletedTask_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "ana@eco.cl", 0)
	task := env.createTask(t, "Reciclar latas", 60)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.ApplyCompletedTask(context.Background(), u.ID, task.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	p := env.profile(t, u.ID)
	assert.Equal(t, n*60, p.Points)
	assert.InDelta(t, float64(n*60)*0.05, p.CO2Saved, 1e-6)
	assert.Equal(t, "Eco-Explorador", p.Level)

	var count int64
	env.db.Model(&models.ActivityRecord{}).Where("user_id = ?", u.ID).Count(&count)
	assert.EqualValues(t, n, count)
}

func TestApplyCompletedTask_CreatesMissingProfile(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "sinperfil@eco.cl", 0)
	require.NoError(t, env.db.Where("user_id = ?", u.ID).Delete(&models.Profile{}).Error)
	task := env.createTask(t, "Reciclar vidrio", 30)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.ApplyCompletedTask(context.Background(), u.ID, task.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var profiles []models.Profile
	require.NoError(t, env.db.Where("user_id = ?", u.ID).Find(&profiles).Error)
	require.Len(t, profiles, 1)
	assert.Equal(t, n*30, profiles[0].Points)
	assert.Equal(t, "Eco-Iniciado", profiles[0].Level)
}

func TestApplyManualEntry_Metal(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "ana@eco.cl", 0)

	res, err := env.ledger.ApplyManualEntry(context.Background(), u.ID, ManualEntry{Material: " Metal ", Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, 60, res.Points)
	assert.InDelta(t, 0.45, res.CO2Saved, 1e-9)
	assert.Equal(t, 3, res.Record.Quantity)

	var task models.TaskDefinition
	require.NoError(t, env.db.Where("title = ?", "Reciclaje de metal").First(&task).Error)
	assert.True(t, task.Custom)
	assert.Equal(t, 20, task.Points)
	assert.Equal(t, models.DifficultyManual, task.Difficulty)
	assert.Equal(t, models.IconCan, task.IconType)

	// second entry reuses the synthetic task
	_, err = env.ledger.ApplyManualEntry(context.Background(), u.ID, ManualEntry{Material: "metal", Quantity: 1})
	require.NoError(t, err)
	var count int64
	env.db.Model(&models.TaskDefinition{}).Where("title = ?", "Reciclaje de metal").Count(&count)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, 80, env.profile(t, u.ID).Points)
}

func TestApplyManualEntry_UnknownMaterial(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "ana@eco.cl", 0)

	res, err := env.ledger.ApplyManualEntry(context.Background(), u.ID, ManualEntry{Material: "tetrapak", Quantity: 4, Barcode: "7801234"})
	require.NoError(t, err)
	assert.Equal(t, 20, res.Points)
	assert.InDelta(t, 0.6, res.CO2Saved, 1e-9)
	assert.Equal(t, models.IconRecycle, res.Record.Task.IconType)
}

func TestApplyManualEntry_Validation(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "ana@eco.cl", 0)
	ctx := context.Background()

	for _, e := range []ManualEntry{
		{Material: "", Quantity: 1},
		{Material: "glass", Quantity: 0},
		{Material: "glass", Quantity: -2},
		{Material: "glass", Quantity: MaxManualQuantity + 1},
	} {
		_, err := env.ledger.ApplyManualEntry(ctx, u.ID, e)
		assert.Equal(t, KindValidation, KindOf(err), "%+v", e)
	}
	assert.Equal(t, 0, env.profile(t, u.ID).Points)
}

func TestLedger_InvalidatesRanking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createUser(t, "a@eco.cl", 100)
	b := env.createUser(t, "b@eco.cl", 90)
	task := env.createTask(t, "Reciclar latas", 60)

	top, err := env.ranking.Top(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, a.ID, top[0].UserID)

	_, err = env.ledger.ApplyCompletedTask(ctx, b.ID, task.ID)
	require.NoError(t, err)

	top, err = env.ranking.Top(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, b.ID, top[0].UserID)
	assert.Equal(t, 150, top[0].Points)
}
