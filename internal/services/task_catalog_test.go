package services

import (
	"context"
	"testing"
	"time"

	"ecopoints/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedDefaults_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.tasks.SeedDefaults(ctx))
	require.NoError(t, env.tasks.SeedDefaults(ctx))

	var count int64
	env.db.Model(&models.TaskDefinition{}).Count(&count)
	assert.EqualValues(t, len(DefaultTasks), count)
}

func TestTaskList_HidesCustomAndFlagsToday(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)
	env.tasks.now = func() time.Time { return now }

	u := env.createUser(t, "a@eco.cl", 0)
	done := env.createTask(t, "Reciclar botellas", 50)
	yesterday := env.createTask(t, "Juntar cajas", 30)
	require.NoError(t, env.db.Create(&models.TaskDefinition{Title: "Reciclaje de glass", Points: 15, Difficulty: models.DifficultyManual, IconType: models.IconGlass, Custom: true}).Error)

	addRecord(t, env, u.ID, done.ID, 50, now.Add(-time.Hour))
	addRecord(t, env, u.ID, yesterday.ID, 30, now.AddDate(0, 0, -1))

	list, err := env.tasks.List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, done.ID, list[0].ID)
	assert.True(t, list[0].CompletedToday)
	assert.False(t, list[1].CompletedToday)

	all, err := env.tasks.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTaskCreate_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.tasks.Create(ctx, TaskInput{Title: "", Points: 10})
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = env.tasks.Create(ctx, TaskInput{Title: "X", Points: 0})
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = env.tasks.Create(ctx, TaskInput{Title: "X", Points: 5, IconType: "rocket"})
	assert.Equal(t, KindValidation, KindOf(err))

	task, err := env.tasks.Create(ctx, TaskInput{Title: " <b>Compostar</b> ", Points: 40})
	require.NoError(t, err)
	assert.Equal(t, "Compostar", task.Title)
	assert.Equal(t, models.DifficultyEasy, task.Difficulty)
	assert.Equal(t, models.IconRecycle, task.IconType)

	_, err = env.tasks.Create(ctx, TaskInput{Title: "Compostar", Points: 10})
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestTaskUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createTask(t, "Tarea A", 10)
	env.createTask(t, "Tarea B", 10)

	points := 25
	icon := models.IconGlass
	got, err := env.tasks.Update(ctx, a.ID, TaskPatch{Points: &points, IconType: &icon})
	require.NoError(t, err)
	assert.Equal(t, 25, got.Points)
	assert.Equal(t, "Tarea A", got.Title)

	dup := "Tarea B"
	_, err = env.tasks.Update(ctx, a.ID, TaskPatch{Title: &dup})
	assert.Equal(t, KindConflict, KindOf(err))

	_, err = env.tasks.Update(ctx, 9999, TaskPatch{Points: &points})
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestTaskDelete_ReferencedIsConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "a@eco.cl", 0)
	used := env.createTask(t, "Usada", 10)
	unused := env.createTask(t, "Libre", 10)

	_, err := env.ledger.ApplyCompletedTask(ctx, u.ID, used.ID)
	require.NoError(t, err)

	assert.Equal(t, KindConflict, KindOf(env.tasks.Delete(ctx, used.ID)))
	require.NoError(t, env.tasks.Delete(ctx, unused.ID))
	assert.Equal(t, KindNotFound, KindOf(env.tasks.Delete(ctx, unused.ID)))
}
