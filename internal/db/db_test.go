package db

import (
	"testing"

	"ecopoints/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestDialector_UnknownDriver(t *testing.T) {
	_, err := Dialector("oracle", "x")
	assert.Error(t, err)

	for _, d := range []string{"", "postgres", "mysql", "sqlite"} {
		_, err := Dialector(d, "dsn")
		assert.NoError(t, err, d)
	}
}

func TestOpenMemory_MigratesAndTranslatesDuplicates(t *testing.T) {
	conn, err := OpenMemory()
	require.NoError(t, err)

	for _, m := range []any{&models.User{}, &models.Profile{}, &models.TaskDefinition{}, &models.ActivityRecord{}, &models.RefreshToken{}} {
		assert.True(t, conn.Migrator().HasTable(m))
	}

	require.NoError(t, conn.Create(&models.User{Email: "a@b.cl", Name: "A", Password: "x"}).Error)
	err = conn.Create(&models.User{Email: "a@b.cl", Name: "B", Password: "y"}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestOpenMemory_EnablesForeignKeys(t *testing.T) {
	conn, err := OpenMemory()
	require.NoError(t, err)

	var enabled int
	require.NoError(t, conn.Raw("PRAGMA foreign_keys").Scan(&enabled).Error)
	assert.Equal(t, 1, enabled)
}
