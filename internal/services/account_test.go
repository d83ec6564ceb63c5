package services

import (
	"context"
	"testing"
	"time"

	"ecopoints/internal/events"
	"ecopoints/internal/models"
	"ecopoints/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.accounts.Register(ctx, RegisterInput{Email: " Ana@Eco.CL ", Password: "Reciclo2025", Name: "<i>Ana</i>"})
	require.NoError(t, err)
	assert.Equal(t, "ana@eco.cl", u.Email)
	assert.Equal(t, "Ana", u.Name)
	assert.True(t, u.IsActive)
	require.NotNil(t, u.Profile)
	assert.Equal(t, "Eco-Iniciado", u.Profile.Level)
	assert.Equal(t, []string{"ana@eco.cl"}, env.mailer.welcome)

	_, err = env.accounts.Register(ctx, RegisterInput{Email: "ANA@eco.cl", Password: "Reciclo2025"})
	assert.Equal(t, KindConflict, KindOf(err))

	assert.Eventually(t, func() bool {
		return len(env.events.OfType(events.TypeUserRegistered)) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []RegisterInput{
		{Email: "", Password: "Reciclo2025"},
		{Email: "no-es-correo", Password: "Reciclo2025"},
		{Email: "a@eco.cl", Password: "Corta1"},
		{Email: "a@eco.cl", Password: "sinmayuscula1"},
		{Email: "a@eco.cl", Password: "SinNumeroAqui"},
	}
	for _, in := range cases {
		_, err := env.accounts.Register(ctx, in)
		assert.Equal(t, KindValidation, KindOf(err), "%+v", in)
	}

	u, err := env.accounts.Register(ctx, RegisterInput{Email: "pedro@eco.cl", Password: "Reciclo2025"})
	require.NoError(t, err)
	assert.Equal(t, "pedro", u.Name)
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "ana@eco.cl", 0)
	env.createUser(t, "bloq@eco.cl", 0, inactive)

	u, err := env.accounts.Authenticate(ctx, "ANA@eco.cl", "Password1")
	require.NoError(t, err)
	assert.Equal(t, "ana@eco.cl", u.Email)

	_, err = env.accounts.Authenticate(ctx, "ana@eco.cl", "wrong")
	assert.Equal(t, KindUnauthorized, KindOf(err))
	_, err = env.accounts.Authenticate(ctx, "nadie@eco.cl", "Password1")
	assert.Equal(t, KindUnauthorized, KindOf(err))
	_, err = env.accounts.Authenticate(ctx, "bloq@eco.cl", "Password1")
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestRecoverAndChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "ana@eco.cl", 0)

	// unknown address still reports success
	require.NoError(t, env.accounts.RecoverPassword(ctx, "nadie@eco.cl"))
	require.NoError(t, env.accounts.RecoverPassword(ctx, "Ana@eco.cl"))

	temp := env.mailer.tempFor("ana@eco.cl")
	require.NotEmpty(t, temp)
	require.NoError(t, ValidatePassword(temp))

	fresh, err := env.accounts.Authenticate(ctx, "ana@eco.cl", temp)
	require.NoError(t, err)
	assert.True(t, fresh.MustChangePassword)
	_, err = env.accounts.Authenticate(ctx, "ana@eco.cl", "Password1")
	assert.Equal(t, KindUnauthorized, KindOf(err))

	err = env.accounts.ChangePassword(ctx, u.ID, "bad", "Nueva12345")
	assert.Equal(t, KindValidation, KindOf(err))
	err = env.accounts.ChangePassword(ctx, u.ID, temp, "debil")
	assert.Equal(t, KindValidation, KindOf(err))

	require.NoError(t, env.accounts.ChangePassword(ctx, u.ID, temp, "Nueva12345"))
	after, err := env.accounts.Authenticate(ctx, "ana@eco.cl", "Nueva12345")
	require.NoError(t, err)
	assert.False(t, after.MustChangePassword)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "ana@eco.cl", 0)
	env.createUser(t, "pedro@eco.cl", 0)

	name := "Ana María"
	email := "ANA.M@eco.cl"
	got, err := env.accounts.UpdateProfile(ctx, u.ID, ProfileUpdate{Name: &name, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "Ana María", got.Name)
	assert.Equal(t, "ana.m@eco.cl", got.Email)

	taken := "Pedro@eco.cl"
	_, err = env.accounts.UpdateProfile(ctx, u.ID, ProfileUpdate{Email: &taken})
	assert.Equal(t, KindConflict, KindOf(err))

	bad := "nope"
	_, err = env.accounts.UpdateProfile(ctx, u.ID, ProfileUpdate{Email: &bad})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestAdminModeration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "staff@eco.cl", 0, staff)
	root := env.createUser(t, "root@eco.cl", 0, superuser)
	target := env.createUser(t, "ana@eco.cl", 0)

	// self and superuser targets are refused
	_, err := env.accounts.ToggleActive(ctx, admin, admin.ID)
	assert.Equal(t, KindForbidden, KindOf(err))
	_, err = env.accounts.ToggleActive(ctx, admin, root.ID)
	assert.Equal(t, KindForbidden, KindOf(err))
	assert.Equal(t, KindForbidden, KindOf(env.accounts.DeleteUser(ctx, admin, admin.ID)))
	assert.Equal(t, KindForbidden, KindOf(env.accounts.DeleteUser(ctx, admin, root.ID)))
	assert.Equal(t, KindForbidden, KindOf(env.accounts.DeleteUser(ctx, root, root.ID)))
	assert.Equal(t, KindNotFound, KindOf(env.accounts.DeleteUser(ctx, admin, 9999)))

	got, err := env.accounts.ToggleActive(ctx, admin, target.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	got, err = env.accounts.ToggleActive(ctx, admin, target.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	require.NoError(t, env.accounts.AdminResetPassword(ctx, admin, target.ID))
	assert.NotEmpty(t, env.mailer.tempFor("ana@eco.cl"))

	list, err := env.accounts.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	for _, s := range list {
		assert.NotEqual(t, root.ID, s.ID)
	}
}

func TestDeleteUser_Cascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "staff@eco.cl", 0, staff)
	target := env.createUser(t, "ana@eco.cl", 0)
	task := env.createTask(t, "Reciclar", 10)

	_, err := env.ledger.ApplyCompletedTask(ctx, target.ID, task.ID)
	require.NoError(t, err)
	_, err = env.tokens.Issue(ctx, target)
	require.NoError(t, err)

	require.NoError(t, env.accounts.DeleteUser(ctx, admin, target.ID))

	for _, m := range []any{&models.User{}, &models.Profile{}, &models.ActivityRecord{}, &models.RefreshToken{}} {
		var count int64
		col := "user_id"
		if _, ok := m.(*models.User); ok {
			col = "id"
		}
		env.db.Model(m).Where(col+" = ?", target.ID).Count(&count)
		assert.Zero(t, count, "%T", m)
	}
	// the task survives
	var tasks int64
	env.db.Model(&models.TaskDefinition{}).Where("id = ?", task.ID).Count(&tasks)
	assert.EqualValues(t, 1, tasks)
}

func TestEnsureSuperuser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.accounts.EnsureSuperuser(ctx, "admin@eco.cl", "", "Admin"))
	var count int64
	env.db.Model(&models.User{}).Count(&count)
	assert.Zero(t, count)

	require.NoError(t, env.accounts.EnsureSuperuser(ctx, "Admin@eco.cl", "Sup3rSecreto", ""))
	require.NoError(t, env.accounts.EnsureSuperuser(ctx, "admin@eco.cl", "Sup3rSecreto", ""))

	var u models.User
	require.NoError(t, env.db.Where("email = ?", "admin@eco.cl").First(&u).Error)
	assert.True(t, u.IsSuperuser)
	assert.True(t, u.IsStaff)
	assert.True(t, utils.CheckPasswordHash("Sup3rSecreto", u.Password))
	env.db.Model(&models.User{}).Count(&count)
	assert.EqualValues(t, 1, count)
}
