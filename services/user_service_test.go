package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
)

const editorPassword = "editor password 1"

type userFixture struct {
	*authFixture
	svc    UserService
	admin  *models.User
	editor *models.User
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	af := newAuthFixture(t)
	f := &userFixture{authFixture: af, svc: NewUserService(af.users, af.tokens)}

	admin, err := af.users.GetByEmail(context.Background(), adminEmail)
	require.NoError(t, err)
	f.admin = admin

	// A non-admin that may manage users.
	perms := models.PermManageUsers
	f.editor, err = f.svc.Create(context.Background(), nil, &models.CreateUserRequest{
		Email:       "editor@example.com",
		Password:    editorPassword,
		Role:        models.RoleEditor,
		Permissions: &perms,
	})
	require.NoError(t, err)
	return f
}

func ptr[T any](v T) *T { return &v }

func TestCreateUser(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   func() *models.User
		req     models.CreateUserRequest
		wantErr error
	}{
		{
			name:  "admin creates admin",
			actor: func() *models.User { return f.admin },
			req:   models.CreateUserRequest{Email: "second@example.com", Password: "longenough", Role: models.RoleAdmin},
		},
		{
			name:  "editor creates editor",
			actor: func() *models.User { return f.editor },
			req:   models.CreateUserRequest{Email: "writer@example.com", Password: "longenough", Role: models.RoleEditor},
		},
		{
			name:    "duplicate email",
			actor:   func() *models.User { return f.admin },
			req:     models.CreateUserRequest{Email: "EDITOR@example.com", Password: "longenough"},
			wantErr: pkg.ErrAlreadyExists,
		},
		{
			name:    "editor cannot create admin",
			actor:   func() *models.User { return f.editor },
			req:     models.CreateUserRequest{Email: "boss@example.com", Password: "longenough", Role: models.RoleAdmin},
			wantErr: pkg.ErrForbidden,
		},
		{
			name:    "editor cannot grant bits it lacks",
			actor:   func() *models.User { return f.editor },
			req:     models.CreateUserRequest{Email: "ops@example.com", Password: "longenough", Permissions: ptr(models.PermManageOrders)},
			wantErr: pkg.ErrForbidden,
		},
		{
			name:    "editor cannot grant the admin bit",
			actor:   func() *models.User { return f.editor },
			req:     models.CreateUserRequest{Email: "sneaky@example.com", Password: "longenough", Permissions: ptr(models.PermAdmin)},
			wantErr: pkg.ErrForbidden,
		},
		{
			name:    "short password",
			actor:   func() *models.User { return f.admin },
			req:     models.CreateUserRequest{Email: "short@example.com", Password: "short"},
			wantErr: pkg.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			user, err := f.svc.Create(ctx, tt.actor(), &req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, user.ID)
			assert.Empty(t, user.PasswordHash)
		})
	}
}

func TestUpdateUser(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	writer, err := f.svc.Create(ctx, f.admin, &models.CreateUserRequest{
		Email: "writer@example.com", Password: "longenough", Role: models.RoleEditor,
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		actor   func() *models.User
		id      func() string
		req     models.UpdateUserRequest
		wantErr error
	}{
		{
			name:    "admin cannot change own role",
			actor:   func() *models.User { return f.admin },
			id:      func() string { return f.admin.ID },
			req:     models.UpdateUserRequest{Role: ptr(models.RoleEditor)},
			wantErr: pkg.ErrBadRequest,
		},
		{
			name:    "admin cannot change own permissions",
			actor:   func() *models.User { return f.admin },
			id:      func() string { return f.admin.ID },
			req:     models.UpdateUserRequest{Permissions: ptr(models.Permission(0))},
			wantErr: pkg.ErrBadRequest,
		},
		{
			name:  "own name is fine",
			actor: func() *models.User { return f.admin },
			id:    func() string { return f.admin.ID },
			req:   models.UpdateUserRequest{Name: ptr("Root")},
		},
		{
			name:    "email taken",
			actor:   func() *models.User { return f.admin },
			id:      func() string { return writer.ID },
			req:     models.UpdateUserRequest{Email: ptr(adminEmail)},
			wantErr: pkg.ErrAlreadyExists,
		},
		{
			name:    "email invalid",
			actor:   func() *models.User { return f.admin },
			id:      func() string { return writer.ID },
			req:     models.UpdateUserRequest{Email: ptr("not-an-email")},
			wantErr: pkg.ErrValidation,
		},
		{
			name:    "editor cannot promote to admin",
			actor:   func() *models.User { return f.editor },
			id:      func() string { return writer.ID },
			req:     models.UpdateUserRequest{Role: ptr(models.RoleAdmin)},
			wantErr: pkg.ErrForbidden,
		},
		{
			name:    "editor cannot grant orders",
			actor:   func() *models.User { return f.editor },
			id:      func() string { return writer.ID },
			req:     models.UpdateUserRequest{Permissions: ptr(models.PermManageOrders)},
			wantErr: pkg.ErrForbidden,
		},
		{
			name:  "editor grants what it holds",
			actor: func() *models.User { return f.editor },
			id:    func() string { return writer.ID },
			req:   models.UpdateUserRequest{Permissions: ptr(models.PermManageUsers)},
		},
		{
			name:    "editor cannot touch an admin",
			actor:   func() *models.User { return f.editor },
			id:      func() string { return f.admin.ID },
			req:     models.UpdateUserRequest{Name: ptr("Demoted")},
			wantErr: pkg.ErrForbidden,
		},
		{
			name:    "unknown user",
			actor:   func() *models.User { return f.admin },
			id:      func() string { return "missing" },
			req:     models.UpdateUserRequest{Name: ptr("x")},
			wantErr: pkg.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.svc.Update(ctx, tt.actor(), tt.id(), &req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}

	got, err := f.users.GetByID(ctx, writer.ID)
	require.NoError(t, err)
	assert.Equal(t, "writer@example.com", got.Email)
	assert.Equal(t, models.RoleEditor, got.Role)
	assert.Equal(t, models.PermManageUsers, got.Permissions)
}

func TestUpdateUserEmail(t *testing.T) {
	f := newUserFixture(t)

	user, err := f.svc.Update(context.Background(), f.admin, f.editor.ID,
		&models.UpdateUserRequest{Email: ptr("  Editor2@Example.com ")})
	require.NoError(t, err)
	assert.Equal(t, "editor2@example.com", user.Email)
}

func TestPermissionChangeRevokesSessions(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	login := func() *AuthResult {
		res, err := f.authFixture.svc.Login(ctx, &models.LoginRequest{Email: "editor@example.com", Password: editorPassword})
		require.NoError(t, err)
		return res
	}

	// A rename keeps the session.
	res := login()
	_, err := f.svc.Update(ctx, f.admin, f.editor.ID, &models.UpdateUserRequest{Name: ptr("Ed")})
	require.NoError(t, err)
	res, err = f.authFixture.svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)

	// A permission change does not.
	_, err = f.svc.Update(ctx, f.admin, f.editor.ID, &models.UpdateUserRequest{Permissions: ptr(models.PermManageOrders)})
	require.NoError(t, err)
	_, err = f.authFixture.svc.Refresh(ctx, res.RefreshToken)
	assert.Equal(t, "refresh_revoked", errorCode(err))
}

func TestDeleteUser(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	err := f.svc.Delete(ctx, f.admin, f.admin.ID)
	require.ErrorIs(t, err, pkg.ErrBadRequest)

	err = f.svc.Delete(ctx, f.editor, f.admin.ID)
	require.ErrorIs(t, err, pkg.ErrForbidden)

	err = f.svc.Delete(ctx, f.admin, "missing")
	require.ErrorIs(t, err, pkg.ErrNotFound)

	require.NoError(t, f.svc.Delete(ctx, f.admin, f.editor.ID))
	_, err = f.users.GetByID(ctx, f.editor.ID)
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	users, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
