package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmanager/internal/apperr"
	"taskmanager/internal/models"
	"taskmanager/internal/policy"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.auth.Register(ctx, Credentials{Email: "  Dave@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "dave@example.com", res.User.Email)
	assert.Equal(t, models.RoleUser, res.User.Role)
	assert.NotEmpty(t, res.Token)

	login, err := f.auth.Login(ctx, Credentials{Email: "dave@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)

	req, err := f.auth.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, policy.Requester{ID: res.User.ID, Role: models.RoleUser}, req)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Register(ctx, Credentials{Email: "not-an-email", Password: "secret1"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "email must be a valid email address", apperr.Message(err))

	_, err = f.auth.Register(ctx, Credentials{Email: "eve@example.com", Password: "123"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, apperr.Message(err), "password must be at least 6")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Register(ctx, Credentials{Email: "Alice@example.com", Password: "secret1"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, 400, apperr.StatusCode(err))
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, Credentials{Email: "dave@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, wrongPassword := f.auth.Login(ctx, Credentials{Email: "dave@example.com", Password: "wrong-one"})
	_, unknownEmail := f.auth.Login(ctx, Credentials{Email: "nobody@example.com", Password: "secret1"})

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.Equal(t, apperr.StatusCode(wrongPassword), apperr.StatusCode(unknownEmail))
	assert.Equal(t, apperr.Message(wrongPassword), apperr.Message(unknownEmail))
	assert.Equal(t, 401, apperr.StatusCode(unknownEmail))
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Authenticate(ctx, "garbage")
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))

	res, err := f.auth.Register(ctx, Credentials{Email: "dave@example.com", Password: "secret1"})
	require.NoError(t, err)
	f.users.Delete(res.User.ID)

	_, err = f.auth.Authenticate(ctx, res.Token)
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))
}

func TestUserListScoping(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users)
	ctx := context.Background()

	all, err := svc.List(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	self, err := svc.List(ctx, f.bob)
	require.NoError(t, err)
	require.Len(t, self, 1)
	assert.Equal(t, f.bob.ID, self[0].ID)
}
