package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthStore struct {
	users map[string]*User
}

func (f *fakeAuthStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func newActiveUser(t *testing.T, username, password, role string) *User {
	t.Helper()
	u := &User{
		ID:       uuid.New(),
		Username: username,
		Role:     role,
		Active:   true,
	}
	require.NoError(t, u.SetPassword(password))
	return u
}

func TestLogin(t *testing.T) {
	u := newActiveUser(t, "dr.garcia", "s3cret-pass", RolePhysician)
	store := &fakeAuthStore{users: map[string]*User{"dr.garcia": u}}
	auth := NewAuthenticator(store, "secret", time.Hour, nil)

	token, got, err := auth.Login(context.Background(), "dr.garcia", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, u.ID, got.ID)
}

func TestLoginWrongPassword(t *testing.T) {
	u := newActiveUser(t, "dr.garcia", "s3cret-pass", RolePhysician)
	store := &fakeAuthStore{users: map[string]*User{"dr.garcia": u}}
	auth := NewAuthenticator(store, "secret", time.Hour, nil)

	_, _, err := auth.Login(context.Background(), "dr.garcia", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	auth := NewAuthenticator(&fakeAuthStore{users: map[string]*User{}}, "secret", time.Hour, nil)
	_, _, err := auth.Login(context.Background(), "nobody", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginDisabledAccount(t *testing.T) {
	u := newActiveUser(t, "dr.garcia", "s3cret-pass", RolePhysician)
	u.Active = false
	store := &fakeAuthStore{users: map[string]*User{"dr.garcia": u}}
	auth := NewAuthenticator(store, "secret", time.Hour, nil)

	_, _, err := auth.Login(context.Background(), "dr.garcia", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSetPasswordRejectsShort(t *testing.T) {
	var u User
	assert.Error(t, u.SetPassword("short"))
	assert.NoError(t, u.SetPassword("long-enough"))
	assert.True(t, u.CheckPassword("long-enough"))
	assert.False(t, u.CheckPassword("other"))
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleAdmin, RolePhysician, RoleNurse, RoleLab, RoleReception} {
		assert.True(t, ValidRole(role))
	}
	assert.False(t, ValidRole("janitor"))
	assert.False(t, ValidRole(""))
}
