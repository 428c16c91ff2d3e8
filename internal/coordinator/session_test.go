package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "admin123"

func testHash(t *testing.T) []byte {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return hash
}

func TestLoginLogout(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)
	s := NewSession(store, testHash(t), time.Second)

	assert.Equal(t, StateAnonymous, s.State())
	assert.ErrorIs(t, s.Authorize(), ErrPermissionDenied)

	_, err := s.Login(ctx, "wrong")
	assert.ErrorIs(t, err, ErrInvalidPassword)
	assert.False(t, s.IsAdmin())

	id, err := s.Login(ctx, testPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, StateAdmin, s.State())
	assert.Equal(t, id, s.ID())
	assert.NoError(t, s.Authorize())
	assert.False(t, s.LoginTime().IsZero())

	demoted, err := s.Poll(ctx)
	require.NoError(t, err)
	assert.False(t, demoted)

	require.NoError(t, s.Logout(ctx))
	assert.Equal(t, StateAnonymous, s.State())
	_, err = store.Get(ctx, KeyAdminSession)
	assert.ErrorIs(t, err, ErrNotFound)

	// logout and poll while anonymous are no-ops
	assert.NoError(t, s.Logout(ctx))
	demoted, err = s.Poll(ctx)
	require.NoError(t, err)
	assert.False(t, demoted)
}

func TestAdminTakeover(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	hash := testHash(t)
	a := NewSession(store, hash, time.Second)
	b := NewSession(store, hash, time.Second)

	s1, err := a.Login(ctx, testPassword)
	require.NoError(t, err)
	s2, err := b.Login(ctx, testPassword)
	require.NoError(t, err)
	assert.NotEqual(t, s1, s2)

	demoted, err := a.Poll(ctx)
	require.NoError(t, err)
	assert.True(t, demoted)
	assert.Equal(t, StateAnonymous, a.State())
	assert.ErrorIs(t, a.Authorize(), ErrPermissionDenied)

	demoted, err = b.Poll(ctx)
	require.NoError(t, err)
	assert.False(t, demoted)
	assert.Equal(t, s2, b.ID())
}

func TestStaleLogoutKeepsNewAdmin(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)
	hash := testHash(t)
	a := NewSession(store, hash, time.Second)
	b := NewSession(store, hash, time.Second)

	_, err := a.Login(ctx, testPassword)
	require.NoError(t, err)
	s2, err := b.Login(ctx, testPassword)
	require.NoError(t, err)

	// a has not polled yet and logs out
	require.NoError(t, a.Logout(ctx))

	demoted, err := b.Poll(ctx)
	require.NoError(t, err)
	assert.False(t, demoted)
	assert.Equal(t, s2, b.ID())
}

func TestSlotClearedElsewhereDemotes(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)
	s := NewSession(store, testHash(t), time.Second)

	_, err := s.Login(ctx, testPassword)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, KeyAdminSession))

	demoted, err := s.Poll(ctx)
	require.NoError(t, err)
	assert.True(t, demoted)
}

func TestPollStoreErrorKeepsState(t *testing.T) {
	ctx := context.Background()
	s := NewSession(newFileStore(t), testHash(t), time.Second)
	_, err := s.Login(ctx, testPassword)
	require.NoError(t, err)

	s.store = failingStore{}
	demoted, err := s.Poll(ctx)
	assert.Error(t, err)
	assert.False(t, demoted)
	assert.True(t, s.IsAdmin())
}

func TestLoginDisabledWithoutHash(t *testing.T) {
	s := NewSession(newFileStore(t), nil, time.Second)
	_, err := s.Login(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("secret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword(hash, []byte("secret")))
}

func TestAuthorizeID(t *testing.T) {
	ctx := context.Background()
	s := NewSession(newFileStore(t), testHash(t), time.Second)

	assert.ErrorIs(t, s.AuthorizeID(""), ErrPermissionDenied)

	id, err := s.Login(ctx, testPassword)
	require.NoError(t, err)
	assert.NoError(t, s.AuthorizeID(id))
	assert.ErrorIs(t, s.AuthorizeID(""), ErrPermissionDenied)
	assert.ErrorIs(t, s.AuthorizeID(id+"x"), ErrPermissionDenied)

	require.NoError(t, s.Logout(ctx))
	assert.ErrorIs(t, s.AuthorizeID(id), ErrPermissionDenied)
}
