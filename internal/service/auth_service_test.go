package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanishtirpathi/Playlistr/internal/apperrors"
	"github.com/tanishtirpathi/Playlistr/internal/service/servicetest"
	"github.com/tanishtirpathi/Playlistr/internal/token"
)

type authFixture struct {
	svc   *AuthService
	users *servicetest.UserStore
	clock *clockwork.FakeClock
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	tokens := token.NewManager(token.Config{
		AccessSecret:  "test-access-secret",
		RefreshSecret: "test-refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}, clock)
	users := servicetest.NewUserStore()
	return &authFixture{svc: NewAuthService(users, tokens, clock), users: users, clock: clock}
}

func (f *authFixture) register(t *testing.T, email string) *Session {
	t.Helper()
	sess, err := f.svc.Register(context.Background(), RegisterUserData{
		Name: "Alice", Email: email, Password: "secret123",
	})
	require.NoError(t, err)
	return sess
}

func TestRegister(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Register(ctx, RegisterUserData{Name: "  Alice ", Email: " Alice@Example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.AccessToken)
	assert.NotEmpty(t, sess.RefreshToken)
	assert.Equal(t, "Alice", sess.User.Name)
	assert.Equal(t, "alice@example.com", sess.User.Email)
	assert.Empty(t, sess.User.PasswordHash)
	assert.Nil(t, sess.User.RefreshToken)
	assert.Equal(t, f.clock.Now().UTC(), sess.User.CreatedAt)

	stored, err := f.users.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, sess.RefreshToken, *stored.RefreshToken)
	assert.True(t, stored.PasswordMatches("secret123"))
	assert.NoError(t, stored.Validate())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "dup@example.com")

	_, err := f.svc.Register(context.Background(), RegisterUserData{
		Name: "Other", Email: "DUP@example.com", Password: "another1",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TypeConflict))
	assert.Equal(t, 1, f.users.Len())
}

func TestRegister_Validation(t *testing.T) {
	f := newAuthFixture(t)

	cases := map[string]RegisterUserData{
		"missing name":     {Email: "a@b.c", Password: "secret123"},
		"missing email":    {Name: "A", Password: "secret123"},
		"missing password": {Name: "A", Email: "a@b.c"},
		"short password":   {Name: "A", Email: "a@b.c", Password: "123"},
		"malformed email":  {Name: "A", Email: "not-an-email", Password: "secret123"},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), data)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.TypeValidation), "got %v", err)
		})
	}
	assert.Equal(t, 0, f.users.Len())
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	first := f.register(t, "bob@example.com")
	ctx := context.Background()

	sess, err := f.svc.Login(ctx, "BOB@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, sess.User.ID)
	assert.NotEqual(t, first.RefreshToken, sess.RefreshToken)

	// Logging in rotated the refresh token, so the one from register is dead.
	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	assert.True(t, apperrors.IsType(err, apperrors.TypeAuthentication))

	_, err = f.svc.Refresh(ctx, sess.RefreshToken)
	assert.NoError(t, err)
}

func TestLogin_Failures(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "carol@example.com")
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "carol@example.com", "wrong-password")
	assert.True(t, apperrors.IsType(err, apperrors.TypeAuthentication))

	_, err = f.svc.Login(ctx, "nobody@example.com", "secret123")
	assert.True(t, apperrors.IsType(err, apperrors.TypeAuthentication))

	_, err = f.svc.Login(ctx, "", "secret123")
	assert.True(t, apperrors.IsType(err, apperrors.TypeValidation))
}

func TestRefresh_RotatesAndRejectsReuse(t *testing.T) {
	f := newAuthFixture(t)
	sess := f.register(t, "dave@example.com")
	ctx := context.Background()

	pair, err := f.svc.Refresh(ctx, sess.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, sess.RefreshToken, pair.RefreshToken)
	assert.NotEmpty(t, pair.AccessToken)

	_, err = f.svc.Refresh(ctx, sess.RefreshToken)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TypeAuthentication))

	next, err := f.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
}

func TestRefresh_ConcurrentReuseHasSingleWinner(t *testing.T) {
	f := newAuthFixture(t)
	sess := f.register(t, "erin@example.com")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Refresh(context.Background(), sess.RefreshToken); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestRefresh_RejectsBadTokens(t *testing.T) {
	f := newAuthFixture(t)
	sess := f.register(t, "frank@example.com")
	ctx := context.Background()

	_, err := f.svc.Refresh(ctx, "")
	assert.True(t, apperrors.IsType(err, apperrors.TypeAuthentication))

	_, err = f.svc.Refresh(ctx, sess.AccessToken)
	assert.True(t, apperrors.IsType(err, apperrors.TypeAuthentication), "access token must not refresh")

	f.clock.Advance(7*24*time.Hour + time.Second)
	_, err = f.svc.Refresh(ctx, sess.RefreshToken)
	assert.True(t, apperrors.IsType(err, apperrors.TypeAuthentication), "expired refresh token")
}

func TestLogout(t *testing.T) {
	f := newAuthFixture(t)
	sess := f.register(t, "gina@example.com")
	ctx := context.Background()

	cleared, err := f.svc.Logout(ctx, sess.RefreshToken)
	require.NoError(t, err)
	assert.True(t, cleared)

	_, err = f.svc.Refresh(ctx, sess.RefreshToken)
	assert.True(t, apperrors.IsType(err, apperrors.TypeAuthentication))

	cleared, err = f.svc.Logout(ctx, sess.RefreshToken)
	require.NoError(t, err)
	assert.False(t, cleared, "second logout is a no-op")

	_, err = f.svc.Logout(ctx, "")
	assert.True(t, apperrors.IsType(err, apperrors.TypeValidation))
}

func TestAuthenticate(t *testing.T) {
	f := newAuthFixture(t)
	sess := f.register(t, "hank@example.com")
	ctx := context.Background()

	u, err := f.svc.Authenticate(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, u.ID)
	assert.Empty(t, u.PasswordHash)
	assert.Nil(t, u.RefreshToken)

	_, err = f.svc.Authenticate(ctx, "")
	assert.True(t, apperrors.IsType(err, apperrors.TypeAuthentication))

	_, err = f.svc.Authenticate(ctx, sess.RefreshToken)
	assert.True(t, apperrors.IsType(err, apperrors.TypeAuthentication), "refresh token is not an access token")

	f.clock.Advance(16 * time.Minute)
	_, err = f.svc.Authenticate(ctx, sess.AccessToken)
	assert.True(t, apperrors.IsType(err, apperrors.TypeAuthentication), "expired access token")
}

func TestAuthenticate_UserGone(t *testing.T) {
	f := newAuthFixture(t)
	sess := f.register(t, "ivy@example.com")
	f.users.Delete(sess.User.ID)

	_, err := f.svc.Authenticate(context.Background(), sess.AccessToken)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TypeAuthentication))
}
