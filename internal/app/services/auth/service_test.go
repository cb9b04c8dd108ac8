package auth_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"staybook/internal/app/services/auth"
	domainauth "staybook/internal/domain/auth"
	"staybook/internal/domain/shared/clock"
	domainuser "staybook/internal/domain/user"
	"staybook/internal/infra/security"
	"staybook/internal/infra/storage/memory"
)

type sequentialTokens struct {
	n int
}

func (g *sequentialTokens) NewToken() (string, error) {
	g.n++
	return fmt.Sprintf("token-%d", g.n), nil
}

type hookRecorder struct {
	seen []domainuser.ID
}

func (h *hookRecorder) AfterLogin(ctx context.Context, u *domainuser.User) {
	h.seen = append(h.seen, u.ID)
}

type fixture struct {
	users    *memory.UserRepository
	sessions *memory.SessionStore
	current  time.Time
	service  *auth.Service
}

func newFixture() *fixture {
	f := &fixture{
		users:    memory.NewUserRepository(),
		sessions: memory.NewSessionStore(),
		current:  time.Date(2030, 1, 2, 9, 0, 0, 0, time.UTC),
	}
	f.service = &auth.Service{
		Users:      f.users,
		Sessions:   f.sessions,
		Passwords:  security.BcryptHasher{Cost: bcrypt.MinCost},
		Tokens:     &sequentialTokens{},
		SessionTTL: time.Hour,
		Clock:      clock.Func(func() time.Time { return f.current }),
	}
	return f
}

func TestRegisterAssignsRolesAndIssuesSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	guest, err := f.service.Register(ctx, auth.RegisterParams{Email: " Guest@Example.com ", Name: "Guest", Password: "long-enough"})
	require.NoError(t, err)
	assert.Equal(t, "guest@example.com", guest.User.Email)
	assert.Equal(t, []domainuser.Role{domainuser.RoleGuest}, guest.User.Roles)
	assert.Equal(t, "token-1", guest.Token)

	host, err := f.service.Register(ctx, auth.RegisterParams{Email: "host@example.com", Name: "Host", Password: "long-enough", WantToHost: true})
	require.NoError(t, err)
	assert.True(t, host.User.HasRole(domainuser.RoleHost))
	assert.True(t, host.User.HasRole(domainuser.RoleGuest))

	session, err := f.sessions.Get(ctx, domainauth.Token(host.Token))
	require.NoError(t, err)
	assert.Equal(t, host.User.ID, session.UserID)
	assert.Equal(t, f.current.Add(time.Hour), session.ExpiresAt)
	assert.NotEqual(t, "long-enough", host.User.PasswordHash)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.service.Register(ctx, auth.RegisterParams{Email: "a@example.com", Name: "A", Password: "long-enough"})
	require.NoError(t, err)

	cases := []struct {
		name   string
		params auth.RegisterParams
		want   error
	}{
		{"duplicate email", auth.RegisterParams{Email: "A@example.com", Name: "A2", Password: "long-enough"}, domainuser.ErrEmailAlreadyUsed},
		{"short password", auth.RegisterParams{Email: "b@example.com", Name: "B", Password: "short"}, auth.ErrPasswordTooShort},
		{"missing email", auth.RegisterParams{Name: "C", Password: "long-enough"}, domainuser.ErrEmailRequired},
		{"missing name", auth.RegisterParams{Email: "d@example.com", Name: " ", Password: "long-enough"}, domainuser.ErrNameRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.Register(ctx, tc.params)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoginRunsHooksAndRejectsBadCredentials(t *testing.T) {
	f := newFixture()
	recorder := &hookRecorder{}
	f.service.LoginHooks = []auth.LoginHook{recorder, nil}
	ctx := context.Background()

	registered, err := f.service.Register(ctx, auth.RegisterParams{Email: "guest@example.com", Name: "Guest", Password: "long-enough"})
	require.NoError(t, err)

	_, err = f.service.Login(ctx, auth.LoginParams{Email: "guest@example.com", Password: "not-the-one"})
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = f.service.Login(ctx, auth.LoginParams{Email: "nobody@example.com", Password: "long-enough"})
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Empty(t, recorder.seen)

	res, err := f.service.Login(ctx, auth.LoginParams{Email: "GUEST@example.com", Password: "long-enough"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, res.User.ID)
	assert.NotEqual(t, registered.Token, res.Token)
	assert.Equal(t, []domainuser.ID{registered.User.ID}, recorder.seen)
}

func TestServiceRequiresDependencies(t *testing.T) {
	_, err := (&auth.Service{}).Login(context.Background(), auth.LoginParams{Email: "x@example.com", Password: "long-enough"})
	require.ErrorIs(t, err, auth.ErrNotConfigured)
	assert.Contains(t, err.Error(), "user repository")
}

func TestResolveTokenExpiresSessions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.service.Register(ctx, auth.RegisterParams{Email: "x@example.com", Name: "X", Password: "long-enough"})
	require.NoError(t, err)

	resolved, err := f.service.ResolveToken(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, resolved.User.ID)

	_, err = f.service.ResolveToken(ctx, "  ")
	require.ErrorIs(t, err, domainauth.ErrTokenRequired)

	f.current = f.current.Add(time.Hour)
	_, err = f.service.ResolveToken(ctx, res.Token)
	require.ErrorIs(t, err, auth.ErrSessionExpired)

	_, err = f.sessions.Get(ctx, domainauth.Token(res.Token))
	require.ErrorIs(t, err, domainauth.ErrSessionNotFound)
}

func TestLogoutDropsSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.service.Register(ctx, auth.RegisterParams{Email: "x@example.com", Name: "X", Password: "long-enough"})
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, res.Token))
	require.NoError(t, f.service.Logout(ctx, ""))

	_, err = f.service.ResolveToken(ctx, res.Token)
	require.ErrorIs(t, err, domainauth.ErrSessionNotFound)
}

func TestResolveTokenForDeletedUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.service.Register(ctx, auth.RegisterParams{Email: "x@example.com", Name: "X", Password: "long-enough"})
	require.NoError(t, err)
	require.NoError(t, f.users.Delete(ctx, res.User.ID))

	_, err = f.service.ResolveToken(ctx, res.Token)
	require.ErrorIs(t, err, domainauth.ErrSessionNotFound)
}

func TestRoleGrantHook(t *testing.T) {
	f := newFixture()
	f.service.LoginHooks = []auth.LoginHook{auth.RoleGrantHook{
		Users:  f.users,
		Role:   domainuser.RoleAdmin,
		Emails: []string{" Root@Example.com "},
		Clock:  clock.Fixed(f.current),
	}}
	ctx := context.Background()

	_, err := f.service.Register(ctx, auth.RegisterParams{Email: "root@example.com", Name: "Root", Password: "long-enough"})
	require.NoError(t, err)
	_, err = f.service.Register(ctx, auth.RegisterParams{Email: "plain@example.com", Name: "Plain", Password: "long-enough"})
	require.NoError(t, err)

	root, err := f.service.Login(ctx, auth.LoginParams{Email: "root@example.com", Password: "long-enough"})
	require.NoError(t, err)
	assert.True(t, root.User.HasRole(domainuser.RoleAdmin))
	stored, err := f.users.ByID(ctx, root.User.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasRole(domainuser.RoleAdmin))

	plain, err := f.service.Login(ctx, auth.LoginParams{Email: "plain@example.com", Password: "long-enough"})
	require.NoError(t, err)
	assert.False(t, plain.User.HasRole(domainuser.RoleAdmin))
}
