package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2030, 1, 1, 8, 0, 0, 0, time.FixedZone("CET", 3600))

func TestNewUserNormalizes(t *testing.T) {
	u, err := NewUser(CreateParams{
		ID:           "u1",
		Email:        "  Mixed@Example.COM ",
		Name:         " Ada ",
		PasswordHash: "hash",
		Roles:        []Role{" Host ", RoleGuest, "host"},
		CreatedAt:    created,
	})
	require.NoError(t, err)
	assert.Equal(t, "mixed@example.com", u.Email)
	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, []Role{RoleHost, RoleGuest}, u.Roles)
	assert.Equal(t, time.UTC, u.CreatedAt.Location())
	assert.True(t, u.CreatedAt.Equal(created))

	plain, err := NewUser(CreateParams{ID: "u2", Email: "p@example.com", Name: "P", PasswordHash: "hash", CreatedAt: created})
	require.NoError(t, err)
	assert.Equal(t, []Role{RoleGuest}, plain.Roles)
}

func TestNewUserRejectsBadInput(t *testing.T) {
	base := CreateParams{ID: "u1", Email: "a@example.com", Name: "A", PasswordHash: "hash", CreatedAt: created}
	cases := map[string]struct {
		mutate func(*CreateParams)
		want   error
	}{
		"id":    {func(p *CreateParams) { p.ID = " " }, ErrIDRequired},
		"email": {func(p *CreateParams) { p.Email = "" }, ErrEmailRequired},
		"hash":  {func(p *CreateParams) { p.PasswordHash = "" }, ErrPasswordHashMissing},
		"name":  {func(p *CreateParams) { p.Name = "" }, ErrNameRequired},
		"role":  {func(p *CreateParams) { p.Roles = []Role{"owner"} }, ErrInvalidRole},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			params := base
			tc.mutate(&params)
			_, err := NewUser(params)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEnsureRole(t *testing.T) {
	u, err := NewUser(CreateParams{ID: "u1", Email: "a@example.com", Name: "A", PasswordHash: "hash", CreatedAt: created})
	require.NoError(t, err)
	later := created.Add(time.Hour)

	require.NoError(t, u.EnsureRole(" ADMIN ", later))
	assert.True(t, u.HasRole(RoleAdmin))
	assert.True(t, u.UpdatedAt.Equal(later))

	require.NoError(t, u.EnsureRole(RoleAdmin, later.Add(time.Hour)))
	assert.Len(t, u.Roles, 2)
	assert.True(t, u.UpdatedAt.Equal(later))

	require.ErrorIs(t, u.EnsureRole("superuser", later), ErrInvalidRole)
}
