package authclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionRoleChecks(t *testing.T) {
	s := Session{User: testUser("u1", "admin", "editor")}

	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"has role", s.HasRole("admin"), true},
		{"role is case sensitive", s.HasRole("Admin"), false},
		{"missing role", s.HasRole("owner"), false},
		{"any of one match", s.HasAnyRole("owner", "editor"), true},
		{"any of none", s.HasAnyRole("owner", "viewer"), false},
		{"any of empty list", s.HasAnyRole(), false},
		{"all present", s.HasAllRoles("admin", "editor"), true},
		{"all with one missing", s.HasAllRoles("admin", "owner"), false},
		{"all of empty list", s.HasAllRoles(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestSessionAnonymous(t *testing.T) {
	var s Session
	assert.False(t, s.IsAuthenticated())
	assert.False(t, s.IsEmailVerified())
	assert.False(t, s.HasRole("admin"))
	assert.Equal(t, []string{}, s.UserRoles())
	assert.Equal(t, "User", s.DisplayName())
}

func TestSessionRolesDisabled(t *testing.T) {
	s := Session{User: testUser("u1", "admin"), rolesDisabled: true}
	assert.False(t, s.RolesEnabled())
	assert.False(t, s.HasRole("admin"))
	assert.False(t, s.HasAnyRole("admin"))
	assert.True(t, s.HasAllRoles())
	assert.Empty(t, s.UserRoles())
}

func TestSessionUserRolesIsCopy(t *testing.T) {
	s := Session{User: testUser("u1", "admin")}
	roles := s.UserRoles()
	roles[0] = "owner"
	assert.True(t, s.HasRole("admin"))
}

func TestSessionDisplayName(t *testing.T) {
	assert.Equal(t, "Ada", Session{User: &User{ID: "1", Name: "Ada", Email: "ada@x.io"}}.DisplayName())
	assert.Equal(t, "ada@x.io", Session{User: &User{ID: "1", Email: "ada@x.io"}}.DisplayName())
	assert.Equal(t, "User", Session{User: &User{ID: "1"}}.DisplayName())
}

func TestHistoryNavigator(t *testing.T) {
	h := NewHistory("")
	assert.Equal(t, "/", h.CurrentPath())
	_, ok := h.Last()
	assert.False(t, ok)

	h.Navigate("/login", map[string][]string{"redirect": {"/admin"}})
	h.Navigate("/", nil)
	assert.Equal(t, "/", h.CurrentPath())

	entries := h.Entries()
	assert.Len(t, entries, 2)
	assert.Equal(t, "/admin", entries[0].Query.Get("redirect"))
}
