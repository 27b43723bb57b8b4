package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_Valid(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleOfficial, RoleAnalyst, RoleAdministrator} {
		assert.True(t, r.Valid(), "role %q", r)
	}
	assert.False(t, Role("superuser").Valid())
	assert.False(t, Role("").Valid())
}

func TestAccount_Locked(t *testing.T) {
	now := time.Now()

	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name  string
		until *time.Time
		want  bool
	}{
		{name: "no lock", until: nil, want: false},
		{name: "active lock", until: &future, want: true},
		{name: "expired lock", until: &past, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := &Account{LockedUntil: tc.until}
			assert.Equal(t, tc.want, a.Locked(now))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.Com "))
}

func TestValidateName(t *testing.T) {
	assert.Error(t, ValidateName("a"))
	assert.Error(t, ValidateName("   a   "))
	assert.Error(t, ValidateName(strings.Repeat("x", 51)))
	assert.NoError(t, ValidateName("Jo"))
	assert.NoError(t, ValidateName("  Priya Sharma  "))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("user@example.com"))
	assert.NoError(t, ValidateEmail("USER.NAME@sub.example.in"))
	assert.Error(t, ValidateEmail("not-an-email"))
	assert.Error(t, ValidateEmail("a@b"))
	assert.Error(t, ValidateEmail(""))
}

func TestValidatePassword(t *testing.T) {
	assert.Error(t, ValidatePassword("12345"))
	assert.NoError(t, ValidatePassword("123456"))
}

func TestAccountInfo_NeverExposesHash(t *testing.T) {
	a := &Account{
		ID:           "id-1",
		Name:         "Asha",
		Email:        "asha@example.com",
		PasswordHash: "$2a$12$secret",
		Role:         RoleUser,
		FailedLogins: 3,
	}

	b, err := json.Marshal(a.Info())
	require.NoError(t, err)

	s := string(b)
	assert.NotContains(t, s, "secret")
	assert.NotContains(t, s, "hash")
	assert.NotContains(t, s, "failed")
}
