package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"a@x.com", true},
		{"first.last+tag@sub.example.org", true},
		{"", false},
		{"no-at-sign", false},
		{"a@x", false},
		{"a b@x.com", false},
		{"@x.com", false},
		{"a..b@x..com", false},
		{".alice@x.com", false},
		{"alice@-x-.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateEmail(tt.email))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.com \n"))
	assert.Equal(t, "", NormalizeEmail("   "))
}

type form struct {
	Username string `form:"username" validate:"required"`
	Email    string `form:"email" validate:"required,email"`
	Note     string `form:"-"`
}

func TestValidateStruct(t *testing.T) {
	got, err := ValidateStruct(form{Username: "alice", Email: "a@x.com"})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ValidateStruct(form{})
	require.NoError(t, err)
	assert.Equal(t, []Violation{{"username", "required"}, {"email", "required"}}, got)

	got, err = ValidateStruct(form{Username: "alice", Email: "a..b@x.com"})
	require.NoError(t, err)
	assert.Equal(t, []Violation{{"email", "email"}}, got)
}

func TestValidateStruct_NotAStruct(t *testing.T) {
	_, err := ValidateStruct("alice")
	assert.Error(t, err)
}
