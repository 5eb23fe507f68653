package rediskey

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFragment(t *testing.T) {
	tests := []struct {
		fragment    string
		expectError bool
	}{
		{"users", false},
		{"doc-1.v2", false},
		{"a_b@c", false},
		{"", true},
		{"a:b", true},
		{"a*", true},
		{"sp ace", true},
		{"ümlaut", true},
	}
	for _, tt := range tests {
		t.Run(tt.fragment, func(t *testing.T) {
			err := ValidateFragment(tt.fragment)
			if tt.expectError {
				assert.Error(t, err)
				assert.IsType(t, InvalidKeyError(""), err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		expectError bool
	}{
		{"Plain key", "users:1", false},
		{"Pattern", "__ns__:users:*", false},
		{"Empty", "", true},
		{"Leading delimiter", ":users", true},
		{"Trailing delimiter", "users:", true},
		{"Invalid characters", "users!1", true},
		{"Too long", strings.Repeat("a", keyMaxLength+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.key)
			assert.Equal(t, tt.expectError, err != nil, "error: %v", err)
		})
	}
}

func TestJoinSplitPattern(t *testing.T) {
	assert.Equal(t, "a:b:c", Join("a", "", "b", "c"))
	assert.Equal(t, "", Join())
	assert.Equal(t, []string{"a", "b", "c"}, Split("a:b:c"))
	assert.Equal(t, "a:b:*", Pattern("a:b", WildcardAnyString))
	assert.Equal(t, "?", Pattern("", WildcardAnyChar))
}
