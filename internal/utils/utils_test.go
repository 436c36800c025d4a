package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSafeRedirectPath(t *testing.T) {
	cases := map[string]string{
		"":                      "/",
		"/hardware":             "/hardware",
		"/hardware?page=2#top":  "/hardware?page=2#top",
		"//evil.example/x":      "/",
		`/\evil.example`:        "/",
		"https://evil.example/": "/",
		"javascript:alert(1)":   "/",
		"hardware":              "/",
		"http:///still-a-url":   "/",
	}
	for in, want := range cases {
		assert.Equal(t, want, SafeRedirectPath(in), in)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "s3cret"))
	assert.False(t, VerifyPassword(hash, "S3cret"))
	assert.False(t, VerifyPassword("not-a-hash", "s3cret"))
}

func TestPasswordEdges(t *testing.T) {
	_, err := HashPassword("", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmptyPassword)

	hash, err := HashPassword("s3cret", 0)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)

	assert.False(t, VerifyPassword("", "s3cret"), "unknown user never matches")
}
