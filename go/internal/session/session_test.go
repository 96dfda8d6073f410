package session

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte("some-server-secret"))
	require.NoError(t, err)
	return s
}

func TestDecode(t *testing.T) {
	valid := signedToken(t, Claims{
		UserID:    "u1",
		Username:  "Ana",
		SessionID: "s1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	expired := signedToken(t, Claims{
		UserID:   "u2",
		Username: "Ben",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	noUser := signedToken(t, Claims{Username: "ghost"})
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

	tests := []struct {
		name  string
		token string
		want  *Session
	}{
		{
			name:  "valid credential",
			token: valid,
			want:  &Session{UserID: "u1", Username: "Ana", SessionID: "s1"},
		},
		{
			name:  "expiry is not checked",
			token: expired,
			want:  &Session{UserID: "u2", Username: "Ben"},
		},
		{
			name:  "signature is not checked",
			token: valid[:len(valid)-4] + "AAAA",
			want:  &Session{UserID: "u1", Username: "Ana", SessionID: "s1"},
		},
		{name: "empty", token: ""},
		{name: "two segments", token: "abc.def"},
		{name: "garbage payload", token: header + ".!!!.sig"},
		{name: "payload not json", token: header + "." + base64.RawURLEncoding.EncodeToString([]byte("hello")) + ".sig"},
		{name: "missing user id", token: noUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.token))
		})
	}
}

func TestHolder(t *testing.T) {
	h := NewHolder()
	assert.Nil(t, h.Session())
	assert.Empty(t, h.UserID())

	token := signedToken(t, Claims{UserID: "u1", Username: "Ana", SessionID: "s1"})
	require.True(t, h.SetToken(token))
	assert.Equal(t, token, h.Token())
	assert.Equal(t, "u1", h.UserID())

	s := h.Session()
	require.NotNil(t, s)
	s.Username = "mutated"
	assert.Equal(t, "Ana", h.Session().Username, "Session returns a copy")

	assert.False(t, h.SetToken("broken"))
	assert.Nil(t, h.Session())
	assert.Empty(t, h.Token())

	require.True(t, h.SetToken(token))
	h.Clear()
	assert.Nil(t, h.Session())
}
