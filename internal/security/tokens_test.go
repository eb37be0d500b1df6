package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

var tokenTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "https://id.example.com",
		Audience:  jwt.ClaimStrings{"familytasks"},
		IssuedAt:  jwt.NewNumericDate(tokenTime.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(tokenTime.Add(time.Hour)),
	}
}

func TestTokenVerifier(t *testing.T) {
	verifier := NewTokenVerifier(testSecret, "https://id.example.com", "familytasks")
	verifier.now = func() time.Time { return tokenTime }

	tests := []struct {
		name    string
		token   func() string
		subject string
		wantErr bool
	}{
		{
			name:    "valid",
			token:   func() string { return signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims()) },
			subject: "user-1",
		},
		{
			name: "expired",
			token: func() string {
				c := validClaims()
				c.ExpiresAt = jwt.NewNumericDate(tokenTime.Add(-time.Second))
				return signToken(t, jwt.SigningMethodHS256, []byte(testSecret), c)
			},
			wantErr: true,
		},
		{
			name: "no expiry",
			token: func() string {
				c := validClaims()
				c.ExpiresAt = nil
				return signToken(t, jwt.SigningMethodHS256, []byte(testSecret), c)
			},
			wantErr: true,
		},
		{
			name:    "wrong secret",
			token:   func() string { return signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims()) },
			wantErr: true,
		},
		{
			name:    "wrong algorithm",
			token:   func() string { return signToken(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims()) },
			wantErr: true,
		},
		{
			name: "wrong issuer",
			token: func() string {
				c := validClaims()
				c.Issuer = "https://evil.example.com"
				return signToken(t, jwt.SigningMethodHS256, []byte(testSecret), c)
			},
			wantErr: true,
		},
		{
			name: "wrong audience",
			token: func() string {
				c := validClaims()
				c.Audience = jwt.ClaimStrings{"billing"}
				return signToken(t, jwt.SigningMethodHS256, []byte(testSecret), c)
			},
			wantErr: true,
		},
		{
			name: "missing subject",
			token: func() string {
				c := validClaims()
				c.Subject = ""
				return signToken(t, jwt.SigningMethodHS256, []byte(testSecret), c)
			},
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   func() string { return "not.a.jwt" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, err := verifier.Verify(tt.token())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.subject, subject)
		})
	}
}

func TestTokenVerifierWithoutIssuerOrAudience(t *testing.T) {
	verifier := NewTokenVerifier(testSecret, "", "")
	verifier.now = func() time.Time { return tokenTime }

	c := validClaims()
	c.Issuer = "anyone"
	c.Audience = nil
	subject, err := verifier.Verify(signToken(t, jwt.SigningMethodHS256, []byte(testSecret), c))
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer   abc", "abc", true},
		{"Basic dXNlcjpwYXNz", "", false},
		{"Bearer ", "", false},
		{"", "", false},
		{"abc.def.ghi", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			token, ok := BearerToken(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, token)
		})
	}
}
