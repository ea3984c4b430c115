package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "attest/pkg/domain-errors"
	authmw "attest/pkg/platform/middleware/auth"
)

const signingKey = "officer-signing-key-0123"

func newService(audience string) *JWTService {
	return NewJWTService(signingKey, "attest", audience)
}

func TestGenerateToken_RoundTrip(t *testing.T) {
	svc := newService("attest-admin")
	token, err := svc.GenerateToken("officer-1", authmw.RoleComplianceOfficer, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "officer-1", claims.Subject)
	assert.Equal(t, authmw.RoleComplianceOfficer, claims.Role)
	assert.NotEmpty(t, claims.JTI)

	again, err := svc.GenerateToken("officer-1", authmw.RoleComplianceOfficer, time.Hour)
	require.NoError(t, err)
	second, err := svc.ValidateToken(again)
	require.NoError(t, err)
	assert.NotEqual(t, claims.JTI, second.JTI, "each token carries its own id")
}

func TestValidateToken_Rejections(t *testing.T) {
	svc := newService("attest-admin")

	sign := func(t *testing.T, issuer *JWTService, ttl time.Duration) string {
		t.Helper()
		token, err := issuer.GenerateToken("officer-1", authmw.RoleComplianceOfficer, ttl)
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		message string
	}{
		{
			name:    "garbage",
			token:   func(*testing.T) string { return "not.a.jwt" },
			message: "invalid token",
		},
		{
			name:    "expired",
			token:   func(t *testing.T) string { return sign(t, svc, -time.Minute) },
			message: "token has expired",
		},
		{
			name:    "other audience",
			token:   func(t *testing.T) string { return sign(t, newService("dashboards"), time.Hour) },
			message: "invalid token",
		},
		{
			name: "other signing key",
			token: func(t *testing.T) string {
				return sign(t, NewJWTService("another-signing-key-99", "attest", "attest-admin"), time.Hour)
			},
			message: "invalid token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token(t))
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
