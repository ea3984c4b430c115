package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "attest/pkg/domain-errors"
	authmw "attest/pkg/platform/middleware/auth"
)

// Claims are the registered claims plus the operator role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService signs and verifies HS256 tokens for the admin routes.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey, issuer, audience string) *JWTService {
	return &JWTService{signingKey: []byte(signingKey), issuer: issuer, audience: audience}
}

// GenerateToken issues a token for subject holding role, valid for ttl.
func (s *JWTService) GenerateToken(subject, role string, ttl time.Duration) (string, error) {
	issuedAt := time.Now()
	claims := Claims{Role: role}
	claims.Subject = subject
	claims.Issuer = s.issuer
	claims.Audience = jwt.ClaimStrings{s.audience}
	claims.ID = uuid.NewString()
	claims.IssuedAt = jwt.NewNumericDate(issuedAt)
	claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(ttl))
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

func (s *JWTService) key(token *jwt.Token) (any, error) {
	if token.Method != jwt.SigningMethodHS256 {
		return nil, jwt.ErrTokenUnverifiable
	}
	return s.signingKey, nil
}

// ValidateToken satisfies auth.TokenValidator.
func (s *JWTService) ValidateToken(raw string) (*authmw.Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, s.key,
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
	case err != nil:
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return &authmw.Claims{Subject: claims.Subject, Role: claims.Role, JTI: claims.ID}, nil
}
