package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sheet-tracker/backend/internal/domain"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// tokenClaims is the payload of both token types. Refresh tokens leave
// Email and Role empty.
type tokenClaims struct {
	jwt.RegisteredClaims
	Email string      `json:"email,omitempty"`
	Role  domain.Role `json:"role,omitempty"`
	Type  string      `json:"type"`
}

func (c *tokenClaims) userID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidToken
	}
	return id, nil
}

// generateTokenPair signs a fresh pair for user on the service clock
func (s *UserService) generateTokenPair(user *domain.User) (*TokenPair, error) {
	now := s.now()
	accessExpiry := now.Add(s.jwtConfig.AccessTokenExpiry)

	access, err := s.signToken(&tokenClaims{
		RegisteredClaims: s.registeredClaims(user.ID, now, accessExpiry),
		Email:            user.Email,
		Role:             user.Role,
		Type:             tokenTypeAccess,
	})
	if err != nil {
		return nil, err
	}

	refresh, err := s.signToken(&tokenClaims{
		RegisteredClaims: s.registeredClaims(user.ID, now, now.Add(s.jwtConfig.RefreshTokenExpiry)),
		Type:             tokenTypeRefresh,
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    accessExpiry,
	}, nil
}

func (s *UserService) registeredClaims(userID uuid.UUID, issuedAt, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    s.jwtConfig.Issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

func (s *UserService) signToken(claims *tokenClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtConfig.SecretKey))
}

// parseToken verifies signature, issuer and expiry against the service
// clock and rejects a token of the other type
func (s *UserService) parseToken(tokenString, wantType string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.jwtConfig.SecretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.jwtConfig.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || claims.Type != wantType {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}
