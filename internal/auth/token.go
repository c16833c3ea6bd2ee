package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	now                func() time.Time
}

// NewJWTTokenGenerator creates a new JWT token generator
func NewJWTTokenGenerator(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTTokenGenerator {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 24 * time.Hour
	}
	return &JWTTokenGenerator{
		AccessTokenSecret:  []byte(accessSecret),
		RefreshTokenSecret: []byte(refreshSecret),
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
		now:                time.Now,
	}
}

// Issue signs a fresh access and refresh token for userID.
func (j *JWTTokenGenerator) Issue(userID uuid.UUID) (TokenPair, error) {
	now := j.now()

	access, accessExp, err := j.sign(userID, AccessToken, now)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := j.sign(userID, RefreshToken, now)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresAt:    accessExp,
	}, nil
}

func (j *JWTTokenGenerator) sign(userID uuid.UUID, kind TokenKind, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(j.ttl(kind))
	claims := &Claims{
		UserID:    userID.String(),
		TokenType: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secret(kind))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, expiresAt, nil
}

// Verify validates a JWT of the given kind and returns its claims
func (j *JWTTokenGenerator) Verify(tokenString string, kind TokenKind) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret(kind), nil
	}, jwt.WithTimeFunc(j.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TokenType != kind || claims.ID == "" {
		return nil, internal.ErrInvalidToken
	}
	if _, err := claims.Subject(); err != nil {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}

func (j *JWTTokenGenerator) secret(kind TokenKind) []byte {
	if kind == RefreshToken {
		return j.RefreshTokenSecret
	}
	return j.AccessTokenSecret
}

func (j *JWTTokenGenerator) ttl(kind TokenKind) time.Duration {
	if kind == RefreshToken {
		return j.RefreshTokenTTL
	}
	return j.AccessTokenTTL
}
