package auth

import (
	"context"
	"time"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/internal/audit"
	userDatamodel "github.com/frahmantamala/thesis-repository/internal/core/datamodel/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// Claims represents JWT token claims
type Claims struct {
	UserID    string    `json:"user_id"`
	TokenType TokenKind `json:"token_type"`
	jwt.RegisteredClaims
}

// Subject returns the user id the token was issued for.
func (c *Claims) Subject() (uuid.UUID, error) {
	return uuid.Parse(c.UserID)
}

// TokenPair is what a successful login or refresh returns.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenGenerator produces a signed access+refresh pair for a validated identity.
type TokenGenerator interface {
	Issue(userID uuid.UUID) (TokenPair, error)
	Verify(token string, kind TokenKind) (*Claims, error)
}

// RevocationStore remembers refresh and access tokens that were logged out.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type RepositoryAPI interface {
	FindByUsername(ctx context.Context, username string) (*userDatamodel.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*userDatamodel.User, error)
	RoleNames(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO, meta audit.RequestMeta) (LoginResponse, error)
	Refresh(ctx context.Context, dto RefreshTokenDTO) (TokenPair, error)
	Logout(ctx context.Context, dto LogoutDTO, accessToken string, meta audit.RequestMeta) error
	VerifyAccessToken(ctx context.Context, token string) (*internal.Principal, error)
}

// UserSummary is the identity echoed back on login.
type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Roles     []string  `json:"roles"`
}

type LoginResponse struct {
	TokenPair
	User UserSummary `json:"user"`
}
