package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/internal/audit"
	userDatamodel "github.com/frahmantamala/thesis-repository/internal/core/datamodel/user"
	"github.com/frahmantamala/thesis-repository/internal/core/password"
	"github.com/frahmantamala/thesis-repository/internal/core/role"
	"github.com/frahmantamala/thesis-repository/internal/observability"
	"github.com/google/uuid"
)

var ErrUserNotFound = internal.NewNotFoundError("user not found", internal.ErrCodeUserNotFound)

const (
	auditModule = "auth"
	auditTable  = "users"
)

// Service is the main auth service with dependencies
type Service struct {
	repo    RepositoryAPI
	tokens  TokenGenerator
	revoked RevocationStore
	audit   *audit.Executor
	logger  *slog.Logger
}

func NewService(repo RepositoryAPI, tokens TokenGenerator, revoked RevocationStore, executor *audit.Executor, logger *slog.Logger) *Service {
	if revoked == nil {
		revoked = NoopRevocationStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		tokens:  tokens,
		revoked: revoked,
		audit:   executor,
		logger:  logger,
	}
}

// Authenticate validates credentials and returns tokens. Every outcome writes a
// LOGIN audit entry carrying only the attempted username.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO, meta audit.RequestMeta) (LoginResponse, error) {
	op := audit.Operation{Action: audit.ActionLogin, Module: auditModule, Table: auditTable, Meta: meta}

	resp, err := audit.Run(ctx, s.audit, op, func(ctx context.Context, c *audit.Capture) (LoginResponse, error) {
		validateErr := dto.Validate()
		c.SetNewData(map[string]string{"username": dto.Username})
		if validateErr != nil {
			return LoginResponse{}, validateErr
		}

		u, err := s.repo.FindByUsername(ctx, dto.Username)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				s.logger.Warn("login rejected: unknown username", "username", dto.Username)
				return LoginResponse{}, internal.ErrInvalidCredentials
			}
			return LoginResponse{}, fmt.Errorf("find user %q: %w", dto.Username, err)
		}
		c.SetRecordID(u.ID.String())

		if !u.IsActive {
			s.logger.Warn("login rejected: inactive user", "user_id", u.ID)
			return LoginResponse{}, internal.ErrInvalidCredentials
		}
		if !password.Verify(u.PasswordHash, dto.Password) {
			s.logger.Warn("login rejected: password mismatch", "user_id", u.ID)
			return LoginResponse{}, internal.ErrInvalidCredentials
		}
		c.SetActor(u.ID)

		roles, err := s.repo.RoleNames(ctx, u.ID)
		if err != nil {
			return LoginResponse{}, fmt.Errorf("load roles: %w", err)
		}

		pair, err := s.tokens.Issue(u.ID)
		if err != nil {
			return LoginResponse{}, err
		}

		s.logger.Info("user logged in", "user_id", u.ID, "username", u.Username)
		return LoginResponse{
			TokenPair: pair,
			User: UserSummary{
				ID:        u.ID,
				Username:  u.Username,
				Email:     u.Email,
				FirstName: u.FirstName,
				LastName:  u.LastName,
				Roles:     role.ParseSet(roles).Strings(),
			},
		}, nil
	})

	observability.LoginAttempts().WithLabelValues(loginOutcome(err)).Inc()
	return resp, err
}

func loginOutcome(err error) string {
	if err == nil {
		return "success"
	}
	if appErr, ok := internal.IsAppError(err); ok && appErr.Type != internal.ErrorTypeInternal {
		return "failure"
	}
	return "error"
}

// Refresh rotates the pair: the presented refresh token is revoked and a new pair issued.
func (s *Service) Refresh(ctx context.Context, dto RefreshTokenDTO) (TokenPair, error) {
	if err := dto.Validate(); err != nil {
		return TokenPair{}, err
	}

	claims, err := s.tokens.Verify(dto.RefreshToken, RefreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.ensureNotRevoked(ctx, claims); err != nil {
		return TokenPair{}, err
	}

	userID, _ := claims.Subject()
	if _, err := s.activeUser(ctx, userID); err != nil {
		return TokenPair{}, err
	}

	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return TokenPair{}, err
	}

	pair, err := s.tokens.Issue(userID)
	if err != nil {
		return TokenPair{}, err
	}
	s.logger.Info("tokens refreshed", "user_id", userID)
	return pair, nil
}

// Logout revokes the refresh token and, when presented, the access token of the session.
func (s *Service) Logout(ctx context.Context, dto LogoutDTO, accessToken string, meta audit.RequestMeta) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	claims, err := s.tokens.Verify(dto.RefreshToken, RefreshToken)
	if err != nil {
		return err
	}
	userID, _ := claims.Subject()

	op := audit.Operation{Action: audit.ActionLogout, Module: auditModule, Table: auditTable, RecordID: userID.String(), Meta: meta}
	_, err = audit.Run(ctx, s.audit, op, func(ctx context.Context, c *audit.Capture) (struct{}, error) {
		c.SetActor(userID)

		if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return struct{}{}, err
		}
		if accessToken != "" {
			if access, err := s.tokens.Verify(accessToken, AccessToken); err == nil && access.UserID == claims.UserID {
				if err := s.revoked.Revoke(ctx, access.ID, access.ExpiresAt.Time); err != nil {
					return struct{}{}, err
				}
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("user logged out", "user_id", userID)
	return nil
}

// VerifyAccessToken resolves a bearer token to the principal of the request.
func (s *Service) VerifyAccessToken(ctx context.Context, token string) (*internal.Principal, error) {
	claims, err := s.tokens.Verify(token, AccessToken)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNotRevoked(ctx, claims); err != nil {
		return nil, err
	}

	userID, _ := claims.Subject()
	u, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	roles, err := s.repo.RoleNames(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}

	return &internal.Principal{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		Roles:              role.ParseSet(roles),
		LastPasswordChange: u.LastPasswordChange,
	}, nil
}

func (s *Service) ensureNotRevoked(ctx context.Context, claims *Claims) error {
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return err
	}
	if revoked {
		return internal.ErrInvalidToken
	}
	return nil
}

func (s *Service) activeUser(ctx context.Context, id uuid.UUID) (*userDatamodel.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, internal.ErrInvalidToken
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, internal.ErrUserInactive
	}
	return u, nil
}
