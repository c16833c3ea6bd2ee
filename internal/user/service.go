package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/internal/audit"
	"github.com/frahmantamala/thesis-repository/internal/core/common/validation"
	userDatamodel "github.com/frahmantamala/thesis-repository/internal/core/datamodel/user"
	"github.com/frahmantamala/thesis-repository/internal/core/password"
	"github.com/frahmantamala/thesis-repository/internal/core/role"
	"github.com/frahmantamala/thesis-repository/internal/storage"
	"github.com/google/uuid"
)

const (
	auditModule = "users"
	auditTable  = "users"
)

type Service struct {
	repo     Repository
	policy   *password.Policy
	files    storage.FileStore
	audit    *audit.Executor
	logger   *slog.Logger
	mediaURL string
	now      func() time.Time
}

// NewService wires the user service. mediaURL prefixes stored avatar paths in responses.
func NewService(repo Repository, policy *password.Policy, files storage.FileStore, executor *audit.Executor, logger *slog.Logger, mediaURL string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == nil {
		policy = password.NewPolicy(password.DefaultConfig())
	}
	return &Service{
		repo:     repo,
		policy:   policy,
		files:    files,
		audit:    executor,
		logger:   logger,
		mediaURL: mediaURL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser registers an account with one role and its first password history entry.
// requester is nil for anonymous sign-ups.
func (s *Service) CreateUser(ctx context.Context, requester *internal.Principal, dto CreateUserDTO, avatar *storage.Upload, meta audit.RequestMeta) (*User, error) {
	op := audit.Operation{Action: audit.ActionCreate, Module: auditModule, Table: auditTable, Meta: meta}

	return audit.Run(ctx, s.audit, op, func(ctx context.Context, c *audit.Capture) (*User, error) {
		dto.Normalize()
		if err := s.validateCreate(dto, avatar); err != nil {
			return nil, err
		}

		roleID, _ := uuid.Parse(dto.RoleID)
		r, err := s.repo.FindRole(ctx, roleID)
		if err != nil {
			return nil, err
		}
		if role.Name(r.Name) == role.Admin && (requester == nil || !requester.Roles.IsAdmin()) {
			s.logger.Warn("admin role assignment denied", "username", dto.Username)
			return nil, internal.NewPermissionDeniedError("only administrators may assign the ADMIN role")
		}

		if err := s.ensureUnique(ctx, dto.Username, dto.Email); err != nil {
			return nil, err
		}

		hash, err := s.policy.Hash(dto.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}

		now := s.now()
		u := &userDatamodel.User{
			ID:                 uuid.New(),
			Username:           dto.Username,
			Email:              dto.Email,
			FirstName:          dto.FirstName,
			LastName:           dto.LastName,
			PasswordHash:       hash,
			IsActive:           true,
			LastPasswordChange: now,
		}
		if avatar != nil {
			p := storage.AvatarPath(u.ID, avatar.Filename)
			if _, err := s.files.Save(ctx, p, avatar.Reader()); err != nil {
				return nil, fmt.Errorf("store avatar: %w", err)
			}
			u.Avatar = &p
		}

		if err := s.repo.Create(ctx, u, r.ID); err != nil {
			if u.Avatar != nil {
				s.release(ctx, *u.Avatar)
			}
			return nil, err
		}
		// an anonymous sign-up is attributed to the account it created
		if requester == nil {
			c.SetActor(u.ID)
		}

		s.logger.Info("user created", "user_id", u.ID, "username", u.Username, "role", r.Name)
		return FromDataModel(u, []userDatamodel.Role{*r}, s.mediaURL), nil
	})
}

func (s *Service) validateCreate(dto CreateUserDTO, avatar *storage.Upload) error {
	var failures []*internal.AppError
	if appErr := validation.Struct(dto); appErr != nil {
		failures = append(failures, appErr)
	}

	strengthErr := s.policy.ValidateStrength(password.Candidate{
		Username:     dto.Username,
		Email:        dto.Email,
		Password:     dto.Password,
		Confirmation: dto.PasswordConfirmation,
	})
	if strengthErr != nil {
		appErr, ok := internal.IsAppError(strengthErr)
		if !ok {
			return strengthErr
		}
		failures = append(failures, appErr)
	}

	if avatar != nil && !avatar.IsImage() {
		failures = append(failures, internal.NewValidationFieldError("avatar", "avatar must be an image", internal.ErrCodeInvalidFile))
	}

	if merged := validation.Merge(failures...); merged != nil {
		return merged
	}
	return nil
}

func (s *Service) ensureUnique(ctx context.Context, username, email string) error {
	taken, err := s.repo.UsernameExists(ctx, username)
	if err != nil {
		return err
	}
	if taken {
		return ErrUsernameTaken
	}
	taken, err = s.repo.EmailExists(ctx, email)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailTaken
	}
	return nil
}

// GetMe returns the caller's own account including its password expiry status.
func (s *Service) GetMe(ctx context.Context, principal *internal.Principal, meta audit.RequestMeta) (*Detail, error) {
	op := audit.Operation{Action: audit.ActionView, Module: auditModule, Table: auditTable, RecordID: principal.ID.String(), Meta: meta}

	return audit.Run(ctx, s.audit, op, func(ctx context.Context, _ *audit.Capture) (*Detail, error) {
		u, roles, err := s.load(ctx, principal.ID)
		if err != nil {
			return nil, err
		}
		return &Detail{
			User:           *FromDataModel(u, roles, s.mediaURL),
			PasswordStatus: s.policy.ExpiryStatus(u.LastPasswordChange, s.now()),
		}, nil
	})
}

// ListActiveUsers lists active accounts holding roleID, for pickers such as the advisor list.
func (s *Service) ListActiveUsers(ctx context.Context, roleID uuid.UUID, meta audit.RequestMeta) ([]Option, error) {
	op := audit.Operation{Action: audit.ActionView, Module: auditModule, Table: auditTable, RecordID: roleID.String(), Meta: meta}

	return audit.Run(ctx, s.audit, op, func(ctx context.Context, c *audit.Capture) ([]Option, error) {
		r, err := s.repo.FindRole(ctx, roleID)
		if err != nil {
			return nil, err
		}

		users, err := s.repo.ListActiveByRole(ctx, roleID)
		if err != nil {
			return nil, err
		}

		out := make([]Option, 0, len(users))
		for i := range users {
			out = append(out, Option{
				ID:   users[i].ID,
				Name: FullName(&users[i]),
				Role: Role{ID: r.ID, Name: r.Name},
			})
		}
		c.SetNewData(map[string]interface{}{"role": r.Name, "count": len(out)})
		return out, nil
	})
}

// GetRoles lists the roles a client may pick when creating an account.
func (s *Service) GetRoles(ctx context.Context) ([]Role, error) {
	names := make([]string, 0, 2)
	for _, n := range role.Assignable() {
		names = append(names, string(n))
	}

	roles, err := s.repo.RolesByName(ctx, names...)
	if err != nil {
		return nil, err
	}
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, Role{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

// UpdateUser applies a partial profile update. Users may update themselves;
// administrators may update anyone and are the only ones allowed to toggle is_active.
func (s *Service) UpdateUser(ctx context.Context, principal *internal.Principal, id uuid.UUID, dto UpdateUserDTO, avatar *storage.Upload, meta audit.RequestMeta) (*User, error) {
	op := audit.Operation{Action: audit.ActionUpdate, Module: auditModule, Table: auditTable, RecordID: id.String(), Meta: meta}

	return audit.Run(ctx, s.audit, op, func(ctx context.Context, c *audit.Capture) (*User, error) {
		if err := dto.Validate(); err != nil {
			return nil, err
		}
		if avatar != nil && !avatar.IsImage() {
			return nil, internal.NewValidationFieldError("avatar", "avatar must be an image", internal.ErrCodeInvalidFile)
		}

		target, roles, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}

		isAdmin := principal.Roles.IsAdmin()
		if !principal.Is(id) && !isAdmin {
			return nil, internal.NewPermissionDeniedError("you do not have permission to update this user")
		}
		if dto.IsActive != nil && !isAdmin {
			return nil, internal.NewPermissionDeniedError("only administrators may activate or deactivate users")
		}

		c.SetPrevious(FromDataModel(target, roles, s.mediaURL))

		now := s.now()
		fields := map[string]interface{}{}
		if dto.FirstName != nil {
			target.FirstName = strings.TrimSpace(*dto.FirstName)
			fields["first_name"] = target.FirstName
		}
		if dto.LastName != nil {
			target.LastName = strings.TrimSpace(*dto.LastName)
			fields["last_name"] = target.LastName
		}
		if dto.IsActive != nil && *dto.IsActive != target.IsActive {
			target.IsActive = *dto.IsActive
			fields["is_active"] = target.IsActive
			if target.IsActive {
				target.InactivatedAt = nil
				fields["inactivated_at"] = nil
			} else {
				at := now
				target.InactivatedAt = &at
				fields["inactivated_at"] = at
			}
		}

		oldAvatar := target.Avatar
		var stored string
		switch {
		case avatar != nil:
			stored = storage.AvatarPath(id, avatar.Filename)
			if _, err := s.files.Save(ctx, stored, avatar.Reader()); err != nil {
				return nil, fmt.Errorf("store avatar: %w", err)
			}
			target.Avatar = &stored
			fields["avatar"] = stored
		case dto.RemoveAvatar && oldAvatar != nil:
			target.Avatar = nil
			fields["avatar"] = nil
		}

		if len(fields) > 0 {
			fields["updated_at"] = now
			if err := s.repo.Update(ctx, id, fields); err != nil {
				if stored != "" && (oldAvatar == nil || *oldAvatar != stored) {
					s.release(ctx, stored)
				}
				return nil, err
			}
			target.UpdatedAt = now
		}

		if oldAvatar != nil && (target.Avatar == nil || *target.Avatar != *oldAvatar) {
			s.release(ctx, *oldAvatar)
		}

		s.logger.Info("user updated", "user_id", id, "by", principal.ID, "fields", len(fields))
		return FromDataModel(target, roles, s.mediaURL), nil
	})
}

// ChangePassword replaces the password of user id. Users changing their own
// password must confirm the current one; administrators may reset anyone's.
func (s *Service) ChangePassword(ctx context.Context, principal *internal.Principal, id uuid.UUID, dto ChangePasswordDTO, meta audit.RequestMeta) (*User, error) {
	op := audit.Operation{Action: audit.ActionPasswordChange, Module: auditModule, Table: auditTable, RecordID: id.String(), Meta: meta}

	return audit.Run(ctx, s.audit, op, func(ctx context.Context, _ *audit.Capture) (*User, error) {
		if err := dto.Validate(); err != nil {
			return nil, err
		}

		target, roles, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}

		change := password.Change{
			Candidate: password.Candidate{
				Username:     target.Username,
				Email:        target.Email,
				Password:     dto.NewPassword,
				Confirmation: dto.PasswordConfirmation,
			},
			CurrentHash: target.PasswordHash,
		}

		switch {
		case principal.Roles.IsAdmin():
		case principal.Is(id):
			if dto.CurrentPassword == "" {
				return nil, internal.NewValidationFieldError("current_password", "current password is required", internal.ErrCodeValidationFailed)
			}
			if !password.Verify(target.PasswordHash, dto.CurrentPassword) {
				return nil, internal.NewValidationFieldError("current_password", "current password is incorrect", internal.ErrCodeCurrentPassword)
			}
			change.CurrentPassword = dto.CurrentPassword
		default:
			return nil, internal.NewPermissionDeniedError("you do not have permission to change this user's password")
		}

		history, err := s.repo.History(ctx, id, s.policy.HistoryLimit())
		if err != nil {
			return nil, err
		}
		change.History = history

		if err := s.policy.ValidateChange(change); err != nil {
			return nil, err
		}

		hash, err := s.policy.Hash(dto.NewPassword)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}

		now := s.now()
		if err := s.repo.ChangePassword(ctx, id, hash, now, s.policy.HistoryLimit()); err != nil {
			return nil, err
		}
		target.PasswordHash = hash
		target.LastPasswordChange = now
		target.UpdatedAt = now

		s.logger.Info("password changed", "user_id", id, "by", principal.ID)
		return FromDataModel(target, roles, s.mediaURL), nil
	})
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*userDatamodel.User, []userDatamodel.Role, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	roles, err := s.repo.RolesOf(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return u, roles, nil
}

func (s *Service) release(ctx context.Context, name string) {
	if err := s.files.Delete(ctx, name); err != nil {
		s.logger.Warn("failed to remove avatar", "path", name, "error", err)
	}
}
