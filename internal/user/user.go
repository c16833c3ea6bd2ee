package user

import (
	"context"
	"time"

	"github.com/frahmantamala/thesis-repository/internal"
	userDatamodel "github.com/frahmantamala/thesis-repository/internal/core/datamodel/user"
	"github.com/frahmantamala/thesis-repository/internal/core/password"
	"github.com/google/uuid"
)

var (
	ErrUserNotFound  = internal.NewNotFoundError("user not found", internal.ErrCodeUserNotFound)
	ErrRoleNotFound  = internal.NewNotFoundError("role not found", internal.ErrCodeRoleNotFound)
	ErrUsernameTaken = internal.NewConflictError("a user with this username already exists", internal.ErrCodeUsernameTaken)
	ErrEmailTaken    = internal.NewConflictError("a user with this email already exists", internal.ErrCodeEmailTaken)
)

type Role struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
}

// User is the public representation of an account. The password hash never leaves the service.
type User struct {
	ID            uuid.UUID  `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	InactivatedAt *time.Time `json:"inactivated_at"`
	AvatarURL     *string    `json:"avatar_url"`
	Roles         []Role     `json:"roles"`
}

// Detail is the current user's own view.
type Detail struct {
	User
	PasswordStatus password.Status `json:"password_status"`
}

// Option is one entry of the active-user picker, e.g. advisors for a thesis form.
type Option struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role Role      `json:"role"`
}

// Repository persists accounts, their roles and their password history.
type Repository interface {
	Create(ctx context.Context, u *userDatamodel.User, roleID uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*userDatamodel.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	RolesOf(ctx context.Context, userID uuid.UUID) ([]userDatamodel.Role, error)
	FindRole(ctx context.Context, id uuid.UUID) (*userDatamodel.Role, error)
	RolesByName(ctx context.Context, names ...string) ([]userDatamodel.Role, error)
	ListActiveByRole(ctx context.Context, roleID uuid.UUID) ([]userDatamodel.User, error)
	// History returns at most limit password hashes, newest first.
	History(ctx context.Context, userID uuid.UUID, limit int) ([]string, error)
	// ChangePassword stores hash, appends it to the history and prunes the
	// history to keep entries, all in one transaction.
	ChangePassword(ctx context.Context, userID uuid.UUID, hash string, changedAt time.Time, keep int) error
}

func FromDataModel(u *userDatamodel.User, roles []userDatamodel.Role, mediaURL string) *User {
	out := &User{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		IsActive:      u.IsActive,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
		InactivatedAt: u.InactivatedAt,
		Roles:         make([]Role, 0, len(roles)),
	}
	if u.Avatar != nil && *u.Avatar != "" {
		url := mediaURL + *u.Avatar
		out.AvatarURL = &url
	}
	for _, r := range roles {
		out.Roles = append(out.Roles, RoleFromDataModel(r))
	}
	return out
}

func RoleFromDataModel(r userDatamodel.Role) Role {
	return Role{ID: r.ID, Name: r.Name, Description: r.Description}
}

// FullName falls back to the username when no name is on record.
func FullName(u *userDatamodel.User) string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}
