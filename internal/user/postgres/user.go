package postgres

import (
	"context"
	"errors"
	"time"

	userDatamodel "github.com/frahmantamala/thesis-repository/internal/core/datamodel/user"
	"github.com/frahmantamala/thesis-repository/internal/user"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts the user, its role and the first history entry in one transaction.
func (r *UserRepository) Create(ctx context.Context, u *userDatamodel.User, roleID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return user.ErrUsernameTaken
			}
			return err
		}
		if err := tx.Create(&userDatamodel.UserRole{UserID: u.ID, RoleID: roleID}).Error; err != nil {
			return err
		}
		return tx.Create(&userDatamodel.PasswordHistory{UserID: u.ID, PasswordHash: u.PasswordHash, CreatedAt: u.LastPasswordChange}).Error
	})
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*userDatamodel.User, error) {
	var u userDatamodel.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username = ?", username)
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "LOWER(email) = LOWER(?)", email)
}

func (r *UserRepository) exists(ctx context.Context, query string, arg interface{}) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where(query, arg).Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) RolesOf(ctx context.Context, userID uuid.UUID) ([]userDatamodel.Role, error) {
	var roles []userDatamodel.Role
	err := r.db.WithContext(ctx).
		Joins("JOIN user_roles ur ON ur.role_id = roles.id").
		Where("ur.user_id = ?", userID).
		Order("roles.name").
		Find(&roles).Error
	return roles, err
}

func (r *UserRepository) FindRole(ctx context.Context, id uuid.UUID) (*userDatamodel.Role, error) {
	var role userDatamodel.Role
	if err := r.db.WithContext(ctx).First(&role, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (r *UserRepository) RolesByName(ctx context.Context, names ...string) ([]userDatamodel.Role, error) {
	var roles []userDatamodel.Role
	err := r.db.WithContext(ctx).Where("name IN ?", names).Order("name").Find(&roles).Error
	return roles, err
}

func (r *UserRepository) ListActiveByRole(ctx context.Context, roleID uuid.UUID) ([]userDatamodel.User, error) {
	var users []userDatamodel.User
	err := r.db.WithContext(ctx).
		Joins("JOIN user_roles ur ON ur.user_id = users.id").
		Where("ur.role_id = ? AND users.is_active = ?", roleID, true).
		Order("users.first_name, users.last_name, users.username").
		Find(&users).Error
	return users, err
}

func (r *UserRepository) History(ctx context.Context, userID uuid.UUID, limit int) ([]string, error) {
	var hashes []string
	err := r.db.WithContext(ctx).
		Model(&userDatamodel.PasswordHistory{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Pluck("password_hash", &hashes).Error
	return hashes, err
}

func (r *UserRepository) ChangePassword(ctx context.Context, userID uuid.UUID, hash string, changedAt time.Time, keep int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&userDatamodel.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"password_hash":        hash,
			"last_password_change": changedAt,
			"updated_at":           changedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return user.ErrUserNotFound
		}

		if err := tx.Create(&userDatamodel.PasswordHistory{UserID: userID, PasswordHash: hash, CreatedAt: changedAt}).Error; err != nil {
			return err
		}

		var keepIDs []uuid.UUID
		if err := tx.Model(&userDatamodel.PasswordHistory{}).
			Where("user_id = ?", userID).
			Order("created_at DESC").
			Limit(keep).
			Pluck("id", &keepIDs).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ? AND id NOT IN ?", userID, keepIDs).
			Delete(&userDatamodel.PasswordHistory{}).Error
	})
}
