package user

import (
	"strings"

	"github.com/frahmantamala/thesis-repository/internal/core/common/validation"
)

type CreateUserDTO struct {
	Username             string `json:"username" form:"username" validate:"required,max=150"`
	Email                string `json:"email" form:"email" validate:"required,email,max=254"`
	FirstName            string `json:"first_name" form:"first_name" validate:"max=150"`
	LastName             string `json:"last_name" form:"last_name" validate:"max=150"`
	Password             string `json:"password" form:"password" validate:"required"`
	PasswordConfirmation string `json:"password_confirmation" form:"password_confirmation" validate:"required"`
	RoleID               string `json:"role_id" form:"role_id" validate:"required,uuid"`
}

func (d *CreateUserDTO) Normalize() {
	d.Username = strings.TrimSpace(d.Username)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
}

// UpdateUserDTO is a partial update; nil fields are left untouched.
type UpdateUserDTO struct {
	FirstName    *string `json:"first_name" form:"first_name" validate:"omitnil,min=1,max=150"`
	LastName     *string `json:"last_name" form:"last_name" validate:"omitnil,min=1,max=150"`
	IsActive     *bool   `json:"is_active" form:"is_active"`
	RemoveAvatar bool    `json:"remove_avatar" form:"remove_avatar"`
}

func (d UpdateUserDTO) Validate() error {
	if appErr := validation.Struct(d); appErr != nil {
		return appErr
	}
	return nil
}

type ChangePasswordDTO struct {
	CurrentPassword      string `json:"current_password"`
	NewPassword          string `json:"new_password" validate:"required"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required"`
}

func (d ChangePasswordDTO) Validate() error {
	if appErr := validation.Struct(d); appErr != nil {
		return appErr
	}
	return nil
}
