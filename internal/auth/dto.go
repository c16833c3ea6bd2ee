package auth

import (
	"strings"

	"github.com/frahmantamala/thesis-repository/internal/core/common/validation"
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Validate checks required fields. Username surrounding whitespace is ignored.
func (d *LoginDTO) Validate() error {
	d.Username = strings.TrimSpace(d.Username)
	if appErr := validation.Struct(d); appErr != nil {
		return appErr
	}
	return nil
}

// RefreshTokenDTO for refresh token requests
type RefreshTokenDTO struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (d RefreshTokenDTO) Validate() error {
	if appErr := validation.Struct(d); appErr != nil {
		return appErr
	}
	return nil
}

type LogoutDTO struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (d LogoutDTO) Validate() error {
	if appErr := validation.Struct(d); appErr != nil {
		return appErr
	}
	return nil
}
