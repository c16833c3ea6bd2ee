package user

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/internal/audit"
	"github.com/frahmantamala/thesis-repository/internal/storage"
	"github.com/frahmantamala/thesis-repository/internal/transport"
	"github.com/go-chi/chi"
	"github.com/google/uuid"
)

type ServiceAPI interface {
	CreateUser(ctx context.Context, requester *internal.Principal, dto CreateUserDTO, avatar *storage.Upload, meta audit.RequestMeta) (*User, error)
	GetMe(ctx context.Context, principal *internal.Principal, meta audit.RequestMeta) (*Detail, error)
	ListActiveUsers(ctx context.Context, roleID uuid.UUID, meta audit.RequestMeta) ([]Option, error)
	GetRoles(ctx context.Context) ([]Role, error)
	UpdateUser(ctx context.Context, principal *internal.Principal, id uuid.UUID, dto UpdateUserDTO, avatar *storage.Upload, meta audit.RequestMeta) (*User, error)
	ChangePassword(ctx context.Context, principal *internal.Principal, id uuid.UUID, dto ChangePasswordDTO, meta audit.RequestMeta) (*User, error)
}

type Handler struct {
	*transport.BaseHandler
	Service        ServiceAPI
	maxUploadBytes int64
}

func NewHandler(base *transport.BaseHandler, svc ServiceAPI, maxUploadBytes int64) *Handler {
	if base == nil {
		base = transport.NewBaseHandler(slog.Default())
	}
	return &Handler{
		BaseHandler:    base,
		Service:        svc,
		maxUploadBytes: maxUploadBytes,
	}
}

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, internal.ErrAuthenticationRequired)
		return
	}

	me, err := h.Service.GetMe(r.Context(), principal, audit.MetaFromRequest(r))
	if err != nil {
		h.Logger.Error("GetCurrentUser: service error", "user_id", principal.ID, "error", err)
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, r, http.StatusOK, me)
}

// ListUsers handles GET /users?role_id=
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("role_id")
	if raw == "" {
		h.HandleServiceError(w, r, internal.NewValidationFieldError("role_id", "role_id is required", internal.ErrCodeValidationFailed))
		return
	}
	roleID, err := uuid.Parse(raw)
	if err != nil {
		h.HandleServiceError(w, r, internal.NewValidationFieldError("role_id", "role_id must be a valid UUID", internal.ErrCodeValidationFailed))
		return
	}

	users, err := h.Service.ListActiveUsers(r.Context(), roleID, audit.MetaFromRequest(r))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, r, http.StatusOK, users)
}

// ListRoles handles GET /users/roles
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Service.GetRoles(r.Context())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, roles)
}

// CreateUser handles POST /users. It accepts JSON or multipart with an optional avatar.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var (
		dto    CreateUserDTO
		avatar *storage.Upload
	)

	if transport.IsMultipart(r) {
		if err := transport.ParseMultipart(w, r, h.maxUploadBytes); err != nil {
			h.HandleServiceError(w, r, err)
			return
		}
		dto = CreateUserDTO{
			Username:             r.FormValue("username"),
			Email:                r.FormValue("email"),
			FirstName:            r.FormValue("first_name"),
			LastName:             r.FormValue("last_name"),
			Password:             r.FormValue("password"),
			PasswordConfirmation: r.FormValue("password_confirmation"),
			RoleID:               r.FormValue("role_id"),
		}
		var err error
		if avatar, err = transport.ReadUpload(r, "avatar"); err != nil {
			h.HandleServiceError(w, r, err)
			return
		}
	} else if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.HandleServiceError(w, r, internal.NewValidationError("invalid request body", internal.ErrCodeInvalidPayload))
		return
	}

	requester, _ := internal.PrincipalFromContext(r.Context())
	u, err := h.Service.CreateUser(r.Context(), requester, dto, avatar, audit.MetaFromRequest(r))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, r, http.StatusCreated, u)
}

// UpdateUser handles PATCH /users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, internal.ErrAuthenticationRequired)
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var (
		dto    UpdateUserDTO
		avatar *storage.Upload
	)
	if transport.IsMultipart(r) {
		if err := transport.ParseMultipart(w, r, h.maxUploadBytes); err != nil {
			h.HandleServiceError(w, r, err)
			return
		}
		if dto, err = updateFromForm(r); err != nil {
			h.HandleServiceError(w, r, err)
			return
		}
		if avatar, err = transport.ReadUpload(r, "avatar"); err != nil {
			h.HandleServiceError(w, r, err)
			return
		}
	} else if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.HandleServiceError(w, r, internal.NewValidationError("invalid request body", internal.ErrCodeInvalidPayload))
		return
	}

	u, err := h.Service.UpdateUser(r.Context(), principal, id, dto, avatar, audit.MetaFromRequest(r))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, r, http.StatusOK, u)
}

func updateFromForm(r *http.Request) (UpdateUserDTO, error) {
	var dto UpdateUserDTO
	if v, ok := transport.FormValue(r, "first_name"); ok {
		dto.FirstName = &v
	}
	if v, ok := transport.FormValue(r, "last_name"); ok {
		dto.LastName = &v
	}
	if v, ok := transport.FormValue(r, "is_active"); ok {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return dto, internal.NewValidationFieldError("is_active", "is_active must be a boolean", internal.ErrCodeValidationFailed)
		}
		dto.IsActive = &active
	}
	if v, ok := transport.FormValue(r, "remove_avatar"); ok {
		dto.RemoveAvatar, _ = strconv.ParseBool(v)
	}
	// an empty avatar field clears the picture
	if v, ok := transport.FormValue(r, "avatar"); ok && (v == "" || strings.EqualFold(v, "null")) {
		dto.RemoveAvatar = true
	}
	return dto, nil
}

// ChangePassword handles POST /users/{id}/change-password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, internal.ErrAuthenticationRequired)
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto ChangePasswordDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.HandleServiceError(w, r, internal.NewValidationError("invalid request body", internal.ErrCodeInvalidPayload))
		return
	}

	u, err := h.Service.ChangePassword(r.Context(), principal, id, dto, audit.MetaFromRequest(r))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, r, http.StatusOK, u)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, internal.NewValidationFieldError("id", "id must be a valid UUID", internal.ErrCodeValidationFailed)
	}
	return id, nil
}
