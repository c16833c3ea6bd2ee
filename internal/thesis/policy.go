package thesis

import (
	"github.com/frahmantamala/thesis-repository/internal"
	thesisDatamodel "github.com/frahmantamala/thesis-repository/internal/core/datamodel/thesis"
	"github.com/frahmantamala/thesis-repository/internal/core/role"
)

// InitialStatus picks the status of a new thesis from the creator's roles.
// Students submit for review; professors and administrators publish directly.
func InitialStatus(roles role.Set) (Status, error) {
	switch {
	case roles.Has(role.Student):
		return StatusPending, nil
	case roles.HasAny(role.Professor, role.Admin):
		return StatusApproved, nil
	}
	return "", internal.NewValidationError("no permission to create thesis", internal.ErrCodeCannotCreate)
}

// CanUpdate: administrators always, the advisor of record (not a co-advisor),
// or the author while the thesis is still pending.
func CanUpdate(p *internal.Principal, t *thesisDatamodel.Thesis) bool {
	return canModify(p, t)
}

// CanDelete follows the same rules as CanUpdate.
func CanDelete(p *internal.Principal, t *thesisDatamodel.Thesis) bool {
	return canModify(p, t)
}

func canModify(p *internal.Principal, t *thesisDatamodel.Thesis) bool {
	if p == nil || t == nil {
		return false
	}
	switch {
	case p.Roles.IsAdmin():
		return true
	case p.Roles.Has(role.Professor) && p.Is(t.AdvisorID):
		return true
	case p.Roles.Has(role.Student) && p.Is(t.AuthorID) && Status(t.Status) == StatusPending:
		return true
	}
	return false
}

// ValidateUpdateData stops student-only users from setting the status themselves.
func ValidateUpdateData(roles role.Set, dto UpdateThesisDTO) error {
	if dto.Status != nil && roles.IsOnlyStudent() {
		return internal.NewValidationFieldError("status", "students cannot change the thesis status", internal.ErrCodeStatusNotAllowed)
	}
	return nil
}
