package thesis

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/internal/core/common/validation"
	"github.com/google/uuid"
)

type CreateThesisDTO struct {
	Title       string `json:"title" form:"title" validate:"required,max=255"`
	AuthorID    string `json:"author_id" form:"author_id" validate:"required,uuid"`
	AdvisorID   string `json:"advisor_id" form:"advisor_id" validate:"required,uuid"`
	CoAdvisorID string `json:"co_advisor_id" form:"co_advisor_id" validate:"omitempty,uuid"`
	Abstract    string `json:"abstract" form:"abstract" validate:"required"`
	Keywords    string `json:"keywords" form:"keywords" validate:"required,max=255"`
	DefenseDate string `json:"defense_date" form:"defense_date" validate:"required,datetime=2006-01-02"`
}

func (d *CreateThesisDTO) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Keywords = strings.TrimSpace(d.Keywords)
	d.Abstract = strings.TrimSpace(d.Abstract)
	d.CoAdvisorID = strings.TrimSpace(d.CoAdvisorID)
}

// refs is only meaningful after the struct validated.
func (d CreateThesisDTO) refs() (author, advisor uuid.UUID, coAdvisor *uuid.UUID, defense time.Time) {
	author, _ = uuid.Parse(d.AuthorID)
	advisor, _ = uuid.Parse(d.AdvisorID)
	if d.CoAdvisorID != "" {
		id, _ := uuid.Parse(d.CoAdvisorID)
		coAdvisor = &id
	}
	defense, _ = time.Parse(DateLayout, d.DefenseDate)
	return author, advisor, coAdvisor, defense
}

// UpdateThesisDTO is a partial update: nil fields stay untouched. An empty
// CoAdvisorID removes the co-advisor; so does an explicit JSON null.
type UpdateThesisDTO struct {
	Title       *string `json:"title" form:"title" validate:"omitnil,min=1,max=255"`
	AuthorID    *string `json:"author_id" form:"author_id" validate:"omitnil,uuid"`
	AdvisorID   *string `json:"advisor_id" form:"advisor_id" validate:"omitnil,uuid"`
	CoAdvisorID *string `json:"co_advisor_id" form:"co_advisor_id"`
	Abstract    *string `json:"abstract" form:"abstract" validate:"omitnil,min=1"`
	Keywords    *string `json:"keywords" form:"keywords" validate:"omitnil,min=1,max=255"`
	DefenseDate *string `json:"defense_date" form:"defense_date" validate:"omitnil,datetime=2006-01-02"`
	Status      *string `json:"status" form:"status" validate:"omitnil,oneof=PENDING APPROVED REJECTED"`
}

func (d *UpdateThesisDTO) UnmarshalJSON(data []byte) error {
	type plain UpdateThesisDTO
	var fields struct {
		plain
		CoAdvisorID json.RawMessage `json:"co_advisor_id"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*d = UpdateThesisDTO(fields.plain)

	switch raw := bytes.TrimSpace(fields.CoAdvisorID); {
	case len(raw) == 0:
		d.CoAdvisorID = nil
	case bytes.Equal(raw, []byte("null")):
		empty := ""
		d.CoAdvisorID = &empty
	default:
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return err
		}
		d.CoAdvisorID = &id
	}
	return nil
}

func (d UpdateThesisDTO) Validate() error {
	var failures []*internal.AppError
	if appErr := validation.Struct(d); appErr != nil {
		failures = append(failures, appErr)
	}
	if d.CoAdvisorID != nil && *d.CoAdvisorID != "" {
		if _, err := uuid.Parse(*d.CoAdvisorID); err != nil {
			failures = append(failures, internal.NewValidationFieldError("co_advisor_id", "co_advisor_id must be a valid UUID", internal.ErrCodeValidationFailed))
		}
	}
	if merged := validation.Merge(failures...); merged != nil {
		return merged
	}
	return nil
}

func (d UpdateThesisDTO) Empty() bool {
	return d.Title == nil && d.AuthorID == nil && d.AdvisorID == nil && d.CoAdvisorID == nil &&
		d.Abstract == nil && d.Keywords == nil && d.DefenseDate == nil && d.Status == nil
}
