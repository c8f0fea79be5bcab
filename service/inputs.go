package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"creditengine/models"

	"github.com/go-playground/validator/v10"
)

// CategoryInput carries the administrator-editable fields of a credit category
type CategoryInput struct {
	EventID           int64    `validate:"required,gt=0"`
	Name              string   `validate:"required,max=255"`
	Code              string   `validate:"required,max=64"`
	Description       string   `validate:"max=2000"`
	ProfileIDs        []int64  `validate:"dive,gt=0"`
	JurisdictionCodes []string `validate:"dive,required,max=16"`
}

// PackageInput carries the administrator-editable fields of an award package.
// CategoryIDs are only honored on create; later changes go through Link/Unlink.
type PackageInput struct {
	EventID               int64                      `validate:"required,gt=0"`
	Name                  string                     `validate:"required,max=255"`
	AttendanceCriterion   models.AttendanceCriterion `validate:"required,oneof=none event_check_in session_check_in session_check_in_and_out"`
	PaymentInFullRequired bool
	SurveyRequired        bool
	CategoryIDs           []int64 `validate:"dive,gt=0"`
}

// ExceptionInput identifies the triple an administrator forces eligible
type ExceptionInput struct {
	ContestantID  int64  `validate:"required,gt=0"`
	PackageID     int64  `validate:"required,gt=0"`
	CategoryID    int64  `validate:"required,gt=0"`
	SessionID     int64  `validate:"required,gt=0"`
	Justification string `validate:"required,max=2000"`
	AdminUserID   int64  `validate:"required,gt=0"`
}

// GrantInput describes a new grant. Schedule applies to recurring grants and
// falls back to the configured default. StartAt defaults to now for once
// grants and to the schedule's first occurrence for recurring ones.
type GrantInput struct {
	EventID               int64          `validate:"required,gt=0"`
	PackageID             int64          `validate:"required,gt=0"`
	AdminID               int64          `validate:"required,gt=0"`
	CertificateTemplateID *int64         `validate:"omitempty,gt=0"`
	EmailTemplateID       *int64         `validate:"omitempty,gt=0"`
	Notify                bool
	RunType               models.RunType `validate:"required,oneof=once recurring"`
	Schedule              string
	StartAt               *time.Time
	TestMode              bool
}

var validate = validator.New()

// validateInput runs struct validation, wrapping failures in ErrInvalidInput
func validateInput(input any, except ...string) error {
	var err error
	if len(except) > 0 {
		err = validate.StructExcept(input, except...)
	} else {
		err = validate.Struct(input)
	}
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", models.ErrInvalidInput, strings.Join(parts, ", "))
	}
	return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
}
