package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-project-tracker/internal/models"
	"github.com/noah-isme/edu-project-tracker/pkg/database"
	appErrors "github.com/noah-isme/edu-project-tracker/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// NewValidator returns a validator that reports JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// validationError turns validator output into a VALIDATION_ERROR with per-field details.
func validationError(err error, message string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	details := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = append(details[fe.Field()], describeRule(fe))
	}
	appErr := appErrors.WithDetails(appErrors.ErrValidation, message, details)
	appErr.Err = err
	return appErr
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "url":
		return "Enter a valid URL."
	case "min":
		return fmt.Sprintf("Ensure this value is at least %s.", fe.Param())
	case "max":
		return fmt.Sprintf("Ensure this value is at most %s.", fe.Param())
	case "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "lte":
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "gt":
		return fmt.Sprintf("Ensure this value is greater than %s.", fe.Param())
	case "datetime":
		return "Enter a valid date."
	case "oneof":
		return fmt.Sprintf("Select a valid choice. Allowed: %s.", fe.Param())
	default:
		return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
	}
}

// internalError wraps unexpected failures.
func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// lookupError maps sql.ErrNoRows to NOT_FOUND and anything else to INTERNAL_ERROR.
func lookupError(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	return internalError(err, "failed to load "+entity)
}

// writeError maps store constraint failures to typed errors.
func writeError(err error, entity, conflictMessage string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	case database.IsUniqueViolation(err):
		if message, ok := constraintMessages[database.Constraint(err)]; ok {
			conflictMessage = message
		}
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflictMessage)
	case database.IsForeignKeyViolation(err):
		message, ok := constraintMessages[database.Constraint(err)]
		if !ok {
			message = "referenced record does not exist"
		}
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	default:
		return internalError(err, "failed to save "+entity)
	}
}

// constraintMessages names the schema constraints callers can trip over.
var constraintMessages = map[string]string{
	"accounts_username_key":          "username already taken",
	"accounts_email_key":             "email already registered",
	"courses_code_key":               "course code already exists",
	"students_account_id_key":        "account already has a student profile",
	"students_student_id_key":        "student id already taken",
	"enrollments_student_course_key": "student already enrolled in course",
	"enrollments_student_id_fkey":    "student does not exist",
	"enrollments_course_id_fkey":     "course does not exist",
	"projects_student_id_fkey":       "student does not exist",
	"projects_course_id_fkey":        "course does not exist",
	"tasks_project_id_fkey":          "project does not exist",
}

// newPagination mirrors the clamping the repositories apply to page and size.
func newPagination(page, size, defaultSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = defaultSize
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}

// parseDate reads a YYYY-MM-DD value; blank input yields nil.
func parseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
