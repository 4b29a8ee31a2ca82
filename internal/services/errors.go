package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joshua-takyi/eventflow/internal/models"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrDenied     = errors.New("denied")
	ErrConflict   = errors.New("scheduling conflict")
	ErrNotFound   = models.ErrNotFound
)

// ValidationError names the offending fields.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(message string, fields ...string) error {
	return &ValidationError{Message: message, Fields: fields}
}

// validationFromStruct converts validator failures into a ValidationError
// listing the json names of the failing fields.
func validationFromStruct(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalid(err.Error())
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return invalid("invalid input", fields...)
}

// DeniedError carries a reason safe to show the caller.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return "denied: " + e.Reason
}

func (e *DeniedError) Is(target error) bool {
	return target == ErrDenied
}

func deny(reason string) error {
	return &DeniedError{Reason: reason}
}

// ConflictError lists the events a placement collides with.
type ConflictError struct {
	Conflicts []models.Event
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("venue already booked by %d event(s) in that interval", len(e.Conflicts))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
