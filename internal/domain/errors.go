package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInsufficientPoints = errors.New("insufficient loyalty points")
)

// ValidationError lists the checkout or form fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}

type NotificationDeliveryError struct {
	Recipients int
	Err        error
}

func (e *NotificationDeliveryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("notification not delivered to any of %d recipients", e.Recipients)
	}
	return fmt.Sprintf("notification not delivered to any of %d recipients: %v", e.Recipients, e.Err)
}

func (e *NotificationDeliveryError) Unwrap() error {
	return e.Err
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
