package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mfuentes/cuentaclara/internal/service"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrInvalidAudit   = errors.New("invalid audit record")
	ErrInvalidFinding = errors.New("invalid finding")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateAuditRecord validates an audit record before persistence.
func validateAuditRecord(record *service.AuditRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if record.Balance.Total < 0 {
		return fmt.Errorf("%w: negative declared total", ErrInvalidAudit)
	}
	if record.State == "" {
		return fmt.Errorf("%w: missing state", ErrInvalidAudit)
	}
	for i, f := range record.Findings {
		if f == nil {
			return fmt.Errorf("%w: finding at index %d is nil", ErrInvalidFinding, i)
		}
		if f.ID == "" {
			return fmt.Errorf("%w: finding at index %d has no ID", ErrInvalidFinding, i)
		}
	}
	return nil
}
