// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/mfuentes/cuentaclara/internal/model"
)

// AuditRecord is one persisted audit run: the resolved balance plus the
// normalized findings and diagnostics that produced it.
type AuditRecord struct {
	CreatedAt time.Time
	State     string
	BillRef   string
	Findings  []*model.Finding
	Alerts    []string
	Balance   model.Balance
	ID        int64
}

// AuditFilter defines filtering options for audit queries.
type AuditFilter struct {
	Since  *time.Time
	Limit  int
	Offset int
}

// Storage defines the contract for the persistence layer.
type Storage interface {
	// Audit operations
	SaveAudit(ctx context.Context, record *AuditRecord) (int64, error)
	GetAudit(ctx context.Context, id int64) (*AuditRecord, error)
	ListAudits(ctx context.Context, filter AuditFilter) ([]AuditRecord, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for transient failures.
type RetryOptions struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
}
