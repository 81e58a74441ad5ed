package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mfuentes/cuentaclara/internal/common"
	"github.com/mfuentes/cuentaclara/internal/model"
	"github.com/mfuentes/cuentaclara/internal/service"
)

// SaveAudit persists one audit run with its findings and alerts, returning
// the new audit ID.
func (s *SQLiteStorage) SaveAudit(ctx context.Context, record *service.AuditRecord) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateAuditRecord(record); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO audits (
			bill_ref, created_at, total_declared,
			confirmed, controversial, opaque, legitimate, state
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.BillRef,
		record.CreatedAt,
		record.Balance.Total,
		record.Balance.Confirmed,
		record.Balance.Controversial,
		record.Balance.Opaque,
		record.Balance.Legitimate,
		record.State,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save audit: %w", err)
	}

	auditID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get audit ID: %w", err)
	}

	for _, f := range record.Findings {
		evidence, marshalErr := json.Marshal(f.Evidence)
		if marshalErr != nil {
			return 0, fmt.Errorf("failed to marshal evidence for finding %s: %w", f.ID, marshalErr)
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO findings (
				id, audit_id, category, amount, label,
				rationale, action, hypothesis_id, evidence
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(audit_id, id) DO UPDATE SET
				category = excluded.category,
				amount = excluded.amount,
				label = excluded.label,
				rationale = excluded.rationale,
				action = excluded.action,
				hypothesis_id = excluded.hypothesis_id,
				evidence = excluded.evidence
		`,
			f.ID, auditID, string(f.Category), f.Amount, f.Label,
			f.Rationale, string(f.Action), f.HypothesisID, string(evidence),
		); err != nil {
			return 0, fmt.Errorf("failed to save finding %s: %w", f.ID, err)
		}
	}

	for i, alert := range record.Alerts {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO alerts (audit_id, position, message) VALUES (?, ?, ?)
		`, auditID, i, alert); err != nil {
			return 0, fmt.Errorf("failed to save alert: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit audit: %w", err)
	}

	record.ID = auditID
	return auditID, nil
}

// GetAudit loads one audit run with its findings and alerts.
func (s *SQLiteStorage) GetAudit(ctx context.Context, id int64) (*service.AuditRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	record := &service.AuditRecord{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT bill_ref, created_at, total_declared,
			confirmed, controversial, opaque, legitimate, state
		FROM audits WHERE id = ?
	`, id).Scan(
		&record.BillRef,
		&record.CreatedAt,
		&record.Balance.Total,
		&record.Balance.Confirmed,
		&record.Balance.Controversial,
		&record.Balance.Opaque,
		&record.Balance.Legitimate,
		&record.State,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("audit %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load audit %d: %w", id, err)
	}

	findings, err := s.loadFindings(ctx, id)
	if err != nil {
		return nil, err
	}
	record.Findings = findings

	alerts, err := s.loadAlerts(ctx, id)
	if err != nil {
		return nil, err
	}
	record.Alerts = alerts

	return record, nil
}

func (s *SQLiteStorage) loadFindings(ctx context.Context, auditID int64) ([]*model.Finding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, amount, label, rationale, action, hypothesis_id, evidence
		FROM findings WHERE audit_id = ? ORDER BY id
	`, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to load findings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var findings []*model.Finding
	for rows.Next() {
		var f model.Finding
		var category, action, evidence string
		if err := rows.Scan(&f.ID, &category, &f.Amount, &f.Label, &f.Rationale, &action, &f.HypothesisID, &evidence); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		f.Category = model.FindingCategory(category)
		f.Action = model.FindingAction(action)
		if evidence != "" {
			if err := json.Unmarshal([]byte(evidence), &f.Evidence); err != nil {
				return nil, fmt.Errorf("failed to unmarshal evidence for finding %s: %w", f.ID, err)
			}
		}
		findings = append(findings, &f)
	}
	return findings, rows.Err()
}

func (s *SQLiteStorage) loadAlerts(ctx context.Context, auditID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message FROM alerts WHERE audit_id = ? ORDER BY position
	`, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var alerts []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, msg)
	}
	return alerts, rows.Err()
}

// ListAudits returns audit summaries, newest first. Findings and alerts are
// not loaded; use GetAudit for the full record.
func (s *SQLiteStorage) ListAudits(ctx context.Context, filter service.AuditFilter) ([]service.AuditRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, bill_ref, created_at, total_declared,
			confirmed, controversial, opaque, legitimate, state
		FROM audits`
	args := []any{}
	if filter.Since != nil {
		query += ` WHERE created_at >= ?`
		args = append(args, *filter.Since)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []service.AuditRecord
	for rows.Next() {
		var r service.AuditRecord
		if err := rows.Scan(
			&r.ID, &r.BillRef, &r.CreatedAt, &r.Balance.Total,
			&r.Balance.Confirmed, &r.Balance.Controversial,
			&r.Balance.Opaque, &r.Balance.Legitimate, &r.State,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
